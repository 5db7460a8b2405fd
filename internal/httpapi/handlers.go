package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/geocode"
	"home-planner/internal/models"
	"home-planner/internal/phases/budget"
	"home-planner/internal/phases/catalog"
	"home-planner/internal/phases/imagegen"
	"home-planner/internal/phases/recommendations"
	"home-planner/internal/phases/report"
	"home-planner/internal/placeholder"
	"home-planner/internal/wizard"
)

type submitResponse struct {
	Result *models.SubmissionResult `json:"result"`
	Wizard wizard.Snapshot          `json:"wizard"`
}

type budgetResponse struct {
	Preview bool         `json:"preview"`
	Chart   budget.Chart `json:"chart"`
}

type recommendationsResponse struct {
	Preview   bool                       `json:"preview"`
	Carousels []recommendations.Carousel `json:"carousels"`
}

type productsResponse struct {
	Preview bool `json:"preview"`
	catalog.Page
}

type markersResponse struct {
	Preview bool             `json:"preview"`
	Markers []catalog.Marker `json:"markers"`
}

type imagesResponse struct {
	Preview bool                    `json:"preview"`
	Images  []models.GeneratedImage `json:"images"`
}

type imageRequest struct {
	Room   string `json:"room"`
	Prompt string `json:"prompt"`
}

type geocodeResponse struct {
	Suggestions []models.Suggestion `json:"suggestions"`
	Superseded  bool                `json:"superseded,omitempty"`
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var form models.FormInput
	if err := decodeJSON(w, r, &form); err != nil {
		s.writeError(w, "submit", err)
		return
	}

	result, err := s.wizard.Submit(r.Context(), form)
	if err != nil {
		s.writeError(w, "submit", err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Result: result, Wizard: s.wizard.Snapshot()})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.wizard.Reset(r.Context()); err != nil {
		s.writeError(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func (s *Server) markPassed(w http.ResponseWriter, r *http.Request) {
	phase := wizard.Phase(mux.Vars(r)["phase"])
	if err := s.wizard.MarkPassed(phase); err != nil {
		s.writeError(w, "mark_passed", err)
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.Snapshot())
}

func (s *Server) dismissNotification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.wizard.Notifier().Dismiss(id) {
		s.writeError(w, "dismiss_notification", apperrors.NewNotFoundError("notification", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// formFor returns the submitted form backing real data, if this process saw it.
func (s *Server) formFor(preview bool) (models.FormInput, bool) {
	if preview {
		return models.FormInput{}, false
	}
	return s.wizard.Form()
}

func (s *Server) budget(w http.ResponseWriter, r *http.Request) {
	result, preview := s.wizard.DataSource()
	currency, total := models.CurrencyUSD, 0.0
	if form, ok := s.formFor(preview); ok {
		currency, total = form.Currency, form.Budget
	}
	writeJSON(w, http.StatusOK, budgetResponse{
		Preview: preview,
		Chart:   budget.Build(result.BudgetDistribution, total, currency),
	})
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	result, preview := s.wizard.DataSource()
	writeJSON(w, http.StatusOK, recommendationsResponse{
		Preview:   preview,
		Carousels: recommendations.Carousels(result.Recommendations),
	})
}

func (s *Server) products(w http.ResponseWriter, r *http.Request) {
	q, err := catalog.ParseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, "products", err)
		return
	}

	result, preview := s.wizard.DataSource()
	s.applySearch(r.Context(), &q.Filter, result.ID, preview)
	writeJSON(w, http.StatusOK, productsResponse{Preview: preview, Page: catalog.Apply(result.Products, q)})
}

func (s *Server) productMap(w http.ResponseWriter, r *http.Request) {
	q, err := catalog.ParseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, "product_map", err)
		return
	}

	result, preview := s.wizard.DataSource()
	s.applySearch(r.Context(), &q.Filter, result.ID, preview)
	writeJSON(w, http.StatusOK, markersResponse{
		Preview: preview,
		Markers: catalog.Markers(catalog.Match(result.Products, q.Filter)),
	})
}

// applySearch swaps the free-text filter for the search backend's hits. On a
// backend failure the in-memory text filter stays in place.
func (s *Server) applySearch(ctx context.Context, f *catalog.Filter, submissionID string, preview bool) {
	if s.search == nil || preview || strings.TrimSpace(f.Query) == "" {
		return
	}
	ids, err := s.search.Search(ctx, submissionID, f.Query)
	if err != nil {
		s.logger.Warn("product search failed, filtering in memory", map[string]interface{}{
			"planId": submissionID,
			"error":  err.Error(),
		})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	f.IDs = ids
	f.Query = ""
}

func (s *Server) gallery(w http.ResponseWriter, r *http.Request) {
	if !s.wizard.IsFormSubmitted() {
		writeJSON(w, http.StatusOK, imagesResponse{Preview: true, Images: placeholder.Images()})
		return
	}
	writeJSON(w, http.StatusOK, imagesResponse{Images: s.images.Gallery()})
}

func (s *Server) generateImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, "generate_image", err)
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		form, ok := s.wizard.Form()
		if !ok || strings.TrimSpace(req.Room) == "" {
			s.writeError(w, "generate_image", apperrors.NewValidationError([]apperrors.FieldError{{
				Field: "prompt", Message: "is required unless a room is given after submitting the form", Code: "REQUIRED_FIELD_MISSING",
			}}))
			return
		}
		prompt = imagegen.BuildPrompt(form, req.Room)
	}

	img, err := s.images.Generate(r.Context(), req.Room, prompt)
	if err != nil {
		s.writeError(w, "generate_image", err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func (s *Server) buildReport() report.Report {
	result, preview := s.wizard.DataSource()
	in := report.Input{Result: result, Preview: preview, Now: s.now()}
	if form, ok := s.formFor(preview); ok {
		in.Form = &form
	}
	if preview {
		in.Images = placeholder.Images()
	} else {
		in.Images = s.images.Gallery()
	}
	return report.Build(in)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	s.renderReport(w, r, s.buildReport())
}

func (s *Server) renderReport(w http.ResponseWriter, r *http.Request, rep report.Report) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, rep.Markdown())
	default:
		s.writeError(w, "report", apperrors.NewValidationError([]apperrors.FieldError{{
			Field: "format", Message: "must be json or markdown", Code: "INVALID_ENUM_VALUE",
		}}))
	}
}

func (s *Server) shareReport(w http.ResponseWriter, r *http.Request) {
	if s.sharer == nil {
		s.writeError(w, "share_report", apperrors.NewNotFoundError("report sharing", "not configured"))
		return
	}

	var req report.ShareRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, "share_report", err)
			return
		}
	}

	res, err := s.sharer.Share(r.Context(), s.buildReport(), req)
	if err != nil {
		s.writeError(w, "share_report", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) sharedReport(w http.ResponseWriter, r *http.Request) {
	if s.sharer == nil {
		s.writeError(w, "shared_report", apperrors.NewNotFoundError("report sharing", "not configured"))
		return
	}
	rep, err := s.sharer.Get(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		s.writeError(w, "shared_report", err)
		return
	}
	s.renderReport(w, r, rep)
}

func (s *Server) geocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		s.writeError(w, "geocode", apperrors.NewNotFoundError("geocoding", "not configured"))
		return
	}

	suggestions, err := s.searcherFor(r).Search(r.Context(), r.URL.Query().Get("q"))
	if errors.Is(err, geocode.ErrSuperseded) {
		writeJSON(w, http.StatusOK, geocodeResponse{Suggestions: []models.Suggestion{}, Superseded: true})
		return
	}
	if err != nil {
		s.writeError(w, "geocode", err)
		return
	}
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	writeJSON(w, http.StatusOK, geocodeResponse{Suggestions: suggestions})
}

// searcherFor returns the debounced searcher of the caller's session, so a new
// keystroke supersedes that session's previous lookup only.
func (s *Server) searcherFor(r *http.Request) *geocode.Searcher {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		id = defaultSession
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if searcher, ok := s.sessions.Get(id); ok {
		return searcher
	}
	searcher := geocode.NewSearcher(s.geocoder, s.debounce, s.logger)
	s.sessions.Add(id, searcher)
	return searcher
}
