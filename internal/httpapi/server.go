// Package httpapi exposes the planning wizard to the UI over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/common/logger"
	"home-planner/internal/geocode"
	"home-planner/internal/phases/catalog"
	"home-planner/internal/phases/imagegen"
	"home-planner/internal/phases/report"
	"home-planner/internal/wizard"
)

const (
	SessionHeader      = "X-Session-ID"
	defaultSession     = "anonymous"
	maxGeocodeSessions = 256
	maxBodyBytes       = 1 << 20
)

type Deps struct {
	Wizard *wizard.Orchestrator
	Images *imagegen.Generator
	// Sharer is optional; without it share endpoints answer 404.
	Sharer *report.Sharer
	// Search is optional; without it free-text product search filters in memory.
	Search   catalog.Searcher
	Geocoder geocode.Lookup
	Debounce time.Duration
	Gatherer prometheus.Gatherer
	Logger   logger.Logger
}

type Server struct {
	wizard   *wizard.Orchestrator
	images   *imagegen.Generator
	sharer   *report.Sharer
	search   catalog.Searcher
	geocoder geocode.Lookup
	debounce time.Duration
	gatherer prometheus.Gatherer

	sessionsMu sync.Mutex
	sessions   *lru.Cache[string, *geocode.Searcher]

	errors *apperrors.ErrorHandler
	logger logger.Logger
	now    func() time.Time
}

func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	sessions, err := lru.NewWithEvict(maxGeocodeSessions, func(_ string, s *geocode.Searcher) {
		s.Close()
	})
	if err != nil {
		return nil, err
	}

	log := deps.Logger.With(map[string]interface{}{"component": "httpapi"})
	s := &Server{
		wizard:   deps.Wizard,
		images:   deps.Images,
		sharer:   deps.Sharer,
		search:   deps.Search,
		geocoder: deps.Geocoder,
		debounce: deps.Debounce,
		gatherer: deps.Gatherer,
		sessions: sessions,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
		now:      time.Now,
	}

	if s.images != nil {
		s.wizard.Subscribe(func(ev wizard.Event) {
			if ev == wizard.EventReset {
				s.images.Forget()
			}
		})
	}
	return s, nil
}

// Router wires every route onto a fresh gorilla/mux router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	w := r.PathPrefix("/wizard").Subrouter()
	w.HandleFunc("", s.snapshot).Methods(http.MethodGet)
	w.HandleFunc("/submit", s.submit).Methods(http.MethodPost)
	w.HandleFunc("/reset", s.reset).Methods(http.MethodPost)
	w.HandleFunc("/phases/{phase}/passed", s.markPassed).Methods(http.MethodPost)
	w.HandleFunc("/budget", s.budget).Methods(http.MethodGet)
	w.HandleFunc("/recommendations", s.recommendations).Methods(http.MethodGet)
	w.HandleFunc("/products", s.products).Methods(http.MethodGet)
	w.HandleFunc("/products/map", s.productMap).Methods(http.MethodGet)
	w.HandleFunc("/images", s.gallery).Methods(http.MethodGet)
	w.HandleFunc("/images", s.generateImage).Methods(http.MethodPost)
	w.HandleFunc("/report", s.report).Methods(http.MethodGet)
	w.HandleFunc("/report/share", s.shareReport).Methods(http.MethodPost)
	w.HandleFunc("/notifications/{id}", s.dismissNotification).Methods(http.MethodDelete)

	r.HandleFunc("/reports/{token}", s.sharedReport).Methods(http.MethodGet)
	r.HandleFunc("/geocode", s.geocode).Methods(http.MethodGet)
	return r
}

// Close stops every per-session geocode searcher.
func (s *Server) Close() {
	s.sessions.Purge()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  []apperrors.FieldError `json:"fields,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, operation string, err error) {
	stdErr := s.errors.Handle(operation, err)
	body := errorBody{Code: string(stdErr.Code), Message: apperrors.UserMessage(stdErr), Fields: stdErr.Fields}
	if stdErr.Code == apperrors.ErrCodeNotFound || stdErr.Code == apperrors.ErrCodeInvalidState {
		body.Message = stdErr.Message
	}
	writeJSON(w, apperrors.HTTPStatus(stdErr), map[string]interface{}{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.NewValidationError([]apperrors.FieldError{{
			Field: "", Message: "invalid JSON body: " + err.Error(), Code: "INVALID_JSON",
		}})
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if m := mux.CurrentRoute(r); m != nil {
			if tpl, err := m.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.logger.Debug("request served", map[string]interface{}{
			"method":     r.Method,
			"route":      route,
			"status":     rec.status,
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}
