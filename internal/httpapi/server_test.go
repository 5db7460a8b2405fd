package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-planner/internal/common/database"
	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/common/logger"
	"home-planner/internal/models"
	"home-planner/internal/persistence"
	"home-planner/internal/phases/imagegen"
	"home-planner/internal/phases/report"
	"home-planner/internal/planapi"
	"home-planner/internal/querycache"
	"home-planner/internal/wizard"
)

type plannerFunc func(ctx context.Context, form models.FormInput) (*models.SubmissionResult, error)

func (f plannerFunc) SubmitPlan(ctx context.Context, form models.FormInput) (*models.SubmissionResult, error) {
	return f(ctx, form)
}

type fakeImages struct{}

func (fakeImages) GenerateImage(ctx context.Context, prompt string) (*planapi.ImageResult, error) {
	return &planapi.ImageResult{ImageURL: "https://img.example.com/" + imagegen.Key(prompt)[len(imagegen.KeyPrefix):] + ".png"}, nil
}

type fakeSearch struct {
	ids []string
	err error
}

func (f *fakeSearch) Search(ctx context.Context, submissionID, query string) ([]string, error) {
	return f.ids, f.err
}

type fakeLookup struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeLookup) Search(ctx context.Context, query string) ([]models.Suggestion, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return []models.Suggestion{{DisplayName: "Cairo, Egypt", City: "Cairo", Country: "Egypt", Lat: 30.04, Lng: 31.23}}, nil
}

func testForm() models.FormInput {
	return models.FormInput{
		Currency:  models.CurrencyEUR,
		Budget:    10000,
		Area:      90,
		AreaUnit:  models.AreaSquareMeters,
		Bedrooms:  2,
		Bathrooms: 1,
		Location:  "Cairo, Egypt",
		Style:     models.StyleClassic,
		Occupants: models.OccupantsCouple,
	}
}

func testResult() *models.SubmissionResult {
	cairo := models.Store{ID: "s1", Name: "Nile Home", City: "Cairo", Country: "Egypt"}
	giza := models.Store{ID: "s2", Name: "Pyramid Living", City: "Giza", Country: "Egypt"}
	return &models.SubmissionResult{
		ID: "plan-42",
		BudgetDistribution: []models.BudgetShare{
			{Category: models.CategoryLivingRoom, Percentage: 70},
			{Category: models.CategoryKitchen, Percentage: 30},
		},
		Recommendations: map[string][]models.RecommendationItem{
			models.CategoryKitchen: {{ID: "r1", Title: "Stool", Price: 90, Rating: 3.2}},
		},
		Products: []models.Product{
			{ID: "p1", Title: "Sofa", Category: models.CategoryLivingRoom, Price: 1200, Rating: 4.5, Store: cairo, Location: models.GeoPoint{Lat: 30.04, Lng: 31.23}},
			{ID: "p2", Title: "Floor lamp", Category: models.CategoryLivingRoom, Price: 80, Rating: 4.9, Store: giza, Location: models.GeoPoint{Lat: 30.01, Lng: 31.2}},
			{ID: "p3", Title: "Stool", Category: models.CategoryKitchen, Price: 90, Rating: 3.2, Store: cairo},
		},
	}
}

type fixture struct {
	server  *Server
	router  http.Handler
	wizard  *wizard.Orchestrator
	search  *fakeSearch
	lookup  *fakeLookup
	planErr error
}

type option func(*Deps)

func withoutSharer() option { return func(d *Deps) { d.Sharer = nil } }

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	cache, err := querycache.New(querycache.DefaultConfig(), log)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	f := &fixture{search: &fakeSearch{}, lookup: &fakeLookup{}}
	slot := persistence.NewAdapter[models.SubmissionResult](database.NewMemoryStore(), persistence.DefaultKey, log)
	f.wizard = wizard.NewOrchestrator(cache, slot, plannerFunc(func(ctx context.Context, form models.FormInput) (*models.SubmissionResult, error) {
		if f.planErr != nil {
			return nil, f.planErr
		}
		return testResult(), nil
	}), log, wizard.Options{})

	reg := prometheus.NewRegistry()
	probe := prometheus.NewCounter(prometheus.CounterOpts{Name: "planner_test_probe_total", Help: "probe"})
	reg.MustRegister(probe)
	probe.Inc()

	deps := Deps{
		Wizard:   f.wizard,
		Images:   imagegen.NewGenerator(cache, fakeImages{}, f.wizard.Notifier(), nil, log, 0),
		Sharer:   report.NewSharer(report.NewMemoryShareStore(), nil, nil, "https://planner.example.com", log),
		Search:   f.search,
		Geocoder: f.lookup,
		Debounce: time.Millisecond,
		Gatherer: reg,
		Logger:   log,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	f.server, err = New(deps)
	require.NoError(t, err)
	t.Cleanup(f.server.Close)
	f.server.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	f.router = f.server.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) submit(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/wizard/submit", testForm())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "planner_test_probe_total 1")
}

func TestPhases_PreviewBeforeSubmit(t *testing.T) {
	f := newFixture(t)

	budget := decode[budgetResponse](t, f.do(t, http.MethodGet, "/wizard/budget", nil))
	assert.True(t, budget.Preview)
	assert.Len(t, budget.Chart.Slices, len(models.ProductCategories))
	assert.InDelta(t, 20000, budget.Chart.Total, 1e-9)

	recs := decode[recommendationsResponse](t, f.do(t, http.MethodGet, "/wizard/recommendations", nil))
	assert.True(t, recs.Preview)
	assert.Len(t, recs.Carousels, len(models.ProductCategories))

	products := decode[productsResponse](t, f.do(t, http.MethodGet, "/wizard/products", nil))
	assert.True(t, products.Preview)
	assert.Equal(t, 15, products.Total)
	assert.Len(t, products.Items, 12)

	images := decode[imagesResponse](t, f.do(t, http.MethodGet, "/wizard/images", nil))
	assert.True(t, images.Preview)
	assert.Len(t, images.Images, len(models.ProductCategories))
}

func TestSubmit_SwitchesPhasesToRealData(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/wizard/submit", testForm())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[submitResponse](t, rec)
	assert.Equal(t, "plan-42", resp.Result.ID)
	assert.True(t, resp.Wizard.IsFormSubmitted)
	assert.Equal(t, wizard.StateSubmitted, resp.Wizard.State)

	budget := decode[budgetResponse](t, f.do(t, http.MethodGet, "/wizard/budget", nil))
	assert.False(t, budget.Preview)
	assert.Equal(t, models.CurrencyEUR, budget.Chart.Currency)
	require.Len(t, budget.Chart.Slices, 2)
	assert.InDelta(t, 7000, budget.Chart.Slices[0].Amount, 1e-9)
	assert.Equal(t, "€7,000", budget.Chart.Slices[0].Label)

	recs := decode[recommendationsResponse](t, f.do(t, http.MethodGet, "/wizard/recommendations", nil))
	assert.False(t, recs.Preview)
	require.Len(t, recs.Carousels, 1)
	assert.Equal(t, models.CategoryKitchen, recs.Carousels[0].Category)

	products := decode[productsResponse](t, f.do(t, http.MethodGet, "/wizard/products?sort=price_asc", nil))
	assert.False(t, products.Preview)
	require.Len(t, products.Items, 3)
	assert.Equal(t, "p2", products.Items[0].ID)

	markers := decode[markersResponse](t, f.do(t, http.MethodGet, "/wizard/products/map", nil))
	assert.False(t, markers.Preview)
	assert.Len(t, markers.Markers, 2)
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		planErr    error
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{name: "malformed json", body: "{", wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeValidation},
		{name: "invalid form", body: map[string]interface{}{"budget": 0}, wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeValidation},
		{
			name:       "backend rejected",
			body:       testForm(),
			planErr:    apperrors.NewHTTPError("planner-api", http.StatusInternalServerError, "upstream exploded", false),
			wantStatus: http.StatusBadGateway,
			wantCode:   apperrors.ErrCodeHTTP,
		},
		{
			name:       "backend timeout",
			body:       testForm(),
			planErr:    context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   apperrors.ErrCodeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.planErr = tt.planErr

			rec := f.do(t, http.MethodPost, "/wizard/submit", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := decode[errorEnvelope](t, rec)
			assert.Equal(t, string(tt.wantCode), env.Error.Code)
			assert.False(t, f.wizard.IsFormSubmitted())
		})
	}
}

func TestSubmit_ValidationFields(t *testing.T) {
	f := newFixture(t)
	form := testForm()
	form.Budget = 0

	env := decode[errorEnvelope](t, f.do(t, http.MethodPost, "/wizard/submit", form))

	require.NotEmpty(t, env.Error.Fields)
	assert.Equal(t, "budget", env.Error.Fields[0].Field)
}

func TestProducts_SearchBackend(t *testing.T) {
	f := newFixture(t)
	f.submit(t)

	f.search.ids = []string{"p1"}
	products := decode[productsResponse](t, f.do(t, http.MethodGet, "/wizard/products?q=lamp", nil))
	require.Len(t, products.Items, 1)
	assert.Equal(t, "p1", products.Items[0].ID)

	f.search.ids = nil
	products = decode[productsResponse](t, f.do(t, http.MethodGet, "/wizard/products?q=lamp", nil))
	assert.Empty(t, products.Items)

	f.search.err = errors.New("cluster unavailable")
	products = decode[productsResponse](t, f.do(t, http.MethodGet, "/wizard/products?q=lamp", nil))
	require.Len(t, products.Items, 1)
	assert.Equal(t, "p2", products.Items[0].ID)
}

func TestProducts_InvalidQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/wizard/products?sort=cheapest&page=0", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[errorEnvelope](t, rec)
	fields := map[string]bool{}
	for _, fe := range env.Error.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["sort"])
	assert.True(t, fields["page"])
}

func TestMarkPassed_PreviewNotice(t *testing.T) {
	f := newFixture(t)

	snap := decode[wizard.Snapshot](t, f.do(t, http.MethodPost, "/wizard/phases/budget/passed", nil))
	assert.True(t, snap.HasPassed[wizard.PhaseBudget])
	require.Len(t, snap.Notifications, 1)
	notice := snap.Notifications[0]
	assert.Equal(t, wizard.CodePreviewMode, notice.Code)

	rec := f.do(t, http.MethodPost, "/wizard/phases/checkout/passed", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/wizard/notifications/"+notice.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/wizard/notifications/"+notice.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImages_GenerateAndReset(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/wizard/images", imageRequest{Room: "Kitchen"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.submit(t)

	rec = f.do(t, http.MethodPost, "/wizard/images", imageRequest{Room: "Kitchen"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img := decode[models.GeneratedImage](t, rec)
	assert.Equal(t, "Kitchen", img.Room)
	assert.Contains(t, img.Prompt, "kitchen")
	assert.True(t, strings.HasPrefix(img.ImageURL, "https://img.example.com/"))

	rec = f.do(t, http.MethodPost, "/wizard/images", imageRequest{Prompt: "A sunny reading nook"})
	require.Equal(t, http.StatusOK, rec.Code)

	gallery := decode[imagesResponse](t, f.do(t, http.MethodGet, "/wizard/images", nil))
	assert.False(t, gallery.Preview)
	assert.Len(t, gallery.Images, 2)

	snap := decode[wizard.Snapshot](t, f.do(t, http.MethodPost, "/wizard/reset", nil))
	assert.False(t, snap.IsFormSubmitted)
	assert.Equal(t, wizard.StateAwaitingInput, snap.State)
	assert.Empty(t, f.server.images.Gallery())

	gallery = decode[imagesResponse](t, f.do(t, http.MethodGet, "/wizard/images", nil))
	assert.True(t, gallery.Preview)
}

func TestReport_Formats(t *testing.T) {
	f := newFixture(t)
	f.submit(t)

	rec := f.do(t, http.MethodGet, "/wizard/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[report.Report](t, rec)
	assert.Equal(t, "plan-42", rep.PlanID)
	assert.False(t, rep.Preview)
	require.NotNil(t, rep.Form)
	assert.Equal(t, models.CurrencyEUR, rep.Form.Currency)

	rec = f.do(t, http.MethodGet, "/wizard/report?format=markdown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "# Home furnishing plan")
	assert.Contains(t, rec.Body.String(), "_Generated 2024-05-01 12:00 UTC_")

	rec = f.do(t, http.MethodGet, "/wizard/report?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReport_PreviewHasNoForm(t *testing.T) {
	f := newFixture(t)

	rep := decode[report.Report](t, f.do(t, http.MethodGet, "/wizard/report", nil))

	assert.True(t, rep.Preview)
	assert.Nil(t, rep.Form)
	assert.Len(t, rep.Images, len(models.ProductCategories))
}

func TestReport_ShareAndFetch(t *testing.T) {
	f := newFixture(t)
	f.submit(t)

	rec := f.do(t, http.MethodPost, "/wizard/report/share", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	shared := decode[report.ShareResult](t, rec)
	assert.Equal(t, "https://planner.example.com/reports/"+shared.Token, shared.URL)

	rec = f.do(t, http.MethodGet, "/reports/"+shared.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plan-42", decode[report.Report](t, rec).PlanID)

	rec = f.do(t, http.MethodGet, "/reports/unknown-token?format=markdown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/wizard/report/share", report.ShareRequest{Email: "user@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReport_ShareNotConfigured(t *testing.T) {
	f := newFixture(t, withoutSharer())

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/wizard/report/share", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/reports/abc", nil).Code)
}

func TestGeocode_SessionSearchers(t *testing.T) {
	f := newFixture(t)

	get := func(session, q string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/geocode?q="+q, nil)
		if session != "" {
			req.Header.Set(SessionHeader, session)
		}
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	rec := get("a", "Cairo")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[geocodeResponse](t, rec)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "Cairo, Egypt", resp.Suggestions[0].Label())

	get("a", "Giza")
	assert.Equal(t, 1, f.server.sessions.Len())
	get("b", "Alex")
	get("", "Luxor")
	assert.Equal(t, 3, f.server.sessions.Len())

	f.lookup.mu.Lock()
	assert.Equal(t, []string{"Cairo", "Giza", "Alex", "Luxor"}, f.lookup.queries)
	f.lookup.mu.Unlock()

	f.server.Close()
	assert.Equal(t, 0, f.server.sessions.Len())
}
