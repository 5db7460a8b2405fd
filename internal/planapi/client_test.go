package planapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-planner/internal/common/config"
	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/common/logger"
	"home-planner/internal/models"
)

func testForm() models.FormInput {
	return models.FormInput{
		Currency:  models.CurrencyUSD,
		Budget:    20000,
		Area:      120,
		AreaUnit:  models.AreaSquareMeters,
		Bedrooms:  3,
		Bathrooms: 2,
		Location:  "Cairo, Egypt",
		Style:     models.StyleModern,
		Occupants: models.OccupantsFamily,
	}.Normalize()
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*config.APIConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.APIConfig{BaseURL: srv.URL + "/", SubmitTimeout: 2000, ImageTimeout: 2000}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewClient(cfg, logger.NewNoOpLogger())
}

func TestSubmitPlan_Success(t *testing.T) {
	var got models.FormInput
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate-plan", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"message": "ok",
			"data": {
				"id": "plan-1",
				"budgetDistribution": [
					{"category": "Living Room", "amount": 6000},
					{"category": "Kitchen", "amount": 5000}
				],
				"recommendations": {"Kitchen": [{"id": "r1", "title": "Stool", "category": "Kitchen", "price": 40, "rating": 4.1}]},
				"products": [{"id": "p1", "title": "Sofa", "category": "Living Room", "price": 900,
					"location": {"lat": 30.0, "lng": 31.2}}]
			}
		}`))
	})

	result, err := client.SubmitPlan(context.Background(), testForm())
	require.NoError(t, err)
	assert.Equal(t, "plan-1", result.ID)
	require.Len(t, result.BudgetDistribution, 2)
	assert.Equal(t, 6000.0, result.BudgetDistribution[0].Amount)
	assert.Len(t, result.Recommendations["Kitchen"], 1)
	assert.Equal(t, 31.2, result.Products[0].Location.Lng)

	assert.Equal(t, 1, got.LivingRooms)
	assert.Equal(t, "Cairo, Egypt", got.Location)
}

func TestSubmitPlan_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantCode   apperrors.ErrorCode
		wantStatus int
		wantMsg    string
	}{
		{"server error with message", 500, `{"message":"model overloaded"}`, apperrors.ErrCodeHTTP, 500, "model overloaded"},
		{"success false", 200, `{"success":false,"message":"budget too small"}`, apperrors.ErrCodeHTTP, 422, "budget too small"},
		{"missing data", 200, `{"success":true}`, apperrors.ErrCodeHTTP, 502, "plan response carried no data"},
		{"wrong envelope", 200, `{"ok":true}`, apperrors.ErrCodeHTTP, 502, "unexpected plan response shape"},
		{"wrong field type", 200, `{"success":"yes"}`, apperrors.ErrCodeHTTP, 502, "unexpected plan response shape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.SubmitPlan(context.Background(), testForm())
			require.Error(t, err)
			stdErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.wantStatus, stdErr.StatusCode)
			assert.Equal(t, tt.wantMsg, stdErr.Message)
			assert.False(t, stdErr.Retryable, "submission is never retried")
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestSubmitPlan_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(c *config.APIConfig) { c.SubmitTimeout = 50 })
	defer close(release)

	start := time.Now()
	_, err := client.SubmitPlan(context.Background(), testForm())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTimeout))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerateImage_NormalizesFieldNames(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"imageUrl", `{"imageUrl":"https://img.example.com/a.png"}`, "https://img.example.com/a.png"},
		{"image", `{"image":"https://img.example.com/b.png"}`, "https://img.example.com/b.png"},
		{"both prefers imageUrl", `{"imageUrl":"https://img.example.com/c.png","image":"https://img.example.com/d.png"}`, "https://img.example.com/c.png"},
		{"nested data", `{"data":{"image":"https://img.example.com/e.png"}}`, "https://img.example.com/e.png"},
		{"data url", `{"image":"data:image/png;base64,iVBORw0KGgo="}`, "data:image/png;base64,iVBORw0KGgo="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/generate-image", r.URL.Path)
				var body map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "a modern kitchen", body["prompt"])
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := client.GenerateImage(context.Background(), "a modern kitchen")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.ImageURL)
		})
	}
}

func TestGenerateImage_EmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.GenerateImage(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeHTTP))
}

func TestGenerateImage_HostAllowlist(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"imageUrl":"https://evil.example.org/x.png"}`))
	}, func(c *config.APIConfig) { c.ImageHostsAllow = []string{"cdn.example.com"} })

	_, err := client.GenerateImage(context.Background(), "x")
	require.Error(t, err)

	assert.True(t, client.hostAllowed("https://cdn.example.com/a.png"))
	assert.True(t, client.hostAllowed("https://eu.cdn.example.com/a.png"))
	assert.False(t, client.hostAllowed("https://notcdn.example.com/a.png"))
}

func TestGenerateImage_ServerErrorNotRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GenerateImage(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
}
