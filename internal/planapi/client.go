// Package planapi talks to the remote plan/image generation service. The service
// is opaque; this package only shapes requests and normalizes responses.
package planapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"home-planner/internal/common/config"
	apperrors "home-planner/internal/common/errors"
	apphttp "home-planner/internal/common/http"
	"home-planner/internal/common/validation"
	"home-planner/internal/models"
)

const serviceName = "planner-api"

// envelopeSchema is the contract for POST /generate-plan responses.
const envelopeSchema = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"},
    "message": {"type": ["string", "null"]},
    "data": {
      "type": ["object", "null"],
      "properties": {
        "id": {"type": "string"},
        "budgetDistribution": {
          "type": "array",
          "items": {"type": "object", "required": ["category"]}
        },
        "recommendations": {"type": ["object", "null"]},
        "products": {"type": ["array", "null"]}
      }
    }
  }
}`

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

type Client struct {
	http          *apphttp.Client
	baseURL       string
	submitTimeout time.Duration
	imageTimeout  time.Duration
	imageHosts    []string
	logger        Logger
}

func NewClient(cfg config.APIConfig, log Logger) *Client {
	return &Client{
		http:          apphttp.NewClient(serviceName, config.GetDuration(cfg.SubmitTimeout)),
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		submitTimeout: config.GetDuration(cfg.SubmitTimeout),
		imageTimeout:  config.GetDuration(cfg.ImageTimeout),
		imageHosts:    cfg.ImageHostsAllow,
		logger:        log,
	}
}

// WithHTTPClient swaps the underlying transport client.
func (c *Client) WithHTTPClient(hc *apphttp.Client) *Client {
	cp := *c
	cp.http = hc
	return &cp
}

type planEnvelope struct {
	Success bool                     `json:"success"`
	Data    *models.SubmissionResult `json:"data"`
	Message string                   `json:"message"`
}

// SubmitPlan posts the form and returns the generated plan. It is never retried:
// a duplicate POST would create a second plan.
func (c *Client) SubmitPlan(ctx context.Context, form models.FormInput) (*models.SubmissionResult, error) {
	start := time.Now()

	var raw json.RawMessage
	err := c.http.DoJSON(ctx, apphttp.Request{
		Method:     http.MethodPost,
		URL:        c.baseURL + "/generate-plan",
		Body:       form,
		Idempotent: false,
		Timeout:    c.submitTimeout,
	}, &raw)
	if err != nil {
		return nil, err
	}

	check, err := validation.ValidateDocument(envelopeSchema, raw)
	if err != nil {
		return nil, apperrors.NewHTTPError(serviceName, http.StatusBadGateway, "malformed plan response", false)
	}
	if !check.Valid {
		c.logger.Warn("plan response failed envelope validation", map[string]interface{}{
			"errors": check.GetErrorMessages(),
		})
		return nil, apperrors.NewHTTPError(serviceName, http.StatusBadGateway, "unexpected plan response shape", false)
	}

	var env planEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.NewHTTPError(serviceName, http.StatusBadGateway, "malformed plan response", false)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "plan generation failed"
		}
		return nil, apperrors.NewHTTPError(serviceName, http.StatusUnprocessableEntity, msg, false)
	}
	if env.Data == nil {
		return nil, apperrors.NewHTTPError(serviceName, http.StatusBadGateway, "plan response carried no data", false)
	}

	c.logger.Info("plan generated", map[string]interface{}{
		"planId":     env.Data.ID,
		"products":   len(env.Data.Products),
		"categories": len(env.Data.Recommendations),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return env.Data, nil
}

// ImageResult is the canonical image response, whatever field name the service used.
type ImageResult struct {
	ImageURL string `json:"imageUrl"`
}

type imageResponse struct {
	ImageURL string `json:"imageUrl"`
	Image    string `json:"image"`
	Data     *struct {
		ImageURL string `json:"imageUrl"`
		Image    string `json:"image"`
	} `json:"data"`
}

func (r imageResponse) url() string {
	for _, candidate := range []string{r.ImageURL, r.Image} {
		if candidate != "" {
			return candidate
		}
	}
	if r.Data != nil {
		if r.Data.ImageURL != "" {
			return r.Data.ImageURL
		}
		return r.Data.Image
	}
	return ""
}

// GenerateImage asks the service to render prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	var resp imageResponse
	err := c.http.DoJSON(ctx, apphttp.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/generate-image",
		Body:    map[string]string{"prompt": prompt},
		Timeout: c.imageTimeout,
	}, &resp)
	if err != nil {
		return nil, err
	}

	imageURL := resp.url()
	if imageURL == "" {
		return nil, apperrors.NewHTTPError(serviceName, http.StatusBadGateway, "image response carried no image", false)
	}
	if !c.hostAllowed(imageURL) {
		return nil, apperrors.NewHTTPError(serviceName, http.StatusBadGateway, "image host is not in the allowlist", false)
	}
	return &ImageResult{ImageURL: imageURL}, nil
}

// hostAllowed accepts inline data URLs and, when an allowlist is configured,
// only remote images served from a listed host or one of its subdomains.
func (c *Client) hostAllowed(raw string) bool {
	if strings.HasPrefix(raw, "data:image/") {
		return true
	}
	if len(c.imageHosts) == 0 {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, allowed := range c.imageHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
