// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "home-planner/internal/common/errors"
)

const maxErrorBody = 64 << 10

// Client wraps net/http with a per-request abortable timeout and maps every
// failure into the StandardError taxonomy.
type Client struct {
	httpClient *http.Client
	service    string
	timeout    time.Duration
	userAgent  string
}

func NewClient(service string, timeout time.Duration) *Client {
	return &Client{
		// No client-level timeout: the deadline lives on the request context so
		// it can be told apart from a server error.
		httpClient: &http.Client{},
		service:    service,
		timeout:    timeout,
	}
}

// WithUserAgent returns a copy of the client that sends the given User-Agent.
func (c *Client) WithUserAgent(ua string) *Client {
	cp := *c
	cp.userAgent = ua
	return &cp
}

// WithHTTPClient returns a copy of the client using hc as transport.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.httpClient = hc
	return &cp
}

func (c *Client) Service() string {
	return c.service
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// Request describes a JSON call.
type Request struct {
	Method     string
	URL        string
	Query      url.Values
	Body       interface{}
	Idempotent bool
	// Timeout overrides the client default when non-zero.
	Timeout time.Duration
}

// DoJSON sends r and decodes a 2xx JSON response into out (which may be nil or *json.RawMessage).
// Errors are always *errors.StandardError: TIMEOUT_ERROR, NETWORK_ERROR or HTTP_ERROR.
func (c *Client) DoJSON(ctx context.Context, r Request, out interface{}) error {
	timeout := c.timeout
	if r.Timeout > 0 {
		timeout = r.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target = target + sep + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return apperrors.NewValidationError([]apperrors.FieldError{{
				Field: "body", Message: fmt.Sprintf("encode request: %v", err), Code: "ENCODE_FAILED",
			}})
		}
		body = bytes.NewReader(payload)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return apperrors.NewNetworkError(c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.FromTransport(c.service, ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.NewHTTPError(c.service, resp.StatusCode, readErrorMessage(resp.Body), r.Idempotent)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return apperrors.FromTransport(c.service, ctx, ctx.Err())
		}
		return apperrors.NewHTTPError(c.service, resp.StatusCode, fmt.Sprintf("decode response: %v", err), r.Idempotent)
	}
	return nil
}

// readErrorMessage extracts {message} or {error} from an error body, falling back to raw text.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
