package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"home-planner/internal/common/database"
	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/common/logger"
	"home-planner/internal/common/validation"
)

// ShareStore keeps shared reports addressable by token.
type ShareStore interface {
	Save(ctx context.Context, token string, r Report) error
	Get(ctx context.Context, token string) (Report, error)
}

const createReportsTable = `
CREATE TABLE IF NOT EXISTS reports (
	token      UUID PRIMARY KEY,
	plan_id    TEXT NOT NULL,
	preview    BOOLEAN NOT NULL DEFAULT FALSE,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type PostgresShareStore struct {
	db *database.PostgresClient
}

func NewPostgresShareStore(db *database.PostgresClient) *PostgresShareStore {
	return &PostgresShareStore{db: db}
}

func (s *PostgresShareStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createReportsTable); err != nil {
		return apperrors.NewStorageError("migrate reports", err)
	}
	return nil
}

func (s *PostgresShareStore) Save(ctx context.Context, token string, r Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return apperrors.NewStorageError("encode report", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO reports (token, plan_id, preview, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		token, r.PlanID, r.Preview, string(payload), r.GeneratedAt,
	)
	if err != nil {
		return apperrors.NewStorageError("insert report", err)
	}
	return nil
}

func (s *PostgresShareStore) Get(ctx context.Context, token string) (Report, error) {
	if _, err := uuid.Parse(token); err != nil {
		return Report{}, apperrors.NewNotFoundError("report", token)
	}

	var payload []byte
	err := s.db.QueryRow(ctx, `SELECT payload FROM reports WHERE token = $1`, token).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, apperrors.NewNotFoundError("report", token)
	}
	if err != nil {
		return Report{}, apperrors.NewStorageError("select report", err)
	}

	var r Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return Report{}, apperrors.NewStorageError("decode report", err)
	}
	return r, nil
}

// MemoryShareStore is used when no database is configured.
type MemoryShareStore struct {
	mu      sync.RWMutex
	reports map[string][]byte
}

func NewMemoryShareStore() *MemoryShareStore {
	return &MemoryShareStore{reports: make(map[string][]byte)}
}

func (s *MemoryShareStore) Save(_ context.Context, token string, r Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return apperrors.NewStorageError("encode report", err)
	}
	s.mu.Lock()
	s.reports[token] = payload
	s.mu.Unlock()
	return nil
}

func (s *MemoryShareStore) Get(_ context.Context, token string) (Report, error) {
	s.mu.RLock()
	payload, ok := s.reports[token]
	s.mu.RUnlock()
	if !ok {
		return Report{}, apperrors.NewNotFoundError("report", token)
	}
	var r Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return Report{}, apperrors.NewStorageError("decode report", err)
	}
	return r, nil
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

type ShareRequest struct {
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,e164"`
}

type ShareResult struct {
	Token     string            `json:"token"`
	URL       string            `json:"url"`
	Delivered []string          `json:"delivered,omitempty"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// Sharer stores a report under a fresh token and sends the link out.
// Email and SMS are optional; a nil sender skips that channel.
type Sharer struct {
	store   ShareStore
	email   EmailSender
	sms     SMSSender
	baseURL string
	logger  logger.Logger
	newID   func() string
}

func NewSharer(store ShareStore, email EmailSender, sms SMSSender, baseURL string, log logger.Logger) *Sharer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Sharer{
		store:   store,
		email:   email,
		sms:     sms,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log,
		newID:   uuid.NewString,
	}
}

func (s *Sharer) URL(token string) string {
	return s.baseURL + "/reports/" + token
}

// Share persists the report and delivers its link. Delivery failures are
// reported per channel and do not fail the share.
func (s *Sharer) Share(ctx context.Context, r Report, req ShareRequest) (ShareResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validation.ValidateStruct(req).AsError(); err != nil {
		return ShareResult{}, err
	}
	if req.Email != "" && s.email == nil {
		return ShareResult{}, apperrors.NewValidationError([]apperrors.FieldError{
			{Field: "email", Message: "email delivery is not configured", Code: "UNSUPPORTED"},
		})
	}
	if req.Phone != "" && s.sms == nil {
		return ShareResult{}, apperrors.NewValidationError([]apperrors.FieldError{
			{Field: "phone", Message: "sms delivery is not configured", Code: "UNSUPPORTED"},
		})
	}

	token := s.newID()
	if err := s.store.Save(ctx, token, r); err != nil {
		return ShareResult{}, err
	}

	link := s.URL(token)
	result := ShareResult{Token: token, URL: link}
	var mu sync.Mutex
	record := func(channel string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if result.Failed == nil {
				result.Failed = map[string]string{}
			}
			result.Failed[channel] = err.Error()
			s.logger.Warn("Report delivery failed", map[string]interface{}{
				"channel": channel,
				"token":   token,
				"error":   err.Error(),
			})
			return
		}
		result.Delivered = append(result.Delivered, channel)
	}

	g, gctx := errgroup.WithContext(ctx)
	if req.Email != "" {
		g.Go(func() error {
			record("email", s.email.SendEmail(gctx, req.Email, "Your home furnishing plan", s.emailBody(r, link)))
			return nil
		})
	}
	if req.Phone != "" {
		g.Go(func() error {
			record("sms", s.sms.SendSMS(gctx, req.Phone, "Your home furnishing plan: "+link))
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Report shared", map[string]interface{}{
		"token":     token,
		"planId":    r.PlanID,
		"delivered": len(result.Delivered),
	})
	return result, nil
}

func (s *Sharer) Get(ctx context.Context, token string) (Report, error) {
	return s.store.Get(ctx, token)
}

func (s *Sharer) emailBody(r Report, url string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your furnishing plan is ready: %s\n\n", url)
	if r.Preview {
		b.WriteString("This plan uses sample data.\n\n")
	}
	fmt.Fprintf(&b, "Generated %s\n", r.GeneratedAt.Format(time.RFC1123))
	return b.String()
}
