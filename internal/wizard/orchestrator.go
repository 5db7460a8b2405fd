// Package wizard drives the submit-and-fan-out sequence of the planning wizard
// and decides whether each downstream phase sees preview or real data.
package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/common/logger"
	"home-planner/internal/common/metrics"
	"home-planner/internal/common/observability"
	"home-planner/internal/common/validation"
	"home-planner/internal/models"
	"home-planner/internal/placeholder"
	"home-planner/internal/querycache"
)

const (
	SubmissionKey        = "submission-result"
	ImageKeyPrefix       = "generated-image:"
	DefaultSubmitTimeout = 30 * time.Second
)

type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateSubmitting    State = "submitting"
	StateSubmitted     State = "submitted"
)

type Phase string

const (
	PhaseForm            Phase = "form"
	PhaseBudget          Phase = "budget"
	PhaseRecommendations Phase = "recommendations"
	PhaseProducts        Phase = "products"
	PhaseImages          Phase = "images"
	PhaseReport          Phase = "report"
)

var Phases = []Phase{PhaseForm, PhaseBudget, PhaseRecommendations, PhaseProducts, PhaseImages, PhaseReport}

func ParsePhase(s string) (Phase, bool) {
	for _, p := range Phases {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

type Event string

const (
	EventRealDataReady Event = "real-data-ready"
	EventReset         Event = "reset"
)

// Planner submits a form to the generation backend.
type Planner interface {
	SubmitPlan(ctx context.Context, form models.FormInput) (*models.SubmissionResult, error)
}

// ResultStore is the durable slot for the last submission result.
type ResultStore interface {
	Save(ctx context.Context, v models.SubmissionResult) bool
	Load(ctx context.Context) (*models.SubmissionResult, bool)
	Clear(ctx context.Context)
}

type Options struct {
	SubmitTimeout time.Duration
	Freshness     time.Duration
	Observability *observability.Observability
	Notifier      *Notifier
}

// ErrorView is the part of a StandardError the UI needs.
type ErrorView struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  []apperrors.FieldError `json:"fields,omitempty"`
}

type Snapshot struct {
	State           State                 `json:"state"`
	IsFormSubmitted bool                  `json:"isFormSubmitted"`
	HasPassed       map[Phase]bool        `json:"hasPassed"`
	Form            *models.FormInput     `json:"form,omitempty"`
	LastError       *ErrorView            `json:"lastError,omitempty"`
	Notifications   []models.Notification `json:"notifications"`
	ResultStatus    querycache.Status     `json:"resultStatus"`
}

type Orchestrator struct {
	cache         *querycache.Cache
	result        querycache.Resource[models.SubmissionResult]
	store         ResultStore
	planner       Planner
	notifier      *Notifier
	obs           *observability.Observability
	logger        logger.Logger
	submitTimeout time.Duration

	mu          sync.RWMutex
	state       State
	submitted   bool
	passed      map[Phase]bool
	form        *models.FormInput
	lastErr     *apperrors.StandardError
	subscribers []func(Event)
}

func NewOrchestrator(cache *querycache.Cache, store ResultStore, planner Planner, log logger.Logger, opts Options) *Orchestrator {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}
	if opts.Observability == nil {
		opts.Observability = observability.NewNoop()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewNotifier(0)
	}

	o := &Orchestrator{
		cache:         cache,
		result:        querycache.NewResource[models.SubmissionResult](cache, SubmissionKey, opts.Freshness),
		store:         store,
		planner:       planner,
		notifier:      opts.Notifier,
		obs:           opts.Observability,
		logger:        log.With(map[string]interface{}{"component": "wizard"}),
		submitTimeout: opts.SubmitTimeout,
		state:         StateAwaitingInput,
		passed:        make(map[Phase]bool),
	}

	// An evicted or expired result is reloaded from the durable slot.
	cache.Register(SubmissionKey, o.reloadResult, opts.Freshness)
	return o
}

func (o *Orchestrator) Notifier() *Notifier { return o.notifier }

// Subscribe registers fn for wizard events. fn runs synchronously and must not call back into Submit or Reset.
func (o *Orchestrator) Subscribe(fn func(Event)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, fn)
}

// Bootstrap seeds the cache from the persisted result, if any.
func (o *Orchestrator) Bootstrap(ctx context.Context) bool {
	stored, ok := o.store.Load(ctx)
	if !ok {
		o.logger.Info("no persisted submission, starting in preview mode", nil)
		return false
	}

	o.result.Set(*stored)
	o.mu.Lock()
	o.state = StateSubmitted
	o.submitted = true
	o.mu.Unlock()
	o.notifier.DismissCode(CodePreviewMode)

	o.logger.Info("restored persisted submission", map[string]interface{}{
		"planId":   stored.ID,
		"products": len(stored.Products),
	})
	o.publish(EventRealDataReady)
	return true
}

// Submit validates form, sends it to the backend and, on success, publishes the
// result to the cache and the durable slot before reporting real data as ready.
// On any failure the wizard returns to AwaitingInput and the cache is untouched.
func (o *Orchestrator) Submit(ctx context.Context, form models.FormInput) (*models.SubmissionResult, error) {
	form = form.Normalize()
	if check := validation.ValidateStruct(form); !check.Valid {
		stdErr := apperrors.Normalize(check.AsError())
		o.fail("invalid", stdErr, false)
		return nil, stdErr
	}

	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return nil, apperrors.NewInvalidStateError("a submission is already in progress")
	}
	o.state = StateSubmitting
	o.lastErr = nil
	o.mu.Unlock()

	ctx, span := o.obs.StartSpan(ctx, "wizard.submit",
		attribute.String("currency", string(form.Currency)),
		attribute.Float64("budget", form.Budget),
		attribute.String("style", string(form.Style)),
	)
	defer span.End()

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, o.submitTimeout)
	result, err := o.planner.SubmitPlan(callCtx, form)
	if err != nil {
		stdErr := apperrors.FromTransport("planner-api", callCtx, err)
		cancel()
		span.RecordError(stdErr)
		span.SetStatus(codes.Error, string(stdErr.Code))
		o.obs.RecordSubmission(ctx, "error", time.Since(start))
		o.fail("error", stdErr, true)
		return nil, stdErr
	}
	cancel()

	// The plan is already accepted upstream; commit it even if the caller left.
	ctx = context.WithoutCancel(ctx)
	o.result.Set(*result)
	o.store.Save(ctx, *result)

	o.mu.Lock()
	o.state = StateSubmitted
	o.submitted = true
	o.form = &form
	o.mu.Unlock()
	o.notifier.DismissCode(CodePreviewMode)

	duration := time.Since(start)
	metrics.Submissions.WithLabelValues("success").Inc()
	metrics.SubmissionDuration.Observe(duration.Seconds())
	o.obs.RecordSubmission(ctx, "success", duration)
	span.SetAttributes(attribute.String("plan.id", result.ID))

	o.logger.Info("submission completed", map[string]interface{}{
		"planId":     result.ID,
		"durationMs": duration.Milliseconds(),
	})
	o.publish(EventRealDataReady)
	return result, nil
}

func (o *Orchestrator) fail(outcome string, stdErr *apperrors.StandardError, wasSubmitting bool) {
	o.mu.Lock()
	if wasSubmitting {
		o.state = StateAwaitingInput
	}
	o.lastErr = stdErr
	o.mu.Unlock()

	metrics.Submissions.WithLabelValues(outcome).Inc()
	o.notifier.Push(models.NotificationError, string(stdErr.Code), apperrors.UserMessage(stdErr), false)
	o.logger.Warn("submission failed", map[string]interface{}{
		"errorCode":  string(stdErr.Code),
		"message":    stdErr.Message,
		"statusCode": stdErr.StatusCode,
	})
}

// MarkPassed records that the user scrolled past phase. Passing a downstream
// phase before the first submission raises the preview notice.
func (o *Orchestrator) MarkPassed(phase Phase) error {
	if _, ok := ParsePhase(string(phase)); !ok {
		return apperrors.NewNotFoundError("phase", string(phase))
	}
	o.mu.Lock()
	o.passed[phase] = true
	submitted := o.submitted
	o.mu.Unlock()

	if !submitted && phase != PhaseForm {
		o.notifier.Ensure(models.NotificationInfo, CodePreviewMode,
			"You are looking at sample data. Submit your home details to see your own plan.")
	}
	return nil
}

func (o *Orchestrator) HasPassed(phase Phase) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.passed[phase]
}

func (o *Orchestrator) IsFormSubmitted() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.submitted
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Form returns the last submitted form, if it is known in this process.
func (o *Orchestrator) Form() (models.FormInput, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.form == nil {
		return models.FormInput{}, false
	}
	return *o.form, true
}

// DataSource returns what downstream phases render: the cached submission once
// the form is submitted, otherwise the placeholder dataset. preview reports which.
func (o *Orchestrator) DataSource() (result models.SubmissionResult, preview bool) {
	if o.IsFormSubmitted() {
		v, entry := o.result.GetOrLoad(o.reloadTyped)
		if entry.HasValue {
			return v, false
		}
	}
	return placeholder.Result(), true
}

func (o *Orchestrator) Snapshot() Snapshot {
	entry, _ := o.cache.Peek(SubmissionKey)

	o.mu.RLock()
	snap := Snapshot{
		State:           o.state,
		IsFormSubmitted: o.submitted,
		HasPassed:       make(map[Phase]bool, len(Phases)),
		ResultStatus:    entry.Status,
	}
	for _, p := range Phases {
		snap.HasPassed[p] = o.passed[p]
	}
	if o.form != nil {
		form := *o.form
		snap.Form = &form
	}
	if o.lastErr != nil {
		snap.LastError = &ErrorView{Code: string(o.lastErr.Code), Message: o.lastErr.Message, Fields: o.lastErr.Fields}
	}
	o.mu.RUnlock()

	if snap.ResultStatus == "" {
		snap.ResultStatus = querycache.StatusPending
	}
	snap.Notifications = o.notifier.Active()
	return snap
}

// Reset forgets the current submission everywhere and returns to AwaitingInput.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return apperrors.NewInvalidStateError("cannot reset while a submission is in progress")
	}
	o.state = StateAwaitingInput
	o.submitted = false
	o.passed = make(map[Phase]bool)
	o.form = nil
	o.lastErr = nil
	o.mu.Unlock()

	o.cache.Remove(SubmissionKey)
	o.cache.InvalidatePrefix(ImageKeyPrefix)
	o.store.Clear(ctx)
	o.notifier.Clear()

	o.logger.Info("wizard reset", nil)
	o.publish(EventReset)
	return nil
}

func (o *Orchestrator) publish(ev Event) {
	o.mu.RLock()
	subs := make([]func(Event), len(o.subscribers))
	copy(subs, o.subscribers)
	o.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (o *Orchestrator) reloadTyped(ctx context.Context) (models.SubmissionResult, error) {
	stored, ok := o.store.Load(ctx)
	if !ok {
		return models.SubmissionResult{}, apperrors.NewNotFoundError("submission result", fmt.Sprintf("key %s", SubmissionKey))
	}
	return *stored, nil
}

func (o *Orchestrator) reloadResult(ctx context.Context) (interface{}, error) {
	return o.reloadTyped(ctx)
}
