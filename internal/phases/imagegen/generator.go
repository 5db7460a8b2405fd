// Package imagegen produces AI room images through the query cache, so repeated
// prompts are served from cache and concurrent identical requests share one call.
package imagegen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/common/logger"
	"home-planner/internal/common/observability"
	"home-planner/internal/models"
	"home-planner/internal/planapi"
	"home-planner/internal/querycache"
)

const KeyPrefix = "generated-image:"

type ImageAPI interface {
	GenerateImage(ctx context.Context, prompt string) (*planapi.ImageResult, error)
}

type Notifier interface {
	Push(level models.NotificationLevel, code, message string, persistent bool) models.Notification
}

type Generator struct {
	cache     *querycache.Cache
	api       ImageAPI
	notifier  Notifier
	obs       *observability.Observability
	logger    logger.Logger
	freshness time.Duration

	mu   sync.Mutex
	keys []string
}

func NewGenerator(cache *querycache.Cache, api ImageAPI, notifier Notifier, obs *observability.Observability, log logger.Logger, freshness time.Duration) *Generator {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Generator{
		cache:     cache,
		api:       api,
		notifier:  notifier,
		obs:       obs,
		logger:    log.With(map[string]interface{}{"component": "imagegen"}),
		freshness: freshness,
	}
}

// Key is the cache key for prompt. Prompts differing only in case or
// surrounding whitespace share a key.
func Key(prompt string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(prompt))))
	return KeyPrefix + hex.EncodeToString(sum[:8])
}

// Generate returns the image for prompt, calling the backend only when no fresh
// image is cached. Failures also raise a dismissible notification.
func (g *Generator) Generate(ctx context.Context, room, prompt string) (models.GeneratedImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return models.GeneratedImage{}, apperrors.NewValidationError([]apperrors.FieldError{{
			Field: "prompt", Message: "is required", Code: "REQUIRED_FIELD_MISSING",
		}})
	}

	key := Key(prompt)
	res := querycache.NewResource[models.GeneratedImage](g.cache, key, g.freshness)
	if cached, entry := res.Get(); entry.HasValue && !entry.Stale {
		g.remember(key)
		return cached, nil
	}

	ctx, span := g.obs.StartSpan(ctx, "imagegen.generate")
	defer span.End()

	img, err := res.Fetch(ctx, func(ctx context.Context) (models.GeneratedImage, error) {
		out, err := g.api.GenerateImage(ctx, prompt)
		if err != nil {
			return models.GeneratedImage{}, err
		}
		return models.GeneratedImage{
			ID:        uuid.NewString(),
			Room:      room,
			Prompt:    prompt,
			ImageURL:  out.ImageURL,
			CreatedAt: time.Now().UTC(),
		}, nil
	})
	if err != nil {
		stdErr := apperrors.Normalize(err)
		g.obs.RecordImage(ctx, "error")
		g.logger.Warn("image generation failed", map[string]interface{}{
			"room":      room,
			"errorCode": string(stdErr.Code),
			"message":   stdErr.Message,
		})
		if g.notifier != nil {
			g.notifier.Push(models.NotificationError, string(stdErr.Code), "Could not generate the room image. Please try again.", false)
		}
		return models.GeneratedImage{}, stdErr
	}

	g.obs.RecordImage(ctx, "success")
	g.remember(key)
	return img, nil
}

// Gallery lists the images generated in this session, oldest first. Images
// that were evicted from the cache are skipped.
func (g *Generator) Gallery() []models.GeneratedImage {
	g.mu.Lock()
	keys := append([]string(nil), g.keys...)
	g.mu.Unlock()

	out := make([]models.GeneratedImage, 0, len(keys))
	for _, key := range keys {
		entry, ok := g.cache.Peek(key)
		if !ok {
			continue
		}
		if img, ok := querycache.Value[models.GeneratedImage](entry); ok {
			out = append(out, img)
		}
	}
	return out
}

// Forget drops the session gallery; cached images stay until evicted.
func (g *Generator) Forget() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys = nil
}

func (g *Generator) remember(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range g.keys {
		if k == key {
			return
		}
	}
	g.keys = append(g.keys, key)
}

// BuildPrompt describes room in the submitted home's style and budget.
func BuildPrompt(form models.FormInput, room string) string {
	var b strings.Builder
	style := string(form.Style)
	if style == "" {
		style = string(models.StyleModern)
	}
	fmt.Fprintf(&b, "A photorealistic %s %s", style, strings.ToLower(room))
	if form.Location != "" {
		fmt.Fprintf(&b, " in a home in %s", form.Location)
	}
	if form.Area > 0 {
		fmt.Fprintf(&b, ", part of a %g %s home", form.Area, form.AreaUnit)
	}
	if form.Occupants != "" {
		fmt.Fprintf(&b, " for %s", strings.ReplaceAll(string(form.Occupants), "_", " "))
	}
	if form.Budget > 0 {
		fmt.Fprintf(&b, ", furnished on a total budget of %s%.0f", form.Currency.Symbol(), form.Budget)
	}
	b.WriteString(". Natural light, wide angle, interior design magazine style.")
	return b.String()
}
