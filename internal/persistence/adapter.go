// Package persistence keeps the last submission result in a single durable slot
// so a restart reproduces the in-memory state.
package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"home-planner/internal/common/database"
	apperrors "home-planner/internal/common/errors"
	"home-planner/internal/common/metrics"
)

const DefaultKey = "homeplanner:submission-result"

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// Adapter serializes one value of type T under a fixed key. Storage problems are
// logged and recovered here; none of its methods return an error.
type Adapter[T any] struct {
	store  Store
	key    string
	logger Logger
}

func NewAdapter[T any](store Store, key string, log Logger) *Adapter[T] {
	if key == "" {
		key = DefaultKey
	}
	return &Adapter[T]{store: store, key: key, logger: log}
}

func (a *Adapter[T]) Key() string { return a.key }

// Save writes v, replacing whatever the slot held. It reports whether the write landed.
func (a *Adapter[T]) Save(ctx context.Context, v T) bool {
	b, err := json.Marshal(v)
	if err != nil {
		a.recover("save", apperrors.NewStorageError("serialize", err))
		return false
	}
	if err := a.store.Set(ctx, a.key, b); err != nil {
		a.recover("save", apperrors.NewStorageError("write", err))
		return false
	}
	return true
}

// Load returns the stored value. A missing slot yields (nil, false); a corrupt one
// is deleted and also yields (nil, false).
func (a *Adapter[T]) Load(ctx context.Context) (*T, bool) {
	b, err := a.store.Get(ctx, a.key)
	if errors.Is(err, database.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		a.recover("load", apperrors.NewStorageError("read", err))
		return nil, false
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		a.recover("load", apperrors.NewStorageError("deserialize", err))
		if delErr := a.store.Del(ctx, a.key); delErr != nil {
			a.recover("clear", apperrors.NewStorageError("delete", delErr))
		}
		return nil, false
	}
	return &v, true
}

// Clear removes the stored value.
func (a *Adapter[T]) Clear(ctx context.Context) {
	if err := a.store.Del(ctx, a.key); err != nil {
		a.recover("clear", apperrors.NewStorageError("delete", err))
	}
}

func (a *Adapter[T]) recover(operation string, err *apperrors.StandardError) {
	metrics.PersistenceRecoveries.WithLabelValues(operation).Inc()
	if a.logger == nil {
		return
	}
	a.logger.Warn("persisted state unavailable, continuing without it", map[string]interface{}{
		"operation": operation,
		"key":       a.key,
		"errorCode": string(err.Code),
		"details":   err.Details,
	})
}
