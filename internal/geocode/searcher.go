package geocode

import (
	"context"
	"errors"
	"sync"
	"time"

	"home-planner/internal/common/metrics"
	"home-planner/internal/models"
)

const DefaultDebounce = 300 * time.Millisecond

// ErrSuperseded is returned to a search that was replaced by a newer one.
var ErrSuperseded = errors.New("geocode: search superseded by a newer query")

var ErrSearcherClosed = errors.New("geocode: searcher closed")

type Lookup interface {
	Search(ctx context.Context, query string) ([]models.Suggestion, error)
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
}

// Searcher debounces location lookups for one input field. Starting a search
// cancels the previous one, aborting its wait or its HTTP request, so only the
// latest query ever produces suggestions.
type Searcher struct {
	lookup   Lookup
	debounce time.Duration
	logger   Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	closed bool
}

func NewSearcher(lookup Lookup, debounce time.Duration, log Logger) *Searcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Searcher{lookup: lookup, debounce: debounce, logger: log}
}

// Search waits out the debounce window and then runs the lookup. It returns
// ErrSuperseded if another Search started meanwhile.
func (s *Searcher) Search(ctx context.Context, query string) ([]models.Suggestion, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSearcherClosed
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	mine := s.seq
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.seq == mine {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	timer := time.NewTimer(s.debounce)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return nil, s.outcome(ctx, mine, query, nil)
	}

	suggestions, err := s.lookup.Search(ctx, query)
	if s.superseded(mine) {
		return nil, s.outcome(ctx, mine, query, err)
	}
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.GeocodeRequests.WithLabelValues("ok").Inc()
	return suggestions, nil
}

// Cancel aborts the pending search, if any.
func (s *Searcher) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close cancels the pending search and rejects new ones.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Searcher) superseded(mine uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq != mine
}

func (s *Searcher) outcome(ctx context.Context, mine uint64, query string, err error) error {
	if s.superseded(mine) {
		metrics.GeocodeRequests.WithLabelValues("superseded").Inc()
		if s.logger != nil {
			s.logger.Debug("geocode search superseded", map[string]interface{}{"query": query})
		}
		return ErrSuperseded
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}
