package resource

import (
	"context"
	"sync"
	"time"

	crowdfund "github.com/goliatone/go-crowdfund"
)

// Loader fetches a singular resource.
type Loader[T any] func(ctx context.Context) (T, error)

// SingleState is the observable state of a Single.
type SingleState[T any] struct {
	Value   *T     `json:"value"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Single holds one value (e.g. the wallet balance) with the same
// loading, error and single-flight rules as Store.
type Single[T any] struct {
	name   string
	loader Loader[T]
	options

	mu    sync.RWMutex
	state SingleState[T]
	gen   uint64
}

// NewSingle creates a single value store.
func NewSingle[T any](name string, loader Loader[T], opts ...Option) *Single[T] {
	return &Single[T]{
		name:    name,
		loader:  loader,
		options: buildOptions(opts),
	}
}

// Load fetches the value unless a load is already in flight.
func (s *Single[T]) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Loading {
		s.mu.Unlock()
		s.observer.FetchSkipped(s.name)
		return nil
	}
	s.state.Loading = true
	gen := s.gen
	s.mu.Unlock()

	start := time.Now()
	value, err := s.loader(ctx)
	s.observer.OperationFinished(s.name, "load", time.Since(start), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return err
	}
	s.state.Loading = false
	if err != nil {
		s.logger.Warn("load failed", "store", s.name, "error", err)
		s.state.Error = crowdfund.MessageOf(err)
		return err
	}
	s.state.Value = &value
	s.state.Error = ""
	return nil
}

// Set replaces the value, e.g. with an entity returned by a mutation.
func (s *Single[T]) Set(value T) {
	s.mu.Lock()
	s.state.Value = &value
	s.mu.Unlock()
}

// RecordError stores err as the last failure.
func (s *Single[T]) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.state.Error = crowdfund.MessageOf(err)
	s.mu.Unlock()
}

// Snapshot returns a copy of the state.
func (s *Single[T]) Snapshot() SingleState[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	if s.state.Value != nil {
		v := *s.state.Value
		out.Value = &v
	}
	return out
}

// Reset wipes the value. A load started before the reset is discarded and
// does not block the next Load.
func (s *Single[T]) Reset() {
	s.mu.Lock()
	s.state = SingleState[T]{}
	s.gen++
	s.mu.Unlock()
}
