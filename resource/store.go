package resource

import (
	"context"
	"sync"
	"time"

	crowdfund "github.com/goliatone/go-crowdfund"
)

// Entity is the constraint for items held by a Store.
type Entity interface {
	GetID() string
}

// Fetcher is the network collaborator of a Store.
type Fetcher[T any] interface {
	List(ctx context.Context, req PageRequest) (Page[T], error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, input any) (T, error)
	Update(ctx context.Context, id string, input any) (T, error)
	Delete(ctx context.Context, id string) error
	Action(ctx context.Context, id, action string, body any) (T, error)
}

// State is the observable state of a Store.
type State[T any] struct {
	Items       []T         `json:"items"`
	Pagination  *Pagination `json:"pagination"`
	Loading     bool        `json:"loading"`
	Error       string      `json:"error,omitempty"`
	Current     *T          `json:"current,omitempty"`
	LastRequest PageRequest `json:"-"`
}

// Observer receives store lifecycle notifications, e.g. for metrics.
type Observer interface {
	FetchSkipped(store string)
	OperationFinished(store, op string, took time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) FetchSkipped(string)                                     {}
func (noopObserver) OperationFinished(string, string, time.Duration, error) {}

// Option customizes a Store or Single.
type Option func(*options)

type options struct {
	observer Observer
	logger   crowdfund.Logger
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		if o != nil {
			opts.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l crowdfund.Logger) Option {
	return func(opts *options) {
		if l != nil {
			opts.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		observer: noopObserver{},
		logger:   crowdfund.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Store is the generic state container for one resource collection.
//
// FetchList is single-flight: while a list fetch is in flight further calls
// return immediately. Failures are recorded in Error and leave Items as they
// were; a successful fetch replaces Items and Pagination together and clears
// Error. Mutations return the server entity and never refresh the list.
type Store[T Entity] struct {
	name    string
	fetcher Fetcher[T]
	options

	mu         sync.RWMutex
	state      State[T]
	currentSeq uint64
	gen        uint64
	subs       map[int]func(State[T])
	nextSub    int
}

// New creates a store for the named resource.
func New[T Entity](name string, fetcher Fetcher[T], opts ...Option) *Store[T] {
	return &Store[T]{
		name:    name,
		fetcher: fetcher,
		options: buildOptions(opts),
		state:   State[T]{Items: []T{}},
		subs:    map[int]func(State[T]){},
	}
}

// Name returns the resource name.
func (s *Store[T]) Name() string {
	return s.name
}

// FetchList loads a page into Items. It is a no-op while another list fetch
// for this store is running. The error is both recorded and returned.
func (s *Store[T]) FetchList(ctx context.Context, req PageRequest) error {
	if err := req.Validate(); err != nil {
		s.RecordError(err)
		return err
	}

	s.mu.Lock()
	if s.state.Loading {
		s.mu.Unlock()
		s.observer.FetchSkipped(s.name)
		s.logger.Debug("list fetch already in flight", "store", s.name)
		return nil
	}
	s.state.Loading = true
	gen := s.gen
	s.mu.Unlock()
	s.publish()

	start := time.Now()
	page, err := s.fetcher.List(ctx, req)

	s.mu.Lock()
	if gen != s.gen {
		// reset while in flight: drop the result, Loading belongs to the
		// current generation
		s.mu.Unlock()
		s.observer.OperationFinished(s.name, "list", time.Since(start), err)
		s.publish()
		return err
	}
	s.state.Loading = false
	if err != nil {
		s.state.Error = crowdfund.MessageOf(err)
	} else {
		items := make([]T, len(page.Content))
		copy(items, page.Content)
		s.state.Items = items
		s.state.Pagination = PaginationOf(page, req)
		s.state.Error = ""
		s.state.LastRequest = req
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("list fetch failed", "store", s.name, "error", err)
	}
	s.observer.OperationFinished(s.name, "list", time.Since(start), err)
	s.publish()
	return err
}

// Refresh repeats the last successful list request.
func (s *Store[T]) Refresh(ctx context.Context) error {
	s.mu.RLock()
	req := s.state.LastRequest
	s.mu.RUnlock()
	if req.Size == 0 {
		return nil
	}
	return s.FetchList(ctx, req)
}

// FetchByID loads a single item into Current. It does not look at Loading.
// When calls overlap, only the latest one updates Current.
func (s *Store[T]) FetchByID(ctx context.Context, id string) (T, error) {
	s.mu.Lock()
	s.currentSeq++
	seq := s.currentSeq
	s.mu.Unlock()

	start := time.Now()
	item, err := s.fetcher.Get(ctx, id)
	s.observer.OperationFinished(s.name, "get", time.Since(start), err)

	s.mu.Lock()
	if seq != s.currentSeq {
		// superseded: Current and Error belong to the newer call
		s.mu.Unlock()
		s.logger.Debug("discarding superseded item fetch", "store", s.name, "id", id)
		return item, err
	}
	if err != nil {
		s.state.Error = crowdfund.MessageOf(err)
	} else {
		current := item
		s.state.Current = &current
		s.state.Error = ""
	}
	s.mu.Unlock()

	s.publish()
	return item, err
}

// Create posts input and returns the created entity.
func (s *Store[T]) Create(ctx context.Context, input any) (T, error) {
	return s.Mutate(ctx, "create", func(ctx context.Context) (T, error) {
		return s.fetcher.Create(ctx, input)
	})
}

// Update replaces the entity identified by id.
func (s *Store[T]) Update(ctx context.Context, id string, input any) (T, error) {
	return s.Mutate(ctx, "update", func(ctx context.Context) (T, error) {
		return s.fetcher.Update(ctx, id, input)
	})
}

// Action runs a named state transition (approve, reject, submit...).
func (s *Store[T]) Action(ctx context.Context, id, action string, body any) (T, error) {
	return s.Mutate(ctx, action, func(ctx context.Context) (T, error) {
		return s.fetcher.Action(ctx, id, action, body)
	})
}

// Delete removes the entity identified by id.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	_, err := s.Mutate(ctx, "delete", func(ctx context.Context) (T, error) {
		var zero T
		return zero, s.fetcher.Delete(ctx, id)
	})
	return err
}

// Mutate runs a write and records its outcome. Success clears Error,
// failure records it. Items are not touched.
func (s *Store[T]) Mutate(ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	item, err := fn(ctx)
	s.observer.OperationFinished(s.name, op, time.Since(start), err)

	if err != nil {
		s.logger.Warn("mutation failed", "store", s.name, "op", op, "error", err)
		s.RecordError(err)
		return item, err
	}

	s.mu.Lock()
	s.state.Error = ""
	s.mu.Unlock()
	s.publish()
	return item, nil
}

// RecordError stores err as the last failure.
func (s *Store[T]) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.state.Error = crowdfund.MessageOf(err)
	s.mu.Unlock()
	s.publish()
}

// ClearError forgets the last failure.
func (s *Store[T]) ClearError() {
	s.mu.Lock()
	s.state.Error = ""
	s.mu.Unlock()
	s.publish()
}

// Upsert splices item into Items, replacing the entry with the same id or
// prepending it.
func (s *Store[T]) Upsert(item T) {
	s.mu.Lock()
	items := make([]T, 0, len(s.state.Items)+1)
	replaced := false
	for _, existing := range s.state.Items {
		if existing.GetID() == item.GetID() {
			items = append(items, item)
			replaced = true
			continue
		}
		items = append(items, existing)
	}
	if !replaced {
		items = append([]T{item}, items...)
	}
	s.state.Items = items
	s.mu.Unlock()
	s.publish()
}

// Remove drops the item with id from Items.
func (s *Store[T]) Remove(id string) {
	s.mu.Lock()
	items := make([]T, 0, len(s.state.Items))
	for _, existing := range s.state.Items {
		if existing.GetID() != id {
			items = append(items, existing)
		}
	}
	s.state.Items = items
	s.mu.Unlock()
	s.publish()
}

// Snapshot returns a copy of the state.
func (s *Store[T]) Snapshot() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyState()
}

// Loading reports whether a list fetch is in flight.
func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Loading
}

// Reset wipes the state, e.g. on logout. Results of fetches started before
// the reset are discarded and do not block the next FetchList.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	s.state = State[T]{Items: []T{}}
	s.currentSeq++
	s.gen++
	s.mu.Unlock()
	s.publish()
}

// Subscribe registers fn for state changes and returns the unsubscribe func.
func (s *Store[T]) Subscribe(fn func(State[T])) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store[T]) publish() {
	s.mu.RLock()
	if len(s.subs) == 0 {
		s.mu.RUnlock()
		return
	}
	snap := s.copyState()
	subs := make([]func(State[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Store[T]) copyState() State[T] {
	out := s.state
	out.Items = make([]T, len(s.state.Items))
	copy(out.Items, s.state.Items)
	if s.state.Pagination != nil {
		p := *s.state.Pagination
		out.Pagination = &p
	}
	if s.state.Current != nil {
		c := *s.state.Current
		out.Current = &c
	}
	return out
}
