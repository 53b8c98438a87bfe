package resource_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-crowdfund/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (i item) GetID() string { return i.ID }

// fakeFetcher serves pages from memory. When gate is set, List blocks
// until the gate is closed.
type fakeFetcher struct {
	mu       sync.Mutex
	items    []item
	listErr  error
	lists    atomic.Int32
	gate     chan struct{}
	started  chan struct{}
	getDelay map[string]time.Duration
	actions  []string
}

func (f *fakeFetcher) List(ctx context.Context, req resource.PageRequest) (resource.Page[item], error) {
	f.lists.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return resource.Page[item]{}, f.listErr
	}

	start := req.Page * req.Size
	end := start + req.Size
	if start > len(f.items) {
		start = len(f.items)
	}
	if end > len(f.items) {
		end = len(f.items)
	}
	totalPages := (len(f.items) + req.Size - 1) / req.Size
	return resource.Page[item]{
		Content:       append([]item(nil), f.items[start:end]...),
		TotalElements: int64(len(f.items)),
		TotalPages:    totalPages,
		PageNumber:    req.Page,
		First:         req.Page == 0,
		Last:          req.Page >= totalPages-1,
	}, nil
}

func (f *fakeFetcher) Get(ctx context.Context, id string) (item, error) {
	if d := f.getDelay[id]; d > 0 {
		time.Sleep(d)
	}
	if id == "missing" {
		return item{}, errors.New("not found")
	}
	return item{ID: id, Name: "item " + id}, nil
}

func (f *fakeFetcher) Create(ctx context.Context, input any) (item, error) {
	return item{ID: "new", Name: fmt.Sprint(input)}, nil
}

func (f *fakeFetcher) Update(ctx context.Context, id string, input any) (item, error) {
	return item{ID: id, Name: fmt.Sprint(input)}, nil
}

func (f *fakeFetcher) Delete(ctx context.Context, id string) error {
	if id == "locked" {
		return errors.New("cannot delete")
	}
	return nil
}

func (f *fakeFetcher) Action(ctx context.Context, id, action string, body any) (item, error) {
	f.mu.Lock()
	f.actions = append(f.actions, id+"/"+action)
	f.mu.Unlock()
	return item{ID: id, Name: action}, nil
}

func seeded(n int) []item {
	out := make([]item, n)
	for i := range out {
		out[i] = item{ID: fmt.Sprint(i + 1), Name: fmt.Sprintf("item %d", i+1)}
	}
	return out
}

func firstPage(t *testing.T, size int) resource.PageRequest {
	t.Helper()
	req, err := resource.NewPageRequest(0, size)
	require.NoError(t, err)
	return req
}

func TestStore_FetchListPage(t *testing.T) {
	f := &fakeFetcher{items: seeded(12)}
	store := resource.New[item]("items", f)

	require.NoError(t, store.FetchList(context.Background(), firstPage(t, 5)))

	state := store.Snapshot()
	assert.Len(t, state.Items, 5)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	require.NotNil(t, state.Pagination)
	assert.Equal(t, 5, state.Pagination.PageSize)
	assert.Equal(t, int64(12), state.Pagination.TotalElements)
	assert.Equal(t, 3, state.Pagination.TotalPages)
	assert.True(t, state.Pagination.First)
	assert.False(t, state.Pagination.Last)

	next, ok := state.Pagination.Next(state.LastRequest)
	require.True(t, ok)
	require.NoError(t, store.FetchList(context.Background(), next))
	assert.Equal(t, "6", store.Snapshot().Items[0].ID)
}

func TestStore_FetchListSingleFlight(t *testing.T) {
	f := &fakeFetcher{items: seeded(3), gate: make(chan struct{}), started: make(chan struct{}, 1)}
	store := resource.New[item]("items", f)

	req := firstPage(t, 5)
	done := make(chan error, 1)
	go func() {
		done <- store.FetchList(context.Background(), req)
	}()
	<-f.started
	assert.True(t, store.Loading())

	assert.NoError(t, store.FetchList(context.Background(), req))
	assert.NoError(t, store.FetchList(context.Background(), req))

	close(f.gate)
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), f.lists.Load())
	assert.Len(t, store.Snapshot().Items, 3)
	assert.False(t, store.Loading())
}

func TestStore_FailureKeepsItems(t *testing.T) {
	f := &fakeFetcher{items: seeded(3)}
	store := resource.New[item]("items", f)
	require.NoError(t, store.FetchList(context.Background(), firstPage(t, 5)))

	f.mu.Lock()
	f.listErr = errors.New("server unavailable")
	f.mu.Unlock()

	err := store.FetchList(context.Background(), firstPage(t, 5))
	require.Error(t, err)

	state := store.Snapshot()
	assert.Len(t, state.Items, 3)
	assert.Equal(t, "server unavailable", state.Error)
	assert.False(t, state.Loading)

	f.mu.Lock()
	f.listErr = nil
	f.mu.Unlock()
	require.NoError(t, store.Refresh(context.Background()))
	assert.Empty(t, store.Snapshot().Error)
}

func TestStore_InvalidRequestSkipsFetch(t *testing.T) {
	f := &fakeFetcher{items: seeded(3)}
	store := resource.New[item]("items", f)

	err := store.FetchList(context.Background(), resource.PageRequest{Page: -1, Size: 5})
	require.Error(t, err)
	assert.Zero(t, f.lists.Load())
	assert.NotEmpty(t, store.Snapshot().Error)
}

func TestStore_FetchByIDLatestWins(t *testing.T) {
	f := &fakeFetcher{getDelay: map[string]time.Duration{"slow": 50 * time.Millisecond}}
	store := resource.New[item]("items", f)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = store.FetchByID(context.Background(), "slow")
	}()
	time.Sleep(10 * time.Millisecond)

	got, err := store.FetchByID(context.Background(), "fast")
	require.NoError(t, err)
	assert.Equal(t, "fast", got.ID)
	wg.Wait()

	current := store.Snapshot().Current
	require.NotNil(t, current)
	assert.Equal(t, "fast", current.ID)
}

func TestStore_FetchByIDError(t *testing.T) {
	store := resource.New[item]("items", &fakeFetcher{})

	_, err := store.FetchByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "not found", store.Snapshot().Error)
	assert.Nil(t, store.Snapshot().Current)
}

func TestStore_MutationsDoNotRefresh(t *testing.T) {
	f := &fakeFetcher{items: seeded(2)}
	store := resource.New[item]("items", f)
	require.NoError(t, store.FetchList(context.Background(), firstPage(t, 5)))
	store.RecordError(errors.New("stale"))

	created, err := store.Create(context.Background(), "payload")
	require.NoError(t, err)
	assert.Equal(t, "new", created.ID)
	assert.Len(t, store.Snapshot().Items, 2)
	assert.Empty(t, store.Snapshot().Error)

	approved, err := store.Action(context.Background(), "1", "approve", nil)
	require.NoError(t, err)
	assert.Equal(t, "approve", approved.Name)
	assert.Equal(t, []string{"1/approve"}, f.actions)

	require.Error(t, store.Delete(context.Background(), "locked"))
	assert.Equal(t, "cannot delete", store.Snapshot().Error)
	assert.Equal(t, int32(1), f.lists.Load())
}

func TestStore_UpsertAndRemove(t *testing.T) {
	store := resource.New[item]("items", &fakeFetcher{items: seeded(2)})
	require.NoError(t, store.FetchList(context.Background(), firstPage(t, 5)))

	store.Upsert(item{ID: "2", Name: "renamed"})
	store.Upsert(item{ID: "9", Name: "fresh"})

	items := store.Snapshot().Items
	require.Len(t, items, 3)
	assert.Equal(t, "9", items[0].ID)
	assert.Equal(t, "renamed", items[2].Name)

	store.Remove("1")
	assert.Len(t, store.Snapshot().Items, 2)
}

func TestStore_ResetDiscardsInFlightResult(t *testing.T) {
	f := &fakeFetcher{items: seeded(3), gate: make(chan struct{}), started: make(chan struct{}, 1)}
	store := resource.New[item]("items", f)

	req := firstPage(t, 5)
	done := make(chan error, 1)
	go func() {
		done <- store.FetchList(context.Background(), req)
	}()
	<-f.started

	store.Reset()
	close(f.gate)
	require.NoError(t, <-done)

	state := store.Snapshot()
	assert.Empty(t, state.Items)
	assert.Nil(t, state.Pagination)
	assert.False(t, state.Loading)
}

func TestStore_FetchListAfterResetIsNotSkipped(t *testing.T) {
	f := &fakeFetcher{items: seeded(3), gate: make(chan struct{}), started: make(chan struct{}, 1)}
	store := resource.New[item]("items", f)

	req := firstPage(t, 5)
	stale := make(chan error, 1)
	go func() {
		stale <- store.FetchList(context.Background(), req)
	}()
	<-f.started

	store.Reset()
	assert.False(t, store.Loading())

	fresh := make(chan error, 1)
	go func() {
		fresh <- store.FetchList(context.Background(), req)
	}()
	<-f.started
	assert.True(t, store.Loading())

	close(f.gate)
	require.NoError(t, <-stale)
	require.NoError(t, <-fresh)

	state := store.Snapshot()
	assert.Equal(t, int32(2), f.lists.Load())
	assert.Len(t, state.Items, 3)
	require.NotNil(t, state.Pagination)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := resource.New[item]("items", &fakeFetcher{items: seeded(2)})
	require.NoError(t, store.FetchList(context.Background(), firstPage(t, 5)))

	snap := store.Snapshot()
	snap.Items[0].Name = "mutated"
	assert.Equal(t, "item 1", store.Snapshot().Items[0].Name)
}

func TestStore_Subscribe(t *testing.T) {
	store := resource.New[item]("items", &fakeFetcher{items: seeded(1)})

	var mu sync.Mutex
	var states []resource.State[item]
	unsubscribe := store.Subscribe(func(s resource.State[item]) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	require.NoError(t, store.FetchList(context.Background(), firstPage(t, 5)))
	unsubscribe()
	store.ClearError()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, states, 2)
	assert.True(t, states[0].Loading)
	assert.False(t, states[1].Loading)
	assert.Len(t, states[1].Items, 1)
}

type countingObserver struct {
	mu      sync.Mutex
	skipped int
	ops     []string
}

func (o *countingObserver) FetchSkipped(string) {
	o.mu.Lock()
	o.skipped++
	o.mu.Unlock()
}

func (o *countingObserver) OperationFinished(store, op string, _ time.Duration, err error) {
	o.mu.Lock()
	o.ops = append(o.ops, fmt.Sprintf("%s:%s:%v", store, op, err == nil))
	o.mu.Unlock()
}

func TestStore_Observer(t *testing.T) {
	obs := &countingObserver{}
	store := resource.New[item]("items", &fakeFetcher{items: seeded(1)}, resource.WithObserver(obs))

	require.NoError(t, store.FetchList(context.Background(), firstPage(t, 5)))
	_, _ = store.FetchByID(context.Background(), "missing")

	assert.Equal(t, []string{"items:list:true", "items:get:false"}, obs.ops)
}

func TestSingle(t *testing.T) {
	calls := 0
	fail := false
	single := resource.NewSingle[int]("wallet", func(context.Context) (int, error) {
		calls++
		if fail {
			return 0, errors.New("wallet unavailable")
		}
		return 250, nil
	})

	require.NoError(t, single.Load(context.Background()))
	state := single.Snapshot()
	require.NotNil(t, state.Value)
	assert.Equal(t, 250, *state.Value)

	fail = true
	require.Error(t, single.Load(context.Background()))
	state = single.Snapshot()
	assert.Equal(t, 250, *state.Value)
	assert.Equal(t, "wallet unavailable", state.Error)

	single.Set(10)
	assert.Equal(t, 10, *single.Snapshot().Value)

	single.Reset()
	assert.Nil(t, single.Snapshot().Value)
	assert.Empty(t, single.Snapshot().Error)
	assert.Equal(t, 2, calls)
}

func TestSingle_LoadAfterResetIsNotSkipped(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32
	single := resource.NewSingle[int]("wallet", func(context.Context) (int, error) {
		n := calls.Add(1)
		started <- struct{}{}
		<-gate
		return int(n) * 100, nil
	})

	stale := make(chan error, 1)
	go func() {
		stale <- single.Load(context.Background())
	}()
	<-started

	single.Reset()
	assert.False(t, single.Snapshot().Loading)

	fresh := make(chan error, 1)
	go func() {
		fresh <- single.Load(context.Background())
	}()
	<-started

	close(gate)
	require.NoError(t, <-stale)
	require.NoError(t, <-fresh)

	state := single.Snapshot()
	assert.Equal(t, int32(2), calls.Load())
	require.NotNil(t, state.Value)
	assert.Equal(t, 200, *state.Value)
	assert.False(t, state.Loading)
}
