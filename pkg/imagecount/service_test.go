package imagecount

import (
	"context"
	"sync"
	"testing"
	"time"

	"locex/pkg/model"
	"locex/pkg/store"
)

type fakeCountStore struct {
	mu      sync.Mutex
	entries map[string]map[string]store.CountEntry
	sets    int
}

func newFakeCountStore() *fakeCountStore {
	return &fakeCountStore{entries: map[string]map[string]store.CountEntry{
		store.CountKindCommons: {},
		store.CountKindViewIt:  {},
	}}
}

func (f *fakeCountStore) GetCounts(_ context.Context, kind string, keys []string) (map[string]store.CountEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string]store.CountEntry)
	for _, key := range keys {
		if entry, ok := f.entries[kind][key]; ok {
			result[key] = entry
		}
	}
	return result, nil
}

func (f *fakeCountStore) SetCount(_ context.Context, kind, key string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[kind][key] = store.CountEntry{Count: count, FetchedAt: time.Now()}
	f.sets++
	return nil
}

func (f *fakeCountStore) seed(kind, key string, count int, fetchedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[kind][key] = store.CountEntry{Count: count, FetchedAt: fetchedAt}
}

func (f *fakeCountStore) get(kind, key string) (store.CountEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[kind][key]
	return entry, ok
}

type countingFetcher struct {
	mu    sync.Mutex
	calls int
	count int
	err   error
	block chan struct{}
}

func (c *countingFetcher) fetch(_ context.Context, _ string) (int, error) {
	c.mu.Lock()
	c.calls++
	block := c.block
	c.mu.Unlock()
	if block != nil {
		<-block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, c.err
}

func (c *countingFetcher) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func waitIdle(t *testing.T, s *Service) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		busy := len(s.pending[store.CountKindCommons]) + len(s.pending[store.CountKindViewIt])
		s.mu.Unlock()
		if busy == 0 {
			// Pending clears before the store write lands; one extra
			// scheduling round lets the deferred cleanup finish.
			time.Sleep(5 * time.Millisecond)
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("refreshes did not finish")
}

func testService(t *testing.T, ttl time.Duration, commonsFetch, viewItFetch Fetcher) (*Service, *fakeCountStore) {
	t.Helper()
	cs := newFakeCountStore()
	pool := NewPool(2)
	t.Cleanup(pool.Stop)
	if commonsFetch == nil {
		commonsFetch = func(context.Context, string) (int, error) { return 0, nil }
	}
	if viewItFetch == nil {
		viewItFetch = func(context.Context, string) (int, error) { return 0, nil }
	}
	return New(cs, pool, ttl, commonsFetch, viewItFetch, nil), cs
}

func TestEnrichLocationsFreshCache(t *testing.T) {
	commonsFetch := &countingFetcher{}
	viewItFetch := &countingFetcher{}
	s, cs := testService(t, time.Hour, commonsFetch.fetch, viewItFetch.fetch)
	cs.seed(store.CountKindCommons, "Suomenlinna Church", 42, time.Now())
	cs.seed(store.CountKindViewIt, "Q1757", 7, time.Now())

	locations := s.EnrichLocations(context.Background(), []model.LocationRecord{{
		URI:             "http://www.wikidata.org/entity/Q1757",
		CommonsCategory: "Category:Suomenlinna Church",
	}})

	rec := locations[0]
	if rec.CommonsImageCount == nil || *rec.CommonsImageCount != 42 {
		t.Errorf("commons count = %v", rec.CommonsImageCount)
	}
	if rec.CommonsCategory != "Suomenlinna Church" {
		t.Errorf("category = %q", rec.CommonsCategory)
	}
	if rec.CommonsCategoryURL == "" {
		t.Error("missing category URL")
	}
	if rec.ViewItQID != "Q1757" {
		t.Errorf("viewit qid = %q", rec.ViewItQID)
	}
	if rec.ViewItImageCount == nil || *rec.ViewItImageCount != 7 {
		t.Errorf("viewit count = %v", rec.ViewItImageCount)
	}
	if rec.ViewItURL != ViewItURL("Q1757") {
		t.Errorf("viewit url = %q", rec.ViewItURL)
	}

	waitIdle(t, s)
	if commonsFetch.callCount() != 0 || viewItFetch.callCount() != 0 {
		t.Errorf("fresh entries refetched: commons=%d viewit=%d", commonsFetch.callCount(), viewItFetch.callCount())
	}
}

func TestEnrichLocationsUnderscoreCategoryHitsSpaceKey(t *testing.T) {
	// Cache rows are keyed by the normalized (space) form; underscore
	// input from SPARQL bindings must land on the same row.
	commonsFetch := &countingFetcher{}
	s, cs := testService(t, time.Hour, commonsFetch.fetch, nil)
	cs.seed(store.CountKindCommons, "Suomenlinna Church", 42, time.Now())

	locations := s.EnrichLocations(context.Background(), []model.LocationRecord{{
		CommonsCategory: "Suomenlinna_Church",
	}})

	rec := locations[0]
	if rec.CommonsImageCount == nil || *rec.CommonsImageCount != 42 {
		t.Errorf("commons count = %v, want 42", rec.CommonsImageCount)
	}
	waitIdle(t, s)
	if commonsFetch.callCount() != 0 {
		t.Errorf("fresh entry refetched %d times", commonsFetch.callCount())
	}
}

func TestEnrichLocationsStaleReturnsAndRefreshes(t *testing.T) {
	commonsFetch := &countingFetcher{count: 99}
	s, cs := testService(t, time.Hour, commonsFetch.fetch, nil)
	cs.seed(store.CountKindCommons, "Old Church", 5, time.Now().Add(-2*time.Hour))

	locations := s.EnrichLocations(context.Background(), []model.LocationRecord{{
		CommonsCategory: "Old Church",
	}})
	if locations[0].CommonsImageCount == nil || *locations[0].CommonsImageCount != 5 {
		t.Errorf("stale count not returned: %v", locations[0].CommonsImageCount)
	}

	waitIdle(t, s)
	if commonsFetch.callCount() != 1 {
		t.Fatalf("fetch calls = %d", commonsFetch.callCount())
	}
	entry, _ := cs.get(store.CountKindCommons, "Old Church")
	if entry.Count != 99 {
		t.Errorf("stored count = %d, want 99", entry.Count)
	}
}

func TestEnrichLocationsZeroTTLNeverStale(t *testing.T) {
	commonsFetch := &countingFetcher{}
	s, cs := testService(t, 0, commonsFetch.fetch, nil)
	cs.seed(store.CountKindCommons, "Old Church", 5, time.Now().Add(-24*365*time.Hour))

	s.EnrichLocations(context.Background(), []model.LocationRecord{{CommonsCategory: "Old Church"}})
	waitIdle(t, s)
	if commonsFetch.callCount() != 0 {
		t.Errorf("fetch calls = %d, want 0", commonsFetch.callCount())
	}
}

func TestEnrichLocationsMissingKeyFetched(t *testing.T) {
	viewItFetch := &countingFetcher{count: 3}
	s, _ := testService(t, time.Hour, nil, viewItFetch.fetch)

	locations := s.EnrichLocations(context.Background(), []model.LocationRecord{{
		URI: "http://www.wikidata.org/entity/Q42",
	}})
	if locations[0].ViewItImageCount != nil {
		t.Errorf("uncached count must be nil, got %v", locations[0].ViewItImageCount)
	}

	waitIdle(t, s)
	locations = s.EnrichLocations(context.Background(), []model.LocationRecord{{
		URI: "http://www.wikidata.org/entity/Q42",
	}})
	if locations[0].ViewItImageCount == nil || *locations[0].ViewItImageCount != 3 {
		t.Errorf("count after refresh = %v", locations[0].ViewItImageCount)
	}
}

func TestRefreshDeduped(t *testing.T) {
	commonsFetch := &countingFetcher{count: 1, block: make(chan struct{})}
	s, _ := testService(t, time.Hour, commonsFetch.fetch, nil)

	records := []model.LocationRecord{{CommonsCategory: "Busy Category"}}
	s.EnrichLocations(context.Background(), records)
	s.EnrichLocations(context.Background(), records)
	s.EnrichLocations(context.Background(), records)

	close(commonsFetch.block)
	waitIdle(t, s)
	if commonsFetch.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", commonsFetch.callCount())
	}
}

func TestRefreshFailurePreservesValueAndUnsticksKey(t *testing.T) {
	commonsFetch := &countingFetcher{err: context.DeadlineExceeded}
	s, cs := testService(t, time.Hour, commonsFetch.fetch, nil)
	cs.seed(store.CountKindCommons, "Flaky Category", 8, time.Now().Add(-2*time.Hour))

	records := []model.LocationRecord{{CommonsCategory: "Flaky Category"}}
	s.EnrichLocations(context.Background(), records)
	waitIdle(t, s)

	entry, ok := cs.get(store.CountKindCommons, "Flaky Category")
	if !ok || entry.Count != 8 {
		t.Errorf("failed refresh must not touch cached value: %+v ok=%v", entry, ok)
	}

	commonsFetch.mu.Lock()
	commonsFetch.err = nil
	commonsFetch.count = 12
	commonsFetch.mu.Unlock()

	s.EnrichLocations(context.Background(), records)
	waitIdle(t, s)
	if commonsFetch.callCount() != 2 {
		t.Fatalf("fetch calls = %d, want 2", commonsFetch.callCount())
	}
	entry, _ = cs.get(store.CountKindCommons, "Flaky Category")
	if entry.Count != 12 {
		t.Errorf("stored count = %d, want 12", entry.Count)
	}
}

func TestEnrichLocationsSkipsBlankFields(t *testing.T) {
	commonsFetch := &countingFetcher{}
	viewItFetch := &countingFetcher{}
	s, _ := testService(t, time.Hour, commonsFetch.fetch, viewItFetch.fetch)

	locations := s.EnrichLocations(context.Background(), []model.LocationRecord{{Name: "Draft only"}})
	waitIdle(t, s)

	rec := locations[0]
	if rec.CommonsCategoryURL != "" || rec.ViewItURL != "" {
		t.Errorf("blank record gained links: %+v", rec)
	}
	if commonsFetch.callCount() != 0 || viewItFetch.callCount() != 0 {
		t.Error("blank record triggered fetches")
	}
}

func TestPoolSubmitQueueFull(t *testing.T) {
	pool := NewPool(1)
	block := make(chan struct{})
	started := make(chan struct{})
	if err := pool.Submit(func() { close(started); <-block }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started

	// With the worker parked, the buffer must fill and then reject
	// instead of blocking the caller.
	queued := 0
	for ; queued < 1000; queued++ {
		if err := pool.Submit(func() {}); err != nil {
			if err != ErrQueueFull {
				t.Fatalf("Submit = %v, want ErrQueueFull", err)
			}
			break
		}
	}
	if queued == 1000 {
		t.Fatal("queue never filled")
	}

	done := make(chan error, 1)
	go func() { done <- pool.Submit(func() {}) }()
	select {
	case err := <-done:
		if err != ErrQueueFull {
			t.Errorf("Submit on full queue = %v, want ErrQueueFull", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(block)
	pool.Stop()
}

func TestQueueFullUnsticksPendingKey(t *testing.T) {
	pool := NewPool(1)
	block := make(chan struct{})
	started := make(chan struct{})
	if err := pool.Submit(func() { close(started); <-block }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started
	for pool.Submit(func() {}) == nil {
	}

	fetch := &countingFetcher{count: 4}
	s := New(newFakeCountStore(), pool, time.Hour, fetch.fetch, fetch.fetch, nil)
	s.EnrichLocations(context.Background(), []model.LocationRecord{{CommonsCategory: "Full Queue"}})

	s.mu.Lock()
	stuck := s.pending[store.CountKindCommons]["Full Queue"]
	s.mu.Unlock()
	if stuck {
		t.Error("rejected refresh left its key pending")
	}

	close(block)
	pool.Stop()
}

func TestPoolSubmitAfterStop(t *testing.T) {
	pool := NewPool(1)
	done := make(chan struct{})
	if err := pool.Submit(func() { close(done) }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-done
	pool.Stop()
	if err := pool.Submit(func() {}); err != ErrPoolStopped {
		t.Errorf("Submit after Stop = %v, want ErrPoolStopped", err)
	}
	// Stop is idempotent.
	pool.Stop()
}
