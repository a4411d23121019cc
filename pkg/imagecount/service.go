package imagecount

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"locex/pkg/commons"
	"locex/pkg/model"
	"locex/pkg/store"
	"locex/pkg/wikidata"
)

// Fetcher resolves the current count for one key against its upstream.
type Fetcher func(ctx context.Context, key string) (int, error)

// Service maintains the two image-count caches. Reads never block on an
// upstream: cached values are returned immediately (stale included) and
// stale or missing keys are refreshed in the background.
type Service struct {
	store        store.CountStore
	pool         *Pool
	ttl          time.Duration
	commonsFetch Fetcher
	viewItFetch  Fetcher
	log          *slog.Logger

	// One mutex guards both pending sets. A key in the set already has a
	// refresh queued or running.
	mu      sync.Mutex
	pending map[string]map[string]bool

	now func() time.Time
}

// New builds the service. ttl <= 0 means a cached value never goes stale.
func New(countStore store.CountStore, pool *Pool, ttl time.Duration, commonsFetch, viewItFetch Fetcher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:        countStore,
		pool:         pool,
		ttl:          ttl,
		commonsFetch: commonsFetch,
		viewItFetch:  viewItFetch,
		log:          log,
		pending: map[string]map[string]bool{
			store.CountKindCommons: {},
			store.CountKindViewIt:  {},
		},
		now: time.Now,
	}
}

func (s *Service) fresh(entry store.CountEntry) bool {
	if s.ttl <= 0 {
		return true
	}
	return s.now().Sub(entry.FetchedAt) < s.ttl
}

func (s *Service) fetcherFor(kind string) Fetcher {
	if kind == store.CountKindViewIt {
		return s.viewItFetch
	}
	return s.commonsFetch
}

// countsFor returns cached counts for the keys and queues refreshes for
// stale or missing ones. Stale values are still returned.
func (s *Service) countsFor(ctx context.Context, kind string, keys []string) map[string]int {
	if len(keys) == 0 {
		return nil
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	entries, err := s.store.GetCounts(ctx, kind, sorted)
	if err != nil {
		s.log.Error("count cache read failed", "kind", kind, "error", err)
		entries = nil
	}

	counts := make(map[string]int, len(entries))
	for _, key := range sorted {
		entry, ok := entries[key]
		if ok {
			counts[key] = entry.Count
		}
		if !ok || !s.fresh(entry) {
			s.queueRefresh(kind, key)
		}
	}
	return counts
}

// queueRefresh submits a background refresh unless one is already pending
// for the key. The pending mark is removed exactly once, when the job
// finishes; a rejected submit removes it synchronously.
func (s *Service) queueRefresh(kind, key string) {
	s.mu.Lock()
	if s.pending[kind][key] {
		s.mu.Unlock()
		return
	}
	s.pending[kind][key] = true
	s.mu.Unlock()

	err := s.pool.Submit(func() {
		defer func() {
			s.mu.Lock()
			delete(s.pending[kind], key)
			s.mu.Unlock()
		}()
		s.refresh(kind, key)
	})
	if err != nil {
		s.mu.Lock()
		delete(s.pending[kind], key)
		s.mu.Unlock()
	}
}

// refresh fetches and stores one count. Fetch failures leave the cached
// value untouched so a flaky upstream never erases known counts.
func (s *Service) refresh(kind, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.fetcherFor(kind)(ctx, key)
	if err != nil {
		s.log.Warn("image count refresh failed", "kind", kind, "key", key, "error", err)
		return
	}
	if err := s.store.SetCount(ctx, kind, key, count); err != nil {
		s.log.Error("image count store failed", "kind", kind, "key", key, "error", err)
	}
}

// EnrichLocations annotates records with cached image counts and the
// Commons category / View-it links they derive from. Counts missing from
// the cache stay nil.
func (s *Service) EnrichLocations(ctx context.Context, locations []model.LocationRecord) []model.LocationRecord {
	if len(locations) == 0 {
		return locations
	}

	categorySet := make(map[string]bool)
	qidSet := make(map[string]bool)
	categoryByIndex := make(map[int]string)
	qidByIndex := make(map[int]string)

	for i := range locations {
		if category := commons.NormalizeCategory(locations[i].CommonsCategory); category != "" {
			categorySet[category] = true
			categoryByIndex[i] = category
		}
		if qid := wikidata.ExtractQID(locations[i].URI); qid != "" {
			qidSet[qid] = true
			qidByIndex[i] = qid
		}
	}

	commonsCounts := s.countsFor(ctx, store.CountKindCommons, setKeys(categorySet))
	viewItCounts := s.countsFor(ctx, store.CountKindViewIt, setKeys(qidSet))

	for i := range locations {
		if category, ok := categoryByIndex[i]; ok {
			locations[i].CommonsCategory = category
			locations[i].CommonsCategoryURL = commons.CategoryURL(category)
			if count, ok := commonsCounts[category]; ok {
				locations[i].CommonsImageCount = intPtr(count)
			}
		}
		if qid, ok := qidByIndex[i]; ok {
			locations[i].ViewItQID = qid
			locations[i].ViewItURL = ViewItURL(qid)
			if count, ok := viewItCounts[qid]; ok {
				locations[i].ViewItImageCount = intPtr(count)
			}
		}
	}
	return locations
}

func setKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	return keys
}

func intPtr(n int) *int { return &n }
