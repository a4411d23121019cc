package tracker

import "sync"

// Tracker tracks outbound request statistics per provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds counters for a specific provider.
type ProviderStats struct {
	CacheHits   int64
	CacheMisses int64
	APISuccess  int64
	APIFailures int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{stats: make(map[string]*ProviderStats)}
}

func (t *Tracker) bump(provider string, f func(*ProviderStats)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stats[provider]
	if !ok {
		s = &ProviderStats{}
		t.stats[provider] = s
	}
	f(s)
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(provider string) {
	t.bump(provider, func(s *ProviderStats) { s.CacheHits++ })
}

// TrackCacheMiss increments the cache miss counter.
func (t *Tracker) TrackCacheMiss(provider string) {
	t.bump(provider, func(s *ProviderStats) { s.CacheMisses++ })
}

// TrackAPISuccess increments the success counter.
func (t *Tracker) TrackAPISuccess(provider string) {
	t.bump(provider, func(s *ProviderStats) { s.APISuccess++ })
}

// TrackAPIFailure increments the failure counter.
func (t *Tracker) TrackAPIFailure(provider string) {
	t.bump(provider, func(s *ProviderStats) { s.APIFailures++ })
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = *v
	}
	return result
}

// Reset zeroes all counters while keeping known providers.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.stats {
		t.stats[k] = &ProviderStats{}
	}
}
