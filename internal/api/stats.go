package api

import (
	"net/http"

	"locex/pkg/tracker"
)

// StatsHandler exposes per-provider request counters.
type StatsHandler struct {
	tracker *tracker.Tracker
}

func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: t}
}

type providerStatsDTO struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	APISuccess  int64 `json:"api_success"`
	APIFailures int64 `json:"api_errors"`
	HitRate     int64 `json:"hit_rate"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()
	providers := make(map[string]providerStatsDTO, len(snapshot))
	for name, stats := range snapshot {
		dto := providerStatsDTO{
			CacheHits:   stats.CacheHits,
			CacheMisses: stats.CacheMisses,
			APISuccess:  stats.APISuccess,
			APIFailures: stats.APIFailures,
		}
		if total := dto.CacheHits + dto.CacheMisses; total > 0 {
			dto.HitRate = dto.CacheHits * 100 / total
		}
		providers[name] = dto
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}
