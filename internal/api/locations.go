package api

import (
	"net/http"
	"strconv"
	"strings"

	"locex/pkg/locations"
	"locex/pkg/model"
)

// LocationsHandler serves the aggregated location views.
type LocationsHandler struct {
	svc *locations.Service
}

func NewLocationsHandler(svc *locations.Service) *LocationsHandler {
	return &LocationsHandler{svc: svc}
}

func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// HandleList handles GET /api/locations.
func (h *LocationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := locations.ListOptions{
		Lang:    q.Get("lang"),
		Limit:   queryLimit(r),
		Comment: q.Get("refresh_token"),
	}
	if extra := q.Get("wikidata_items"); extra != "" {
		opts.ExtraQIDs = strings.Split(extra, ",")
	}

	records, err := h.svc.FetchLocations(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	records = h.svc.EnrichWithImageCounts(r.Context(), records)
	if records == nil {
		records = []model.LocationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": records})
}

// HandleDetail handles GET /api/locations/{id}.
func (h *LocationsHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	uri := model.DecodeLocationID(r.PathValue("id"))
	if strings.TrimSpace(uri) == "" {
		writeBadRequest(w, "a location id is required")
		return
	}

	record, err := h.svc.FetchLocationDetail(r.Context(), uri, r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, err)
		return
	}
	if record == nil {
		writeNotFound(w, "location not found")
		return
	}
	enriched := h.svc.EnrichWithImageCounts(r.Context(), []model.LocationRecord{*record})
	writeJSON(w, http.StatusOK, enriched[0])
}

// HandleChildren handles GET /api/locations/{id}/children.
func (h *LocationsHandler) HandleChildren(w http.ResponseWriter, r *http.Request) {
	uri := model.DecodeLocationID(r.PathValue("id"))
	if strings.TrimSpace(uri) == "" {
		writeBadRequest(w, "a location id is required")
		return
	}

	children, err := h.svc.FetchLocationChildren(r.Context(), uri, r.URL.Query().Get("lang"), queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if children == nil {
		children = []model.ChildRef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": children})
}
