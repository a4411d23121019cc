package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"locex/pkg/commons"
	"locex/pkg/wikidata"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps the service error taxonomy onto HTTP statuses. Upstream
// failures are bad gateways; everything unclassified is a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, wikidata.ErrInvalidQuery):
		status = http.StatusBadRequest
	case errors.Is(err, wikidata.ErrService), errors.Is(err, commons.ErrExternal):
		status = http.StatusBadGateway
	case errors.Is(err, wikidata.ErrWrite):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"detail": detail})
}

func writeNotFound(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": detail})
}

func readJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
