package api

import (
	"log/slog"
	"net/http"

	"locex/pkg/wikidata"
)

// AuthHandler reports whether the configured OAuth identity works.
type AuthHandler struct {
	session *wikidata.Session
}

func NewAuthHandler(session *wikidata.Session) *AuthHandler {
	return &AuthHandler{session: session}
}

// HandleStatus handles GET /api/auth/status.
func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	username, err := h.session.Username(r.Context())
	if err != nil {
		slog.Warn("userinfo lookup failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      username,
	})
}
