package api

import (
	"log/slog"
	"net/http"
	"time"

	"locex/pkg/version"
)

// Handlers bundles the API surface for server construction. Nil optional
// handlers leave their routes unregistered.
type Handlers struct {
	Locations *LocationsHandler
	Drafts    *DraftsHandler
	Wikidata  *WikidataHandler
	Commons   *CommonsHandler
	Citoid    *CitoidHandler
	Auth      *AuthHandler
	Stats     *StatsHandler
}

// NewServer creates and configures the HTTP server.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	if h.Locations != nil {
		mux.HandleFunc("GET /api/locations", h.Locations.HandleList)
		mux.HandleFunc("GET /api/locations/{id}", h.Locations.HandleDetail)
		mux.HandleFunc("GET /api/locations/{id}/children", h.Locations.HandleChildren)
	}

	if h.Drafts != nil {
		mux.HandleFunc("GET /api/drafts", h.Drafts.HandleList)
		mux.HandleFunc("POST /api/drafts", h.Drafts.HandleCreate)
		mux.HandleFunc("GET /api/drafts/{id}", h.Drafts.HandleGet)
		mux.HandleFunc("PUT /api/drafts/{id}", h.Drafts.HandleUpdate)
		mux.HandleFunc("DELETE /api/drafts/{id}", h.Drafts.HandleDelete)
	}

	if h.Wikidata != nil {
		mux.HandleFunc("GET /api/wikidata/search", h.Wikidata.HandleSearch)
		mux.HandleFunc("GET /api/wikidata/entities/{id}", h.Wikidata.HandleEntity)
		mux.HandleFunc("POST /api/wikidata/add-existing", h.Wikidata.HandleAddExisting)
		mux.HandleFunc("POST /api/wikidata/create", h.Wikidata.HandleCreate)
	}

	if h.Commons != nil {
		mux.HandleFunc("GET /api/commons/categories", h.Commons.HandleSearchCategories)
		mux.HandleFunc("GET /api/commons/subcategories", h.Commons.HandleSubcategories)
		mux.HandleFunc("POST /api/commons/upload", h.Commons.HandleUpload)
	}

	if h.Citoid != nil {
		mux.HandleFunc("GET /api/citoid/metadata", h.Citoid.HandleMetadata)
	}

	if h.Auth != nil {
		mux.HandleFunc("GET /api/auth/status", h.Auth.HandleStatus)
	}

	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("shutting down")); err != nil {
			slog.Error("failed to write shutdown response", "error", err)
		}
		// Let the response flush before tearing the listener down.
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}
