package api

import (
	"net/http"
	"strings"

	"locex/pkg/citoid"
)

// CitoidHandler prefills source metadata for a reference URL.
type CitoidHandler struct {
	client *citoid.Client
}

func NewCitoidHandler(client *citoid.Client) *CitoidHandler {
	return &CitoidHandler{client: client}
}

// HandleMetadata handles GET /api/citoid/metadata.
func (h *CitoidHandler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sourceURL := strings.TrimSpace(q.Get("url"))
	if sourceURL == "" {
		writeBadRequest(w, "a url parameter is required")
		return
	}

	meta, err := h.client.FetchMetadata(r.Context(), sourceURL, q.Get("lang"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"source_url":                   meta.URL,
		"source_title":                 meta.Title,
		"source_title_language":        meta.TitleLanguage,
		"source_author":                meta.Author,
		"source_publication_date":      meta.PublicationDate,
		"source_published_in_p1433":    "",
		"source_language_of_work_p407": "",
	})
}
