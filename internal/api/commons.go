package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"locex/pkg/commons"
	"locex/pkg/model"
	"locex/pkg/wikidata"
)

// CommonsHandler serves category search, subcategory listing and image
// upload. uploader is nil when no OAuth credentials are configured.
type CommonsHandler struct {
	client   *commons.Client
	uploader *wikidata.CommonsUploader
	maxBytes int64
}

func NewCommonsHandler(client *commons.Client, uploader *wikidata.CommonsUploader, maxBytes int64) *CommonsHandler {
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	return &CommonsHandler{client: client, uploader: uploader, maxBytes: maxBytes}
}

// HandleSearchCategories handles GET /api/commons/categories.
func (h *CommonsHandler) HandleSearchCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := strings.TrimSpace(q.Get("q"))
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	hits, err := h.client.SearchCategories(r.Context(), prefix, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if hits == nil {
		hits = []commons.CategoryHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

// HandleSubcategories handles GET /api/commons/subcategories.
func (h *CommonsHandler) HandleSubcategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	if category == "" {
		writeBadRequest(w, "a category is required")
		return
	}
	limit := 200
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	children, err := h.client.SubcategoryChildren(r.Context(), category, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if children == nil {
		children = []model.ChildRef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": children})
}

func parseJSONList(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, false
	}
	return values, true
}

func formFloat(r *http.Request, key string) (*float64, bool) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}

// HandleUpload handles POST /api/commons/upload (multipart form).
func (h *CommonsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			map[string]string{"detail": "Commons upload credentials are not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeBadRequest(w, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "an image file is required")
		return
	}
	defer file.Close()

	categories, ok := parseJSONList(r.FormValue("categories_json"))
	if !ok {
		writeBadRequest(w, "categories_json must be a JSON list")
		return
	}
	depicts, ok := parseJSONList(r.FormValue("depicts_json"))
	if !ok {
		writeBadRequest(w, "depicts_json must be a JSON list")
		return
	}

	input := wikidata.UploadInput{
		Filename:            strings.TrimSpace(r.FormValue("target_filename")),
		File:                file,
		Caption:             r.FormValue("caption"),
		CaptionLanguage:     r.FormValue("caption_language"),
		Description:         r.FormValue("description"),
		DescriptionLanguage: r.FormValue("description_language"),
		Author:              r.FormValue("author"),
		SourceURL:           r.FormValue("source_url"),
		DateCreated:         r.FormValue("date_created"),
		License:             r.FormValue("license_template"),
		Categories:          categories,
		Depicts:             depicts,
		CoordinateFromEXIF:  strings.EqualFold(r.FormValue("coordinate_source"), "exif"),
		WikidataItem:        wikidata.ExtractQID(r.FormValue("wikidata_item")),
	}
	if input.Filename == "" {
		input.Filename = header.Filename
	}

	if lat, ok := formFloat(r, "latitude"); ok && lat != nil {
		input.Latitude = *lat
	} else if !ok {
		writeBadRequest(w, "latitude must be a number")
		return
	}
	if lon, ok := formFloat(r, "longitude"); ok && lon != nil {
		input.Longitude = *lon
	} else if !ok {
		writeBadRequest(w, "longitude must be a number")
		return
	}
	var floatOK bool
	if input.Heading, floatOK = formFloat(r, "heading"); !floatOK {
		writeBadRequest(w, "heading must be a number")
		return
	}
	if input.ElevationMeters, floatOK = formFloat(r, "elevation_meters"); !floatOK {
		writeBadRequest(w, "elevation_meters must be a number")
		return
	}

	result, err := h.uploader.Upload(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
