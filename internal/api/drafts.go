package api

import (
	"net/http"
	"strconv"
	"strings"

	"locex/pkg/model"
	"locex/pkg/store"
)

// DraftsHandler serves draft location CRUD.
type DraftsHandler struct {
	store store.DraftStore
}

func NewDraftsHandler(st store.DraftStore) *DraftsHandler {
	return &DraftsHandler{store: st}
}

func draftID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// HandleList handles GET /api/drafts.
func (h *DraftsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		drafts []*model.DraftLocation
		err    error
	)
	if parent := strings.TrimSpace(r.URL.Query().Get("parent_uri")); parent != "" {
		drafts, err = h.store.ListDraftsByParent(r.Context(), parent)
	} else {
		drafts, err = h.store.ListDrafts(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if drafts == nil {
		drafts = []*model.DraftLocation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": drafts})
}

// HandleCreate handles POST /api/drafts.
func (h *DraftsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var draft model.DraftLocation
	if err := readJSON(r, &draft); err != nil {
		writeBadRequest(w, "invalid draft payload")
		return
	}
	if strings.TrimSpace(draft.Name) == "" {
		writeBadRequest(w, "a draft name is required")
		return
	}

	draft.ID = 0
	if err := h.store.SaveDraft(r.Context(), &draft); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

// HandleGet handles GET /api/drafts/{id}.
func (h *DraftsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(r)
	if !ok {
		writeBadRequest(w, "invalid draft id")
		return
	}
	draft, err := h.store.GetDraft(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if draft == nil {
		writeNotFound(w, "draft not found")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// HandleUpdate handles PUT /api/drafts/{id}.
func (h *DraftsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(r)
	if !ok {
		writeBadRequest(w, "invalid draft id")
		return
	}
	existing, err := h.store.GetDraft(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		writeNotFound(w, "draft not found")
		return
	}

	draft := *existing
	if err := readJSON(r, &draft); err != nil {
		writeBadRequest(w, "invalid draft payload")
		return
	}
	draft.ID = id
	draft.URI = existing.URI
	draft.CreatedAt = existing.CreatedAt

	if err := h.store.UpdateDraft(r.Context(), &draft); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// HandleDelete handles DELETE /api/drafts/{id}.
func (h *DraftsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(r)
	if !ok {
		writeBadRequest(w, "invalid draft id")
		return
	}
	if err := h.store.DeleteDraft(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
