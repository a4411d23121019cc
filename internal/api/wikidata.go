package api

import (
	"net/http"
	"strconv"
	"strings"

	"locex/pkg/wikidata"
)

// WikidataHandler serves entity lookup and the two write operations.
// writer is nil when no OAuth credentials are configured; writes then
// return 503 instead of failing mid-flight.
type WikidataHandler struct {
	reader        *wikidata.Reader
	writer        *wikidata.Writer
	collectionQID string
	reasonQID     string
}

func NewWikidataHandler(reader *wikidata.Reader, writer *wikidata.Writer, collectionQID, reasonQID string) *WikidataHandler {
	return &WikidataHandler{
		reader:        reader,
		writer:        writer,
		collectionQID: collectionQID,
		reasonQID:     reasonQID,
	}
}

func (h *WikidataHandler) requireWriter(w http.ResponseWriter) bool {
	if h.writer == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			map[string]string{"detail": "Wikidata write credentials are not configured"})
		return false
	}
	return true
}

// HandleSearch handles GET /api/wikidata/search.
func (h *WikidataHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := strings.TrimSpace(q.Get("q"))
	if term == "" {
		writeBadRequest(w, "a search term is required")
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	results, err := h.reader.SearchEntities(r.Context(), term, q.Get("lang"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []wikidata.EntitySummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// HandleEntity handles GET /api/wikidata/entities/{id}.
func (h *WikidataHandler) HandleEntity(w http.ResponseWriter, r *http.Request) {
	entityID := wikidata.ExtractQID(r.PathValue("id"))
	if entityID == "" {
		writeBadRequest(w, "a Wikidata item id is required")
		return
	}

	detail, err := h.reader.FetchEntity(r.Context(), entityID, r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, err)
		return
	}
	if detail == nil {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type addExistingRequest struct {
	WikidataItem string `json:"wikidata_item"`

	SourceURL             string `json:"source_url,omitempty"`
	SourceTitle           string `json:"source_title,omitempty"`
	SourceTitleLanguage   string `json:"source_title_language,omitempty"`
	SourceAuthor          string `json:"source_author,omitempty"`
	SourcePublicationDate string `json:"source_publication_date,omitempty"`
	SourcePublishedIn     string `json:"source_published_in_p1433,omitempty"`
	SourceWorkLanguage    string `json:"source_language_of_work_p407,omitempty"`
}

func (req *addExistingRequest) sourceMeta() wikidata.SourceMeta {
	return wikidata.SourceMeta{
		URL:             req.SourceURL,
		Title:           req.SourceTitle,
		TitleLanguage:   req.SourceTitleLanguage,
		Author:          req.SourceAuthor,
		PublicationDate: req.SourcePublicationDate,
		PublishedInQID:  wikidata.ExtractQID(req.SourcePublishedIn),
		WorkLanguageQID: wikidata.ExtractQID(req.SourceWorkLanguage),
	}
}

// HandleAddExisting handles POST /api/wikidata/add-existing.
func (h *WikidataHandler) HandleAddExisting(w http.ResponseWriter, r *http.Request) {
	if !h.requireWriter(w) {
		return
	}
	var req addExistingRequest
	if err := readJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request payload")
		return
	}
	entityID := wikidata.ExtractQID(req.WikidataItem)
	if entityID == "" {
		writeBadRequest(w, "a Wikidata item id is required")
		return
	}

	result, err := h.writer.EnsureCollectionMembership(r.Context(), entityID, h.collectionQID, req.sourceMeta(), h.reasonQID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createItemRequest struct {
	Label               string `json:"label"`
	LabelLanguage       string `json:"label_language,omitempty"`
	Description         string `json:"description,omitempty"`
	DescriptionLanguage string `json:"description_language,omitempty"`

	InstanceOf   string  `json:"instance_of_p31"`
	Country      string  `json:"country_p17"`
	Municipality string  `json:"municipality_p131"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`

	Architect          string `json:"architect_p84,omitempty"`
	ArchitectSourceURL string `json:"architect_source_url,omitempty"`

	Heritage          string `json:"heritage_designation_p1435,omitempty"`
	HeritageSourceURL string `json:"heritage_source_url,omitempty"`

	Style      string `json:"architectural_style_p149,omitempty"`
	StateOfUse string `json:"state_of_use_p5817,omitempty"`
	Street     string `json:"located_on_street_p669,omitempty"`
	HouseNum   string `json:"house_number_p670,omitempty"`

	Inception          string `json:"inception_p571,omitempty"`
	InceptionSourceURL string `json:"inception_source_url,omitempty"`
	ClosureDate        string `json:"official_closure_date_p3999,omitempty"`
	ClosureSourceURL   string `json:"official_closure_date_source_url,omitempty"`

	AddressText     string `json:"address_text_p6375,omitempty"`
	AddressLanguage string `json:"address_text_language_p6375,omitempty"`
	PostalCode      string `json:"postal_code_p281,omitempty"`
	CommonsCategory string `json:"commons_category_p373,omitempty"`

	RouteInstruction         string `json:"route_instruction_p2795,omitempty"`
	RouteInstructionLanguage string `json:"route_instruction_language_p2795,omitempty"`

	Lang string `json:"lang,omitempty"`
}

func (req *createItemRequest) buildingInput() wikidata.BuildingInput {
	return wikidata.BuildingInput{
		Label:               req.Label,
		LabelLanguage:       req.LabelLanguage,
		Description:         req.Description,
		DescriptionLanguage: req.DescriptionLanguage,

		InstanceOfQID:   wikidata.ExtractQID(req.InstanceOf),
		CountryQID:      wikidata.ExtractQID(req.Country),
		MunicipalityQID: wikidata.ExtractQID(req.Municipality),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,

		ArchitectQID:       wikidata.ExtractQID(req.Architect),
		ArchitectSourceURL: req.ArchitectSourceURL,

		HeritageQID:       wikidata.ExtractQID(req.Heritage),
		HeritageSourceURL: req.HeritageSourceURL,

		StyleQID:      wikidata.ExtractQID(req.Style),
		StateOfUseQID: wikidata.ExtractQID(req.StateOfUse),
		StreetQID:     wikidata.ExtractQID(req.Street),
		HouseNumber:   req.HouseNum,

		Inception:          req.Inception,
		InceptionSourceURL: req.InceptionSourceURL,
		ClosureDate:        req.ClosureDate,
		ClosureSourceURL:   req.ClosureSourceURL,

		AddressText:     req.AddressText,
		AddressLanguage: req.AddressLanguage,
		PostalCode:      req.PostalCode,
		CommonsCategory: req.CommonsCategory,

		RouteInstruction:         req.RouteInstruction,
		RouteInstructionLanguage: req.RouteInstructionLanguage,
	}
}

// HandleCreate handles POST /api/wikidata/create.
func (h *WikidataHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !h.requireWriter(w) {
		return
	}
	var req createItemRequest
	if err := readJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request payload")
		return
	}

	result, err := h.writer.CreateBuilding(r.Context(), req.buildingInput(), req.Lang, h.collectionQID)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Err != nil {
		// The item exists; report what was written alongside the failure.
		writeJSON(w, http.StatusOK, map[string]any{
			"result": result,
			"detail": result.Err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
