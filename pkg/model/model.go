package model

import (
	"net/url"
	"time"
)

// LinkedEntity is one value of an entity-valued property together with its
// resolved label and, when available, a Wikipedia article link.
type LinkedEntity struct {
	Value        string `json:"value"`
	Label        string `json:"label,omitempty"`
	WikipediaURL string `json:"wikipedia_url,omitempty"`
}

// StreetRef is one located-on-street statement with its house number
// qualifier.
type StreetRef struct {
	LinkedEntity
	HouseNumber string `json:"house_number,omitempty"`
}

// TextVariant is a language-tagged literal, e.g. one address text.
type TextVariant struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// LocationRecord is one aggregated place, re-derived per request from SPARQL
// bindings or from a draft. URI is always non-empty; coordinates are WGS84
// degrees.
type LocationRecord struct {
	ID           string  `json:"id"`
	URI          string  `json:"uri"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	DateModified string  `json:"date_modified,omitempty"`

	CommonsCategory string `json:"commons_category,omitempty"`
	ImageName       string `json:"image_name,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	ImageThumbURL   string `json:"image_thumb_url,omitempty"`

	Inception   string `json:"inception_p571,omitempty"`
	ClosureDate string `json:"official_closure_date_p3999,omitempty"`

	Location     LinkedEntity `json:"location_p276,omitempty"`
	StateOfUse   LinkedEntity `json:"state_of_use_p5817,omitempty"`
	Municipality LinkedEntity `json:"municipality_p131,omitempty"`
	InstanceOf   LinkedEntity `json:"instance_of_p31,omitempty"`
	Style        LinkedEntity `json:"architectural_style_p149,omitempty"`
	Heritage     LinkedEntity `json:"heritage_designation_p1435,omitempty"`

	// Multi-valued properties, first-seen order, deduplicated. The first
	// entry doubles as the primary value for single-value consumers.
	Architects []LinkedEntity `json:"architect_p84_values,omitempty"`
	Streets    []StreetRef    `json:"located_on_street_p669_values,omitempty"`
	Addresses  []TextVariant  `json:"address_text_p6375_values,omitempty"`

	AddressText      string `json:"address_text,omitempty"`
	PostalCode       string `json:"postal_code,omitempty"`
	RouteInstruction string `json:"route_instruction_p2795,omitempty"`

	// External registry identifiers, keyed by Wikidata property id.
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	// Set by the reconciliation layer when a draft resolves to this record.
	DraftID   int64  `json:"draft_id,omitempty"`
	ParentURI string `json:"parent_uri,omitempty"`
	Source    string `json:"source,omitempty"`

	// Set by image-count enrichment. Nil means "not cached yet", not zero.
	CommonsCategoryURL string `json:"commons_category_url,omitempty"`
	CommonsImageCount  *int   `json:"commons_image_count,omitempty"`
	ViewItQID          string `json:"view_it_qid,omitempty"`
	ViewItURL          string `json:"view_it_url,omitempty"`
	ViewItImageCount   *int   `json:"view_it_image_count,omitempty"`
}

// Architect returns the primary architect value, if any.
func (r *LocationRecord) Architect() LinkedEntity {
	if len(r.Architects) == 0 {
		return LinkedEntity{}
	}
	return r.Architects[0]
}

// Street returns the primary located-on-street value, if any.
func (r *LocationRecord) Street() StreetRef {
	if len(r.Streets) == 0 {
		return StreetRef{}
	}
	return r.Streets[0]
}

// ChildRef is a minimal reference to a sub-location (part-of / has-part).
type ChildRef struct {
	ID              string `json:"id"`
	URI             string `json:"uri"`
	Name            string `json:"name"`
	Source          string `json:"source"`
	CommonsCategory string `json:"commons_category,omitempty"`
}

// DraftLocation is a locally authored, not-yet-published location candidate.
type DraftLocation struct {
	ID              int64     `json:"id"`
	URI             string    `json:"uri"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	LocationType    string    `json:"location_type,omitempty"`
	WikidataItem    string    `json:"wikidata_item,omitempty"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	AddressText     string    `json:"address_text,omitempty"`
	PostalCode      string    `json:"postal_code,omitempty"`
	Municipality    string    `json:"municipality_p131,omitempty"`
	CommonsCategory string    `json:"commons_category,omitempty"`
	ParentURI       string    `json:"parent_uri,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EncodeLocationID converts a URI into the opaque id used on the API surface.
func EncodeLocationID(uri string) string {
	return url.QueryEscape(uri)
}

// DecodeLocationID reverses EncodeLocationID. Invalid escapes return the
// input unchanged so lookups fail with "not found" rather than a 500.
func DecodeLocationID(id string) string {
	decoded, err := url.QueryUnescape(id)
	if err != nil {
		return id
	}
	return decoded
}
