package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"locex/pkg/commons"
	"locex/pkg/request"
)

// Reader performs unauthenticated action-API reads: entity search, entity
// fetch, and label resolution.
type Reader struct {
	http      *request.Client
	apiURL    string
	languages LanguagePolicy
}

// NewReader wraps the shared HTTP client for action-API reads.
func NewReader(httpClient *request.Client, apiURL string, languages LanguagePolicy) *Reader {
	if apiURL == "" {
		apiURL = APIURL
	}
	return &Reader{http: httpClient, apiURL: apiURL, languages: languages}
}

func (r *Reader) jsonGet(ctx context.Context, params url.Values) (map[string]any, error) {
	params.Set("format", "json")
	body, err := r.http.Get(ctx, r.apiURL+"?"+params.Encode(), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: service did not return JSON: %s", ErrService, bodyPreview(body))
	}
	return payload, nil
}

// EntitySummary is one search hit.
type EntitySummary struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	URI         string `json:"uri"`
}

// SearchEntities runs wbsearchentities for items. The limit is clamped to
// 1..20; an empty query returns no hits without a request.
func (r *Reader) SearchEntities(ctx context.Context, query, lang string, limit int) ([]EntitySummary, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 20 {
		limit = 20
	}
	language := r.languages.QueryLanguage(lang)

	payload, err := r.jsonGet(ctx, url.Values{
		"action":   {"wbsearchentities"},
		"search":   {term},
		"language": {language},
		"uselang":  {language},
		"type":     {"item"},
		"limit":    {fmt.Sprintf("%d", limit)},
	})
	if err != nil {
		return nil, err
	}

	items, _ := payload["search"].([]any)
	var results []EntitySummary
	for _, entry := range items {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		qid := ExtractQID(stringValue(item["id"]))
		if qid == "" {
			continue
		}
		label := stringValue(item["label"])
		if label == "" {
			label = qid
		}
		results = append(results, EntitySummary{
			ID:          qid,
			Label:       label,
			Description: stringValue(item["description"]),
			URI:         "https://www.wikidata.org/entity/" + qid,
		})
	}
	return results, nil
}

// EntityRef pairs an item id with its resolved label.
type EntityRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// EntityDetail is the add-existing-item preview of an entity: enough to
// prefill a location form.
type EntityDetail struct {
	ID          string   `json:"id"`
	URI         string   `json:"uri"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`

	InstanceOf         *EntityRef  `json:"instance_of,omitempty"`
	Municipality       *EntityRef  `json:"municipality,omitempty"`
	GeographicEntities []EntityRef `json:"geographic_entities,omitempty"`

	AddressText     string `json:"address_text,omitempty"`
	PostalCode      string `json:"postal_code,omitempty"`
	CommonsCategory string `json:"commons_category,omitempty"`
	ImageName       string `json:"image_name,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	ImageThumbURL   string `json:"image_thumb_url,omitempty"`
}

// FetchEntity loads one entity's labels, descriptions, and the claims the
// location form cares about. Returns nil without error when the id is
// invalid or the entity does not exist.
func (r *Reader) FetchEntity(ctx context.Context, entityID, lang string) (*EntityDetail, error) {
	qid := ExtractQID(entityID)
	if qid == "" {
		return nil, nil
	}
	fallbacks := r.languages.Fallbacks(lang, true)

	payload, err := r.jsonGet(ctx, url.Values{
		"action":    {"wbgetentities"},
		"ids":       {qid},
		"props":     {"labels|descriptions|claims"},
		"languages": {strings.Join(fallbacks, "|")},
	})
	if err != nil {
		return nil, err
	}

	entities, _ := payload["entities"].(map[string]any)
	entity, ok := entities[qid].(map[string]any)
	if !ok {
		return nil, nil
	}
	labels, _ := entity["labels"].(map[string]any)
	descriptions, _ := entity["descriptions"].(map[string]any)
	claims, _ := entity["claims"].(map[string]any)

	label := labelForLanguage(labels, fallbacks)
	if label == "" {
		label = qid
	}

	detail := &EntityDetail{
		ID:          qid,
		URI:         "https://www.wikidata.org/entity/" + qid,
		Label:       label,
		Description: labelForLanguage(descriptions, fallbacks),
	}

	if coord, ok := firstClaimDatavalue(claims, "P625").(map[string]any); ok {
		lat, latOK := coord["latitude"].(float64)
		lon, lonOK := coord["longitude"].(float64)
		if latOK && lonOK {
			detail.Latitude = &lat
			detail.Longitude = &lon
		}
	}

	instanceOfID := entityIDFromClaimValue(firstClaimDatavalue(claims, "P31"))
	municipalityID := entityIDFromClaimValue(firstClaimDatavalue(claims, "P131"))
	geographicIDs := claimEntityIDs(claims, "P706")

	detail.CommonsCategory = firstClaimString(claims, "P373", fallbacks)
	detail.AddressText = firstClaimString(claims, "P6375", fallbacks)
	detail.PostalCode = firstClaimString(claims, "P281", fallbacks)
	detail.ImageName = firstClaimString(claims, "P18", fallbacks)
	detail.ImageURL = commons.FileURL(detail.ImageName)
	detail.ImageThumbURL = commons.ThumbURL(detail.ImageName, commons.DefaultThumbWidth)

	referenced := append([]string{instanceOfID, municipalityID}, geographicIDs...)
	labelsByID, err := r.LabelsForIDs(ctx, referenced, fallbacks)
	if err != nil {
		return nil, err
	}
	refFor := func(id string) *EntityRef {
		if id == "" {
			return nil
		}
		label := labelsByID[id]
		if label == "" {
			label = id
		}
		return &EntityRef{ID: id, Label: label}
	}
	detail.InstanceOf = refFor(instanceOfID)
	detail.Municipality = refFor(municipalityID)
	for _, id := range geographicIDs {
		if ref := refFor(id); ref != nil {
			detail.GeographicEntities = append(detail.GeographicEntities, *ref)
		}
	}

	return detail, nil
}

// LabelsForIDs resolves display labels for a set of items in one request.
// Missing labels are simply absent from the result.
func (r *Reader) LabelsForIDs(ctx context.Context, entityIDs, fallbacks []string) (map[string]string, error) {
	seen := make(map[string]bool)
	var unique []string
	for _, id := range entityIDs {
		normalized := strings.ToUpper(strings.TrimSpace(id))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		unique = append(unique, normalized)
	}
	if len(unique) == 0 {
		return map[string]string{}, nil
	}
	sort.Strings(unique)

	payload, err := r.jsonGet(ctx, url.Values{
		"action":    {"wbgetentities"},
		"ids":       {strings.Join(unique, "|")},
		"props":     {"labels"},
		"languages": {strings.Join(fallbacks, "|")},
	})
	if err != nil {
		return nil, err
	}

	entities, _ := payload["entities"].(map[string]any)
	labels := make(map[string]string)
	for _, id := range unique {
		entity, ok := entities[id].(map[string]any)
		if !ok {
			continue
		}
		entityLabels, _ := entity["labels"].(map[string]any)
		if label := labelForLanguage(entityLabels, fallbacks); label != "" {
			labels[id] = label
		}
	}
	return labels, nil
}

// labelForLanguage walks the fallback chain over a labels map, then takes
// any label at all.
func labelForLanguage(valueMap map[string]any, fallbacks []string) string {
	value := func(entry any) string {
		m, ok := entry.(map[string]any)
		if !ok {
			return ""
		}
		return stringValue(m["value"])
	}
	for _, lang := range fallbacks {
		if label := value(valueMap[lang]); label != "" {
			return label
		}
	}
	for _, entry := range valueMap {
		if label := value(entry); label != "" {
			return label
		}
	}
	return ""
}
