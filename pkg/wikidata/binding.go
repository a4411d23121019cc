package wikidata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"locex/pkg/commons"
	"locex/pkg/model"
)

// Value is one SPARQL binding cell. Language and datatype sub-structure
// beyond the xml:lang tag is ignored.
type Value struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
	Lang  string `json:"xml:lang,omitempty"`
}

// Binding is one flat result row keyed by variable name.
type Binding map[string]Value

func bindingValue(b Binding, keys ...string) string {
	for _, key := range keys {
		if v, ok := b[key]; ok && v.Value != "" {
			return v.Value
		}
	}
	return ""
}

func bindingCell(b Binding, keys ...string) (Value, bool) {
	for _, key := range keys {
		if v, ok := b[key]; ok && v.Value != "" {
			return v, true
		}
	}
	return Value{}, false
}

// Coordinates arrive either as explicit lat/lon bindings or as a WKT
// "POINT(lon lat)" literal, optionally CRS-prefixed.
var pointRe = regexp.MustCompile(`(?i)POINT\s*\(\s*([+-]?\d+(?:\.\d+)?)\s*[,\s]\s*([+-]?\d+(?:\.\d+)?)\s*\)`)

// ParsePoint extracts a coordinate from a WKT-style literal.
func ParsePoint(coord string) (orb.Point, bool) {
	m := pointRe.FindStringSubmatch(coord)
	if m == nil {
		return orb.Point{}, false
	}
	lon, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return orb.Point{}, false
	}
	lat, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}

// FormatPoint renders a coordinate as the WKT literal used by the graph.
func FormatPoint(p orb.Point) string {
	return wkt.MarshalString(p)
}

// ReconcileOptions parameterize one reconciler pass.
type ReconcileOptions struct {
	// Lang is the requested display language, used to pick the primary
	// entry among per-language text variants.
	Lang string
	// ThumbWidth bounds image thumbnail URLs.
	ThumbWidth int
}

// Reconcile folds binding rows into one aggregated record per entity URI,
// preserving first-appearance order. Rows that fail to parse are dropped;
// the pass fails only when every row fails.
func Reconcile(bindings []Binding, opts ReconcileOptions) ([]model.LocationRecord, error) {
	if len(bindings) == 0 {
		return nil, nil
	}

	var order []string
	records := make(map[string]*model.LocationRecord)
	rowsByURI := make(map[string][]Binding)
	var lastErr error

	for _, b := range bindings {
		uri := bindingValue(b, "item", "uri", "id")
		if uri == "" {
			lastErr = fmt.Errorf("%w: results missing item URI", ErrService)
			continue
		}
		if _, ok := records[uri]; !ok {
			rec, err := formatBinding(b, uri, opts)
			if err != nil {
				lastErr = err
				continue
			}
			records[uri] = rec
			order = append(order, uri)
		}
		rowsByURI[uri] = append(rowsByURI[uri], b)
	}

	if len(order) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, nil
	}

	out := make([]model.LocationRecord, 0, len(order))
	for _, uri := range order {
		rec := records[uri]
		applyMultiValues(rec, rowsByURI[uri], opts.Lang)
		out = append(out, *rec)
	}
	return out, nil
}

// formatBinding builds the base record from the group's first row.
func formatBinding(b Binding, uri string, opts ReconcileOptions) (*model.LocationRecord, error) {
	name := bindingValue(b, "itemLabel", "label", "name")
	if name == "" {
		name = nameFromURI(uri)
	}

	lat, lon, err := bindingCoordinates(b)
	if err != nil {
		return nil, err
	}

	imageURL, thumbURL, imageName := commons.ResolveImage(
		bindingValue(b, "imageName", "image_name", "image"), opts.ThumbWidth)

	rec := &model.LocationRecord{
		ID:           model.EncodeLocationID(uri),
		URI:          uri,
		Name:         name,
		Description:  bindingValue(b, "itemDescription", "description", "comment"),
		Latitude:     lat,
		Longitude:    lon,
		DateModified: bindingValue(b, "dateModified"),

		CommonsCategory: commons.NormalizeCategory(bindingValue(b, "commonsCategory", "commons_category")),
		ImageName:       imageName,
		ImageURL:        imageURL,
		ImageThumbURL:   thumbURL,

		Inception:   bindingValue(b, "inceptionP571", "inception"),
		ClosureDate: bindingValue(b, "officialClosureDateP3999", "officialClosureDate", "closureDate"),

		Location: model.LinkedEntity{
			Value:        bindingValue(b, "locationP276", "location"),
			Label:        bindingValue(b, "locationP276Label", "locationLabel"),
			WikipediaURL: bindingValue(b, "locationP276WikipediaUrl", "locationWikipediaUrl"),
		},
		StateOfUse: model.LinkedEntity{
			Value:        bindingValue(b, "stateOfUseP5817", "stateOfUse"),
			Label:        bindingValue(b, "stateOfUseP5817Label", "stateOfUseLabel"),
			WikipediaURL: bindingValue(b, "stateOfUseP5817WikipediaUrl", "stateOfUseWikipediaUrl"),
		},
		Municipality: model.LinkedEntity{
			Value:        bindingValue(b, "municipalityP131", "administrativeTerritorialEntityP131", "municipality"),
			Label:        bindingValue(b, "municipalityP131Label", "administrativeTerritorialEntityP131Label", "municipalityLabel"),
			WikipediaURL: bindingValue(b, "municipalityP131WikipediaUrl", "administrativeTerritorialEntityP131WikipediaUrl", "municipalityWikipediaUrl"),
		},
		InstanceOf: model.LinkedEntity{
			Value:        bindingValue(b, "instanceOfP31", "instanceOf"),
			Label:        bindingValue(b, "instanceOfP31Label", "instanceOfLabel"),
			WikipediaURL: bindingValue(b, "instanceOfP31WikipediaUrl", "instanceOfWikipediaUrl"),
		},
		Style: model.LinkedEntity{
			Value:        bindingValue(b, "architecturalStyleP149", "architecturalStyle"),
			Label:        bindingValue(b, "architecturalStyleP149Label", "architecturalStyleLabel"),
			WikipediaURL: bindingValue(b, "architecturalStyleP149WikipediaUrl", "architecturalStyleWikipediaUrl"),
		},
		Heritage: model.LinkedEntity{
			Value:        bindingValue(b, "heritageDesignationP1435", "heritageDesignation"),
			Label:        bindingValue(b, "heritageDesignationP1435Label", "heritageDesignationLabel"),
			WikipediaURL: bindingValue(b, "heritageDesignationP1435WikipediaUrl", "heritageDesignationWikipediaUrl"),
		},

		AddressText:      bindingValue(b, "addressTextP6375", "streetAddressP6375", "addressText"),
		PostalCode:       bindingValue(b, "postalCodeP281", "postalCode"),
		RouteInstruction: bindingValue(b, "routeInstructionP2795", "directionsP2795", "routeInstruction"),

		Source: "sparql",
	}

	externalIDs := map[string]string{
		"P2347": bindingValue(b, "ysoIdP2347", "ysoId"),
		"P8309": bindingValue(b, "yleTopicIdP8309", "yleTopicId"),
		"P8980": bindingValue(b, "kantoIdP8980", "kantoId"),
		"P5310": bindingValue(b, "protectedBuildingsRegisterInFinlandIdP5310", "protectedBuildingsRegisterIdP5310"),
		"P4009": bindingValue(b, "rkyNationalBuiltHeritageEnvironmentIdP4009", "rkyIdP4009"),
		"P3824": bindingValue(b, "permanentBuildingNumberVtjPrtP3824", "permanentBuildingNumberP3824"),
		"P5313": bindingValue(b, "protectedBuildingsRegisterInFinlandBuildingIdP5313", "protectedBuildingsRegisterBuildingIdP5313"),
		"P8355": bindingValue(b, "helsinkiPersistentBuildingIdRatuP8355", "helsinkiPersistentBuildingIdP8355"),
	}
	for k, v := range externalIDs {
		if v == "" {
			delete(externalIDs, k)
		}
	}
	if len(externalIDs) > 0 {
		rec.ExternalIDs = externalIDs
	}

	return rec, nil
}

func bindingCoordinates(b Binding) (lat, lon float64, err error) {
	latValue := bindingValue(b, "lat", "latitude")
	lonValue := bindingValue(b, "lon", "long", "longitude")
	if latValue != "" && lonValue != "" {
		lat, err = strconv.ParseFloat(latValue, 64)
		if err == nil {
			lon, err = strconv.ParseFloat(lonValue, 64)
		}
		if err != nil {
			return 0, 0, fmt.Errorf("%w: results contain invalid coordinates", ErrService)
		}
		return lat, lon, nil
	}

	coord := bindingValue(b, "coord", "coordinate", "location")
	p, ok := ParsePoint(coord)
	if !ok {
		return 0, 0, fmt.Errorf("%w: results missing coordinate bindings", ErrService)
	}
	return p.Lat(), p.Lon(), nil
}

// nameFromURI falls back to the URI's trailing path segment.
func nameFromURI(uri string) string {
	name := uri
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.ReplaceAll(name, "_", " ")
}

// applyMultiValues scans all rows in an entity's group and collects the
// multi-valued attributes, keeping the single-value fields in sync with the
// first entry of each list.
func applyMultiValues(rec *model.LocationRecord, rows []Binding, lang string) {
	architects := collectLinkedEntities(rows,
		[]string{"architectP84", "architect"},
		[]string{"architectP84Label", "architectLabel"},
		[]string{"architectP84WikipediaUrl", "architectWikipediaUrl"},
	)
	if len(architects) > 0 {
		rec.Architects = architects
	}

	rec.Streets = collectStreets(rows)
	rec.Addresses = collectAddresses(rows)

	rec.AddressText = preferredAddress(rec.Addresses, lang, rec.AddressText)
}

// collectLinkedEntities builds an ordered, deduplicated list of
// {value, label, link} tuples across an entity's rows. The dedupe key is
// case-insensitive; rows mentioning a known value merge missing fields into
// the existing entry instead of appending a duplicate.
func collectLinkedEntities(rows []Binding, valueKeys, labelKeys, wikiKeys []string) []model.LinkedEntity {
	byKey := make(map[string]*model.LinkedEntity)
	var order []string

	for _, b := range rows {
		value := strings.TrimSpace(bindingValue(b, valueKeys...))
		label := strings.TrimSpace(bindingValue(b, labelKeys...))
		wikiURL := strings.TrimSpace(bindingValue(b, wikiKeys...))
		if value == "" && label == "" && wikiURL == "" {
			continue
		}

		key := value
		if key == "" {
			key = label
		}
		if key == "" {
			key = wikiURL
		}
		key = strings.ToLower(key)

		existing, ok := byKey[key]
		if !ok {
			byKey[key] = &model.LinkedEntity{Value: value, Label: label, WikipediaURL: wikiURL}
			order = append(order, key)
			continue
		}
		if existing.Value == "" {
			existing.Value = value
		}
		if existing.Label == "" {
			existing.Label = label
		}
		if existing.WikipediaURL == "" {
			existing.WikipediaURL = wikiURL
		}
	}

	out := make([]model.LinkedEntity, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// collectStreets merges located-on-street statements with their house
// number qualifier.
func collectStreets(rows []Binding) []model.StreetRef {
	byKey := make(map[string]*model.StreetRef)
	var order []string

	for _, b := range rows {
		value := strings.TrimSpace(bindingValue(b, "locatedOnStreetP669", "locatedOnStreet"))
		label := strings.TrimSpace(bindingValue(b, "locatedOnStreetP669Label", "locatedOnStreetLabel"))
		wikiURL := strings.TrimSpace(bindingValue(b, "locatedOnStreetP669WikipediaUrl", "locatedOnStreetWikipediaUrl"))
		houseNumber := strings.TrimSpace(bindingValue(b, "houseNumberP670", "houseNumber"))
		if value == "" && label == "" && wikiURL == "" {
			continue
		}

		key := value
		if key == "" {
			key = label
		}
		if key == "" {
			key = wikiURL
		}
		key = strings.ToLower(key)

		existing, ok := byKey[key]
		if !ok {
			byKey[key] = &model.StreetRef{
				LinkedEntity: model.LinkedEntity{Value: value, Label: label, WikipediaURL: wikiURL},
				HouseNumber:  houseNumber,
			}
			order = append(order, key)
			continue
		}
		if existing.Value == "" {
			existing.Value = value
		}
		if existing.Label == "" {
			existing.Label = label
		}
		if existing.WikipediaURL == "" {
			existing.WikipediaURL = wikiURL
		}
		if existing.HouseNumber == "" {
			existing.HouseNumber = houseNumber
		}
	}

	out := make([]model.StreetRef, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// collectAddresses keeps every language variant of the address text,
// deduplicated by text and language.
func collectAddresses(rows []Binding) []model.TextVariant {
	seen := make(map[string]bool)
	var out []model.TextVariant

	for _, b := range rows {
		cell, ok := bindingCell(b, "addressTextP6375", "streetAddressP6375", "addressText")
		if !ok {
			continue
		}
		text := strings.TrimSpace(cell.Value)
		if text == "" {
			continue
		}
		key := strings.ToLower(text) + "|" + strings.ToLower(cell.Lang)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.TextVariant{Text: text, Language: strings.ToLower(cell.Lang)})
	}
	return out
}

// preferredAddress picks the primary address text: exact requested language
// first, then the first variant in document order.
func preferredAddress(variants []model.TextVariant, lang, current string) string {
	if len(variants) == 0 {
		return current
	}
	normalized := strings.ToLower(strings.TrimSpace(lang))
	base := strings.SplitN(normalized, "-", 2)[0]
	for _, v := range variants {
		if v.Language != "" && (v.Language == normalized || v.Language == base) {
			return v.Text
		}
	}
	return variants[0].Text
}
