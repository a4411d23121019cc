package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"locex/pkg/commons"
)

// Writer performs authenticated Wikidata edits for one session. The CSRF
// token is fetched once at construction and reused for every edit.
type Writer struct {
	session   *Session
	csrf      string
	languages LanguagePolicy
}

// NewWriter builds a Writer and eagerly fetches the edit token so a stale
// session fails before any edit is attempted.
func NewWriter(ctx context.Context, session *Session, languages LanguagePolicy) (*Writer, error) {
	csrf, err := session.CSRFToken(ctx)
	if err != nil {
		return nil, err
	}
	return &Writer{session: session, csrf: csrf, languages: languages}, nil
}

func (w *Writer) createClaim(ctx context.Context, entityQID, property string, datavalue any, source SourceMeta, qualifiers map[string]any) (string, error) {
	encoded, err := json.Marshal(datavalue)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	payload, err := w.session.Post(ctx, url.Values{
		"action":   {"wbcreateclaim"},
		"entity":   {entityQID},
		"property": {property},
		"snaktype": {"value"},
		"value":    {string(encoded)},
		"token":    {w.csrf},
	})
	if err != nil {
		return "", err
	}

	claimID := strings.TrimSpace(stringPath(payload, "claim", "id"))
	if claimID == "" {
		return "", fmt.Errorf("%w: API did not return claim id for %s", ErrWrite, property)
	}

	if err := w.setReference(ctx, claimID, source); err != nil {
		return claimID, err
	}
	for qualifierProperty, qualifierValue := range qualifiers {
		if qualifierValue == nil {
			continue
		}
		if s, ok := qualifierValue.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if err := w.setQualifier(ctx, claimID, qualifierProperty, qualifierValue); err != nil {
			return claimID, err
		}
	}
	return claimID, nil
}

// setReference attaches the source reference block to a claim. A SourceMeta
// without a URL is a no-op.
func (w *Writer) setReference(ctx context.Context, claimID string, source SourceMeta) error {
	snaks, err := SourceSnaks(source)
	if err != nil {
		return err
	}
	if snaks == nil {
		return nil
	}
	encoded, err := json.Marshal(snaks)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	_, err = w.session.Post(ctx, url.Values{
		"action":    {"wbsetreference"},
		"statement": {claimID},
		"snaks":     {string(encoded)},
		"token":     {w.csrf},
	})
	return err
}

func (w *Writer) setQualifier(ctx context.Context, claimID, property string, datavalue any) error {
	encoded, err := json.Marshal(datavalue)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	_, err = w.session.Post(ctx, url.Values{
		"action":   {"wbsetqualifier"},
		"claim":    {claimID},
		"property": {property},
		"snaktype": {"value"},
		"value":    {string(encoded)},
		"token":    {w.csrf},
	})
	return err
}

// entityClaims reads the current claims of an item.
func (w *Writer) entityClaims(ctx context.Context, qid string) (map[string]any, error) {
	payload, err := w.session.Get(ctx, url.Values{
		"action": {"wbgetentities"},
		"ids":    {qid},
		"props":  {"claims"},
	})
	if err != nil {
		return nil, err
	}
	entities, _ := payload["entities"].(map[string]any)
	entity, _ := entities[qid].(map[string]any)
	claims, _ := entity["claims"].(map[string]any)
	return claims, nil
}

// MembershipResult reports the outcome of EnsureCollectionMembership.
type MembershipResult struct {
	QID           string `json:"qid"`
	URI           string `json:"uri"`
	AlreadyListed bool   `json:"already_listed"`
}

// EnsureCollectionMembership makes sure the item carries an on-focus-list
// (P5008) claim for the collection. The operation is idempotent: an
// existing membership claim is never duplicated. When a source is given
// and the membership already exists, the source is attached as a new
// reference to each membership claim that does not already cite it.
// reasonQID, when set, lands as a P958 qualifier on a newly created claim.
func (w *Writer) EnsureCollectionMembership(ctx context.Context, entityID, collectionQID string, source SourceMeta, reasonQID string) (*MembershipResult, error) {
	entityQID := ExtractQID(entityID)
	if entityQID == "" {
		return nil, fmt.Errorf("%w: a valid item id is required", ErrWrite)
	}
	normalizedCollection := ExtractQID(collectionQID)
	if normalizedCollection == "" {
		return nil, fmt.Errorf("%w: a valid collection item id is required", ErrWrite)
	}

	claims, err := w.entityClaims(ctx, entityQID)
	if err != nil {
		return nil, err
	}

	matching := entityItemClaims(claims, "P5008", normalizedCollection)
	alreadyListed := len(matching) > 0

	if !alreadyListed {
		datavalue, err := EntityValue(normalizedCollection)
		if err != nil {
			return nil, err
		}
		qualifiers := map[string]any{}
		if reason := ExtractQID(reasonQID); reason != "" {
			ev, err := EntityValue(reason)
			if err != nil {
				return nil, err
			}
			qualifiers["P958"] = ev
		}
		if _, err := w.createClaim(ctx, entityQID, "P5008", datavalue, source, qualifiers); err != nil {
			return nil, err
		}
	} else if strings.TrimSpace(source.URL) != "" {
		for _, claim := range matching {
			claimID := strings.TrimSpace(stringValue(claim["id"]))
			if claimID == "" {
				continue
			}
			if claimHasMatchingSourceReference(claim, source) {
				continue
			}
			if err := w.setReference(ctx, claimID, source); err != nil {
				return nil, err
			}
		}
	}

	return &MembershipResult{
		QID:           entityQID,
		URI:           "https://www.wikidata.org/entity/" + entityQID,
		AlreadyListed: alreadyListed,
	}, nil
}

// BuildingInput carries the fields for a new building item. Label,
// Description, InstanceOfQID, CountryQID, MunicipalityQID, and coordinates
// are required, everything else is optional.
type BuildingInput struct {
	Label               string
	LabelLanguage       string
	Description         string
	DescriptionLanguage string

	InstanceOfQID   string
	CountryQID      string
	MunicipalityQID string
	Latitude        float64
	Longitude       float64

	ArchitectQID       string
	ArchitectSourceURL string

	HeritageQID       string
	HeritageSourceURL string

	StyleQID      string
	StateOfUseQID string
	StreetQID     string
	HouseNumber   string

	Inception          string
	InceptionSourceURL string
	ClosureDate        string
	ClosureSourceURL   string

	AddressText     string
	AddressLanguage string
	PostalCode      string
	CommonsCategory string

	RouteInstruction         string
	RouteInstructionLanguage string
}

// CreatedClaim is one claim written during item creation.
type CreatedClaim struct {
	Property string `json:"property"`
	ClaimID  string `json:"claim_id"`
}

// CreateResult reports a building creation. When Err is non-nil the item
// exists but later claims failed; Claims lists what was written so the
// caller can surface a partial success instead of an opaque failure.
type CreateResult struct {
	QID           string         `json:"qid"`
	URI           string         `json:"uri"`
	CollectionQID string         `json:"added_to_collection_qid"`
	Claims        []CreatedClaim `json:"claims"`
	Err           error          `json:"-"`
}

type claimSpec struct {
	property  string
	datavalue any
	source    SourceMeta
}

// CreateBuilding creates a new item with labels and descriptions, then
// writes its claims in a fixed order: P31, P17, P131, P625, P5008, then
// the optional properties. A claim failure after the item exists returns a
// partial CreateResult rather than an error, so the caller knows the item
// id and which claims landed.
func (w *Writer) CreateBuilding(ctx context.Context, input BuildingInput, lang, collectionQID string) (*CreateResult, error) {
	label := strings.TrimSpace(input.Label)
	description := strings.TrimSpace(input.Description)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", ErrWrite)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrWrite)
	}

	instanceOf := ExtractQID(input.InstanceOfQID)
	country := ExtractQID(input.CountryQID)
	municipality := ExtractQID(input.MunicipalityQID)
	if instanceOf == "" || country == "" || municipality == "" {
		return nil, fmt.Errorf("%w: P31, P17 and P131 are required", ErrWrite)
	}

	coordValue, err := CoordinateValue(input.Latitude, input.Longitude)
	if err != nil {
		return nil, err
	}

	normalizedCollection := ExtractQID(collectionQID)
	if normalizedCollection == "" {
		return nil, fmt.Errorf("%w: a valid collection item id is required", ErrWrite)
	}

	editLanguage := w.languages.QueryLanguage(lang)
	labelLanguage := LanguageCode(input.LabelLanguage, editLanguage)
	descriptionLanguage := LanguageCode(input.DescriptionLanguage, editLanguage)

	specs, err := w.buildingClaims(input, instanceOf, country, municipality, coordValue, normalizedCollection, editLanguage)
	if err != nil {
		return nil, err
	}

	entityData, err := json.Marshal(map[string]any{
		"labels": map[string]any{
			labelLanguage: map[string]any{"language": labelLanguage, "value": label},
		},
		"descriptions": map[string]any{
			descriptionLanguage: map[string]any{"language": descriptionLanguage, "value": description},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	payload, err := w.session.Post(ctx, url.Values{
		"action": {"wbeditentity"},
		"new":    {"item"},
		"token":  {w.csrf},
		"data":   {string(entityData)},
	})
	if err != nil {
		return nil, err
	}
	createdQID := ExtractQID(stringPath(payload, "entity", "id"))
	if createdQID == "" {
		return nil, fmt.Errorf("%w: API did not return created item id", ErrWrite)
	}

	result := &CreateResult{
		QID:           createdQID,
		URI:           "https://www.wikidata.org/entity/" + createdQID,
		CollectionQID: normalizedCollection,
	}
	for _, spec := range specs {
		claimID, err := w.createClaim(ctx, createdQID, spec.property, spec.datavalue, spec.source, nil)
		if claimID != "" {
			result.Claims = append(result.Claims, CreatedClaim{Property: spec.property, ClaimID: claimID})
		}
		if err != nil {
			result.Err = fmt.Errorf("claim %s failed: %w", spec.property, err)
			return result, nil
		}
	}
	return result, nil
}

func (w *Writer) buildingClaims(input BuildingInput, instanceOf, country, municipality string, coordValue any, collection, editLanguage string) ([]claimSpec, error) {
	var specs []claimSpec

	appendEntity := func(property, qid, sourceURL string) error {
		datavalue, err := EntityValue(qid)
		if err != nil {
			return err
		}
		specs = append(specs, claimSpec{property: property, datavalue: datavalue, source: SourceMeta{URL: sourceURL}})
		return nil
	}

	if err := appendEntity("P31", instanceOf, ""); err != nil {
		return nil, err
	}
	if err := appendEntity("P17", country, ""); err != nil {
		return nil, err
	}
	if err := appendEntity("P131", municipality, ""); err != nil {
		return nil, err
	}
	specs = append(specs, claimSpec{property: "P625", datavalue: coordValue})
	if err := appendEntity("P5008", collection, ""); err != nil {
		return nil, err
	}

	if qid := ExtractQID(input.ArchitectQID); qid != "" {
		if err := appendEntity("P84", qid, strings.TrimSpace(input.ArchitectSourceURL)); err != nil {
			return nil, err
		}
	}
	if qid := ExtractQID(input.HeritageQID); qid != "" {
		if err := appendEntity("P1435", qid, strings.TrimSpace(input.HeritageSourceURL)); err != nil {
			return nil, err
		}
	}
	if qid := ExtractQID(input.StyleQID); qid != "" {
		if err := appendEntity("P149", qid, ""); err != nil {
			return nil, err
		}
	}
	if qid := ExtractQID(input.StateOfUseQID); qid != "" {
		if err := appendEntity("P5817", qid, ""); err != nil {
			return nil, err
		}
	}
	if qid := ExtractQID(input.StreetQID); qid != "" {
		if err := appendEntity("P669", qid, ""); err != nil {
			return nil, err
		}
	}

	if inception := strings.TrimSpace(input.Inception); inception != "" {
		datavalue, err := TimeValue(inception)
		if err != nil {
			return nil, err
		}
		specs = append(specs, claimSpec{property: "P571", datavalue: datavalue, source: SourceMeta{URL: strings.TrimSpace(input.InceptionSourceURL)}})
	}
	if closure := strings.TrimSpace(input.ClosureDate); closure != "" {
		datavalue, err := TimeValue(closure)
		if err != nil {
			return nil, err
		}
		specs = append(specs, claimSpec{property: "P3999", datavalue: datavalue, source: SourceMeta{URL: strings.TrimSpace(input.ClosureSourceURL)}})
	}

	if addressText := strings.TrimSpace(input.AddressText); addressText != "" {
		datavalue, err := MonolingualValue(addressText, LanguageCode(input.AddressLanguage, editLanguage))
		if err != nil {
			return nil, err
		}
		specs = append(specs, claimSpec{property: "P6375", datavalue: datavalue})
	}
	if postalCode := strings.TrimSpace(input.PostalCode); postalCode != "" {
		specs = append(specs, claimSpec{property: "P281", datavalue: postalCode})
	}
	if category := commons.NormalizeCategory(input.CommonsCategory); category != "" {
		specs = append(specs, claimSpec{property: "P373", datavalue: category})
	}
	if houseNumber := strings.TrimSpace(input.HouseNumber); houseNumber != "" {
		specs = append(specs, claimSpec{property: "P670", datavalue: houseNumber})
	}
	if route := strings.TrimSpace(input.RouteInstruction); route != "" {
		datavalue, err := MonolingualValue(route, LanguageCode(input.RouteInstructionLanguage, editLanguage))
		if err != nil {
			return nil, err
		}
		specs = append(specs, claimSpec{property: "P2795", datavalue: datavalue})
	}

	return specs, nil
}
