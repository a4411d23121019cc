package wikidata

import (
	"strconv"
	"strings"
)

// Readers and builders for the claim JSON the action API exchanges. Claims
// are kept as map[string]any since wbgetentities payloads are schemaless.

// SourceMeta describes the provenance attached to created claims as a
// reference block.
type SourceMeta struct {
	URL             string
	Title           string
	TitleLanguage   string
	Author          string
	PublicationDate string
	// PublishedInQID is the P1433 published-in item.
	PublishedInQID string
	// WorkLanguageQID is the P407 language-of-work item.
	WorkLanguageQID string
}

func valueSnak(property, datatype string, value any) map[string]any {
	return map[string]any{
		"snaktype": "value",
		"property": property,
		"datavalue": map[string]any{
			"value": value,
			"type":  datatype,
		},
	}
}

// SourceSnaks builds the reference snak set for SourceMeta. An empty source
// URL yields nil: the URL anchors the reference. Always included alongside
// the URL is a retrieved-on (P813) snak for today.
func SourceSnaks(meta SourceMeta) (map[string]any, error) {
	sourceURL := strings.TrimSpace(meta.URL)
	if sourceURL == "" {
		return nil, nil
	}

	snaks := map[string]any{
		"P854": []any{valueSnak("P854", "string", sourceURL)},
		"P813": []any{valueSnak("P813", "time", TodayValue())},
	}

	if title := strings.TrimSpace(meta.Title); title != "" {
		mono, err := MonolingualValue(title, LanguageCode(meta.TitleLanguage, "en"))
		if err != nil {
			return nil, err
		}
		snaks["P1476"] = []any{valueSnak("P1476", "monolingualtext", mono)}
	}
	if author := strings.TrimSpace(meta.Author); author != "" {
		snaks["P2093"] = []any{valueSnak("P2093", "string", author)}
	}
	if date := strings.TrimSpace(meta.PublicationDate); date != "" {
		tv, err := TimeValue(date)
		if err != nil {
			return nil, err
		}
		snaks["P577"] = []any{valueSnak("P577", "time", tv)}
	}
	if qid := ExtractQID(meta.PublishedInQID); qid != "" {
		ev, err := EntityValue(qid)
		if err != nil {
			return nil, err
		}
		snaks["P1433"] = []any{valueSnak("P1433", "wikibase-entityid", ev)}
	}
	if qid := ExtractQID(meta.WorkLanguageQID); qid != "" {
		ev, err := EntityValue(qid)
		if err != nil {
			return nil, err
		}
		snaks["P407"] = []any{valueSnak("P407", "wikibase-entityid", ev)}
	}

	return snaks, nil
}

// entityIDFromClaimValue extracts the QID from an entity datavalue, which
// carries either an explicit id or a numeric-id.
func entityIDFromClaimValue(value any) string {
	m, ok := value.(map[string]any)
	if !ok {
		return ""
	}
	if id, ok := m["id"].(string); ok && id != "" {
		return strings.ToUpper(id)
	}
	// JSON numbers decode to float64.
	if numericID, ok := m["numeric-id"].(float64); ok && numericID > 0 {
		return "Q" + strconv.Itoa(int(numericID))
	}
	return ""
}

// firstClaimDatavalue returns the first claim's datavalue for a property.
func firstClaimDatavalue(claims map[string]any, property string) any {
	entries, ok := claims[property].([]any)
	if !ok {
		return nil
	}
	for _, entry := range entries {
		claim, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		mainsnak, _ := claim["mainsnak"].(map[string]any)
		datavalue, _ := mainsnak["datavalue"].(map[string]any)
		if v, ok := datavalue["value"]; ok {
			return v
		}
	}
	return nil
}

// claimEntityIDs returns the deduplicated QIDs of a property's claim
// values, in claim order.
func claimEntityIDs(claims map[string]any, property string) []string {
	entries, ok := claims[property].([]any)
	if !ok {
		return nil
	}
	var ids []string
	seen := make(map[string]bool)
	for _, entry := range entries {
		claim, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		mainsnak, _ := claim["mainsnak"].(map[string]any)
		datavalue, _ := mainsnak["datavalue"].(map[string]any)
		id := entityIDFromClaimValue(datavalue["value"])
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// firstClaimString returns the first plain-string claim value for a
// property. Monolingual values are collected and used only when no plain
// string exists, preferring the fallback language order.
func firstClaimString(claims map[string]any, property string, fallbacks []string) string {
	entries, ok := claims[property].([]any)
	if !ok {
		return ""
	}

	type monoCandidate struct {
		language string
		text     string
	}
	var monolingual []monoCandidate

	for _, entry := range entries {
		claim, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		mainsnak, _ := claim["mainsnak"].(map[string]any)
		datavalue, _ := mainsnak["datavalue"].(map[string]any)
		switch v := datavalue["value"].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if text, ok := v["text"].(string); ok {
				monolingual = append(monolingual, monoCandidate{
					language: strings.ToLower(stringValue(v["language"])),
					text:     strings.TrimSpace(text),
				})
			}
		}
	}

	for _, lang := range fallbacks {
		normalized := strings.ToLower(lang)
		for _, candidate := range monolingual {
			if candidate.language == normalized && candidate.text != "" {
				return candidate.text
			}
		}
	}
	for _, candidate := range monolingual {
		if candidate.text != "" {
			return candidate.text
		}
	}
	return ""
}

// entityItemClaims returns the claims of a property whose value is the
// target item.
func entityItemClaims(claims map[string]any, property, targetQID string) []map[string]any {
	normalized := ExtractQID(targetQID)
	if normalized == "" {
		return nil
	}
	entries, ok := claims[property].([]any)
	if !ok {
		return nil
	}
	var matching []map[string]any
	for _, entry := range entries {
		claim, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		mainsnak, _ := claim["mainsnak"].(map[string]any)
		datavalue, _ := mainsnak["datavalue"].(map[string]any)
		if entityIDFromClaimValue(datavalue["value"]) == normalized {
			matching = append(matching, claim)
		}
	}
	return matching
}

// referenceHasStringSnak reports whether a reference snak set carries the
// expected string for a property. An empty expectation always matches.
func referenceHasStringSnak(snaks map[string]any, property, expected string) bool {
	normalized := strings.TrimSpace(expected)
	if normalized == "" {
		return true
	}
	propertySnaks, ok := snaks[property].([]any)
	if !ok {
		return false
	}
	for _, entry := range propertySnaks {
		snak, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		datavalue, _ := snak["datavalue"].(map[string]any)
		if value, ok := datavalue["value"].(string); ok && strings.TrimSpace(value) == normalized {
			return true
		}
	}
	return false
}

// referenceHasEntitySnak reports whether a reference snak set carries the
// expected item for a property. An empty expectation always matches.
func referenceHasEntitySnak(snaks map[string]any, property, expectedQID string) bool {
	normalized := ExtractQID(expectedQID)
	if normalized == "" {
		return true
	}
	propertySnaks, ok := snaks[property].([]any)
	if !ok {
		return false
	}
	for _, entry := range propertySnaks {
		snak, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		datavalue, _ := snak["datavalue"].(map[string]any)
		if entityIDFromClaimValue(datavalue["value"]) == normalized {
			return true
		}
	}
	return false
}

// claimHasMatchingSourceReference reports whether any reference on the
// claim already cites the same source: URL plus, when given, the
// published-in and language-of-work items.
func claimHasMatchingSourceReference(claim map[string]any, meta SourceMeta) bool {
	if strings.TrimSpace(meta.URL) == "" {
		return false
	}
	references, ok := claim["references"].([]any)
	if !ok {
		return false
	}
	for _, entry := range references {
		reference, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		snaks, ok := reference["snaks"].(map[string]any)
		if !ok {
			continue
		}
		if !referenceHasStringSnak(snaks, "P854", meta.URL) {
			continue
		}
		if !referenceHasEntitySnak(snaks, "P1433", meta.PublishedInQID) {
			continue
		}
		if !referenceHasEntitySnak(snaks, "P407", meta.WorkLanguageQID) {
			continue
		}
		return true
	}
	return false
}
