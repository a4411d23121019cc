package wikidata

import (
	"regexp"
	"sort"
	"strings"
)

var (
	qidRe      = regexp.MustCompile(`(?i)(Q\d+)`)
	langCodeRe = regexp.MustCompile(`^[a-z]{2,12}$`)
	entityURIRe = regexp.MustCompile(`(?i)^https?://www\.wikidata\.org/entity/(Q\d+)$`)
	bareQIDRe   = regexp.MustCompile(`(?i)^(Q\d+)$`)
)

// LanguagePolicy holds the supported UI language set and its default.
type LanguagePolicy struct {
	Supported []string
	Default   string
}

// Fallbacks builds the ordered label-language chain for a requested tag:
// normalized tag, its base language, the site default, then "en", each kept
// only if supported, deduplicated. includeMul appends the "mul" marker.
func (p LanguagePolicy) Fallbacks(lang string, includeMul bool) []string {
	allowed := make(map[string]bool, len(p.Supported))
	for _, code := range p.Supported {
		allowed[strings.ToLower(code)] = true
	}

	var candidates []string
	if lang != "" {
		normalized := strings.ReplaceAll(strings.ToLower(lang), "_", "-")
		if allowed[normalized] {
			candidates = append(candidates, normalized)
		}
		base := strings.SplitN(normalized, "-", 2)[0]
		if allowed[base] {
			candidates = append(candidates, base)
		}
	}
	def := strings.ToLower(p.Default)
	if allowed[def] {
		candidates = append(candidates, def)
	}
	if allowed["en"] {
		candidates = append(candidates, "en")
	}
	if includeMul {
		candidates = append(candidates, "mul")
	}

	var unique []string
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}
	return unique
}

// QueryLanguage picks the language used for one query attempt, defaulting
// to "en" when the chain is empty.
func (p LanguagePolicy) QueryLanguage(lang string) string {
	fallbacks := p.Fallbacks(lang, false)
	if len(fallbacks) == 0 {
		return "en"
	}
	return fallbacks[0]
}

// LabelLanguages builds the comma list for the wikibase:label service:
// requested tag, its base language, "en", "mul". Unlike Fallbacks it is not
// filtered to the supported set since the label service accepts any tag.
func LabelLanguages(preferred string) string {
	var candidates []string
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(preferred)), "_", "-")
	if normalized != "" {
		candidates = append(candidates, normalized)
		if base := strings.SplitN(normalized, "-", 2)[0]; base != "" {
			candidates = append(candidates, base)
		}
	}
	candidates = append(candidates, "en", "mul")

	var unique []string
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c != "" && !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}
	return strings.Join(unique, ",")
}

// WikipediaSiteURL returns the Wikipedia site for sitelink joins, derived
// from the base language of the preferred tag.
func WikipediaSiteURL(preferred string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(preferred)), "_", "-")
	code := "en"
	if normalized != "" {
		code = strings.SplitN(normalized, "-", 2)[0]
	}
	if !langCodeRe.MatchString(code) {
		code = "en"
	}
	return "https://" + code + ".wikipedia.org/"
}

// LanguageCode validates a Wikibase language code, falling back when the
// value does not look like one.
func LanguageCode(value, fallback string) string {
	normalizedFallback := strings.ToLower(strings.TrimSpace(fallback))
	if !langCodeRe.MatchString(normalizedFallback) {
		normalizedFallback = "en"
	}
	normalized := strings.ToLower(strings.TrimSpace(value))
	if langCodeRe.MatchString(normalized) {
		return normalized
	}
	return normalizedFallback
}

// ExtractQID pulls the first Qnnn identifier out of a string, uppercased.
// Returns "" when none is present.
func ExtractQID(value string) string {
	m := qidRe.FindString(value)
	if m == "" {
		return ""
	}
	return strings.ToUpper(m)
}

// EntityURI returns the canonical entity URI for a QID.
func EntityURI(qid string) string {
	return "http://www.wikidata.org/entity/" + qid
}

// SubjectURI normalizes a detail-query subject: bare QIDs and https entity
// URLs become the canonical http entity URI, anything else passes through.
func SubjectURI(uri string) string {
	value := strings.TrimSpace(uri)
	if value == "" {
		return value
	}
	if m := entityURIRe.FindStringSubmatch(value); m != nil {
		return EntityURI(strings.ToUpper(m[1]))
	}
	if m := bareQIDRe.FindStringSubmatch(value); m != nil {
		return EntityURI(strings.ToUpper(m[1]))
	}
	return value
}

// NormalizeQIDs extracts, deduplicates, and sorts QIDs from raw values.
func NormalizeQIDs(values []string) []string {
	seen := make(map[string]bool)
	for _, v := range values {
		if qid := ExtractQID(v); qid != "" {
			seen[qid] = true
		}
	}
	out := make([]string, 0, len(seen))
	for qid := range seen {
		out = append(out, qid)
	}
	sort.Strings(out)
	return out
}
