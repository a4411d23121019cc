package imagecount

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"locex/pkg/commons"
	"locex/pkg/request"
)

const petscanDepth = 0

// parseNonNegativeInt accepts JSON numbers and numeric strings. Negative
// values clamp to zero; anything else is a miss.
func parseNonNegativeInt(value any) (int, bool) {
	var parsed int
	switch v := value.(type) {
	case float64:
		parsed = int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		parsed = n
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		parsed = int(n)
	default:
		return 0, false
	}
	if parsed < 0 {
		return 0, true
	}
	return parsed, true
}

func countFromKeys(section map[string]any) (int, bool) {
	for _, key := range []string{"n", "count", "total", "pages"} {
		if n, ok := parseNonNegativeInt(section[key]); ok {
			return n, true
		}
	}
	return 0, false
}

// ParsePetscanCount extracts the file count from a PetScan result. PetScan
// has shipped several shapes: a top-level count, per-section counts, and
// per-section page lists under the article bucket "a". Explicit counts win
// over page-list lengths, which win over the top-level count.
func ParsePetscanCount(payload map[string]any) (int, error) {
	topLevel, hasTopLevel := countFromKeys(payload)

	sections, ok := payload["*"].([]any)
	if !ok {
		if hasTopLevel {
			return topLevel, nil
		}
		return 0, fmt.Errorf("%w: PetScan payload was missing results", commons.ErrExternal)
	}

	explicitTotal := 0
	foundExplicit := false
	pageTotal := 0
	foundPageLists := false

	for _, entry := range sections {
		section, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		if bucket, ok := section["a"].(map[string]any); ok {
			if n, ok := countFromKeys(bucket); ok {
				explicitTotal += n
				foundExplicit = true
			}
			if pages, ok := bucket["*"].([]any); ok {
				pageTotal += len(pages)
				foundPageLists = true
				continue
			}
		}

		if n, ok := countFromKeys(section); ok {
			explicitTotal += n
			foundExplicit = true
		}
	}

	switch {
	case foundExplicit:
		return explicitTotal, nil
	case foundPageLists:
		return pageTotal, nil
	case hasTopLevel:
		return topLevel, nil
	}
	return 0, fmt.Errorf("%w: PetScan payload did not include image count fields", commons.ErrExternal)
}

// NewPetscanFetcher counts files in a Commons category via PetScan
// (file namespace only, catscan-compatible output).
func NewPetscanFetcher(httpClient *request.Client, baseURL string) Fetcher {
	return func(ctx context.Context, category string) (int, error) {
		normalized := commons.NormalizeCategory(category)
		if normalized == "" {
			return 0, nil
		}

		params := url.Values{
			"project":              {"wikimedia"},
			"language":             {"commons"},
			"categories":           {commons.PetscanCategoryValue(normalized)},
			"depth":                {strconv.Itoa(petscanDepth)},
			"format":               {"json"},
			"output_compatability": {"catscan"},
			"search_max_results":   {"500"},
			"ns[6]":                {"1"},
			"doit":                 {"1"},
		}
		body, err := httpClient.Get(ctx, baseURL+"?"+params.Encode(), "")
		if err != nil {
			return 0, fmt.Errorf("%w: %v", commons.ErrExternal, err)
		}
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			return 0, fmt.Errorf("%w: PetScan did not return JSON", commons.ErrExternal)
		}
		return ParsePetscanCount(payload)
	}
}
