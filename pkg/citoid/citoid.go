// Package citoid fetches citation metadata for a URL from the Citoid
// REST API and condenses it into source fields for Wikidata references.
package citoid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"locex/pkg/commons"
	"locex/pkg/request"
	"locex/pkg/wikidata"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Most specific first. Citoid date fields range from full ISO dates
	// to bare years, often with surrounding prose.
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`\d{4}-\d{2}`),
		regexp.MustCompile(`\d{4}`),
	}
)

// cleanText strips markup tags and collapses whitespace.
func cleanText(value any) string {
	if value == nil {
		return ""
	}
	text := strings.TrimSpace(stringify(value))
	if text == "" {
		return ""
	}
	text = tagRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

// authorText flattens Citoid's author field, which may be a string, a
// CSL name object, or a list of either. Duplicate names collapse.
func authorText(value any) string {
	rawItems, ok := value.([]any)
	if !ok {
		rawItems = []any{value}
	}

	var parts []string
	for _, rawItem := range rawItems {
		if s, ok := rawItem.(string); ok {
			if normalized := cleanText(s); normalized != "" {
				parts = append(parts, normalized)
			}
			continue
		}
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}

		literal := firstClean(item, "literal", "name", "family")
		if literal == "" {
			given := firstClean(item, "given", "givenName")
			family := firstClean(item, "family", "familyName")
			literal = cleanText(strings.TrimSpace(given + " " + family))
		}
		if literal != "" {
			parts = append(parts, literal)
		}
	}

	var unique []string
	seen := make(map[string]bool)
	for _, part := range parts {
		if !seen[part] {
			seen[part] = true
			unique = append(unique, part)
		}
	}
	return strings.Join(unique, ", ")
}

func firstClean(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if text := cleanText(item[key]); text != "" {
			return text
		}
	}
	return ""
}

// normalizedPublicationDate reduces a Citoid date value to YYYY-MM-DD,
// YYYY-MM, or YYYY. Lists use their first element; CSL date objects are
// searched under their usual keys.
func normalizedPublicationDate(value any) string {
	if list, ok := value.([]any); ok {
		if len(list) == 0 {
			return ""
		}
		return normalizedPublicationDate(list[0])
	}
	if item, ok := value.(map[string]any); ok {
		for _, key := range []string{"raw", "literal", "value", "date"} {
			if normalized := normalizedPublicationDate(item[key]); normalized != "" {
				return normalized
			}
		}
		return ""
	}

	raw := cleanText(value)
	if raw == "" {
		return ""
	}
	for _, pattern := range datePatterns {
		if match := pattern.FindString(raw); match != "" {
			return match
		}
	}
	return ""
}

// firstItem accepts Citoid's dict-or-list response shape.
func firstItem(payload any) map[string]any {
	if item, ok := payload.(map[string]any); ok {
		return item
	}
	if list, ok := payload.([]any); ok {
		for _, entry := range list {
			if item, ok := entry.(map[string]any); ok {
				return item
			}
		}
	}
	return nil
}

// Client queries one Citoid endpoint.
type Client struct {
	http    *request.Client
	baseURL string
}

func NewClient(httpClient *request.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// FetchMetadata resolves citation fields for sourceURL. lang is the
// preferred fallback language when Citoid does not report one.
func (c *Client) FetchMetadata(ctx context.Context, sourceURL, lang string) (*wikidata.SourceMeta, error) {
	normalizedURL := strings.TrimSpace(sourceURL)
	if !strings.HasPrefix(normalizedURL, "http://") && !strings.HasPrefix(normalizedURL, "https://") {
		return nil, fmt.Errorf("%w: a valid source URL is required", commons.ErrExternal)
	}

	body, err := c.http.Get(ctx, c.baseURL+"/"+url.QueryEscape(normalizedURL), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", commons.ErrExternal, err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: Citoid did not return JSON", commons.ErrExternal)
	}
	item := firstItem(payload)
	if len(item) == 0 {
		return nil, fmt.Errorf("%w: Citoid did not return metadata for this URL", commons.ErrExternal)
	}

	title := firstClean(item, "title", "headline")
	var publicationDate string
	for _, key := range []string{"date", "issued", "published", "publication_date"} {
		if publicationDate = normalizedPublicationDate(item[key]); publicationDate != "" {
			break
		}
	}
	titleLanguage := wikidata.LanguageCode(
		firstClean(item, "language", "lang"),
		wikidata.LanguageCode(lang, "en"),
	)

	return &wikidata.SourceMeta{
		URL:             normalizedURL,
		Title:           title,
		TitleLanguage:   titleLanguage,
		Author:          authorText(item["author"]),
		PublicationDate: publicationDate,
	}, nil
}
