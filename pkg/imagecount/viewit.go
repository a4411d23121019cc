package imagecount

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"locex/pkg/commons"
	"locex/pkg/request"
)

// ViewItURL is the user-facing gallery link for an item.
func ViewItURL(qid string) string {
	normalized := strings.ToUpper(strings.TrimSpace(qid))
	if normalized == "" {
		return ""
	}
	return "https://view-it.toolforge.org/?q=" + url.QueryEscape(normalized)
}

// NewViewItFetcher counts cross-referenced images for an item via the
// View-it API. An explicit total wins over counting the result list.
func NewViewItFetcher(httpClient *request.Client, baseURL string) Fetcher {
	return func(ctx context.Context, qid string) (int, error) {
		normalized := strings.ToUpper(strings.TrimSpace(qid))
		if normalized == "" {
			return 0, nil
		}

		body, err := httpClient.Get(ctx, strings.TrimRight(baseURL, "/")+"/"+url.PathEscape(normalized), "")
		if err != nil {
			return 0, fmt.Errorf("%w: %v", commons.ErrExternal, err)
		}
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			return 0, fmt.Errorf("%w: View-it did not return JSON", commons.ErrExternal)
		}

		if total, ok := parseNonNegativeInt(payload["total"]); ok {
			return total, nil
		}
		if results, ok := payload["results"].([]any); ok {
			return len(results), nil
		}
		return 0, fmt.Errorf("%w: View-it payload did not include total image count", commons.ErrExternal)
	}
}
