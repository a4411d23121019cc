package commons

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"locex/pkg/model"
	"locex/pkg/request"
)

// APIURL is the Commons action API endpoint.
const APIURL = "https://commons.wikimedia.org/w/api.php"

// Client performs unauthenticated Commons reads: category prefix search and
// subcategory listing.
type Client struct {
	http   *request.Client
	apiURL string
}

// NewClient wraps the shared HTTP client for the Commons API.
func NewClient(httpClient *request.Client, apiURL string) *Client {
	if apiURL == "" {
		apiURL = APIURL
	}
	return &Client{http: httpClient, apiURL: apiURL}
}

func (c *Client) jsonGet(ctx context.Context, params url.Values) (map[string]any, error) {
	params.Set("format", "json")
	body, err := c.http.Get(ctx, c.apiURL+"?"+params.Encode(), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternal, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		preview := strings.Join(strings.Fields(string(body)), " ")
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, fmt.Errorf("%w: service did not return JSON: %s", ErrExternal, preview)
	}
	return payload, nil
}

// CategoryHit is one category prefix-search result.
type CategoryHit struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// SearchCategories lists categories by name prefix. The limit is clamped to
// 1..20; an empty prefix returns no hits without a request.
func (c *Client) SearchCategories(ctx context.Context, prefix string, limit int) ([]CategoryHit, error) {
	term := strings.TrimSpace(prefix)
	if term == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 20 {
		limit = 20
	}

	payload, err := c.jsonGet(ctx, url.Values{
		"action":   {"query"},
		"list":     {"allcategories"},
		"acprefix": {term},
		"aclimit":  {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}

	query, _ := payload["query"].(map[string]any)
	categories, _ := query["allcategories"].([]any)

	var results []CategoryHit
	for _, entry := range categories {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := item["*"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		results = append(results, CategoryHit{
			Name:  name,
			Title: "Category:" + name,
			URI:   CategoryURL(name),
		})
	}
	return results, nil
}

// SubcategoryChildren lists the direct subcategories of a category as child
// references, paging with cmcontinue until the limit is reached. Names are
// deduplicated case-insensitively.
func (c *Client) SubcategoryChildren(ctx context.Context, category string, limit int) ([]model.ChildRef, error) {
	parent := NormalizeCategory(category)
	if parent == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	parentTitle := strings.ReplaceAll("Category:"+parent, " ", "_")

	seen := make(map[string]bool)
	var results []model.ChildRef
	cmcontinue := ""

	for len(results) < limit {
		params := url.Values{
			"action":  {"query"},
			"list":    {"categorymembers"},
			"cmtitle": {parentTitle},
			"cmtype":  {"subcat"},
			"cmlimit": {strconv.Itoa(min(500, limit-len(results)))},
		}
		if cmcontinue != "" {
			params.Set("cmcontinue", cmcontinue)
		}

		payload, err := c.jsonGet(ctx, params)
		if err != nil {
			return nil, err
		}

		query, _ := payload["query"].(map[string]any)
		members, _ := query["categorymembers"].([]any)

		for _, entry := range members {
			item, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			title, _ := item["title"].(string)
			name := NormalizeCategory(title)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true

			uri := CategoryURL(name)
			results = append(results, model.ChildRef{
				ID:              model.EncodeLocationID(uri),
				URI:             uri,
				Name:            name,
				Source:          "commons",
				CommonsCategory: name,
			})
			if len(results) >= limit {
				break
			}
		}
		if len(results) >= limit {
			break
		}

		continuePayload, _ := payload["continue"].(map[string]any)
		next, _ := continuePayload["cmcontinue"].(string)
		if next == "" {
			break
		}
		cmcontinue = next
	}
	return results, nil
}
