package citoid

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"locex/pkg/cache"
	"locex/pkg/commons"
	"locex/pkg/config"
	"locex/pkg/request"
	"locex/pkg/tracker"
)

func testHTTPClient() *request.Client {
	return request.New(cache.NewMemory(time.Minute), tracker.New(), config.RequestConfig{
		Timeout:          config.Duration(5 * time.Second),
		Retries:          1,
		ProviderInterval: config.Duration(time.Millisecond),
	})
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"  plain  ", "plain"},
		{"A <b>bold</b>\n  title", "A bold title"},
		{"<p>only tags</p>", "only tags"},
		{float64(2019), "2019"},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAuthorText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "Aino Aalto", "Aino Aalto"},
		{"string list", []any{"Aino Aalto", " ", "Eliel Saarinen"}, "Aino Aalto, Eliel Saarinen"},
		{"literal object", []any{map[string]any{"literal": "Alvar Aalto"}}, "Alvar Aalto"},
		{
			"given and family",
			[]any{map[string]any{"given": "Eliel", "family": "Saarinen"}},
			"Saarinen",
		},
		{
			"camel-case name parts joined",
			[]any{map[string]any{"givenName": "Wivi", "familyName": "Lönn"}},
			"Wivi Lönn",
		},
		{
			"dedupe",
			[]any{"Alvar Aalto", map[string]any{"literal": "Alvar Aalto"}},
			"Alvar Aalto",
		},
		{"nil", nil, ""},
		{"unusable entries", []any{float64(1), map[string]any{}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := authorText(tt.in); got != tt.want {
				t.Errorf("authorText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizedPublicationDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"full date", "2021-03-14", "2021-03-14"},
		{"date in prose", "Published on 2021-03-14 in Helsinki", "2021-03-14"},
		{"year and month", "2021-03", "2021-03"},
		{"bare year", "circa 1911", "1911"},
		{"list head", []any{"1952-06-01", "1999"}, "1952-06-01"},
		{"csl raw key", map[string]any{"raw": "1938-10"}, "1938-10"},
		{"csl nested", map[string]any{"date": map[string]any{"value": "1906"}}, "1906"},
		{"no digits", "undated", ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizedPublicationDate(tt.in); got != tt.want {
				t.Errorf("normalizedPublicationDate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchMetadata(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawPath+r.URL.Path, "example.org") {
			t.Errorf("request path = %q", r.URL.String())
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"title": "Vanha <i>kirkko</i>",
			"author": [{"given": "Eliel", "family": "Saarinen"}, "Wivi Lönn"],
			"date": "2020-05-17T10:00:00Z",
			"language": "fi"
		}]`))
	}))
	defer svr.Close()

	c := NewClient(testHTTPClient(), svr.URL+"/")
	meta, err := c.FetchMetadata(context.Background(), "https://example.org/article", "sv")
	if err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}
	if meta.Title != "Vanha kirkko" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Author != "Saarinen, Wivi Lönn" {
		t.Errorf("author = %q", meta.Author)
	}
	if meta.PublicationDate != "2020-05-17" {
		t.Errorf("publication date = %q", meta.PublicationDate)
	}
	if meta.TitleLanguage != "fi" {
		t.Errorf("title language = %q", meta.TitleLanguage)
	}
	if meta.URL != "https://example.org/article" {
		t.Errorf("url = %q", meta.URL)
	}
	if meta.PublishedInQID != "" || meta.WorkLanguageQID != "" {
		t.Errorf("entity fields must stay empty: %+v", meta)
	}
}

func TestFetchMetadataLanguageFallback(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title": "Untitled"}`))
	}))
	defer svr.Close()

	c := NewClient(testHTTPClient(), svr.URL)
	meta, err := c.FetchMetadata(context.Background(), "https://example.org/x", "sv")
	if err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}
	if meta.TitleLanguage != "sv" {
		t.Errorf("title language = %q, want fallback sv", meta.TitleLanguage)
	}
}

func TestFetchMetadataErrors(t *testing.T) {
	t.Run("invalid url", func(t *testing.T) {
		c := NewClient(testHTTPClient(), "http://unused.invalid")
		if _, err := c.FetchMetadata(context.Background(), "ftp://example.org", "fi"); !errors.Is(err, commons.ErrExternal) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("not json", func(t *testing.T) {
		svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>503</html>"))
		}))
		defer svr.Close()
		c := NewClient(testHTTPClient(), svr.URL)
		if _, err := c.FetchMetadata(context.Background(), "https://example.org", "fi"); !errors.Is(err, commons.ErrExternal) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		}))
		defer svr.Close()
		c := NewClient(testHTTPClient(), svr.URL)
		if _, err := c.FetchMetadata(context.Background(), "https://example.org", "fi"); !errors.Is(err, commons.ErrExternal) {
			t.Errorf("error = %v", err)
		}
	})
}
