package imagecount

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
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

func TestParsePetscanCount(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    int
		wantErr bool
	}{
		{
			name:    "top-level n",
			payload: map[string]any{"n": float64(17)},
			want:    17,
		},
		{
			name:    "top-level string count",
			payload: map[string]any{"count": "21"},
			want:    21,
		},
		{
			name: "section explicit counts beat page lists",
			payload: map[string]any{"*": []any{
				map[string]any{"a": map[string]any{
					"n": float64(10),
					"*": []any{map[string]any{}, map[string]any{}},
				}},
				map[string]any{"a": map[string]any{"count": float64(5)}},
			}},
			want: 15,
		},
		{
			name: "page lists counted when no explicit count",
			payload: map[string]any{"*": []any{
				map[string]any{"a": map[string]any{
					"*": []any{map[string]any{}, map[string]any{}, map[string]any{}},
				}},
			}},
			want: 3,
		},
		{
			name: "section-level count without article bucket",
			payload: map[string]any{"*": []any{
				map[string]any{"pages": float64(9)},
			}},
			want: 9,
		},
		{
			name: "sections win over top-level",
			payload: map[string]any{
				"n": float64(999),
				"*": []any{map[string]any{"a": map[string]any{"n": float64(4)}}},
			},
			want: 4,
		},
		{
			name: "top-level used when sections are empty",
			payload: map[string]any{
				"total": float64(6),
				"*":     []any{map[string]any{"a": map[string]any{}}},
			},
			want: 6,
		},
		{
			name:    "negative clamps to zero",
			payload: map[string]any{"n": float64(-3)},
			want:    0,
		},
		{
			name:    "empty payload",
			payload: map[string]any{},
			wantErr: true,
		},
		{
			name:    "unusable sections and no top-level",
			payload: map[string]any{"*": []any{map[string]any{"a": map[string]any{}}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePetscanCount(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, commons.ErrExternal) {
					t.Errorf("error = %v, want ErrExternal", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePetscanCount failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("count = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPetscanFetcher(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("categories"); got != "Suomenlinna_Church" {
			t.Errorf("categories = %q", got)
		}
		if q.Get("ns[6]") != "1" || q.Get("doit") != "1" {
			t.Errorf("namespace params = %v", q)
		}
		if q.Get("output_compatability") != "catscan" {
			t.Errorf("output_compatability = %q", q.Get("output_compatability"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"*": [{"a": {"n": 23}}]}`))
	}))
	defer svr.Close()

	fetch := NewPetscanFetcher(testHTTPClient(), svr.URL)
	count, err := fetch(context.Background(), "Category:Suomenlinna Church")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if count != 23 {
		t.Errorf("count = %d, want 23", count)
	}
}

func TestPetscanFetcherBadJSON(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer svr.Close()

	fetch := NewPetscanFetcher(testHTTPClient(), svr.URL)
	if _, err := fetch(context.Background(), "Anything"); !errors.Is(err, commons.ErrExternal) {
		t.Errorf("error = %v, want ErrExternal", err)
	}
}

func TestPetscanFetcherEmptyCategory(t *testing.T) {
	fetch := NewPetscanFetcher(testHTTPClient(), "http://unused.invalid")
	count, err := fetch(context.Background(), "  ")
	if err != nil || count != 0 {
		t.Errorf("blank category = (%d, %v), want (0, nil)", count, err)
	}
}
