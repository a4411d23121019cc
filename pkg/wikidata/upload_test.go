package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type uploadStub struct {
	t           *testing.T
	actions     []string
	failDepicts map[string]bool
	nextID      int
}

func (s *uploadStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			if err := r.ParseForm(); err != nil {
				s.t.Fatalf("ParseForm failed: %v", err)
			}
		}
		action := r.Form.Get("action")
		respond := func(payload any) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(payload)
		}

		switch action {
		case "query":
			if r.Form.Get("meta") == "tokens" {
				respond(map[string]any{"query": map[string]any{"tokens": map[string]any{"csrftoken": "tok"}}})
				return
			}
			respond(map[string]any{"query": map[string]any{"pages": map[string]any{
				"98765": map[string]any{"pageid": float64(98765), "title": r.Form.Get("titles")},
			}}})
			return
		case "upload":
			s.actions = append(s.actions, "upload:"+r.Form.Get("filename"))
			if !strings.Contains(r.Form.Get("text"), "{{int:filedesc}}") {
				s.t.Error("upload missing wikitext")
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				s.t.Errorf("missing file part: %v", err)
			} else {
				file.Close()
			}
			respond(map[string]any{"upload": map[string]any{"result": "Success", "filename": r.Form.Get("filename")}})
			return
		case "wbsetlabel":
			s.actions = append(s.actions, "caption:"+r.Form.Get("language"))
			respond(map[string]any{"success": 1})
			return
		case "wbcreateclaim":
			property := r.Form.Get("property")
			record := property
			if property == propDepicts {
				var v map[string]any
				_ = json.Unmarshal([]byte(r.Form.Get("value")), &v)
				record = fmt.Sprintf("%s:Q%v", property, int(v["numeric-id"].(float64)))
				if s.failDepicts[record] {
					s.actions = append(s.actions, record+":fail")
					respond(map[string]any{"error": map[string]any{"code": "failed-save", "info": "stub"}})
					return
				}
			}
			s.actions = append(s.actions, record)
			s.nextID++
			respond(map[string]any{"claim": map[string]any{"id": fmt.Sprintf("M98765$%d", s.nextID)}})
			return
		case "wbsetqualifier":
			s.actions = append(s.actions, "qualifier:"+r.Form.Get("property"))
			respond(map[string]any{"success": 1})
			return
		}
		s.t.Errorf("unexpected action %q", action)
		respond(map[string]any{"error": map[string]any{"code": "unknown-action", "info": action}})
	}
}

func testUploader(t *testing.T, stub *uploadStub) *CommonsUploader {
	t.Helper()
	svr := httptest.NewServer(stub.handler())
	t.Cleanup(svr.Close)

	session, err := NewSession(svr.URL, Credentials{
		ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessSecret: "as",
	}, "test-agent", 5*time.Second)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	uploader, err := NewCommonsUploader(context.Background(), session)
	if err != nil {
		t.Fatalf("NewCommonsUploader failed: %v", err)
	}
	return uploader
}

func validUploadInput() UploadInput {
	heading := 173.4
	return UploadInput{
		Filename:        "Testitalo 2026.jpg",
		File:            strings.NewReader("not really a jpeg"),
		Caption:         "Testitalo etelästä",
		CaptionLanguage: "fi",
		Latitude:        60.17,
		Longitude:       24.94,
		Heading:         &heading,
		Depicts:         []string{"Q42", "Q7"},
		WikidataItem:    "Q42",
	}
}

func TestUpload(t *testing.T) {
	stub := &uploadStub{t: t}
	u := testUploader(t, stub)

	result, err := u.Upload(context.Background(), validUploadInput())
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if result.MediaID != "M98765" {
		t.Errorf("media id = %q", result.MediaID)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("warnings = %v", result.Warnings)
	}
	if !strings.Contains(result.FileURL, "Special:FilePath/Testitalo_2026.jpg") {
		t.Errorf("file url = %q", result.FileURL)
	}

	want := []string{
		"upload:Testitalo 2026.jpg",
		"caption:fi",
		propPointOfView,
		"qualifier:" + propHeading,
		propDepicts + ":Q42",
		propDepicts + ":Q7",
	}
	if len(stub.actions) != len(want) {
		t.Fatalf("actions = %v", stub.actions)
	}
	for i, action := range want {
		if stub.actions[i] != action {
			t.Errorf("action[%d] = %q, want %q", i, stub.actions[i], action)
		}
	}
}

func TestUploadDepictsContinueOnError(t *testing.T) {
	stub := &uploadStub{t: t, failDepicts: map[string]bool{propDepicts + ":Q42": true}}
	u := testUploader(t, stub)

	result, err := u.Upload(context.Background(), validUploadInput())
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "Q42") {
		t.Errorf("warnings = %v", result.Warnings)
	}
	// Q7 must still have been attempted after Q42 failed.
	joined := strings.Join(stub.actions, ",")
	if !strings.Contains(joined, propDepicts+":Q7") {
		t.Errorf("actions = %v", stub.actions)
	}
}

func TestUploadValidation(t *testing.T) {
	stub := &uploadStub{t: t}
	u := testUploader(t, stub)

	tests := []struct {
		name   string
		mutate func(*UploadInput)
	}{
		{"empty filename", func(in *UploadInput) { in.Filename = "  " }},
		{"colon in filename", func(in *UploadInput) { in.Filename = "File:x.jpg" }},
		{"missing file", func(in *UploadInput) { in.File = nil }},
		{"bad license", func(in *UploadInput) { in.License = "All rights reserved" }},
		{"bad coordinates", func(in *UploadInput) { in.Latitude = 95 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validUploadInput()
			tt.mutate(&input)
			if _, err := u.Upload(context.Background(), input); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestBuildWikitextDeterministic(t *testing.T) {
	in := validUploadInput()
	in.Description = "Puutalo <b>Helsingissä</b>"
	in.DescriptionLanguage = "fi"
	in.Categories = []string{"Category:Buildings in Helsinki", "Wooden houses"}

	first := buildWikitext(in)
	second := buildWikitext(in)
	if first != second {
		t.Error("wikitext must be deterministic")
	}
	for _, want := range []string{
		"=={{int:filedesc}}==",
		"{{fi|1=Puutalo <b>Helsingissä</b>}}",
		"{{Location|60.17|24.94|heading:173.4}}",
		"{{On Wikidata|Q42}}",
		"{{Cc-by-sa-4.0}}",
		"[[Category:Buildings_in_Helsinki]]",
		"[[Category:Wooden_houses]]",
	} {
		if !strings.Contains(first, want) {
			t.Errorf("wikitext missing %q:\n%s", want, first)
		}
	}
}
