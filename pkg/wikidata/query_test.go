package wikidata

import (
	"errors"
	"strings"
	"testing"
)

func testBuilder() QueryBuilder {
	return QueryBuilder{CollectionQID: "Q138299296", DefaultLimit: 500}
}

func TestValidateComment(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		wantErr bool
	}{
		{"empty", "", false},
		{"plain", "#refresh 2026-08-25", false},
		{"newline", "#a\n#b", true},
		{"comment terminator", "#a */ b", true},
		{"missing hash", "refresh", true},
		{"unsupported characters", "#<script>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateComment(tt.comment)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateComment(%q) error = %v, wantErr %v", tt.comment, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("error %v is not ErrInvalidQuery", err)
			}
		})
	}
}

func TestListDeterministic(t *testing.T) {
	b := testBuilder()
	first, err := b.List("fi", 100, []string{"Q42", "q7"}, "#bust")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	second, err := b.List("fi", 100, []string{"q7", "Q42"}, "#bust")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if first != second {
		t.Error("same logical request produced different query text")
	}
}

func TestListQueryShape(t *testing.T) {
	b := testBuilder()
	q, err := b.List("sv-SE", 0, nil, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, want := range []string{
		"?item wdt:P5008 wd:Q138299296 .",
		"?item wdt:P625 ?coord .",
		`wikibase:language "sv-se,sv,en,mul"`,
		"schema:isPartOf <https://sv.wikipedia.org/>",
		"pq:P670 ?houseNumberP670",
		"LIMIT 500",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("List query missing %q", want)
		}
	}
	if strings.Contains(q, "UNION") {
		t.Error("List without extra QIDs should not contain a UNION selector")
	}
}

func TestListExtraQIDs(t *testing.T) {
	b := testBuilder()
	q, err := b.List("fi", 10, []string{"Q42"}, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !strings.Contains(q, "VALUES ?item { wd:Q42 }") {
		t.Error("List query missing extra QID VALUES block")
	}
	if !strings.Contains(q, "UNION") {
		t.Error("List query with extra QIDs should widen via UNION")
	}
}

func TestDetailQueryShape(t *testing.T) {
	b := testBuilder()
	q := b.Detail("Q1757", "fi")
	if !strings.Contains(q, "VALUES ?item { <http://www.wikidata.org/entity/Q1757> }") {
		t.Error("Detail query missing subject VALUES block")
	}
	if strings.Contains(q, "LIMIT") {
		t.Error("Detail query should not be limited")
	}

	hostile := b.Detail("http://example.com/a> } . ?x ?y ?z", "fi")
	if strings.Contains(hostile, "a> }  . ?x") || strings.Contains(hostile, "/a> }") {
		t.Error("Detail query did not neutralize '>' in the subject URI")
	}
}

func TestChildrenQueryShape(t *testing.T) {
	b := testBuilder()
	q := b.Children("http://www.wikidata.org/entity/Q1757", "fi", 0)
	for _, want := range []string{
		"?subitem wdt:P361 ?item .",
		"?item wdt:P527 ?subitem .",
		"OPTIONAL { ?subitem wdt:P373 ?commonsCategory . }",
		"LIMIT 500",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("Children query missing %q", want)
		}
	}
}
