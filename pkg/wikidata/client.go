package wikidata

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"locex/pkg/request"
)

// Client executes SPARQL queries against a Wikidata query service endpoint.
// Query text doubles as the cache key, so identical queries hit the response
// cache and cache-bust comments naturally miss it.
type Client struct {
	http     *request.Client
	endpoint string
}

// NewClient wraps the shared HTTP client for one SPARQL endpoint.
func NewClient(httpClient *request.Client, endpoint string) *Client {
	return &Client{http: httpClient, endpoint: endpoint}
}

// Query runs one SPARQL query and returns the flat binding rows. All
// failures, transport or parse, classify as ErrService.
func (c *Client) Query(ctx context.Context, query string) ([]Binding, error) {
	u := c.endpoint + "?query=" + url.QueryEscape(query)
	headers := map[string]string{"Accept": "application/sparql-results+json"}

	body, err := c.http.GetWithHeaders(ctx, u, headers, "sparql:"+query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}

	bindings, err := ParseResults(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrService, err, bodyPreview(body))
	}
	return bindings, nil
}

type jsonResults struct {
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

// ParseResults decodes a SPARQL results document. JSON is the primary
// format; XML is accepted since some endpoints ignore the Accept header.
func ParseResults(body []byte) ([]Binding, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "<") {
		return parseXMLResults(body)
	}

	var doc jsonResults
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unparseable results: %v", err)
	}
	return doc.Results.Bindings, nil
}

type xmlLiteral struct {
	Lang  string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	Value string `xml:",chardata"`
}

type xmlBinding struct {
	Name    string      `xml:"name,attr"`
	URI     string      `xml:"uri"`
	Literal *xmlLiteral `xml:"literal"`
	BNode   string      `xml:"bnode"`
}

type xmlResults struct {
	Results struct {
		Rows []struct {
			Bindings []xmlBinding `xml:"binding"`
		} `xml:"result"`
	} `xml:"results"`
}

func parseXMLResults(body []byte) ([]Binding, error) {
	var doc xmlResults
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unparseable results: %v", err)
	}

	bindings := make([]Binding, 0, len(doc.Results.Rows))
	for _, row := range doc.Results.Rows {
		b := make(Binding, len(row.Bindings))
		for _, cell := range row.Bindings {
			if cell.Name == "" {
				continue
			}
			switch {
			case cell.URI != "":
				b[cell.Name] = Value{Type: "uri", Value: cell.URI}
			case cell.Literal != nil:
				b[cell.Name] = Value{Type: "literal", Value: cell.Literal.Value, Lang: cell.Literal.Lang}
			case cell.BNode != "":
				b[cell.Name] = Value{Type: "bnode", Value: cell.BNode}
			}
		}
		if len(b) > 0 {
			bindings = append(bindings, b)
		}
	}
	return bindings, nil
}

// bodyPreview flattens a response body to one line capped at 200 chars for
// error messages.
func bodyPreview(body []byte) string {
	preview := strings.Join(strings.Fields(string(body)), " ")
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return preview
}
