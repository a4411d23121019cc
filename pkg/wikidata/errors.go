package wikidata

import "errors"

var (
	// ErrService indicates an upstream read failure (transport, status, or
	// unparseable body), SPARQL or action API.
	ErrService = errors.New("sparql service error")
	// ErrWrite indicates an action-API write failure, including embedded
	// API error objects and invalid value encodings.
	ErrWrite = errors.New("wikidata write error")
	// ErrInvalidQuery indicates the generated SPARQL query was invalid.
	ErrInvalidQuery = errors.New("wikidata invalid query")
)
