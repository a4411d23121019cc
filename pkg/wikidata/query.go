package wikidata

import (
	"fmt"
	"regexp"
	"strings"
)

// QueryBuilder produces the three SPARQL shapes used by the location
// services. The same logical request always yields byte-identical query
// text, so queries are safe to use as cache keys.
type QueryBuilder struct {
	CollectionQID string
	DefaultLimit  int
}

// Comments are a cache-busting aid only. They must stay a single plain
// comment line; anything that could break out of the line is rejected.
var commentRe = regexp.MustCompile(`^#[A-Za-z0-9 _.,:/=-]*$`)

// ValidateComment checks a cache-bust comment. Empty is allowed.
func ValidateComment(comment string) error {
	if comment == "" {
		return nil
	}
	if strings.ContainsAny(comment, "\n\r") || strings.Contains(comment, "*/") {
		return fmt.Errorf("%w: comment must be a single line", ErrInvalidQuery)
	}
	if !commentRe.MatchString(comment) {
		return fmt.Errorf("%w: comment contains unsupported characters", ErrInvalidQuery)
	}
	return nil
}

const selectProjection = `SELECT DISTINCT
  ?item ?coord ?itemLabel ?itemDescription ?dateModified ?commonsCategory ?imageName
  ?inceptionP571
  ?locationP276 ?locationP276Label ?locationP276WikipediaUrl
  ?architectP84 ?architectP84Label ?architectP84WikipediaUrl
  ?officialClosureDateP3999
  ?stateOfUseP5817 ?stateOfUseP5817Label ?stateOfUseP5817WikipediaUrl
  ?municipalityP131 ?municipalityP131Label ?municipalityP131WikipediaUrl
  ?addressTextP6375 ?postalCodeP281
  ?locatedOnStreetP669 ?locatedOnStreetP669Label ?locatedOnStreetP669WikipediaUrl ?houseNumberP670
  ?heritageDesignationP1435 ?heritageDesignationP1435Label ?heritageDesignationP1435WikipediaUrl
  ?instanceOfP31 ?instanceOfP31Label ?instanceOfP31WikipediaUrl
  ?architecturalStyleP149 ?architecturalStyleP149Label ?architecturalStyleP149WikipediaUrl
  ?routeInstructionP2795
  ?ysoIdP2347 ?yleTopicIdP8309 ?kantoIdP8980 ?protectedBuildingsRegisterInFinlandIdP5310
  ?rkyNationalBuiltHeritageEnvironmentIdP4009
  ?permanentBuildingNumberVtjPrtP3824 ?protectedBuildingsRegisterInFinlandBuildingIdP5313
  ?helsinkiPersistentBuildingIdRatuP8355`

func propertyBlock(wikipediaSiteURL string) string {
	return fmt.Sprintf(`  OPTIONAL { ?item schema:dateModified ?dateModified . }
  OPTIONAL { ?item wdt:P373 ?commonsCategory . }
  OPTIONAL { ?item wdt:P18 ?imageName . }
  OPTIONAL { ?item wdt:P571 ?inceptionP571 . }
  OPTIONAL {
    ?item wdt:P276 ?locationP276 .
    OPTIONAL {
      ?locationP276WikipediaUrl schema:about ?locationP276 ;
                                schema:isPartOf <%[1]s> .
    }
  }
  OPTIONAL {
    ?item wdt:P84 ?architectP84 .
    OPTIONAL {
      ?architectP84WikipediaUrl schema:about ?architectP84 ;
                                schema:isPartOf <%[1]s> .
    }
  }
  OPTIONAL { ?item wdt:P3999 ?officialClosureDateP3999 . }
  OPTIONAL {
    ?item wdt:P5817 ?stateOfUseP5817 .
    OPTIONAL {
      ?stateOfUseP5817WikipediaUrl schema:about ?stateOfUseP5817 ;
                                   schema:isPartOf <%[1]s> .
    }
  }
  OPTIONAL {
    ?item wdt:P131 ?municipalityP131 .
    OPTIONAL {
      ?municipalityP131WikipediaUrl schema:about ?municipalityP131 ;
                                    schema:isPartOf <%[1]s> .
    }
  }
  OPTIONAL { ?item wdt:P6375 ?addressTextP6375 . }
  OPTIONAL { ?item wdt:P281 ?postalCodeP281 . }
  OPTIONAL {
    ?item p:P669 ?locatedOnStreetStatementP669 .
    ?locatedOnStreetStatementP669 ps:P669 ?locatedOnStreetP669 .
    OPTIONAL { ?locatedOnStreetStatementP669 pq:P670 ?houseNumberP670 . }
    OPTIONAL {
      ?locatedOnStreetP669WikipediaUrl schema:about ?locatedOnStreetP669 ;
                                       schema:isPartOf <%[1]s> .
    }
  }
  OPTIONAL {
    ?item wdt:P1435 ?heritageDesignationP1435 .
    OPTIONAL {
      ?heritageDesignationP1435WikipediaUrl schema:about ?heritageDesignationP1435 ;
                                            schema:isPartOf <%[1]s> .
    }
  }
  OPTIONAL {
    ?item wdt:P31 ?instanceOfP31 .
    OPTIONAL {
      ?instanceOfP31WikipediaUrl schema:about ?instanceOfP31 ;
                                 schema:isPartOf <%[1]s> .
    }
  }
  OPTIONAL {
    ?item wdt:P149 ?architecturalStyleP149 .
    OPTIONAL {
      ?architecturalStyleP149WikipediaUrl schema:about ?architecturalStyleP149 ;
                                          schema:isPartOf <%[1]s> .
    }
  }
  OPTIONAL { ?item wdt:P2795 ?routeInstructionP2795 . }
  OPTIONAL { ?item wdt:P2347 ?ysoIdP2347 . }
  OPTIONAL { ?item wdt:P8309 ?yleTopicIdP8309 . }
  OPTIONAL { ?item wdt:P8980 ?kantoIdP8980 . }
  OPTIONAL { ?item wdt:P5310 ?protectedBuildingsRegisterInFinlandIdP5310 . }
  OPTIONAL { ?item wdt:P4009 ?rkyNationalBuiltHeritageEnvironmentIdP4009 . }
  OPTIONAL { ?item wdt:P3824 ?permanentBuildingNumberVtjPrtP3824 . }
  OPTIONAL { ?item wdt:P5313 ?protectedBuildingsRegisterInFinlandBuildingIdP5313 . }
  OPTIONAL { ?item wdt:P8355 ?helsinkiPersistentBuildingIdRatuP8355 . }`, wikipediaSiteURL)
}

// List builds the membership list query. extraQIDs widens the selection
// beyond the collection membership filter.
func (b QueryBuilder) List(lang string, limit int, extraQIDs []string, comment string) (string, error) {
	if err := ValidateComment(comment); err != nil {
		return "", err
	}
	if limit <= 0 {
		limit = b.DefaultLimit
	}
	safeLangs := strings.ReplaceAll(LabelLanguages(lang), `"`, "")
	siteURL := WikipediaSiteURL(lang)

	itemSelector := fmt.Sprintf("?item wdt:P5008 wd:%s .", b.CollectionQID)
	if normalized := NormalizeQIDs(extraQIDs); len(normalized) > 0 {
		values := make([]string, len(normalized))
		for i, qid := range normalized {
			values[i] = "wd:" + qid
		}
		itemSelector = fmt.Sprintf(`
  {
    ?item wdt:P5008 wd:%s .
  }
  UNION
  {
    VALUES ?item { %s }
  }
`, b.CollectionQID, strings.Join(values, " "))
	}

	optionalComment := ""
	if comment != "" {
		optionalComment = comment + "\n"
	}

	return fmt.Sprintf(`
%sPREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
PREFIX p: <http://www.wikidata.org/prop/>
PREFIX ps: <http://www.wikidata.org/prop/statement/>
PREFIX pq: <http://www.wikidata.org/prop/qualifier/>
PREFIX wikibase: <http://wikiba.se/ontology#>
PREFIX bd: <http://www.bigdata.com/rdf#>
PREFIX schema: <http://schema.org/>

%s
WHERE {
  %s
  ?item wdt:P625 ?coord .
%s
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
}
LIMIT %d
`, optionalComment, selectProjection, itemSelector, propertyBlock(siteURL), safeLangs, limit), nil
}

// Detail builds the single-subject query with the full projection.
func (b QueryBuilder) Detail(uri, lang string) string {
	safeURI := strings.ReplaceAll(SubjectURI(uri), ">", "%3E")
	safeLangs := strings.ReplaceAll(LabelLanguages(lang), `"`, "")
	siteURL := WikipediaSiteURL(lang)

	return fmt.Sprintf(`
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
PREFIX p: <http://www.wikidata.org/prop/>
PREFIX ps: <http://www.wikidata.org/prop/statement/>
PREFIX pq: <http://www.wikidata.org/prop/qualifier/>
PREFIX wikibase: <http://wikiba.se/ontology#>
PREFIX bd: <http://www.bigdata.com/rdf#>
PREFIX schema: <http://schema.org/>

%s
WHERE {
  VALUES ?item { <%s> }
  ?item wdt:P625 ?coord .
%s
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
}
`, selectProjection, safeURI, propertyBlock(siteURL), safeLangs)
}

// Children builds the part-of / has-part query with a minimal projection.
func (b QueryBuilder) Children(uri, lang string, limit int) string {
	if limit <= 0 {
		limit = b.DefaultLimit
	}
	safeURI := strings.ReplaceAll(strings.TrimSpace(uri), ">", "%3E")
	safeLangs := strings.ReplaceAll(LabelLanguages(lang), `"`, "")

	return fmt.Sprintf(`
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
PREFIX wikibase: <http://wikiba.se/ontology#>
PREFIX bd: <http://www.bigdata.com/rdf#>

SELECT DISTINCT ?subitem ?subitemLabel ?commonsCategory
WHERE {
  VALUES ?item { <%s> }
  {
    ?subitem wdt:P361 ?item .
  }
  UNION
  {
    ?item wdt:P527 ?subitem .
  }
  OPTIONAL { ?subitem wdt:P373 ?commonsCategory . }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
}
LIMIT %d
`, safeURI, safeLangs, limit)
}
