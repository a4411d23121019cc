// Package locations aggregates graph records, local drafts and image-count
// metrics into the location views served by the API.
package locations

import (
	"context"
	"log/slog"
	"strings"

	"locex/pkg/commons"
	"locex/pkg/model"
	"locex/pkg/store"
	"locex/pkg/wikidata"
)

// Graph is the SPARQL querying surface the service needs.
type Graph interface {
	Query(ctx context.Context, query string) ([]wikidata.Binding, error)
}

// Counter enriches records with cached image counts.
type Counter interface {
	EnrichLocations(ctx context.Context, locations []model.LocationRecord) []model.LocationRecord
}

// Service resolves location lists, details and children.
type Service struct {
	graph      Graph
	queries    wikidata.QueryBuilder
	drafts     store.DraftStore
	counts     Counter
	languages  wikidata.LanguagePolicy
	thumbWidth int
	log        *slog.Logger
}

func New(graph Graph, queries wikidata.QueryBuilder, drafts store.DraftStore, counts Counter, languages wikidata.LanguagePolicy, thumbWidth int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		graph:      graph,
		queries:    queries,
		drafts:     drafts,
		counts:     counts,
		languages:  languages,
		thumbWidth: thumbWidth,
		log:        log.With("component", "locations"),
	}
}

// ListOptions parameterizes a list fetch.
type ListOptions struct {
	Lang      string
	Limit     int
	ExtraQIDs []string
	Comment   string
}

// queryWithFallbacks runs build(lang) for each fallback language until one
// attempt returns bindings. An error surfaces only when every attempt
// failed; a successful empty result wins over an earlier failure.
func (s *Service) queryWithFallbacks(ctx context.Context, lang string, build func(fallbackLang string) (string, error)) ([]wikidata.Binding, error) {
	var lastErr error
	hadSuccess := false
	for _, fallbackLang := range s.languages.Fallbacks(lang, false) {
		query, err := build(fallbackLang)
		if err != nil {
			return nil, err
		}
		bindings, err := s.graph.Query(ctx, query)
		if err != nil {
			s.log.Warn("query attempt failed", "lang", fallbackLang, "error", err)
			lastErr = err
			continue
		}
		hadSuccess = true
		if len(bindings) > 0 {
			return bindings, nil
		}
	}
	if lastErr != nil && !hadSuccess {
		return nil, lastErr
	}
	return nil, nil
}

// FetchLocations returns the aggregated location list, local drafts merged
// in. Draft QIDs that widened the query collapse back onto their graph
// records.
func (s *Service) FetchLocations(ctx context.Context, opts ListOptions) ([]model.LocationRecord, error) {
	drafts, err := s.drafts.ListDrafts(ctx)
	if err != nil {
		return nil, err
	}

	extraQIDs := append([]string(nil), opts.ExtraQIDs...)
	for _, draft := range drafts {
		if qid := draftQID(draft); qid != "" {
			extraQIDs = append(extraQIDs, qid)
		}
	}

	bindings, err := s.queryWithFallbacks(ctx, opts.Lang, func(fallbackLang string) (string, error) {
		return s.queries.List(fallbackLang, opts.Limit, extraQIDs, opts.Comment)
	})
	if err != nil {
		return nil, err
	}

	records, err := wikidata.Reconcile(bindings, wikidata.ReconcileOptions{Lang: opts.Lang, ThumbWidth: s.thumbWidth})
	if err != nil {
		return nil, err
	}
	return s.mergeDrafts(records, drafts), nil
}

// FetchLocationDetail returns one aggregated record, or nil when the graph
// has no rows for the subject.
func (s *Service) FetchLocationDetail(ctx context.Context, uri, lang string) (*model.LocationRecord, error) {
	bindings, err := s.queryWithFallbacks(ctx, lang, func(fallbackLang string) (string, error) {
		return s.queries.Detail(uri, fallbackLang), nil
	})
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, nil
	}

	records, err := wikidata.Reconcile(bindings, wikidata.ReconcileOptions{Lang: lang, ThumbWidth: s.thumbWidth})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	record := records[0]
	s.annotateFromDraft(ctx, &record)
	return &record, nil
}

// FetchLocationChildren returns part-of / has-part children from the graph
// plus local drafts parented on the subject.
func (s *Service) FetchLocationChildren(ctx context.Context, uri, lang string, limit int) ([]model.ChildRef, error) {
	bindings, err := s.queryWithFallbacks(ctx, lang, func(fallbackLang string) (string, error) {
		return s.queries.Children(uri, fallbackLang, limit), nil
	})
	if err != nil {
		return nil, err
	}

	var children []model.ChildRef
	seen := make(map[string]bool)
	for _, binding := range bindings {
		child, ok := childFromBinding(binding)
		if !ok || seen[child.URI] {
			continue
		}
		seen[child.URI] = true
		children = append(children, child)
	}

	drafts, err := s.drafts.ListDraftsByParent(ctx, strings.TrimSpace(uri))
	if err != nil {
		return nil, err
	}
	for _, draft := range drafts {
		if seen[draft.URI] {
			continue
		}
		seen[draft.URI] = true
		children = append(children, model.ChildRef{
			ID:              model.EncodeLocationID(draft.URI),
			URI:             draft.URI,
			Name:            draft.Name,
			Source:          "draft",
			CommonsCategory: commons.NormalizeCategory(draft.CommonsCategory),
		})
	}
	return children, nil
}

// EnrichWithImageCounts annotates records with cached Commons and View-it
// image counts.
func (s *Service) EnrichWithImageCounts(ctx context.Context, records []model.LocationRecord) []model.LocationRecord {
	if s.counts == nil {
		return records
	}
	return s.counts.EnrichLocations(ctx, records)
}

func draftQID(draft *model.DraftLocation) string {
	if qid := wikidata.ExtractQID(draft.WikidataItem); qid != "" {
		return qid
	}
	return wikidata.ExtractQID(draft.URI)
}

// mergeDrafts folds drafts into the graph records. A draft whose item
// already appears in the graph annotates that record; the rest surface as
// synthetic draft records.
func (s *Service) mergeDrafts(records []model.LocationRecord, drafts []*model.DraftLocation) []model.LocationRecord {
	byQID := make(map[string]int)
	for i := range records {
		if qid := wikidata.ExtractQID(records[i].URI); qid != "" {
			byQID[qid] = i
		}
	}

	for _, draft := range drafts {
		if qid := draftQID(draft); qid != "" {
			if i, ok := byQID[qid]; ok {
				records[i].DraftID = draft.ID
				if records[i].ParentURI == "" {
					records[i].ParentURI = draft.ParentURI
				}
				continue
			}
		}
		records = append(records, draftRecord(draft))
	}
	return records
}

// annotateFromDraft links a detail record back to its draft, if one exists.
func (s *Service) annotateFromDraft(ctx context.Context, record *model.LocationRecord) {
	qid := wikidata.ExtractQID(record.URI)
	if qid == "" {
		return
	}
	drafts, err := s.drafts.ListDrafts(ctx)
	if err != nil {
		s.log.Warn("draft lookup failed", "error", err)
		return
	}
	for _, draft := range drafts {
		if draftQID(draft) == qid {
			record.DraftID = draft.ID
			if record.ParentURI == "" {
				record.ParentURI = draft.ParentURI
			}
			return
		}
	}
}

func draftRecord(draft *model.DraftLocation) model.LocationRecord {
	return model.LocationRecord{
		ID:              model.EncodeLocationID(draft.URI),
		URI:             draft.URI,
		Name:            draft.Name,
		Description:     draft.Description,
		Latitude:        draft.Latitude,
		Longitude:       draft.Longitude,
		AddressText:     draft.AddressText,
		PostalCode:      draft.PostalCode,
		Municipality:    model.LinkedEntity{Label: draft.Municipality},
		CommonsCategory: commons.NormalizeCategory(draft.CommonsCategory),
		DraftID:         draft.ID,
		ParentURI:       draft.ParentURI,
		Source:          "draft",
	}
}

func childFromBinding(binding wikidata.Binding) (model.ChildRef, bool) {
	uri := firstBindingValue(binding, "subitem", "item", "uri")
	if uri == "" {
		return model.ChildRef{}, false
	}
	name := firstBindingValue(binding, "subitemLabel", "itemLabel", "label")
	if name == "" {
		tail := uri[strings.LastIndexByte(uri, '/')+1:]
		name = strings.ReplaceAll(tail, "_", " ")
	}
	return model.ChildRef{
		ID:              model.EncodeLocationID(uri),
		URI:             uri,
		Name:            name,
		Source:          "sparql",
		CommonsCategory: commons.NormalizeCategory(firstBindingValue(binding, "commonsCategory", "commons_category")),
	}, true
}

func firstBindingValue(binding wikidata.Binding, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(binding[key].Value); value != "" {
			return value
		}
	}
	return ""
}
