package store

import (
	"context"
	"time"

	"locex/pkg/model"
)

// DraftStore handles locally authored location drafts.
type DraftStore interface {
	GetDraft(ctx context.Context, id int64) (*model.DraftLocation, error)
	GetDraftByURI(ctx context.Context, uri string) (*model.DraftLocation, error)
	ListDrafts(ctx context.Context) ([]*model.DraftLocation, error)
	ListDraftsByParent(ctx context.Context, parentURI string) ([]*model.DraftLocation, error)
	SaveDraft(ctx context.Context, d *model.DraftLocation) error
	UpdateDraft(ctx context.Context, d *model.DraftLocation) error
	DeleteDraft(ctx context.Context, id int64) error
}

// CountEntry is one cached metric value.
type CountEntry struct {
	Key       string
	Count     int
	FetchedAt time.Time
}

// Metric kinds persisted by CountStore.
const (
	CountKindCommons = "commons"
	CountKindViewIt  = "viewit"
)

// CountStore handles persisted per-key image-count metrics.
type CountStore interface {
	GetCounts(ctx context.Context, kind string, keys []string) (map[string]CountEntry, error)
	SetCount(ctx context.Context, kind, key string, count int) error
}
