package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"locex/pkg/db"
	"locex/pkg/model"
)

// Store composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	DraftStore
	CountStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Drafts ---

const draftColumns = `id, uri, name, description, location_type, wikidata_item, lat, lon,
	address_text, postal_code, municipality, commons_category, parent_uri, created_at, updated_at`

func (s *SQLiteStore) GetDraft(ctx context.Context, id int64) (*model.DraftLocation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM draft_location WHERE id = ?`, id)
	return scanDraft(row)
}

func (s *SQLiteStore) GetDraftByURI(ctx context.Context, uri string) (*model.DraftLocation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM draft_location WHERE uri = ?`, uri)
	return scanDraft(row)
}

func (s *SQLiteStore) ListDrafts(ctx context.Context) ([]*model.DraftLocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM draft_location ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDrafts(rows)
}

func (s *SQLiteStore) ListDraftsByParent(ctx context.Context, parentURI string) ([]*model.DraftLocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM draft_location WHERE parent_uri = ? ORDER BY id`, parentURI)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDrafts(rows)
}

// SaveDraft inserts a new draft, assigning its ID and, when missing, a
// synthetic URI.
func (s *SQLiteStore) SaveDraft(ctx context.Context, d *model.DraftLocation) error {
	if d.URI == "" {
		d.URI = "urn:locex:draft:" + uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO draft_location
		 (uri, name, description, location_type, wikidata_item, lat, lon,
		  address_text, postal_code, municipality, commons_category, parent_uri, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.URI, d.Name, d.Description, d.LocationType, d.WikidataItem, d.Latitude, d.Longitude,
		d.AddressText, d.PostalCode, d.Municipality, d.CommonsCategory, d.ParentURI, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) UpdateDraft(ctx context.Context, d *model.DraftLocation) error {
	d.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE draft_location SET
		 name = ?, description = ?, location_type = ?, wikidata_item = ?, lat = ?, lon = ?,
		 address_text = ?, postal_code = ?, municipality = ?, commons_category = ?, parent_uri = ?, updated_at = ?
		 WHERE id = ?`,
		d.Name, d.Description, d.LocationType, d.WikidataItem, d.Latitude, d.Longitude,
		d.AddressText, d.PostalCode, d.Municipality, d.CommonsCategory, d.ParentURI, d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) DeleteDraft(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM draft_location WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*model.DraftLocation, error) {
	var d model.DraftLocation
	var description, locationType, wikidataItem sql.NullString
	var addressText, postalCode, municipality, commonsCategory, parentURI sql.NullString

	err := row.Scan(
		&d.ID, &d.URI, &d.Name, &description, &locationType, &wikidataItem,
		&d.Latitude, &d.Longitude,
		&addressText, &postalCode, &municipality, &commonsCategory, &parentURI,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}

	d.Description = description.String
	d.LocationType = locationType.String
	d.WikidataItem = wikidataItem.String
	d.AddressText = addressText.String
	d.PostalCode = postalCode.String
	d.Municipality = municipality.String
	d.CommonsCategory = commonsCategory.String
	d.ParentURI = parentURI.String

	return &d, nil
}

func collectDrafts(rows *sql.Rows) ([]*model.DraftLocation, error) {
	var out []*model.DraftLocation
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Counts ---

func countTable(kind string) (table, keyCol string, err error) {
	switch kind {
	case CountKindCommons:
		return "commons_image_count_cache", "category", nil
	case CountKindViewIt:
		return "viewit_image_count_cache", "qid", nil
	}
	return "", "", fmt.Errorf("unknown count kind: %q", kind)
}

func (s *SQLiteStore) GetCounts(ctx context.Context, kind string, keys []string) (map[string]CountEntry, error) {
	result := make(map[string]CountEntry)
	if len(keys) == 0 {
		return result, nil
	}
	table, keyCol, err := countTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s, image_count, fetched_at FROM %s WHERE %s IN (`, keyCol, table, keyCol)
	args := make([]any, len(keys))
	for i, k := range keys {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = k
	}
	query += ")"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e CountEntry
		if err := rows.Scan(&e.Key, &e.Count, &e.FetchedAt); err != nil {
			return nil, err
		}
		result[e.Key] = e
	}
	return result, rows.Err()
}

func (s *SQLiteStore) SetCount(ctx context.Context, kind, key string, count int) error {
	table, keyCol, err := countTable(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, image_count, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(%s) DO UPDATE SET image_count = excluded.image_count, fetched_at = excluded.fetched_at`,
		table, keyCol, keyCol)
	_, err = s.db.ExecContext(ctx, query, key, count, time.Now().UTC())
	return err
}
