package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"locex/pkg/db"
)

// ResponseCache persists upstream HTTP responses in the cache table so a
// restart keeps the cheap answers. Entries older than ttl are treated as
// misses; a non-positive ttl never expires them.
type ResponseCache struct {
	db  *db.DB
	ttl time.Duration
}

func NewResponseCache(d *db.DB, ttl time.Duration) *ResponseCache {
	return &ResponseCache{db: d, ttl: ttl}
}

func (c *ResponseCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	query := `SELECT value FROM cache WHERE key = ?`
	args := []any{key}
	if c.ttl > 0 {
		query += ` AND created_at >= ?`
		args = append(args, sqliteTimestamp(time.Now().Add(-c.ttl)))
	}

	var value []byte
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false
	case err != nil:
		slog.Warn("response cache read failed", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

func (c *ResponseCache) SetCache(ctx context.Context, key string, val []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, created_at = excluded.created_at`,
		key, val, sqliteTimestamp(time.Now()))
	return err
}

// sqliteTimestamp matches the DEFAULT CURRENT_TIMESTAMP column format so
// comparisons in SQL stay lexicographic.
func sqliteTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
