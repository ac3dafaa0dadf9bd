package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MetaStore caches raw commander meta responses keyed by commander and
// category.
type MetaStore struct {
	db *DB
}

// NewMetaStore creates a meta store on db.
func NewMetaStore(db *DB) *MetaStore {
	return &MetaStore{db: db}
}

// SaveMeta stores payload for commander and category.
func (s *MetaStore) SaveMeta(ctx context.Context, commander, category string, payload []byte) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO commander_meta (commander, category, payload, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(commander, category) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, commander, category, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save meta for %s/%s: %w", commander, category, err)
	}
	return nil
}

// GetMeta returns the cached payload and when it was fetched. A missing
// entry returns a nil payload and no error.
func (s *MetaStore) GetMeta(ctx context.Context, commander, category string) ([]byte, time.Time, error) {
	var (
		payload   string
		fetchedAt time.Time
	)
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM commander_meta WHERE commander = ? AND category = ?`,
		commander, category).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to get meta for %s/%s: %w", commander, category, err)
	}
	return []byte(payload), fetchedAt, nil
}
