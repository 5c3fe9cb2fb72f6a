package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertPartTOC replaces the cached table of contents for a part.
func (s *Store) UpsertPartTOC(ctx context.Context, row *PartTOCRow) error {
	row.SyncedAt = time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO part_tocs (part, title, toc_json, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(part) DO UPDATE SET
			title = excluded.title,
			toc_json = excluded.toc_json,
			synced_at = excluded.synced_at`,
		row.Part, row.Title, row.TOCJSON, row.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert toc %s: %w", row.Part, err)
	}
	return nil
}

// GetPartTOC retrieves the cached table of contents for a part.
func (s *Store) GetPartTOC(ctx context.Context, part string) (*PartTOCRow, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT part, title, toc_json, synced_at FROM part_tocs WHERE part = ?`, part)

	var r PartTOCRow
	err := row.Scan(&r.Part, &r.Title, &r.TOCJSON, &r.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get toc %s: %w", part, err)
	}
	return &r, nil
}
