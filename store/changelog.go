package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertChangelog appends a change entry. The changelog is append-only;
// there is deliberately no update or delete.
func (s *Store) InsertChangelog(ctx context.Context, e *ChangelogEntry) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO changelog (id, section_id, part, version_date, change_type,
		effective_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SectionID, e.Part, e.VersionDate, e.ChangeType,
		e.EffectiveDate, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert changelog %s: %w", e.SectionID, err)
	}
	return nil
}

// ChangelogForSection returns a section's change history, newest first.
func (s *Store) ChangelogForSection(ctx context.Context, sectionID string, limit int) ([]*ChangelogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, section_id, part, version_date, change_type, effective_date, created_at
		FROM changelog WHERE section_id = ?
		ORDER BY version_date DESC, created_at DESC LIMIT ?`, sectionID, limit)
	if err != nil {
		return nil, err
	}
	return scanChangelog(rows)
}

// ChangelogForPart returns a part's change entries within [from, to]
// (inclusive, YYYY-MM-DD), ordered by version date then section.
func (s *Store) ChangelogForPart(ctx context.Context, part, from, to string) ([]*ChangelogEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, section_id, part, version_date, change_type, effective_date, created_at
		FROM changelog WHERE part = ? AND version_date >= ? AND version_date <= ?
		ORDER BY version_date, section_id`, part, from, to)
	if err != nil {
		return nil, err
	}
	return scanChangelog(rows)
}

// LatestChangeRowID returns the highest changelog rowid, a monotonic token
// that advances on every append. Used by the watch loop.
func (s *Store) LatestChangeRowID(ctx context.Context) (int64, error) {
	var v int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(rowid), 0) FROM changelog`).Scan(&v)
	return v, err
}

func scanChangelog(rows *sql.Rows) ([]*ChangelogEntry, error) {
	defer rows.Close()
	var out []*ChangelogEntry
	for rows.Next() {
		var e ChangelogEntry
		if err := rows.Scan(&e.ID, &e.SectionID, &e.Part, &e.VersionDate,
			&e.ChangeType, &e.EffectiveDate, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan changelog: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
