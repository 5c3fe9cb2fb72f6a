package store

import (
	"context"
	"fmt"
)

// InsertFetchLog records a fetch attempt.
func (s *Store) InsertFetchLog(ctx context.Context, e *FetchLogEntry) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO fetch_log (id, section_id, status, status_code,
		error_message, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SectionID, e.Status, e.StatusCode,
		e.ErrorMessage, e.DurationMs, e.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fetch log: %w", err)
	}
	return nil
}

// FetchHistory returns fetch attempts for a section, newest first.
func (s *Store) FetchHistory(ctx context.Context, sectionID string, limit int) ([]*FetchLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, section_id, status, status_code, error_message, duration_ms, fetched_at
		FROM fetch_log WHERE section_id = ?
		ORDER BY fetched_at DESC LIMIT ?`, sectionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FetchLogEntry
	for rows.Next() {
		var e FetchLogEntry
		if err := rows.Scan(&e.ID, &e.SectionID, &e.Status, &e.StatusCode,
			&e.ErrorMessage, &e.DurationMs, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan fetch log: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
