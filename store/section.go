package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertSection writes or overwrites the cached parse for a section.
func (s *Store) UpsertSection(ctx context.Context, row *SectionRow) error {
	row.UpdatedAt = time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sections (id, part, title, subpart_label, subpart_title,
		nodes_json, raw_xml, source_version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			part = excluded.part,
			title = excluded.title,
			subpart_label = excluded.subpart_label,
			subpart_title = excluded.subpart_title,
			nodes_json = excluded.nodes_json,
			raw_xml = excluded.raw_xml,
			source_version = excluded.source_version,
			updated_at = excluded.updated_at`,
		row.ID, row.Part, row.Title, row.SubpartLabel, row.SubpartTitle,
		row.NodesJSON, row.RawXML, row.SourceVersion, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert section %s: %w", row.ID, err)
	}
	return nil
}

// GetSection retrieves a cached section by ID.
func (s *Store) GetSection(ctx context.Context, id string) (*SectionRow, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, part, title, subpart_label, subpart_title,
		nodes_json, raw_xml, source_version, updated_at
		FROM sections WHERE id = ?`, id)

	var r SectionRow
	err := row.Scan(&r.ID, &r.Part, &r.Title, &r.SubpartLabel, &r.SubpartTitle,
		&r.NodesJSON, &r.RawXML, &r.SourceVersion, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get section %s: %w", id, err)
	}
	return &r, nil
}

// ListSectionsByPart returns the cached sections of a part, without raw
// markup, ordered by section ID.
func (s *Store) ListSectionsByPart(ctx context.Context, part string) ([]*SectionRow, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, part, title, subpart_label, subpart_title,
		nodes_json, source_version, updated_at
		FROM sections WHERE part = ? ORDER BY id`, part)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SectionRow
	for rows.Next() {
		var r SectionRow
		if err := rows.Scan(&r.ID, &r.Part, &r.Title, &r.SubpartLabel, &r.SubpartTitle,
			&r.NodesJSON, &r.SourceVersion, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// AdvanceSourceVersion bumps a section's cached version date without
// touching its content — used when the provider lists an amendment but the
// fetched markup is byte-identical (a non-substantive republish).
func (s *Store) AdvanceSourceVersion(ctx context.Context, id, version string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sections SET source_version = ?, updated_at = ? WHERE id = ?`,
		version, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("advance version %s: %w", id, err)
	}
	return nil
}
