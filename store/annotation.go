package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertAnnotation adds an annotation.
func (s *Store) InsertAnnotation(ctx context.Context, a *Annotation) error {
	now := time.Now().UnixMilli()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	if a.UpdatedAt == 0 {
		a.UpdatedAt = now
	}
	if a.ParagraphIDsJSON == "" {
		a.ParagraphIDsJSON = "[]"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO annotations (id, kind, section_id, paragraph_id,
		paragraph_ids_json, note, impacted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Kind, a.SectionID, a.ParagraphID,
		a.ParagraphIDsJSON, a.Note, a.Impacted, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert annotation: %w", err)
	}
	return nil
}

// GetAnnotation retrieves an annotation by ID.
func (s *Store) GetAnnotation(ctx context.Context, id string) (*Annotation, error) {
	row := s.DB.QueryRowContext(ctx, annotationSelect+` WHERE id = ?`, id)
	return scanAnnotation(row)
}

// ListAnnotationsBySection returns a section's annotations, oldest first.
func (s *Store) ListAnnotationsBySection(ctx context.Context, sectionID string) ([]*Annotation, error) {
	rows, err := s.DB.QueryContext(ctx,
		annotationSelect+` WHERE section_id = ? ORDER BY created_at, id`, sectionID)
	if err != nil {
		return nil, err
	}
	return scanAnnotations(rows)
}

// ListImpactedAnnotations returns every annotation flagged by a content
// change and awaiting review.
func (s *Store) ListImpactedAnnotations(ctx context.Context) ([]*Annotation, error) {
	rows, err := s.DB.QueryContext(ctx,
		annotationSelect+` WHERE impacted = 1 ORDER BY section_id, created_at, id`)
	if err != nil {
		return nil, err
	}
	return scanAnnotations(rows)
}

// DeleteAnnotation removes an annotation.
func (s *Store) DeleteAnnotation(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkImpactedBySection flags every not-yet-flagged annotation anchored to a
// section. The conditional update makes the operation idempotent and safe
// against concurrent user writes: the flag only ever transitions false→true
// here, and each row update is atomic. Returns the number of rows flagged.
func (s *Store) MarkImpactedBySection(ctx context.Context, sectionID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE annotations SET impacted = 1, updated_at = ?
		WHERE section_id = ? AND impacted = 0`,
		time.Now().UnixMilli(), sectionID)
	if err != nil {
		return 0, fmt.Errorf("mark impacted %s: %w", sectionID, err)
	}
	return res.RowsAffected()
}

// ClearImpact clears the impact flag after a user reviewed the annotation.
func (s *Store) ClearImpact(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE annotations SET impacted = 0, updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("clear impact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const annotationSelect = `SELECT id, kind, section_id, paragraph_id,
	paragraph_ids_json, note, impacted, created_at, updated_at FROM annotations`

func scanAnnotation(row *sql.Row) (*Annotation, error) {
	var a Annotation
	err := row.Scan(&a.ID, &a.Kind, &a.SectionID, &a.ParagraphID,
		&a.ParagraphIDsJSON, &a.Note, &a.Impacted, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan annotation: %w", err)
	}
	return &a, nil
}

func scanAnnotations(rows *sql.Rows) ([]*Annotation, error) {
	defer rows.Close()
	var out []*Annotation
	for rows.Next() {
		var a Annotation
		if err := rows.Scan(&a.ID, &a.Kind, &a.SectionID, &a.ParagraphID,
			&a.ParagraphIDsJSON, &a.Note, &a.Impacted, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
