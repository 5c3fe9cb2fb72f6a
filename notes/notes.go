// Package notes manages reader annotations: highlights, notes, and
// bookmarks anchored to paragraph ids. It owns validation and the
// review workflow for annotations flagged by a content change; the flag
// itself is set by the sync tracker.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/regref/regref/store"
)

// ErrInvalid reports a request that fails validation.
var ErrInvalid = errors.New("notes: invalid annotation")

// Annotation kinds.
const (
	KindHighlight = "highlight"
	KindNote      = "note"
	KindBookmark  = "bookmark"
)

// CreateRequest is the input for a new annotation.
type CreateRequest struct {
	Kind         string   `json:"kind"`
	SectionID    string   `json:"section_id"`
	ParagraphID  string   `json:"paragraph_id"`
	ParagraphIDs []string `json:"paragraph_ids,omitempty"` // multi-paragraph spans
	Note         string   `json:"note,omitempty"`
}

// Service is the annotation application layer over the store.
type Service struct {
	store  *store.Store
	logger *slog.Logger
	newID  func() string
}

// New creates a Service.
func New(st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger, newID: uuid.NewString}
}

// Create validates and stores a new annotation. New annotations always
// start unflagged regardless of the section's change history.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*store.Annotation, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	a := &store.Annotation{
		ID:          s.newID(),
		Kind:        req.Kind,
		SectionID:   req.SectionID,
		ParagraphID: req.ParagraphID,
		Note:        req.Note,
	}
	if len(req.ParagraphIDs) > 0 {
		ids, err := json.Marshal(req.ParagraphIDs)
		if err != nil {
			return nil, fmt.Errorf("notes: encode span: %w", err)
		}
		a.ParagraphIDsJSON = string(ids)
	}
	if err := s.store.InsertAnnotation(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Debug("notes: annotation created", "id", a.ID, "kind", a.Kind, "section", a.SectionID)
	return a, nil
}

// Get returns one annotation by id.
func (s *Service) Get(ctx context.Context, id string) (*store.Annotation, error) {
	return s.store.GetAnnotation(ctx, id)
}

// ListBySection returns a section's annotations in creation order.
func (s *Service) ListBySection(ctx context.Context, sectionID string) ([]*store.Annotation, error) {
	return s.store.ListAnnotationsBySection(ctx, sectionID)
}

// ListImpacted returns every annotation awaiting change review.
func (s *Service) ListImpacted(ctx context.Context) ([]*store.Annotation, error) {
	return s.store.ListImpactedAnnotations(ctx)
}

// Delete removes an annotation.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteAnnotation(ctx, id)
}

// Resolve completes change review for a flagged annotation. keep=true
// clears the flag and retains the annotation; keep=false deletes it. This
// is the only path that clears the flag.
func (s *Service) Resolve(ctx context.Context, id string, keep bool) error {
	if _, err := s.store.GetAnnotation(ctx, id); err != nil {
		return err
	}
	if keep {
		return s.store.ClearImpact(ctx, id)
	}
	return s.store.DeleteAnnotation(ctx, id)
}

func validate(req *CreateRequest) error {
	switch req.Kind {
	case KindHighlight, KindNote, KindBookmark:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, req.Kind)
	}
	if req.SectionID == "" {
		return fmt.Errorf("%w: section id required", ErrInvalid)
	}
	if req.ParagraphID == "" {
		return fmt.Errorf("%w: paragraph id required", ErrInvalid)
	}
	if req.Kind == KindNote && req.Note == "" {
		return fmt.Errorf("%w: note text required", ErrInvalid)
	}
	return nil
}
