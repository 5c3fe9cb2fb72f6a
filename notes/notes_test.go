package notes

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/regref/regref/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	if err := st.ApplySchema(context.Background()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return New(st, nil), st
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRequest
		ok   bool
	}{
		{"highlight", CreateRequest{Kind: KindHighlight, SectionID: "390.5", ParagraphID: "390.5/p-0-a"}, true},
		{"bookmark", CreateRequest{Kind: KindBookmark, SectionID: "390.5", ParagraphID: "390.5/p-1"}, true},
		{"note with text", CreateRequest{Kind: KindNote, SectionID: "390.5", ParagraphID: "390.5/p-0-a", Note: "check this"}, true},
		{"note without text", CreateRequest{Kind: KindNote, SectionID: "390.5", ParagraphID: "390.5/p-0-a"}, false},
		{"unknown kind", CreateRequest{Kind: "sticker", SectionID: "390.5", ParagraphID: "390.5/p-0-a"}, false},
		{"missing section", CreateRequest{Kind: KindHighlight, ParagraphID: "390.5/p-0-a"}, false},
		{"missing paragraph", CreateRequest{Kind: KindHighlight, SectionID: "390.5"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := svc.Create(ctx, &tt.req)
			if tt.ok && err != nil {
				t.Fatalf("Create: %v", err)
			}
			if !tt.ok {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("err = %v, want ErrInvalid", err)
				}
				return
			}
			if a.ID == "" {
				t.Error("created annotation has no id")
			}
			if a.Impacted {
				t.Error("new annotation starts flagged")
			}
		})
	}
}

func TestCreateMultiParagraphSpan(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &CreateRequest{
		Kind:         KindHighlight,
		SectionID:    "390.5",
		ParagraphID:  "390.5/p-0-a",
		ParagraphIDs: []string{"390.5/p-0-a", "390.5/p-1-b"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ParagraphIDsJSON != `["390.5/p-0-a","390.5/p-1-b"]` {
		t.Errorf("span = %q", got.ParagraphIDsJSON)
	}
}

func TestResolveKeepClearsFlag(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &CreateRequest{Kind: KindHighlight, SectionID: "390.5", ParagraphID: "390.5/p-0-a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := st.MarkImpactedBySection(ctx, "390.5"); err != nil {
		t.Fatalf("flag: %v", err)
	}

	if err := svc.Resolve(ctx, a.ID, true); err != nil {
		t.Fatalf("Resolve keep: %v", err)
	}
	got, _ := svc.Get(ctx, a.ID)
	if got.Impacted {
		t.Error("flag survived keep-resolution")
	}
	impacted, _ := svc.ListImpacted(ctx)
	if len(impacted) != 0 {
		t.Errorf("impacted list has %d entries after resolve", len(impacted))
	}
}

func TestResolveDiscardDeletes(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &CreateRequest{Kind: KindNote, SectionID: "390.5", ParagraphID: "390.5/p-0-a", Note: "stale"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := st.MarkImpactedBySection(ctx, "390.5"); err != nil {
		t.Fatalf("flag: %v", err)
	}

	if err := svc.Resolve(ctx, a.ID, false); err != nil {
		t.Fatalf("Resolve discard: %v", err)
	}
	if _, err := svc.Get(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after discard", err)
	}
}

func TestResolveUnknownID(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Resolve(context.Background(), "nope", true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
