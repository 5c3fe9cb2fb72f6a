package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON")
	s := New(db)
	if err := s.ApplySchema(context.Background()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return s
}

func TestOpenCreatesDatabase(t *testing.T) {
	// Open must create missing parent directories and apply the schema.
	path := filepath.Join(t.TempDir(), "data", "regref.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.DB.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	if err := s.UpsertSection(context.Background(), &SectionRow{ID: "390.5", Part: "390"}); err != nil {
		t.Errorf("write after Open: %v", err)
	}
}

func TestApplySchema(t *testing.T) {
	s := openTestDB(t)
	for _, table := range []string{"sections", "part_tocs", "changelog", "annotations", "fetch_log"} {
		var name string
		err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestSectionUpsertAndGet(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	row := &SectionRow{
		ID:            "390.5",
		Part:          "390",
		Title:         "§ 390.5 Definitions.",
		NodesJSON:     `[{"id":"p-0","kind":"paragraph","text":"x","level":0}]`,
		RawXML:        []byte("<DIV8>old</DIV8>"),
		SourceVersion: "2023-05-23",
	}
	if err := s.UpsertSection(ctx, row); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetSection(ctx, "390.5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != row.Title || got.SourceVersion != "2023-05-23" {
		t.Errorf("got %+v", got)
	}
	if string(got.RawXML) != "<DIV8>old</DIV8>" {
		t.Errorf("raw: %q", got.RawXML)
	}

	// Upsert overwrites in place — still one row.
	row.RawXML = []byte("<DIV8>new</DIV8>")
	row.SourceVersion = "2024-01-02"
	if err := s.UpsertSection(ctx, row); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	var count int
	s.DB.QueryRow(`SELECT COUNT(*) FROM sections`).Scan(&count)
	if count != 1 {
		t.Errorf("rows: got %d, want 1", count)
	}
	got, _ = s.GetSection(ctx, "390.5")
	if got.SourceVersion != "2024-01-02" || string(got.RawXML) != "<DIV8>new</DIV8>" {
		t.Errorf("overwrite lost: %+v", got)
	}
}

func TestGetSectionNotFound(t *testing.T) {
	s := openTestDB(t)
	if _, err := s.GetSection(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdvanceSourceVersion(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	s.UpsertSection(ctx, &SectionRow{ID: "390.5", Part: "390", RawXML: []byte("x"), SourceVersion: "2023-05-23"})

	if err := s.AdvanceSourceVersion(ctx, "390.5", "2024-01-02"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	got, _ := s.GetSection(ctx, "390.5")
	if got.SourceVersion != "2024-01-02" {
		t.Errorf("version: %q", got.SourceVersion)
	}
	if string(got.RawXML) != "x" {
		t.Error("content must not change on version advance")
	}
}

func TestPartTOCRoundTrip(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	if err := s.UpsertPartTOC(ctx, &PartTOCRow{Part: "390", Title: "Part 390", TOCJSON: `{"part":"390"}`}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertPartTOC(ctx, &PartTOCRow{Part: "390", Title: "Part 390 (amended)", TOCJSON: `{"part":"390","v":2}`}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err := s.GetPartTOC(ctx, "390")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Part 390 (amended)" {
		t.Errorf("title: %q", got.Title)
	}
}

func TestChangelogAppendAndQuery(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	entries := []*ChangelogEntry{
		{ID: "c1", SectionID: "390.5", Part: "390", VersionDate: "2023-05-23", ChangeType: "substantive"},
		{ID: "c2", SectionID: "390.5", Part: "390", VersionDate: "2024-01-02", ChangeType: "editorial"},
		{ID: "c3", SectionID: "391.11", Part: "391", VersionDate: "2023-07-01", ChangeType: "substantive"},
	}
	for _, e := range entries {
		if err := s.InsertChangelog(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	hist, err := s.ChangelogForSection(ctx, "390.5", 0)
	if err != nil {
		t.Fatalf("for section: %v", err)
	}
	if len(hist) != 2 || hist[0].VersionDate != "2024-01-02" {
		t.Errorf("history: %+v", hist)
	}

	ranged, err := s.ChangelogForPart(ctx, "390", "2023-01-01", "2023-12-31")
	if err != nil {
		t.Fatalf("for part: %v", err)
	}
	if len(ranged) != 1 || ranged[0].ID != "c1" {
		t.Errorf("ranged: %+v", ranged)
	}

	rowid, err := s.LatestChangeRowID(ctx)
	if err != nil {
		t.Fatalf("rowid: %v", err)
	}
	if rowid != 3 {
		t.Errorf("rowid: got %d, want 3", rowid)
	}
}

func TestAnnotationImpactFlow(t *testing.T) {
	// WHAT: Flagging is bulk, conditional, and idempotent; clearing is
	// per-row and user-driven.
	// WHY: The impact flag is the only coupling between the change tracker
	// and user data — re-flagging or un-flagging would corrupt review state.
	s := openTestDB(t)
	ctx := context.Background()

	for _, a := range []*Annotation{
		{ID: "a1", Kind: "highlight", SectionID: "390.5", ParagraphID: "390.5/p-0-a"},
		{ID: "a2", Kind: "note", SectionID: "390.5", ParagraphID: "390.5/p-1-b", Note: "check this"},
		{ID: "a3", Kind: "bookmark", SectionID: "391.11", ParagraphID: "391.11/p-0"},
	} {
		if err := s.InsertAnnotation(ctx, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := s.MarkImpactedBySection(ctx, "390.5")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if n != 2 {
		t.Errorf("flagged: got %d, want 2", n)
	}

	// Idempotent: second pass flags nothing.
	n, _ = s.MarkImpactedBySection(ctx, "390.5")
	if n != 0 {
		t.Errorf("re-flagged: got %d, want 0", n)
	}

	impacted, err := s.ListImpactedAnnotations(ctx)
	if err != nil {
		t.Fatalf("list impacted: %v", err)
	}
	if len(impacted) != 2 {
		t.Errorf("impacted: got %d, want 2", len(impacted))
	}

	// Unrelated section untouched.
	a3, _ := s.GetAnnotation(ctx, "a3")
	if a3.Impacted {
		t.Error("a3 must not be flagged")
	}

	if err := s.ClearImpact(ctx, "a1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	a1, _ := s.GetAnnotation(ctx, "a1")
	if a1.Impacted {
		t.Error("a1 still flagged after clear")
	}
}

func TestAnnotationDelete(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	s.InsertAnnotation(ctx, &Annotation{ID: "a1", Kind: "highlight", SectionID: "390.5", ParagraphID: "390.5/p-0"})

	if err := s.DeleteAnnotation(ctx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteAnnotation(ctx, "a1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchLog(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	for i, e := range []*FetchLogEntry{
		{ID: "f1", SectionID: "390.5", Status: "ok", StatusCode: 200, FetchedAt: 100},
		{ID: "f2", SectionID: "390.5", Status: "failed", StatusCode: 503, ErrorMessage: "http 503", FetchedAt: 200},
	} {
		if err := s.InsertFetchLog(ctx, e); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	hist, err := s.FetchHistory(ctx, "390.5", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].ID != "f2" {
		t.Errorf("history: %+v", hist)
	}
}
