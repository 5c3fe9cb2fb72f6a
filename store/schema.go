package store

import "context"

// Schema is the complete schema. Every statement is idempotent so the schema
// can be applied on every startup.
const Schema = `
-- Cached section content, one row per section, overwritten on re-fetch.
CREATE TABLE IF NOT EXISTS sections (
    id             TEXT PRIMARY KEY,
    part           TEXT NOT NULL,
    title          TEXT NOT NULL DEFAULT '',
    subpart_label  TEXT NOT NULL DEFAULT '',
    subpart_title  TEXT NOT NULL DEFAULT '',
    nodes_json     TEXT NOT NULL DEFAULT '[]',
    raw_xml        BLOB NOT NULL,
    source_version TEXT NOT NULL,
    updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sections_part ON sections(part);

-- Cached part table of contents, rebuilt wholesale on structure sync.
CREATE TABLE IF NOT EXISTS part_tocs (
    part      TEXT PRIMARY KEY,
    title     TEXT NOT NULL DEFAULT '',
    toc_json  TEXT NOT NULL,
    synced_at INTEGER NOT NULL
);

-- Append-only change history. One row per detected content change.
CREATE TABLE IF NOT EXISTS changelog (
    id             TEXT PRIMARY KEY,
    section_id     TEXT NOT NULL,
    part           TEXT NOT NULL,
    version_date   TEXT NOT NULL,
    change_type    TEXT NOT NULL,
    effective_date TEXT NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_changelog_section ON changelog(section_id, version_date DESC);
CREATE INDEX IF NOT EXISTS idx_changelog_part ON changelog(part, version_date);

-- User annotations: highlights, notes, bookmarks.
CREATE TABLE IF NOT EXISTS annotations (
    id                 TEXT PRIMARY KEY,
    kind               TEXT NOT NULL,
    section_id         TEXT NOT NULL,
    paragraph_id       TEXT NOT NULL,
    paragraph_ids_json TEXT NOT NULL DEFAULT '[]',
    note               TEXT NOT NULL DEFAULT '',
    impacted           INTEGER NOT NULL DEFAULT 0,
    created_at         INTEGER NOT NULL,
    updated_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_annotations_section ON annotations(section_id);
CREATE INDEX IF NOT EXISTS idx_annotations_impacted ON annotations(impacted) WHERE impacted = 1;

-- Fetch attempts (observability).
CREATE TABLE IF NOT EXISTS fetch_log (
    id            TEXT PRIMARY KEY,
    section_id    TEXT NOT NULL,
    status        TEXT NOT NULL,
    status_code   INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    fetched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_section ON fetch_log(section_id, fetched_at DESC);
`

// ApplySchema creates all tables and indexes. Idempotent.
func (s *Store) ApplySchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, Schema)
	return err
}
