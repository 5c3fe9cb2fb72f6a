package store

// SectionRow is the cached parse of one section plus the raw markup it was
// parsed from. The raw markup is kept for byte-for-byte change detection on
// the next sync pass.
type SectionRow struct {
	ID            string `json:"id"`
	Part          string `json:"part"`
	Title         string `json:"title"`
	SubpartLabel  string `json:"subpart_label,omitempty"`
	SubpartTitle  string `json:"subpart_title,omitempty"`
	NodesJSON     string `json:"nodes_json"`
	RawXML        []byte `json:"-"`
	SourceVersion string `json:"source_version"` // YYYY-MM-DD
	UpdatedAt     int64  `json:"updated_at"`
}

// PartTOCRow is the cached table of contents for a part.
type PartTOCRow struct {
	Part     string `json:"part"`
	Title    string `json:"title"`
	TOCJSON  string `json:"toc_json"`
	SyncedAt int64  `json:"synced_at"`
}

// ChangelogEntry is one detected content change. Rows are append-only.
type ChangelogEntry struct {
	ID            string `json:"id"`
	SectionID     string `json:"section_id"`
	Part          string `json:"part"`
	VersionDate   string `json:"version_date"`
	ChangeType    string `json:"change_type"` // "substantive" | "editorial"
	EffectiveDate string `json:"effective_date,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// Annotation is a user highlight, note, or bookmark anchored to a paragraph.
//
// Impacted is owned by the change tracker: only the tracker sets it true
// (bulk, conditional) and only the user-facing review action clears it.
type Annotation struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"` // "highlight" | "note" | "bookmark"
	SectionID        string `json:"section_id"`
	ParagraphID      string `json:"paragraph_id"`
	ParagraphIDsJSON string `json:"paragraph_ids_json,omitempty"`
	Note             string `json:"note,omitempty"`
	Impacted         bool   `json:"impacted"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

// FetchLogEntry is one fetch attempt record.
type FetchLogEntry struct {
	ID           string `json:"id"`
	SectionID    string `json:"section_id"`
	Status       string `json:"status"` // "ok" | "unchanged" | "failed"
	StatusCode   int    `json:"status_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	FetchedAt    int64  `json:"fetched_at"`
}
