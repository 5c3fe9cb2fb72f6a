// Package regml parses GPO-style regulatory markup into a flat, ordered
// sequence of typed nodes. Outline depth is inferred from parenthetical
// labels ("(a)", "(1)", "(iii)") rather than from the markup itself, because
// the source format does not nest labelled clauses structurally.
//
// Parsing is pure and total: the same markup always yields the same node
// sequence, and any non-empty input yields at least one node (unrecognized
// markup degrades to a single unlabelled paragraph).
package regml

import "fmt"

// NodeKind identifies the structural type of a node.
type NodeKind string

const (
	KindParagraph NodeKind = "paragraph"
	KindTable     NodeKind = "table"
	KindImage     NodeKind = "image"
	KindHeading   NodeKind = "heading"
)

// Node is one visual/structural unit of a section. Nodes are stored as a
// flat sequence in document order; Level implies nesting, there are no
// parent pointers.
type Node struct {
	ID    string   `json:"id"`              // sequence-scoped: p-0, t-1, img-0, h-2
	Kind  NodeKind `json:"kind"`
	Label string   `json:"label,omitempty"` // outline marker without parens: "a", "1", "iii"
	Text  string   `json:"text,omitempty"`
	Level int      `json:"level"` // 0 = unlabelled/flush, 1-6 = outline depth

	// Table nodes only.
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`

	// Image nodes only.
	Src     string `json:"src,omitempty"`
	Caption string `json:"caption,omitempty"`

	// Heading nodes only.
	HeadingLevel int `json:"heading_level,omitempty"` // 1-3
}

// SectionMeta carries the metadata the parser cannot derive from the body.
type SectionMeta struct {
	Part          string
	Section       string // "390.5" or an appendix slug like "385-appA"
	Title         string
	SubpartLabel  string
	SubpartTitle  string
	SourceVersion string // provider as-of date, YYYY-MM-DD
}

// Section is a parsed section: ordered nodes plus metadata.
type Section struct {
	Part          string `json:"part"`
	Section       string `json:"section"`
	Title         string `json:"title"`
	SubpartLabel  string `json:"subpart_label,omitempty"`
	SubpartTitle  string `json:"subpart_title,omitempty"`
	Content       []Node `json:"content"`
	SourceVersion string `json:"source_version"`
}

// ParagraphID derives the external address of a paragraph node from its
// section, label, and ordinal among the section's paragraph nodes (the
// numeric suffix of the node's ID).
//
// This derivation is a versioned contract: annotations store the derived id
// and recompute it at render time to re-locate a node. A re-parse that
// produces a different ordering silently re-targets stored annotations, so
// the rule must never change without a migration of the annotations table.
func ParagraphID(sectionID, label string, index int) string {
	if label == "" {
		return fmt.Sprintf("%s/p-%d", sectionID, index)
	}
	return fmt.Sprintf("%s/p-%d-%s", sectionID, index, label)
}
