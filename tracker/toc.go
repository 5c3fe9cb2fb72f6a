package tracker

import (
	"strings"

	"github.com/regref/regref/ecfr"
)

// PartTOC is the flattened table of contents served to readers. Subparts
// hold sections in document order; appendices are kept at the end in their
// own pseudo-subpart.
type PartTOC struct {
	Part     string       `json:"part"`
	Title    string       `json:"title"`
	Subparts []TOCSubpart `json:"subparts"`
}

// TOCSubpart is one subpart heading with its sections.
type TOCSubpart struct {
	Label    string       `json:"label,omitempty"` // "A"; empty for unsubparted sections
	Title    string       `json:"title,omitempty"`
	Sections []TOCSection `json:"sections"`
}

// TOCSection is one section line in the table of contents.
type TOCSection struct {
	ID       string `json:"id"` // "390.5" or appendix slug
	Label    string `json:"label"`
	Title    string `json:"title,omitempty"`
	Appendix bool   `json:"appendix,omitempty"`
}

// BuildTOC flattens a provider structure tree into a PartTOC.
func BuildTOC(root *ecfr.StructureNode) *PartTOC {
	toc := &PartTOC{Part: root.Identifier, Title: root.Label}
	var current *TOCSubpart
	var appendices []TOCSection

	var walk func(n *ecfr.StructureNode)
	walk = func(n *ecfr.StructureNode) {
		switch n.Type {
		case "subpart":
			toc.Subparts = append(toc.Subparts, TOCSubpart{
				Label: n.Identifier,
				Title: n.Label,
			})
			current = &toc.Subparts[len(toc.Subparts)-1]
		case "section":
			sec := TOCSection{ID: n.Identifier, Label: n.Label, Title: sectionTitle(n.Label)}
			if current == nil {
				toc.Subparts = append(toc.Subparts, TOCSubpart{})
				current = &toc.Subparts[len(toc.Subparts)-1]
			}
			current.Sections = append(current.Sections, sec)
			return
		case "appendix":
			appendices = append(appendices, TOCSection{
				ID:       appendixID(root.Identifier, n.Identifier),
				Label:    n.Label,
				Appendix: true,
			})
			return
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(root)

	if len(appendices) > 0 {
		toc.Subparts = append(toc.Subparts, TOCSubpart{Title: "Appendices", Sections: appendices})
	}
	return toc
}

// Neighbors returns the ids of the sections before and after the given one
// in reading order. Either may be empty at the edges or when the id is not
// in the TOC.
func (t *PartTOC) Neighbors(sectionID string) (prev, next string) {
	var flat []string
	for _, sp := range t.Subparts {
		for _, s := range sp.Sections {
			flat = append(flat, s.ID)
		}
	}
	for i, id := range flat {
		if id != sectionID {
			continue
		}
		if i > 0 {
			prev = flat[i-1]
		}
		if i < len(flat)-1 {
			next = flat[i+1]
		}
		return prev, next
	}
	return "", ""
}

// sectionTitle strips the "§ 390.5" prefix from a section label, leaving
// the heading text. Upstream labels look like "§ 390.5 Definitions.".
func sectionTitle(label string) string {
	rest := label
	if i := strings.Index(rest, " "); strings.HasPrefix(rest, "§") && i >= 0 {
		rest = strings.TrimSpace(rest[i+1:])
		if j := strings.Index(rest, " "); j >= 0 {
			return strings.TrimSpace(rest[j+1:])
		}
		return ""
	}
	return rest
}

// appendixID forms the stable slug used to address an appendix like a
// section: "385-appA".
func appendixID(part, identifier string) string {
	ident := strings.TrimSpace(identifier)
	ident = strings.TrimPrefix(ident, "Appendix ")
	ident = strings.ReplaceAll(ident, " ", "")
	return part + "-app" + ident
}
