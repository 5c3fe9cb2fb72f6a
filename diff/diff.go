// Package diff aligns two parsed node sequences of the same section and
// classifies each aligned position, with word-level edit segments for
// modified paragraph text.
//
// Alignment matches nodes on (label, kind) only: text changes alone never
// break alignment, which is what turns an amended paragraph into Modified
// instead of a Removed/Added pair. The result is deterministic — same
// inputs, byte-identical output.
package diff

import (
	"github.com/regref/regref/regml"
)

// Status classifies one aligned position.
type Status string

const (
	Unchanged Status = "unchanged"
	Modified  Status = "modified"
	Added     Status = "added"
	Removed   Status = "removed"
)

// Result is one entry of the aligned diff, in document order.
type Result struct {
	Status   Status      `json:"status"`
	Old      *regml.Node `json:"old,omitempty"` // nil for Added
	New      *regml.Node `json:"new,omitempty"` // nil for Removed
	Segments []Segment   `json:"segments,omitempty"` // Modified paragraphs only
}

// Compare aligns old against new and classifies every position. Image nodes
// are excluded up front — diffing a reference string is not meaningful.
// Tables and headings are classified at whole-node granularity.
func Compare(oldNodes, newNodes []regml.Node) []Result {
	a := diffable(oldNodes)
	b := diffable(newNodes)
	m, n := len(a), len(b)

	// L[i][j] = length of the longest aligned subsequence of a[i:], b[j:].
	L := make([][]int, m+1)
	for i := range L {
		L[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			switch {
			case aligned(a[i], b[j]):
				L[i][j] = L[i+1][j+1] + 1
			case L[i+1][j] >= L[i][j+1]:
				L[i][j] = L[i+1][j]
			default:
				L[i][j] = L[i][j+1]
			}
		}
	}

	// Forward walk emits results in document order. On ties the removal is
	// emitted before the addition, keeping the output deterministic.
	var out []Result
	i, j := 0, 0
	for i < m && j < n {
		switch {
		case aligned(a[i], b[j]):
			out = append(out, matchResult(&a[i], &b[j]))
			i++
			j++
		case L[i+1][j] >= L[i][j+1]:
			out = append(out, Result{Status: Removed, Old: &a[i]})
			i++
		default:
			out = append(out, Result{Status: Added, New: &b[j]})
			j++
		}
	}
	for ; i < m; i++ {
		out = append(out, Result{Status: Removed, Old: &a[i]})
	}
	for ; j < n; j++ {
		out = append(out, Result{Status: Added, New: &b[j]})
	}
	return out
}

// aligned is the matching predicate: same kind, same label.
func aligned(a, b regml.Node) bool {
	return a.Kind == b.Kind && a.Label == b.Label
}

func matchResult(o, n *regml.Node) Result {
	if nodesEqual(o, n) {
		return Result{Status: Unchanged, Old: o, New: n}
	}
	r := Result{Status: Modified, Old: o, New: n}
	if o.Kind == regml.KindParagraph {
		r.Segments = WordSegments(o.Text, n.Text)
	}
	return r
}

// nodesEqual compares content, ignoring the sequence-scoped ID.
func nodesEqual(a, b *regml.Node) bool {
	if a.Text != b.Text || a.Level != b.Level || a.HeadingLevel != b.HeadingLevel ||
		a.Src != b.Src || a.Caption != b.Caption {
		return false
	}
	if len(a.Headers) != len(b.Headers) || len(a.Rows) != len(b.Rows) {
		return false
	}
	for i := range a.Headers {
		if a.Headers[i] != b.Headers[i] {
			return false
		}
	}
	for i := range a.Rows {
		if len(a.Rows[i]) != len(b.Rows[i]) {
			return false
		}
		for j := range a.Rows[i] {
			if a.Rows[i][j] != b.Rows[i][j] {
				return false
			}
		}
	}
	return true
}

func diffable(nodes []regml.Node) []regml.Node {
	out := make([]regml.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind == regml.KindImage {
			continue
		}
		out = append(out, n)
	}
	return out
}
