package regml

import (
	"regexp"
	"strings"
)

// LabeledText is one (label, text) pair peeled from a paragraph chunk.
type LabeledText struct {
	Label string
	Text  string
}

// introCutoff is the heuristic length under which text before a clause
// boundary counts as an intro clause rather than real content.
const introCutoff = 80

const labelChars = `[0-9a-zA-Z]{1,5}`

var (
	leadingLabel   = regexp.MustCompile(`^\((` + labelChars + `)\)\s*`)
	clauseBoundary = regexp.MustCompile(`([.:;]|—)\s*\((` + labelChars + `)\)\s`)
)

// splitLabelled decomposes stripped paragraph text into labelled pairs. Text
// with no leading label stays whole as a single unlabelled pair.
func splitLabelled(text string) []LabeledText {
	m := leadingLabel.FindStringSubmatch(text)
	if m == nil {
		return []LabeledText{{Text: text}}
	}
	return splitPacked(m[1], text[len(m[0]):])
}

// splitPacked recursively peels labelled clauses that the source glued into
// one paragraph, e.g. "(a) Foo applies. (1) Detail one. (2) Detail two".
// Each recursion consumes at least the leading label, so it terminates, and
// the fallthrough emits the remaining text whole, so any non-empty input
// yields at least one pair.
func splitPacked(label, text string) []LabeledText {
	// An inner label immediately after the outer one means the outer label
	// was purely introductory: "(a)(1) Detail" carries no level-1 text.
	if m := leadingLabel.FindStringSubmatch(text); m != nil {
		if len(label) == 1 && label[0] >= 'a' && label[0] <= 'z' &&
			(isDigits(m[1]) || isLowerRoman(m[1])) {
			return append([]LabeledText{{Label: label}},
				splitPacked(m[1], text[len(m[0]):])...)
		}
	}

	// A short clause ending at a sentence delimiter followed by a fresh
	// label is an intro clause; the rest is a packed sub-list.
	if m := clauseBoundary.FindStringSubmatchIndex(text); m != nil {
		intro := strings.TrimSpace(text[:m[3]])
		if len(intro) < introCutoff {
			rest := text[m[4]-1:] // from the "(" of the inner label
			inner := leadingLabel.FindStringSubmatch(rest)
			if inner != nil {
				return append([]LabeledText{{Label: label, Text: intro}},
					splitPacked(inner[1], rest[len(inner[0]):])...)
			}
		}
	}

	return []LabeledText{{Label: label, Text: text}}
}
