package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is a word-level edit operation.
type Op string

const (
	OpEqual  Op = "equal"
	OpDelete Op = "delete"
	OpInsert Op = "insert"
)

// Segment is one run of words sharing an edit operation.
type Segment struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// WordSegments computes word-granularity edit segments between two texts, so
// only the changed words are flagged rather than the whole paragraph. Words
// are mapped to single runes before diffing — the same trick diffmatchpatch
// uses for its line mode — then mapped back and merged by operation.
func WordSegments(oldText, newText string) []Segment {
	if oldText == newText {
		if oldText == "" {
			return nil
		}
		return []Segment{{Op: OpEqual, Text: oldText}}
	}

	dmp := diffmatchpatch.New()
	// A diff cut short by the default timeout is input-dependent; zero keeps
	// the output reproducible.
	dmp.DiffTimeout = 0

	a, b, vocab := wordsToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, vocab)

	var out []Segment
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		op := OpEqual
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		}
		if len(out) > 0 && out[len(out)-1].Op == op {
			out[len(out)-1].Text += d.Text
			continue
		}
		out = append(out, Segment{Op: op, Text: d.Text})
	}
	return out
}

// wordsToChars encodes both texts as strings of runes, one rune per distinct
// word (trailing spaces kept with their word so decoding reassembles the
// original text exactly).
func wordsToChars(a, b string) (string, string, []string) {
	vocab := []string{""} // index 0 reserved, mirrors DiffLinesToChars
	index := make(map[string]int)
	encode := func(s string) string {
		var sb strings.Builder
		for _, w := range splitWords(s) {
			i, ok := index[w]
			if !ok {
				vocab = append(vocab, w)
				i = len(vocab) - 1
				index[w] = i
			}
			sb.WriteRune(rune(i))
		}
		return sb.String()
	}
	return encode(a), encode(b), vocab
}

// splitWords splits after each space run, keeping the spaces attached to the
// preceding word.
func splitWords(s string) []string {
	var words []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			continue
		}
		j := i
		for j < len(s) && s[j] == ' ' {
			j++
		}
		words = append(words, s[start:j])
		start = j
		i = j - 1
	}
	if start < len(s) {
		words = append(words, s[start:])
	}
	return words
}
