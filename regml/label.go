package regml

import (
	"strconv"
	"strings"
)

// labelClass partitions labels by lexical shape. Shape alone never decides a
// level below the top: a lowercase "i" can sit at level 1, 3, or 6 depending
// on what came before it, so classification dispatches first on class, then
// on the outline context accumulated so far.
type labelClass int

const (
	classOther      labelClass = iota
	classUpper                 // "A", "B" — always level 4
	classDigits                // "1", "12"
	classMultiRoman            // "ii", "iv" — multi-char lowercase roman numeral
	classLowerPlain            // single lowercase letter outside i,v,x,l,c,m
	classLowerRoman            // single lowercase roman letter: ambiguous
)

func lexClass(label string) labelClass {
	switch {
	case label == "":
		return classOther
	case isUpperLetters(label):
		return classUpper
	case isDigits(label):
		return classDigits
	case len(label) > 1 && isLowerRoman(label):
		return classMultiRoman
	case len(label) == 1 && label[0] >= 'a' && label[0] <= 'z':
		if strings.ContainsRune("ivxlcm", rune(label[0])) {
			return classLowerRoman
		}
		return classLowerPlain
	default:
		return classOther
	}
}

// Levels remembers the most recent label seen at each of the 7 outline
// depths within one section. The zero value is ready to use. State is never
// carried across sections — allocate a fresh value per parse.
type Levels struct {
	last [7]string
}

// Classify assigns an outline depth to label and updates the accumulator:
// every remembered label deeper than the assigned level is cleared, because
// starting an item at depth L implicitly closes all deeper open items.
func (lv *Levels) Classify(label string) int {
	level := lv.resolve(label)
	for l := level + 1; l < len(lv.last); l++ {
		lv.last[l] = ""
	}
	lv.last[level] = label
	return level
}

func (lv *Levels) resolve(label string) int {
	switch lexClass(label) {
	case classUpper:
		return 4
	case classMultiRoman:
		return lv.resolveMultiRoman(label)
	case classDigits:
		return lv.resolveDigits(label)
	case classLowerRoman:
		return lv.resolveAmbiguousRoman(label)
	default:
		// Plain lowercase letters and anything unrecognized start at the top.
		return 1
	}
}

// resolveMultiRoman places a multi-character roman numeral ("ii", "iii").
// Rank comparison against the open roman run decides between the deep run
// under a numeric item (level 6) and the run under an uppercase item
// (level 3).
func (lv *Levels) resolveMultiRoman(label string) int {
	rank := romanValue(label)
	pred := lv.last[6]
	if pred == "" {
		pred = lv.last[5]
	}
	if pred != "" && romanValue(pred) < rank {
		return 6
	}
	if p := lv.last[3]; p != "" && romanValue(p) < rank {
		return 3
	}
	if lv.last[5] != "" || lv.last[6] != "" {
		return 6
	}
	return 3
}

// resolveDigits places an all-digits label. Under an uppercase item a digit
// normally opens the deepest numeric run, except when it numerically
// continues a top-level numbered list that an uppercase aside interrupted.
// That exception is a best-effort heuristic observed in FMCSR outlines, not
// a documented grammar.
func (lv *Levels) resolveDigits(label string) int {
	if lv.last[5] != "" {
		return 5
	}
	if lv.last[4] != "" {
		if p := lv.last[2]; p != "" && continuesNumeric(p, label) {
			return 2
		}
		return 5
	}
	return 2
}

// resolveAmbiguousRoman places a single-letter label from i,v,x,l,c,m.
func (lv *Levels) resolveAmbiguousRoman(label string) int {
	// Continuing an alphabetic run: previous level-1 label is a single
	// letter lexically before this one and no level-2 item has opened since.
	if p := lv.last[1]; p != "" && len(p) == 1 && p < label && lv.last[2] == "" {
		return 1
	}
	if lv.last[5] != "" && label == "i" {
		return 6
	}
	if lv.last[6] != "" {
		return 6
	}
	if lv.last[3] != "" || (lv.last[2] != "" && label == "i") {
		return 3
	}
	return 1
}

func isUpperLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isLowerRoman(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("ivxlcm", r) {
			return false
		}
	}
	return true
}

func continuesNumeric(prev, cur string) bool {
	p, err1 := strconv.Atoi(prev)
	c, err2 := strconv.Atoi(cur)
	return err1 == nil && err2 == nil && c == p+1
}

// romanValue converts a lowercase roman numeral to its rank. Non-roman input
// yields 0, which orders below every valid numeral.
func romanValue(s string) int {
	values := map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'm': 1000}
	result, prev := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := values[s[i]]
		if !ok {
			return 0
		}
		if v < prev {
			result -= v
		} else {
			result += v
		}
		prev = v
	}
	return result
}
