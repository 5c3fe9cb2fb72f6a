package regml

import (
	"fmt"
	"regexp"
)

var (
	envelopePattern = regexp.MustCompile(`(?is)^\s*<DIV\d[^>]*>(.*)</DIV\d>\s*$`)
	headPattern     = regexp.MustCompile(`(?is)<HEAD[^>]*>(.*?)</HEAD>`)
)

// ParseSection parses a section's raw markup into an ordered node sequence.
// It never fails: markup where no chunk pattern matches degrades to a single
// unlabelled paragraph holding the whole stripped text, and empty markup
// yields a section with no content nodes.
func ParseSection(body string, meta SectionMeta) *Section {
	sec := &Section{
		Part:          meta.Part,
		Section:       meta.Section,
		Title:         meta.Title,
		SubpartLabel:  meta.SubpartLabel,
		SubpartTitle:  meta.SubpartTitle,
		SourceVersion: meta.SourceVersion,
	}

	// Strip the document envelope to the innermost container and pull the
	// HEAD as the section title when the caller did not supply one.
	if m := envelopePattern.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	if loc := headPattern.FindStringSubmatchIndex(body); loc != nil {
		if sec.Title == "" {
			sec.Title = StripTags(body[loc[2]:loc[3]])
		}
		body = body[:loc[0]] + body[loc[1]:]
	}

	sec.Content = assemble(body)
	return sec
}

// assemble runs the segment → classify → split pipeline over a body.
func assemble(body string) []Node {
	chunks := Segment(body)

	var (
		nodes                  []Node
		lv                     Levels
		pN, tN, imgN, hN, seen int
	)
	appendParagraph := func(label, text string, level int) {
		nodes = append(nodes, Node{
			ID:    fmt.Sprintf("p-%d", pN),
			Kind:  KindParagraph,
			Label: label,
			Text:  text,
			Level: level,
		})
		pN++
	}

	for _, ch := range chunks {
		switch ch.Kind {
		case ChunkGPOTable, ChunkHTMLTable:
			var headers []string
			var rows [][]string
			if ch.Kind == ChunkGPOTable {
				headers, rows = parseGPOTable(ch.Raw)
			} else {
				headers, rows = parseHTMLTable(ch.Raw)
			}
			nodes = append(nodes, Node{
				ID:      fmt.Sprintf("t-%d", tN),
				Kind:    KindTable,
				Headers: headers,
				Rows:    rows,
			})
			tN++
			seen++

		case ChunkGraphic, ChunkImage:
			src, caption := parseImage(ch.Raw)
			nodes = append(nodes, Node{
				ID:      fmt.Sprintf("img-%d", imgN),
				Kind:    KindImage,
				Src:     src,
				Caption: caption,
			})
			imgN++
			seen++

		case ChunkHeading:
			text := StripTags(ch.Raw)
			if text == "" {
				continue
			}
			nodes = append(nodes, Node{
				ID:           fmt.Sprintf("h-%d", hN),
				Kind:         KindHeading,
				Text:         text,
				HeadingLevel: headingLevel(ch.Raw),
			})
			hN++
			seen++

		case ChunkExtract, ChunkFlush:
			// Boxed extracts and flush paragraphs carry no outline label.
			if text := StripTags(ch.Raw); text != "" {
				appendParagraph("", text, 0)
				seen++
			}

		case ChunkParagraph:
			text := StripTags(ch.Raw)
			if text == "" {
				continue
			}
			for _, pair := range splitLabelled(text) {
				level := 0
				if pair.Label != "" {
					level = lv.Classify(pair.Label)
				}
				appendParagraph(pair.Label, pair.Text, level)
			}
			seen++
		}
	}

	if seen == 0 {
		// Universal degradation path: whole section as one paragraph.
		if text := StripTags(body); text != "" {
			return []Node{{ID: "p-0", Kind: KindParagraph, Text: text}}
		}
		return nil
	}
	return nodes
}
