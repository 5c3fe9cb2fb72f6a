package regml

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	chedPattern    = regexp.MustCompile(`(?is)<CHED[^>]*>(.*?)</CHED>`)
	rowPattern     = regexp.MustCompile(`(?is)<ROW[^>]*>(.*?)</ROW>`)
	entPattern     = regexp.MustCompile(`(?is)<ENT[^>]*>(.*?)</ENT>`)
	gidPattern     = regexp.MustCompile(`(?is)<GID[^>]*>(.*?)</GID>`)
	imgSrcPattern  = regexp.MustCompile(`(?i)src\s*=\s*"([^"]*)"`)
	imgAltPattern  = regexp.MustCompile(`(?i)alt\s*=\s*"([^"]*)"`)
	hdSourceLevel  = regexp.MustCompile(`(?i)SOURCE\s*=\s*"HD(\d)"`)
)

// parseGPOTable extracts headers and rows from a GPO-style table block
// (BOXHD/CHED column heads, ROW/ENT cells).
func parseGPOTable(raw string) (headers []string, rows [][]string) {
	for _, m := range chedPattern.FindAllStringSubmatch(raw, -1) {
		headers = append(headers, StripTags(m[1]))
	}
	for _, rm := range rowPattern.FindAllStringSubmatch(raw, -1) {
		var cells []string
		for _, em := range entPattern.FindAllStringSubmatch(rm[1], -1) {
			cells = append(cells, StripTags(em[1]))
		}
		rows = append(rows, cells)
	}
	return headers, rows
}

// parseHTMLTable extracts headers and rows from a generic <table> fragment.
// A malformed fragment degrades to an empty table rather than failing.
func parseHTMLTable(raw string) (headers []string, rows [][]string) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, nil
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			header := false
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode {
					continue
				}
				switch c.DataAtom {
				case atom.Th:
					header = true
					cells = append(cells, collectText(c))
				case atom.Td:
					cells = append(cells, collectText(c))
				}
			}
			if header && headers == nil {
				headers = cells
			} else if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return headers, rows
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// parseImage extracts the reference and optional caption from a graphic
// block (<GPH><GID>…</GID></GPH>) or an <img> tag.
func parseImage(raw string) (src, caption string) {
	if m := gidPattern.FindStringSubmatch(raw); m != nil {
		return StripTags(m[1]), ""
	}
	if m := imgSrcPattern.FindStringSubmatch(raw); m != nil {
		src = m[1]
	}
	if m := imgAltPattern.FindStringSubmatch(raw); m != nil {
		caption = m[1]
	}
	return src, caption
}

// headingLevel maps an HD block's SOURCE attribute to a 1-3 heading level.
func headingLevel(raw string) int {
	if m := hdSourceLevel.FindStringSubmatch(raw); m != nil {
		l := int(m[1][0] - '0')
		if l >= 1 && l <= 3 {
			return l
		}
		if l > 3 {
			return 3
		}
	}
	return 1
}
