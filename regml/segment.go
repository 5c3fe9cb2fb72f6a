package regml

import "regexp"

// ChunkKind identifies which markup pattern claimed a chunk.
type ChunkKind int

const (
	ChunkGPOTable ChunkKind = iota
	ChunkHTMLTable
	ChunkGraphic
	ChunkExtract
	ChunkImage
	ChunkHeading
	ChunkFlush
	ChunkParagraph
)

// Chunk is one raw markup fragment claimed by exactly one pattern.
type Chunk struct {
	Kind ChunkKind
	Raw  string
}

// chunkPattern is a single ordered alternation over every chunk type the
// provider emits. One pass preserves document order and guarantees no tag is
// claimed twice; text between matches carries no content and is discarded.
// The order of alternatives is the match priority — container blocks before
// the generic paragraph.
var chunkPattern = regexp.MustCompile(`(?is)` +
	`(?P<gpotable><GPOTABLE[^>]*>.*?</GPOTABLE>)` +
	`|(?P<htmltable><table[^>]*>.*?</table>)` +
	`|(?P<graphic><GPH[^>]*>.*?</GPH>)` +
	`|(?P<extract><EXTRACT[^>]*>.*?</EXTRACT>)` +
	`|(?P<image><img[^>]*>)` +
	`|(?P<heading><HD[^>]*>.*?</HD>)` +
	`|(?P<flush><FP(?:\s[^>]*)?>.*?</FP>)` +
	`|(?P<para><P(?:\s[^>]*)?>.*?</P>)`)

var groupKinds = map[string]ChunkKind{
	"gpotable":  ChunkGPOTable,
	"htmltable": ChunkHTMLTable,
	"graphic":   ChunkGraphic,
	"extract":   ChunkExtract,
	"image":     ChunkImage,
	"heading":   ChunkHeading,
	"flush":     ChunkFlush,
	"para":      ChunkParagraph,
}

// Segment splits a section body (envelope already stripped) into an ordered
// list of typed chunks. A body with no recognizable chunks yields nil; the
// assembler's fallback handles that case.
func Segment(body string) []Chunk {
	names := chunkPattern.SubexpNames()
	var chunks []Chunk
	for _, m := range chunkPattern.FindAllStringSubmatch(body, -1) {
		for gi, name := range names {
			if gi == 0 || name == "" || m[gi] == "" {
				continue
			}
			chunks = append(chunks, Chunk{Kind: groupKinds[name], Raw: m[gi]})
			break
		}
	}
	return chunks
}
