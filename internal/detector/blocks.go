package detector

import (
	"regexp"
	"strings"

	"github.com/lorechunk/lorechunk-mcp/internal/document"
)

// Cue is a structural hint detected on a block of text.
type Cue string

const (
	CueHeading      Cue = "heading"
	CueList         Cue = "list"
	CueFence        Cue = "fence"
	CueQuote        Cue = "quote"
	CueLeadingBlank Cue = "leading_blank"
)

var (
	listItemRe    = regexp.MustCompile(`^\s*[-*+]\s+`)
	orderedItemRe = regexp.MustCompile(`^\s*\d+\.\s+`)
)

// Block is a contiguous run of non-blank lines, annotated with structural
// cues. Blocks are separated by blank lines; the separator lines themselves
// belong to no block.
type Block struct {
	Text      string
	StartLine int // 0-indexed, inclusive
	EndLine   int // 0-indexed, inclusive
	StartChar int
	EndChar   int
	Cues      map[Cue]bool

	// TrailingBlankLines counts the blank lines immediately after the block.
	TrailingBlankLines int
}

// Has reports whether the block carries the given cue.
func (b *Block) Has(cue Cue) bool {
	return b.Cues[cue]
}

func classifyLine(line string) []Cue {
	var cues []Cue
	stripped := strings.TrimSpace(line)
	if strings.HasPrefix(stripped, "#") {
		cues = append(cues, CueHeading)
	}
	if listItemRe.MatchString(stripped) || orderedItemRe.MatchString(stripped) {
		cues = append(cues, CueList)
	}
	if strings.HasPrefix(stripped, "```") || strings.HasPrefix(stripped, "~~~") {
		cues = append(cues, CueFence)
	}
	if strings.HasPrefix(stripped, ">") {
		cues = append(cues, CueQuote)
	}
	return cues
}

// ParseBlocks splits a document into structural blocks using blank lines as
// separators, annotating each block with the cues of its lines.
func ParseBlocks(doc *document.Document) []*Block {
	ix := doc.Index()
	total := doc.LineCount()

	var blocks []*Block
	var current *Block
	blankStreak := 0

	flush := func(endLine, endChar int) {
		if current == nil {
			return
		}
		current.EndLine = endLine
		current.EndChar = endChar
		current.Text = doc.Slice(current.StartChar, current.EndChar)
		current.TrailingBlankLines = 0
		blocks = append(blocks, current)
		current = nil
	}

	for i := 0; i < total; i++ {
		lineStart, _ := ix.LineSpan(i)
		if doc.IsBlankLine(i) {
			blankStreak++
			if current != nil {
				flush(i-1, lineStart)
				blocks[len(blocks)-1].TrailingBlankLines = 1
			} else if len(blocks) > 0 {
				blocks[len(blocks)-1].TrailingBlankLines++
			}
			continue
		}

		if current == nil {
			current = &Block{
				StartLine: i,
				StartChar: lineStart,
				Cues:      make(map[Cue]bool),
			}
			if blankStreak > 0 {
				current.Cues[CueLeadingBlank] = true
			}
			blankStreak = 0
		}
		for _, cue := range classifyLine(doc.Line(i)) {
			current.Cues[cue] = true
		}
	}
	if current != nil {
		_, endChar := ix.LineSpan(total - 1)
		flush(total-1, endChar)
	}
	return blocks
}
