package document

import (
	"sort"
	"strings"
)

// Document pairs an immutable-per-version text with its derived line offset
// index. Replacing the text means building a new Document.
type Document struct {
	DocID string
	Text  string

	index *LineOffsetIndex
}

// New builds a Document and its offset index in one linear pass over text.
func New(docID, text string) *Document {
	return &Document{
		DocID: docID,
		Text:  text,
		index: NewLineOffsetIndex(text),
	}
}

// Index returns the document's line offset index.
func (d *Document) Index() *LineOffsetIndex {
	return d.index
}

// LineCount returns the number of lines in the document.
func (d *Document) LineCount() int {
	return d.index.LineCount()
}

// Line returns the content of line i without its trailing newline.
func (d *Document) Line(i int) string {
	start, end := d.index.LineSpan(i)
	return strings.TrimSuffix(d.Text[start:end], "\n")
}

// IsBlankLine reports whether line i is empty after trimming whitespace.
func (d *Document) IsBlankLine(i int) bool {
	return strings.TrimSpace(d.Line(i)) == ""
}

// Slice returns the text of the half-open char range [start, end).
func (d *Document) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(d.Text) {
		end = len(d.Text)
	}
	if start >= end {
		return ""
	}
	return d.Text[start:end]
}

// LineOffsetIndex maps line numbers to character offsets. For a document of
// N lines it holds N+1 strictly non-decreasing offsets, where offset i is the
// starting char of line i and offset N is the text length.
//
// Line splitting follows strings.Split(text, "\n") semantics: a trailing
// newline produces one additional empty final line, and empty text has zero
// lines. All range math in the engine shares this convention.
type LineOffsetIndex struct {
	offsets []int
	textLen int
}

// NewLineOffsetIndex scans text once and records the start offset of every
// line.
func NewLineOffsetIndex(text string) *LineOffsetIndex {
	if text == "" {
		return &LineOffsetIndex{offsets: []int{0}}
	}
	offsets := make([]int, 1, strings.Count(text, "\n")+2)
	offsets[0] = 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	offsets = append(offsets, len(text))
	return &LineOffsetIndex{offsets: offsets, textLen: len(text)}
}

// LineCount returns the number of lines.
func (ix *LineOffsetIndex) LineCount() int {
	return len(ix.offsets) - 1
}

// LineStart returns the starting char offset of line i, clamped to the valid
// line range.
func (ix *LineOffsetIndex) LineStart(i int) int {
	if i < 0 {
		return 0
	}
	if i >= ix.LineCount() {
		return ix.textLen
	}
	return ix.offsets[i]
}

// LineSpan returns the half-open char range [start, end) of line i,
// including its trailing newline when present.
func (ix *LineOffsetIndex) LineSpan(i int) (start, end int) {
	if ix.LineCount() == 0 {
		return 0, 0
	}
	if i < 0 {
		i = 0
	}
	if i >= ix.LineCount() {
		i = ix.LineCount() - 1
	}
	return ix.offsets[i], ix.offsets[i+1]
}

// CharRange returns the half-open char range covering the inclusive line
// range [startLine, endLine].
func (ix *LineOffsetIndex) CharRange(startLine, endLine int) (start, end int) {
	s, _ := ix.LineSpan(startLine)
	_, e := ix.LineSpan(endLine)
	return s, e
}

// LineAt returns the line containing char offset c. Offsets at or past the
// end of text map to the final line.
func (ix *LineOffsetIndex) LineAt(c int) int {
	n := ix.LineCount()
	if n == 0 || c <= 0 {
		return 0
	}
	if c >= ix.textLen {
		return n - 1
	}
	// First line whose span ends past c.
	i := sort.Search(n, func(i int) bool { return ix.offsets[i+1] > c })
	return i
}

// ClampLine clamps a line number into the valid range [0, LineCount-1].
func (ix *LineOffsetIndex) ClampLine(i int) int {
	if i < 0 {
		return 0
	}
	if n := ix.LineCount(); i >= n {
		if n == 0 {
			return 0
		}
		return n - 1
	}
	return i
}
