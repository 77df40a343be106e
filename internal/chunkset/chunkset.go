package chunkset

import (
	"fmt"
	"sort"

	"github.com/lorechunk/lorechunk-mcp/internal/document"
	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

// Set is the ordered collection of chunks for one document. Non-meta chunks
// must exactly partition the document's line range; at most one meta chunk
// may exist and it is exempt from coverage.
type Set struct {
	DocID  string
	Chunks []*types.Chunk
}

// New creates a Set over the given chunks. Callers are expected to Normalize
// before relying on derived fields or ordering.
func New(docID string, chunks ...*types.Chunk) *Set {
	return &Set{DocID: docID, Chunks: chunks}
}

// Normalize clamps every non-meta chunk's line bounds into the document's
// valid range, recomputes the derived char bounds, text slice and lengths
// from the offset index, and sorts the set (meta chunk first, then ascending
// by start line). Meta chunks keep their author-supplied bounds. Calling
// Normalize on an already-normalized set is a no-op.
func (s *Set) Normalize(doc *document.Document) {
	ix := doc.Index()
	for _, c := range s.Chunks {
		if c.IsMetaChunk {
			c.LengthChars = len(c.Text)
			continue
		}
		c.StartLine = ix.ClampLine(c.StartLine)
		c.EndLine = ix.ClampLine(c.EndLine)
		if c.EndLine < c.StartLine {
			c.EndLine = c.StartLine
		}
		c.StartChar, c.EndChar = ix.CharRange(c.StartLine, c.EndLine)
		c.Text = doc.Slice(c.StartChar, c.EndChar)
		c.LengthLines = c.EndLine - c.StartLine + 1
		c.LengthChars = c.EndChar - c.StartChar
		if c.LengthChars < 0 {
			c.LengthChars = 0
		}
	}
	sort.SliceStable(s.Chunks, func(i, j int) bool {
		a, b := s.Chunks[i], s.Chunks[j]
		if a.IsMetaChunk != b.IsMetaChunk {
			return a.IsMetaChunk
		}
		return a.StartLine < b.StartLine
	})
}

// Validate checks the partition invariant: the non-meta chunks, in order,
// must cover [0, LineCount) with no gaps or overlaps, every chunk must have
// start <= end, and at most one meta chunk may be present. An empty document
// is valid only with zero non-meta chunks.
func (s *Set) Validate(doc *document.Document) error {
	metaSeen := false
	for _, c := range s.Chunks {
		if err := c.Validate(); err != nil {
			return err
		}
		if c.IsMetaChunk {
			if metaSeen {
				return &types.StructuralViolation{
					DocID:   s.DocID,
					ChunkID: c.ChunkID,
					Reason:  "more than one meta chunk",
				}
			}
			metaSeen = true
		}
	}

	nonMeta := s.NonMeta()
	total := doc.LineCount()
	if total == 0 {
		if len(nonMeta) != 0 {
			return &types.StructuralViolation{
				DocID:  s.DocID,
				Reason: "chunks present for empty document",
			}
		}
		return nil
	}
	if len(nonMeta) == 0 {
		return &types.StructuralViolation{
			DocID:  s.DocID,
			Reason: fmt.Sprintf("no chunks cover lines 0-%d", total-1),
		}
	}

	next := 0
	for _, c := range nonMeta {
		if c.StartLine > next {
			return &types.StructuralViolation{
				DocID:   s.DocID,
				ChunkID: c.ChunkID,
				Reason:  fmt.Sprintf("gap before line %d (lines %d-%d uncovered)", c.StartLine, next, c.StartLine-1),
			}
		}
		if c.StartLine < next {
			return &types.StructuralViolation{
				DocID:   s.DocID,
				ChunkID: c.ChunkID,
				Reason:  fmt.Sprintf("overlap at line %d", c.StartLine),
			}
		}
		next = c.EndLine + 1
	}
	if next != total {
		return &types.StructuralViolation{
			DocID:  s.DocID,
			Reason: fmt.Sprintf("lines %d-%d uncovered at document end", next, total-1),
		}
	}
	return nil
}

// Find returns the chunk with the given id and its position within the set.
func (s *Set) Find(chunkID string) (*types.Chunk, int, error) {
	for i, c := range s.Chunks {
		if c.ChunkID == chunkID {
			return c, i, nil
		}
	}
	return nil, -1, fmt.Errorf("chunk %s: %w", chunkID, types.ErrNotFound)
}

// NonMeta returns the partition-participating chunks in set order.
func (s *Set) NonMeta() []*types.Chunk {
	out := make([]*types.Chunk, 0, len(s.Chunks))
	for _, c := range s.Chunks {
		if !c.IsMetaChunk {
			out = append(out, c)
		}
	}
	return out
}

// MetaChunk returns the document's meta chunk, or nil when absent.
func (s *Set) MetaChunk() *types.Chunk {
	for _, c := range s.Chunks {
		if c.IsMetaChunk {
			return c
		}
	}
	return nil
}

// Len returns the total chunk count including any meta chunk.
func (s *Set) Len() int {
	return len(s.Chunks)
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	dup := &Set{DocID: s.DocID, Chunks: make([]*types.Chunk, len(s.Chunks))}
	for i, c := range s.Chunks {
		dup.Chunks[i] = c.Clone()
	}
	return dup
}
