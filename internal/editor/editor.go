package editor

import (
	"github.com/google/uuid"

	"github.com/lorechunk/lorechunk-mcp/internal/chunkset"
	"github.com/lorechunk/lorechunk-mcp/internal/document"
	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

// Edge names which boundary of a chunk an operation moves.
type Edge string

const (
	EdgeStart Edge = "start"
	EdgeEnd   Edge = "end"
)

// Direction selects a neighbor for merge operations.
type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

// SnapDirection selects which way a paragraph snap scans.
type SnapDirection string

const (
	SnapUp   SnapDirection = "up"
	SnapDown SnapDirection = "down"
)

// Editor applies boundary operations to a chunk set over one document. Every
// operation clamps its inputs so the set's partition invariant holds when it
// returns; operations report changed=false when the request was a no-op.
type Editor struct {
	doc *document.Document
}

// New creates an Editor for the given document.
func New(doc *document.Document) *Editor {
	return &Editor{doc: doc}
}

// Split bisects a chunk at its line midpoint. The first piece keeps the
// original id; the second gets a fresh id and a manual-split boundary reason.
// A single-line chunk cannot be split.
func (e *Editor) Split(set *chunkset.Set, chunkID string) (bool, error) {
	c, idx, err := e.findEditable(set, chunkID)
	if err != nil {
		return false, err
	}
	if c.StartLine == c.EndLine {
		return false, &types.ValidationError{Field: "chunk_id", Reason: "cannot split single-line chunk"}
	}

	mid := (c.StartLine + c.EndLine) / 2
	second := &types.Chunk{
		ChunkID:         uuid.NewString(),
		DocID:           c.DocID,
		StartLine:       mid + 1,
		EndLine:         c.EndLine,
		BoundaryReasons: []string{types.ReasonManualSplit},
		Confidence:      c.Confidence,
		ChunkKind:       c.ChunkKind,
		Overlap:         c.Overlap,
	}
	c.EndLine = mid

	set.Chunks = append(set.Chunks, nil)
	copy(set.Chunks[idx+2:], set.Chunks[idx+1:])
	set.Chunks[idx+1] = second

	set.Normalize(e.doc)
	return true, nil
}

// MergeWithNeighbor unions a chunk with its previous or next neighbor. The
// named chunk keeps its id and absorbs the neighbor's range; boundary reasons
// are deduplicated, the merged tag is added, and confidence drops to the
// lower of the two. Merging at the edge of the set is a no-op.
func (e *Editor) MergeWithNeighbor(set *chunkset.Set, chunkID string, dir Direction) (bool, error) {
	if dir != DirectionPrev && dir != DirectionNext {
		return false, &types.ValidationError{Field: "direction", Reason: "must be prev or next"}
	}
	c, _, err := e.findEditable(set, chunkID)
	if err != nil {
		return false, err
	}

	nonMeta := set.NonMeta()
	pos := -1
	for i, nc := range nonMeta {
		if nc.ChunkID == chunkID {
			pos = i
			break
		}
	}
	var neighbor *types.Chunk
	switch {
	case dir == DirectionPrev && pos > 0:
		neighbor = nonMeta[pos-1]
	case dir == DirectionNext && pos < len(nonMeta)-1:
		neighbor = nonMeta[pos+1]
	default:
		return false, nil
	}

	if neighbor.StartLine < c.StartLine {
		c.StartLine = neighbor.StartLine
	}
	if neighbor.EndLine > c.EndLine {
		c.EndLine = neighbor.EndLine
	}
	for _, r := range neighbor.BoundaryReasons {
		c.AddBoundaryReason(r)
	}
	for _, tag := range neighbor.Tags {
		c.AddTag(tag)
	}
	c.AddTag("merged")
	if neighbor.Confidence < c.Confidence {
		c.Confidence = neighbor.Confidence
	}

	_, nIdx, err := set.Find(neighbor.ChunkID)
	if err != nil {
		return false, err
	}
	set.Chunks = append(set.Chunks[:nIdx], set.Chunks[nIdx+1:]...)

	set.Normalize(e.doc)
	return true, nil
}

// NudgeBoundary moves one edge of a chunk by deltaLines, resizing the
// adjacent neighbor so the partition stays exact. The move is clamped so the
// chunk and its neighbor each keep at least one line, and the document's
// outer edges never move.
func (e *Editor) NudgeBoundary(set *chunkset.Set, chunkID string, edge Edge, deltaLines int) (bool, error) {
	c, _, err := e.findEditable(set, chunkID)
	if err != nil {
		return false, err
	}
	var target int
	switch edge {
	case EdgeStart:
		target = c.StartLine + deltaLines
	case EdgeEnd:
		target = c.EndLine + deltaLines
	default:
		return false, &types.ValidationError{Field: "edge", Reason: "must be start or end"}
	}
	return e.setEdge(set, c, edge, target)
}

// ParagraphSnap moves one edge of a chunk to the nearest blank line in the
// given direction, or to the document boundary when no blank line exists
// before it. The same neighbor clamps as NudgeBoundary apply.
func (e *Editor) ParagraphSnap(set *chunkset.Set, chunkID string, edge Edge, dir SnapDirection) (bool, error) {
	c, _, err := e.findEditable(set, chunkID)
	if err != nil {
		return false, err
	}
	if edge != EdgeStart && edge != EdgeEnd {
		return false, &types.ValidationError{Field: "edge", Reason: "must be start or end"}
	}
	if dir != SnapUp && dir != SnapDown {
		return false, &types.ValidationError{Field: "direction", Reason: "must be up or down"}
	}

	from := c.StartLine
	if edge == EdgeEnd {
		from = c.EndLine
	}
	step := 1
	if dir == SnapUp {
		step = -1
	}

	total := e.doc.LineCount()
	target := -1
	for line := from + step; line >= 0 && line < total; line += step {
		if e.doc.IsBlankLine(line) {
			target = line
			break
		}
	}
	if target == -1 {
		if dir == SnapUp {
			target = 0
		} else {
			target = total - 1
		}
	}
	return e.setEdge(set, c, edge, target)
}

// CarveFromSelection inserts a new chunk over [startLine, endLine]. Chunks
// overlapping the selection are trimmed to their portions outside it; chunks
// fully inside it are removed. The new chunk carries the manual-selection
// tag and a fresh id.
func (e *Editor) CarveFromSelection(set *chunkset.Set, startLine, endLine int) (*types.Chunk, error) {
	ix := e.doc.Index()
	startLine = ix.ClampLine(startLine)
	endLine = ix.ClampLine(endLine)
	if startLine > endLine {
		return nil, &types.ValidationError{Field: "start_line", Reason: "selection start is after its end"}
	}

	kept := make([]*types.Chunk, 0, len(set.Chunks)+2)
	for _, c := range set.Chunks {
		if c.IsMetaChunk {
			kept = append(kept, c)
			continue
		}
		switch {
		case c.EndLine < startLine || c.StartLine > endLine:
			kept = append(kept, c)
		case c.StartLine >= startLine && c.EndLine <= endLine:
			// Fully covered by the selection.
		case c.StartLine < startLine && c.EndLine > endLine:
			// Selection splits the chunk in two.
			after := c.Clone()
			after.ChunkID = uuid.NewString()
			after.StartLine = endLine + 1
			c.EndLine = startLine - 1
			kept = append(kept, c, after)
		case c.StartLine < startLine:
			c.EndLine = startLine - 1
			kept = append(kept, c)
		default:
			c.StartLine = endLine + 1
			kept = append(kept, c)
		}
	}

	carved := &types.Chunk{
		ChunkID:         uuid.NewString(),
		DocID:           set.DocID,
		StartLine:       startLine,
		EndLine:         endLine,
		BoundaryReasons: []string{types.ReasonManualSelection},
		Tags:            []string{"manual selection"},
		Confidence:      1.0,
		ChunkKind:       types.ChunkChapterText,
	}
	set.Chunks = append(kept, carved)

	set.Normalize(e.doc)
	return carved, nil
}

// setEdge applies a clamped edge move with coupled neighbor resize. Returns
// changed=false when the clamp resolves to the current position.
func (e *Editor) setEdge(set *chunkset.Set, c *types.Chunk, edge Edge, target int) (bool, error) {
	nonMeta := set.NonMeta()
	pos := -1
	for i, nc := range nonMeta {
		if nc.ChunkID == c.ChunkID {
			pos = i
			break
		}
	}

	if edge == EdgeStart {
		// The first chunk's start is pinned to the document start.
		if pos == 0 {
			return false, nil
		}
		prev := nonMeta[pos-1]
		if target <= prev.StartLine {
			target = prev.StartLine + 1
		}
		if target > c.EndLine {
			target = c.EndLine
		}
		if target == c.StartLine {
			return false, nil
		}
		c.StartLine = target
		prev.EndLine = target - 1
	} else {
		// The last chunk's end is pinned to the document end.
		if pos == len(nonMeta)-1 {
			return false, nil
		}
		next := nonMeta[pos+1]
		if target >= next.EndLine {
			target = next.EndLine - 1
		}
		if target < c.StartLine {
			target = c.StartLine
		}
		if target == c.EndLine {
			return false, nil
		}
		c.EndLine = target
		next.StartLine = target + 1
	}

	c.AddBoundaryReason(types.ReasonManualNudge)
	set.Normalize(e.doc)
	return true, nil
}

func (e *Editor) findEditable(set *chunkset.Set, chunkID string) (*types.Chunk, int, error) {
	c, idx, err := set.Find(chunkID)
	if err != nil {
		return nil, -1, err
	}
	if c.IsMetaChunk {
		return nil, -1, &types.ValidationError{Field: "chunk_id", Reason: "meta chunk has no line boundaries"}
	}
	return c, idx, nil
}
