package editor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorechunk/lorechunk-mcp/internal/chunkset"
	"github.com/lorechunk/lorechunk-mcp/internal/document"
	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

func makeDoc(t *testing.T, lines int, blanks ...int) *document.Document {
	t.Helper()
	blank := make(map[int]bool, len(blanks))
	for _, b := range blanks {
		blank[b] = true
	}
	parts := make([]string, lines)
	for i := range parts {
		if blank[i] {
			parts[i] = ""
		} else {
			parts[i] = fmt.Sprintf("line %d", i)
		}
	}
	return document.New("doc-1", strings.Join(parts, "\n"))
}

func makeSet(t *testing.T, doc *document.Document, ranges ...[2]int) *chunkset.Set {
	t.Helper()
	chunks := make([]*types.Chunk, len(ranges))
	for i, r := range ranges {
		chunks[i] = &types.Chunk{
			ChunkID:    fmt.Sprintf("c%d", i),
			DocID:      doc.DocID,
			StartLine:  r[0],
			EndLine:    r[1],
			ChunkKind:  types.ChunkChapterText,
			Confidence: 0.8,
		}
	}
	set := chunkset.New(doc.DocID, chunks...)
	set.Normalize(doc)
	require.NoError(t, set.Validate(doc))
	return set
}

func lineRanges(set *chunkset.Set) [][2]int {
	out := make([][2]int, 0, set.Len())
	for _, c := range set.NonMeta() {
		out = append(out, [2]int{c.StartLine, c.EndLine})
	}
	return out
}

func TestSplit_Midpoint(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 9})
	ed := New(doc)

	changed, err := ed.Split(set, "c0")
	require.NoError(t, err)
	assert.True(t, changed)

	require.Equal(t, 2, set.Len())
	assert.Equal(t, [][2]int{{0, 4}, {5, 9}}, lineRanges(set))

	second := set.Chunks[1]
	assert.NotEqual(t, "c0", second.ChunkID)
	assert.NotEmpty(t, second.ChunkID)
	assert.Equal(t, []string{types.ReasonManualSplit}, second.BoundaryReasons)
	assert.NoError(t, set.Validate(doc))
}

func TestSplit_SingleLineChunkFails(t *testing.T) {
	doc := makeDoc(t, 2)
	set := makeSet(t, doc, [2]int{0, 0}, [2]int{1, 1})
	ed := New(doc)

	changed, err := ed.Split(set, "c0")
	assert.False(t, changed)
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Reason, "single-line")
}

func TestSplit_UnknownChunk(t *testing.T) {
	doc := makeDoc(t, 4)
	set := makeSet(t, doc, [2]int{0, 3})
	ed := New(doc)

	_, err := ed.Split(set, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMergeWithNeighbor_Prev(t *testing.T) {
	doc := makeDoc(t, 30)
	set := makeSet(t, doc, [2]int{0, 9}, [2]int{10, 19}, [2]int{20, 29})
	set.Chunks[0].Confidence = 0.4
	set.Chunks[0].BoundaryReasons = []string{"heading start"}
	set.Chunks[1].BoundaryReasons = []string{"heading start", types.ReasonTargetLength}
	ed := New(doc)

	changed, err := ed.MergeWithNeighbor(set, "c1", DirectionPrev)
	require.NoError(t, err)
	assert.True(t, changed)

	require.Equal(t, 2, set.Len())
	assert.Equal(t, [][2]int{{0, 19}, {20, 29}}, lineRanges(set))

	merged := set.Chunks[0]
	assert.Equal(t, "c1", merged.ChunkID)
	assert.Equal(t, []string{"heading start", types.ReasonTargetLength}, merged.BoundaryReasons)
	assert.Contains(t, merged.Tags, "merged")
	assert.Equal(t, 0.4, merged.Confidence)
	assert.NoError(t, set.Validate(doc))
}

func TestMergeWithNeighbor_NoNeighborIsNoOp(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 4}, [2]int{5, 9})
	ed := New(doc)

	changed, err := ed.MergeWithNeighbor(set, "c0", DirectionPrev)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, set.Len())

	changed, err = ed.MergeWithNeighbor(set, "c1", DirectionNext)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSplitThenMergeRestoresRange(t *testing.T) {
	doc := makeDoc(t, 12)
	set := makeSet(t, doc, [2]int{0, 5}, [2]int{6, 11})
	ed := New(doc)

	_, err := ed.Split(set, "c0")
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	_, err = ed.MergeWithNeighbor(set, "c0", DirectionNext)
	require.NoError(t, err)

	require.Equal(t, 2, set.Len())
	assert.Equal(t, [][2]int{{0, 5}, {6, 11}}, lineRanges(set))
	assert.NoError(t, set.Validate(doc))
}

func TestNudgeBoundary_EndResizesNeighbor(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 4}, [2]int{5, 9})
	ed := New(doc)

	changed, err := ed.NudgeBoundary(set, "c0", EdgeEnd, 2)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, [][2]int{{0, 6}, {7, 9}}, lineRanges(set))
	assert.Contains(t, set.Chunks[0].BoundaryReasons, types.ReasonManualNudge)
	assert.NoError(t, set.Validate(doc))
}

func TestNudgeBoundary_ClampsAtNeighbor(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 4}, [2]int{5, 9})
	ed := New(doc)

	// The neighbor always keeps at least one line.
	changed, err := ed.NudgeBoundary(set, "c0", EdgeEnd, 10)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, [][2]int{{0, 8}, {9, 9}}, lineRanges(set))
	assert.NoError(t, set.Validate(doc))
}

func TestNudgeBoundary_NeverInverts(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 4}, [2]int{5, 9})
	ed := New(doc)

	changed, err := ed.NudgeBoundary(set, "c0", EdgeEnd, -10)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, [][2]int{{0, 0}, {1, 9}}, lineRanges(set))
	for _, c := range set.NonMeta() {
		assert.LessOrEqual(t, c.StartLine, c.EndLine)
	}
	assert.NoError(t, set.Validate(doc))
}

func TestNudgeBoundary_OuterEdgesPinned(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 4}, [2]int{5, 9})
	ed := New(doc)

	changed, err := ed.NudgeBoundary(set, "c0", EdgeStart, 2)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = ed.NudgeBoundary(set, "c1", EdgeEnd, -2)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, [][2]int{{0, 4}, {5, 9}}, lineRanges(set))
}

func TestParagraphSnap_DownToBlankLine(t *testing.T) {
	doc := makeDoc(t, 7, 3)
	set := makeSet(t, doc, [2]int{0, 1}, [2]int{2, 6})
	ed := New(doc)

	changed, err := ed.ParagraphSnap(set, "c0", EdgeEnd, SnapDown)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, [][2]int{{0, 3}, {4, 6}}, lineRanges(set))
	assert.NoError(t, set.Validate(doc))
}

func TestParagraphSnap_UpToBlankLine(t *testing.T) {
	doc := makeDoc(t, 8, 2)
	set := makeSet(t, doc, [2]int{0, 4}, [2]int{5, 7})
	ed := New(doc)

	changed, err := ed.ParagraphSnap(set, "c1", EdgeStart, SnapUp)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, [][2]int{{0, 1}, {2, 7}}, lineRanges(set))
	assert.NoError(t, set.Validate(doc))
}

func TestParagraphSnap_NoBlankSnapsToDocumentBoundary(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 4}, [2]int{5, 9})
	ed := New(doc)

	// No blank line above: the target is line 0, clamped so the previous
	// chunk keeps one line.
	changed, err := ed.ParagraphSnap(set, "c1", EdgeStart, SnapUp)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, [][2]int{{0, 0}, {1, 9}}, lineRanges(set))
	assert.NoError(t, set.Validate(doc))
}

func TestCarveFromSelection_InsideSingleChunk(t *testing.T) {
	doc := makeDoc(t, 20)
	set := makeSet(t, doc, [2]int{0, 19})
	ed := New(doc)

	carved, err := ed.CarveFromSelection(set, 5, 8)
	require.NoError(t, err)

	require.Equal(t, 3, set.Len())
	assert.Equal(t, [][2]int{{0, 4}, {5, 8}, {9, 19}}, lineRanges(set))
	assert.Equal(t, carved.ChunkID, set.Chunks[1].ChunkID)
	assert.Contains(t, carved.Tags, "manual selection")
	assert.Equal(t, []string{types.ReasonManualSelection}, carved.BoundaryReasons)
	assert.NoError(t, set.Validate(doc))
}

func TestCarveFromSelection_ReplacesCoveredChunk(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 4}, [2]int{5, 9})
	ed := New(doc)

	carved, err := ed.CarveFromSelection(set, 0, 4)
	require.NoError(t, err)

	require.Equal(t, 2, set.Len())
	assert.Equal(t, [][2]int{{0, 4}, {5, 9}}, lineRanges(set))
	assert.Equal(t, carved.ChunkID, set.Chunks[0].ChunkID)
	assert.NoError(t, set.Validate(doc))
}

func TestCarveFromSelection_AcrossBoundary(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 4}, [2]int{5, 9})
	ed := New(doc)

	_, err := ed.CarveFromSelection(set, 3, 6)
	require.NoError(t, err)

	require.Equal(t, 3, set.Len())
	assert.Equal(t, [][2]int{{0, 2}, {3, 6}, {7, 9}}, lineRanges(set))
	assert.NoError(t, set.Validate(doc))
}

func TestCarveFromSelection_ClampsToDocument(t *testing.T) {
	doc := makeDoc(t, 10)
	set := makeSet(t, doc, [2]int{0, 9})
	ed := New(doc)

	carved, err := ed.CarveFromSelection(set, 7, 99)
	require.NoError(t, err)
	assert.Equal(t, 9, carved.EndLine)
	assert.Equal(t, [][2]int{{0, 6}, {7, 9}}, lineRanges(set))
	assert.NoError(t, set.Validate(doc))
}

func TestEditor_RejectsMetaChunk(t *testing.T) {
	doc := makeDoc(t, 4)
	set := makeSet(t, doc, [2]int{0, 3})
	set.Chunks = append(set.Chunks, &types.Chunk{ChunkID: "meta", DocID: doc.DocID, IsMetaChunk: true, Text: "summary"})
	set.Normalize(doc)
	ed := New(doc)

	_, err := ed.Split(set, "meta")
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
}
