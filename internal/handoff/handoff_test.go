package handoff

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

type captureSink struct {
	mu      sync.Mutex
	records []*Record
	fail    string
}

func (c *captureSink) EmbedChunk(_ context.Context, rec *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != "" && rec.ChunkID == c.fail {
		return errors.New("index unavailable")
	}
	c.records = append(c.records, rec)
	return nil
}

func testChunks() []*types.Chunk {
	return []*types.Chunk{
		{
			ChunkID:   "c1",
			DocID:     "doc-1",
			StartLine: 0,
			EndLine:   4,
			Text:      "first chunk",
			ChunkKind: types.ChunkChapterText,
			Tags:      []string{"intro"},
			EntityIDs: []string{"thing-3"},
		},
		{
			ChunkID:     "meta",
			DocID:       "doc-1",
			Text:        "document summary",
			ChunkKind:   types.ChunkDocumentMeta,
			IsMetaChunk: true,
		},
		{
			ChunkID:   "c2",
			DocID:     "doc-1",
			StartLine: 5,
			EndLine:   9,
			Text:      "second chunk",
			ChunkKind: types.ChunkChapterText,
		},
	}
}

func TestBuildRecords_SkipsMetaChunks(t *testing.T) {
	records := BuildRecords("doc-1", testChunks())

	require.Len(t, records, 2)
	first := records[0]
	assert.Equal(t, "c1", first.ChunkID)
	assert.Equal(t, "first chunk", first.Text)
	assert.Equal(t, "chapter_text", first.ChunkKind)
	assert.Equal(t, []string{"intro"}, first.Tags)
	assert.Equal(t, []string{"thing-3"}, first.EntityIDs)
	assert.Equal(t, "doc-1", first.SourceFile)
	assert.Equal(t, "lines 0-4", first.SourceSection)

	assert.Equal(t, "lines 5-9", records[1].SourceSection)
}

func TestDispatch_EmitsAllRecords(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, 2)

	n, err := d.Dispatch(context.Background(), "doc-1", testChunks())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	ids := map[string]bool{}
	for _, rec := range sink.records {
		ids[rec.ChunkID] = true
	}
	assert.True(t, ids["c1"])
	assert.True(t, ids["c2"])
}

func TestDispatch_PropagatesSinkError(t *testing.T) {
	sink := &captureSink{fail: "c2"}
	d := NewDispatcher(sink, 1)

	_, err := d.Dispatch(context.Background(), "doc-1", testChunks())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c2")
}

func TestDispatch_EmptySet(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, 0)

	n, err := d.Dispatch(context.Background(), "doc-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
