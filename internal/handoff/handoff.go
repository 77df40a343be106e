// Package handoff emits finalized chunks to the external indexing
// collaborator. The engine never embeds or indexes anything itself; it hands
// over plain records and lets the collaborator decide what to do with them.
package handoff

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

// DefaultWorkers bounds concurrent sink calls during a dispatch.
const DefaultWorkers = 4

// Record is the payload handed over for one chunk.
type Record struct {
	ChunkID       string   `json:"chunk_id"`
	Text          string   `json:"text"`
	ChunkKind     string   `json:"chunk_kind"`
	Tags          []string `json:"tags,omitempty"`
	EntityIDs     []string `json:"entity_ids,omitempty"`
	SourceFile    string   `json:"source_file"`
	SourceSection string   `json:"source_section"`
}

// Sink receives handoff records. Implementations typically forward to a
// vector index or embedding service.
type Sink interface {
	EmbedChunk(ctx context.Context, rec *Record) error
}

// BuildRecords converts the non-meta chunks of a set into handoff records.
// The document id doubles as the source file reference.
func BuildRecords(docID string, chunks []*types.Chunk) []*Record {
	records := make([]*Record, 0, len(chunks))
	for _, c := range chunks {
		if c.IsMetaChunk {
			continue
		}
		records = append(records, &Record{
			ChunkID:       c.ChunkID,
			Text:          c.Text,
			ChunkKind:     string(c.ChunkKind),
			Tags:          append([]string(nil), c.Tags...),
			EntityIDs:     append([]string(nil), c.EntityIDs...),
			SourceFile:    docID,
			SourceSection: c.SourceSection(),
		})
	}
	return records
}

// Dispatcher fans records out to a sink with bounded concurrency.
type Dispatcher struct {
	sink    Sink
	workers int
}

// NewDispatcher creates a Dispatcher. workers <= 0 falls back to
// DefaultWorkers.
func NewDispatcher(sink Sink, workers int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{sink: sink, workers: workers}
}

// Dispatch hands every non-meta chunk to the sink and returns the number of
// records emitted. The first sink error cancels the remaining calls.
func (d *Dispatcher) Dispatch(ctx context.Context, docID string, chunks []*types.Chunk) (int, error) {
	records := BuildRecords(docID, chunks)
	if len(records) == 0 {
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if err := d.sink.EmbedChunk(ctx, rec); err != nil {
				return fmt.Errorf("handoff for chunk %s: %w", rec.ChunkID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(records), nil
}
