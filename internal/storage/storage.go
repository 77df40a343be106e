package storage

import (
	"context"
	"time"

	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

// Storage defines the interface for persisting versioned chunk sets
type Storage interface {
	// SaveChunkSet persists the document text and its chunks under the next
	// version number, returning that version. finalized marks the document
	// ready for downstream indexing without forbidding further edits.
	SaveChunkSet(ctx context.Context, docID, text string, finalized bool, chunks []*types.Chunk) (int, error)

	// LoadDocument returns the most recently saved state for a document
	LoadDocument(ctx context.Context, docID string) (*StoredDocument, error)

	// ListDocuments returns summaries of every stored document
	ListDocuments(ctx context.Context) ([]*DocumentInfo, error)

	// DeleteDocument removes a document and its chunks
	DeleteDocument(ctx context.Context, docID string) error

	// Close closes the underlying database
	Close() error
}

// StoredDocument is the persisted state of one document
type StoredDocument struct {
	DocID     string
	Text      string
	Version   int
	Finalized bool
	UpdatedAt time.Time
	Chunks    []*types.Chunk
}

// DocumentInfo is a listing summary for a stored document
type DocumentInfo struct {
	DocID      string
	Version    int
	Finalized  bool
	ChunkCount int
	TextChars  int
	UpdatedAt  time.Time
}
