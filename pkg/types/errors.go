package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// ErrNoContent is returned by the detector for empty or whitespace-only
	// text.
	ErrNoContent = errors.New("no content to segment")

	// ErrNotFound is returned when a requested document or chunk doesn't
	// exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports invalid caller input. No state is mutated when one
// is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StructuralViolation reports a chunk set whose non-meta chunks do not form
// an exact partition of the document's line range. Edit operations clamp so
// this can never result from them; it surfaces only when external callers
// supply a broken set.
type StructuralViolation struct {
	DocID   string
	ChunkID string
	Reason  string
}

func (e *StructuralViolation) Error() string {
	if e.ChunkID != "" {
		return fmt.Sprintf("structural violation in document %s at chunk %s: %s", e.DocID, e.ChunkID, e.Reason)
	}
	return fmt.Sprintf("structural violation in document %s: %s", e.DocID, e.Reason)
}
