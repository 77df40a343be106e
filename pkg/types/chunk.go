package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// ChunkKind labels the semantic role of a chunk within a document.
type ChunkKind string

const (
	// ChunkChapterText is ordinary document prose, part of the line partition.
	ChunkChapterText ChunkKind = "chapter_text"
	// ChunkDocumentMeta is an out-of-band document summary chunk. It holds
	// enrichment output, not a slice of the document, and is exempt from the
	// partition invariant.
	ChunkDocumentMeta ChunkKind = "document_meta"
)

// Boundary reason tags. Every chunk edge carries an ordered list of these
// explaining why it was placed where it is.
const (
	ReasonTargetLength    = "target length reached"
	ReasonParagraphBreak  = "paragraph break"
	ReasonMaxCeiling      = "max length ceiling"
	ReasonDocumentEnd     = "document end"
	ReasonDocumentMeta    = "document meta"
	ReasonManualSplit     = "manual split"
	ReasonManualNudge     = "manual nudge"
	ReasonManualSelection = "manual selection"
)

// Chunk is a contiguous line range of one document treated as a single
// editing and indexing unit. Line bounds are 0-indexed and inclusive; char
// bounds are a half-open range into the document text. StartChar, EndChar,
// Text, LengthLines and LengthChars are derived from the line bounds by
// chunkset normalization and must never be edited independently.
type Chunk struct {
	// Identification
	ChunkID string
	DocID   string

	// Authoritative location
	StartLine int
	EndLine   int

	// Derived location and content
	StartChar   int
	EndChar     int
	Text        string
	LengthLines int
	LengthChars int

	// ContextBefore carries up to Overlap characters of preceding document
	// text, rounded back to a line start, so boundary context survives
	// embedding. The line partition itself stays exact.
	ContextBefore string
	Overlap       int

	// Boundary provenance
	BoundaryReasons []string
	Confidence      float64

	// Enrichment (assigned by an external collaborator, defaulted here)
	ChunkKind     ChunkKind
	SummaryTitle  string
	ThingType     string
	Tags          []string
	EntityIDs     []string
	ParentChunkID string
	ChildChunkIDs []string

	// IsMetaChunk marks the out-of-band document summary chunk.
	IsMetaChunk bool

	// Extra holds validated scalar metadata (see MetaValue).
	Extra map[string]MetaValue
}

// DeterministicChunkID derives a stable chunk identifier from the document id
// and char offsets. Detector output uses this so re-detection of identical
// text yields identical ids; manual edits mint fresh ids instead.
func DeterministicChunkID(docID string, startChar, endChar int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d:%d", docID, startChar, endChar)))
	return hex.EncodeToString(sum[:])
}

// Validate checks the chunk's internal line-range sanity. Partition-level
// checks live in the chunkset package.
func (c *Chunk) Validate() error {
	if c.ChunkID == "" {
		return &ValidationError{Field: "chunk_id", Reason: "must not be empty"}
	}
	if c.IsMetaChunk {
		return nil
	}
	if c.StartLine < 0 {
		return &ValidationError{Field: "start_line", Reason: "must not be negative"}
	}
	if c.StartLine > c.EndLine {
		return &ValidationError{
			Field:  "end_line",
			Reason: fmt.Sprintf("start_line %d exceeds end_line %d", c.StartLine, c.EndLine),
		}
	}
	return nil
}

// HasBoundaryReason reports whether the chunk already carries the given tag.
func (c *Chunk) HasBoundaryReason(reason string) bool {
	for _, r := range c.BoundaryReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// AddBoundaryReason appends a tag unless it is already present, preserving
// order.
func (c *Chunk) AddBoundaryReason(reason string) {
	if !c.HasBoundaryReason(reason) {
		c.BoundaryReasons = append(c.BoundaryReasons, reason)
	}
}

// HasTag reports whether the chunk carries the given tag.
func (c *Chunk) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends a tag unless it is already present.
func (c *Chunk) AddTag(tag string) {
	if !c.HasTag(tag) {
		c.Tags = append(c.Tags, tag)
	}
}

// Clone returns a deep copy of the chunk.
func (c *Chunk) Clone() *Chunk {
	dup := *c
	dup.BoundaryReasons = append([]string(nil), c.BoundaryReasons...)
	dup.Tags = append([]string(nil), c.Tags...)
	dup.EntityIDs = append([]string(nil), c.EntityIDs...)
	dup.ChildChunkIDs = append([]string(nil), c.ChildChunkIDs...)
	if c.Extra != nil {
		dup.Extra = make(map[string]MetaValue, len(c.Extra))
		for k, v := range c.Extra {
			dup.Extra[k] = v
		}
	}
	return &dup
}

// SourceSection renders the chunk's line span for embed handoff metadata,
// e.g. "lines 10-24".
func (c *Chunk) SourceSection() string {
	return fmt.Sprintf("lines %d-%d", c.StartLine, c.EndLine)
}
