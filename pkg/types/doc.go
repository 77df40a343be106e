// Package types provides shared type definitions for the Lorechunk MCP server.
//
// This package defines the domain records used across the segmentation engine:
// chunks, chunk kinds, boundary reason tags, typed metadata values, and the
// error taxonomy.
//
// # Core Types
//
// Chunk represents a contiguous line range of a document treated as one
// indexing/editing unit:
//
//	chunk := &types.Chunk{
//	    ChunkID:         types.DeterministicChunkID("doc", 0, 512),
//	    DocID:           "doc",
//	    StartLine:       0,
//	    EndLine:         11,
//	    BoundaryReasons: []string{types.ReasonParagraphBreak},
//	    ChunkKind:       types.ChunkChapterText,
//	}
//
// Line bounds are 0-indexed and inclusive. Char bounds, the text slice and
// the length fields are derived; the chunkset package recomputes them after
// every mutation.
//
// # Metadata
//
// Extra metadata is a typed mapping from string keys to scalar variants
// rather than a free-form bag:
//
//	chunk.Extra = map[string]types.MetaValue{
//	    "pov":      types.StringValue("third"),
//	    "chapter":  types.IntValue(7),
//	    "reviewed": types.BoolValue(true),
//	}
//
// # Errors
//
// ValidationError reports bad caller input, StructuralViolation reports a
// broken line partition, and ErrNotFound / ErrNoContent are the shared
// sentinels. All failures are scoped to a single operation; nothing here is
// fatal to the process.
package types
