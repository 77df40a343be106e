// Package detector proposes an initial chunk segmentation for a document.
//
// The document is first split into structural blocks (runs of non-blank
// lines), each annotated with cues such as headings, list items, code fences
// and quotes. Adjacent block boundaries are scored by combining those cues
// with an optional semantic similarity drop from an embedding function.
// Blocks are then accumulated into chunks under the size constraints in
// Params: a chunk closes once it reaches the target length at a reasonable
// boundary, earlier at a strong boundary once past the minimum, and is
// force-closed at the nearest line boundary before the hard ceiling.
//
// Output always satisfies the chunkset partition invariant: every line of
// the document belongs to exactly one chunk, with blank separator lines
// absorbed into the preceding chunk. When overlap is requested it travels as
// ContextBefore text rather than widening chunk bounds.
package detector
