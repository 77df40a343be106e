package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// detectChunksTool returns the tool definition for detect_chunks
func detectChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "detect_chunks",
		Description: "Segment raw document text into chunks, reusing the stored chunk set when the text is unchanged",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Document id; derived from title or content when omitted",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Document title used to derive doc_id when doc_id is omitted",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Raw document text to segment",
				},
				"min_chars": map[string]interface{}{
					"type":        "integer",
					"description": "Minimum chunk length in characters",
					"minimum":     1,
				},
				"target_chars": map[string]interface{}{
					"type":        "integer",
					"description": "Preferred chunk length in characters",
					"minimum":     1,
				},
				"max_chars": map[string]interface{}{
					"type":        "integer",
					"description": "Hard ceiling on chunk length in characters",
					"minimum":     1,
				},
				"overlap": map[string]interface{}{
					"type":        "integer",
					"description": "Characters of preceding context carried on each chunk",
					"minimum":     0,
				},
			},
			Required: []string{"text"},
		},
	}
}

// getDocumentTool returns the tool definition for get_document
func getDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_document",
		Description: "Load a document's current chunk set, version and state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Document id",
				},
				"include_text": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include the full document text in the response",
					"default":     false,
				},
			},
			Required: []string{"doc_id"},
		},
	}
}

// listDocumentsTool returns the tool definition for list_documents
func listDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_documents",
		Description: "List stored documents with version and chunk statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// editBoundaryTool returns the tool definition for edit_boundary
func editBoundaryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "edit_boundary",
		Description: "Apply a boundary edit (split, merge, nudge, snap or carve) to a document's chunk set",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Document id",
				},
				"op": map[string]interface{}{
					"type":        "string",
					"description": "Boundary operation to apply",
					"enum":        []string{"split", "merge", "nudge", "snap", "carve"},
				},
				"chunk_id": map[string]interface{}{
					"type":        "string",
					"description": "Target chunk id (required for all ops except carve)",
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"description": "Neighbor for merge (prev/next) or scan direction for snap (up/down)",
					"enum":        []string{"prev", "next", "up", "down"},
				},
				"edge": map[string]interface{}{
					"type":        "string",
					"description": "Which chunk edge to move for nudge and snap",
					"enum":        []string{"start", "end"},
				},
				"delta_lines": map[string]interface{}{
					"type":        "integer",
					"description": "Signed line offset for nudge",
				},
				"start_line": map[string]interface{}{
					"type":        "integer",
					"description": "Selection start line for carve (0-indexed, inclusive)",
					"minimum":     0,
				},
				"end_line": map[string]interface{}{
					"type":        "integer",
					"description": "Selection end line for carve (0-indexed, inclusive)",
					"minimum":     0,
				},
			},
			Required: []string{"doc_id", "op"},
		},
	}
}

// saveChunksTool returns the tool definition for save_chunks
func saveChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "save_chunks",
		Description: "Persist a document's chunk set under the next version, optionally replacing it and marking it finalized",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Document id",
				},
				"finalized": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, mark the document ready for downstream indexing",
					"default":     false,
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Document text to save; requires a chunks array, and replaces any loaded text",
				},
				"chunks": map[string]interface{}{
					"type":        "array",
					"description": "Replacement chunk set; the current in-memory set is saved when omitted",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"chunk_id":      map[string]interface{}{"type": "string"},
							"start_line":    map[string]interface{}{"type": "integer", "minimum": 0},
							"end_line":      map[string]interface{}{"type": "integer", "minimum": 0},
							"is_meta":       map[string]interface{}{"type": "boolean", "default": false},
							"text":          map[string]interface{}{"type": "string", "description": "Meta chunk text; ignored for regular chunks"},
							"chunk_kind":    map[string]interface{}{"type": "string"},
							"summary_title": map[string]interface{}{"type": "string"},
							"thing_type":    map[string]interface{}{"type": "string"},
							"confidence":    map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
							"boundary_reasons": map[string]interface{}{
								"type":  "array",
								"items": map[string]interface{}{"type": "string"},
							},
							"tags": map[string]interface{}{
								"type":  "array",
								"items": map[string]interface{}{"type": "string"},
							},
							"entity_ids": map[string]interface{}{
								"type":  "array",
								"items": map[string]interface{}{"type": "string"},
							},
							"extra": map[string]interface{}{
								"type":        "object",
								"description": "Scalar metadata values only",
							},
						},
					},
				},
			},
			Required: []string{"doc_id"},
		},
	}
}

// embedHandoffTool returns the tool definition for embed_handoff
func embedHandoffTool() mcp.Tool {
	return mcp.Tool{
		Name:        "embed_handoff",
		Description: "Emit a document's non-meta chunks to the external indexing collaborator",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Document id",
				},
			},
			Required: []string{"doc_id"},
		},
	}
}
