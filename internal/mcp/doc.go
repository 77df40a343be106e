// Package mcp implements the Model Context Protocol (MCP) server for
// LoreChunk.
//
// The MCP server exposes six tools for segmenting documents and editing
// chunk boundaries:
//   - detect_chunks: Segment raw text into chunks, reusing stored results
//   - get_document: Load a document's chunk set, version and state
//   - list_documents: List stored documents with statistics
//   - edit_boundary: Apply split, merge, nudge, snap or carve edits
//   - save_chunks: Persist the chunk set under the next version
//   - embed_handoff: Emit chunks to an external indexing collaborator
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output,
// making it simple to integrate with any MCP-compatible client.
//
// # Tool: detect_chunks
//
// Segment a document. When the stored text for the document matches the
// supplied text, the persisted chunk set is returned without recomputation:
//
//	Request:
//	{
//	  "name": "detect_chunks",
//	  "arguments": {
//	    "doc_id": "the-shattered-realm",
//	    "text": "Chapter One\n\nThe old keep...",
//	    "target_chars": 1200
//	  }
//	}
//
//	Response:
//	{
//	  "doc_id": "the-shattered-realm",
//	  "version": 1,
//	  "persisted": true,
//	  "reused": false,
//	  "chunk_count": 7,
//	  "chunks": [...]
//	}
//
// # Tool: edit_boundary
//
// Apply one boundary edit. Every edit keeps the chunk set an exact
// partition of the document; the full updated set is returned:
//
//	Request:
//	{
//	  "name": "edit_boundary",
//	  "arguments": {
//	    "doc_id": "the-shattered-realm",
//	    "op": "nudge",
//	    "chunk_id": "4f1c...",
//	    "edge": "end",
//	    "delta_lines": -2
//	  }
//	}
//
//	Response:
//	{
//	  "doc_id": "the-shattered-realm",
//	  "op": "nudge",
//	  "changed": true,
//	  "dirty": true,
//	  "chunk_count": 7,
//	  "chunks": [...]
//	}
//
// Edits mark the session dirty and schedule a debounced autosave; a later
// save_chunks call persists immediately and cancels the pending autosave.
//
// # Tool: save_chunks
//
// Persist the current in-memory set, or replace it wholesale when a chunks
// array (optionally with text) is supplied:
//
//	Request:
//	{
//	  "name": "save_chunks",
//	  "arguments": {
//	    "doc_id": "the-shattered-realm",
//	    "finalized": true
//	  }
//	}
//
//	Response:
//	{
//	  "doc_id": "the-shattered-realm",
//	  "version": 4,
//	  "finalized": true
//	}
//
// # Error Handling
//
// The server returns standard JSON-RPC error responses:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "Invalid params",
//	    "data": {
//	      "param": "doc_id",
//	      "reason": "missing or empty"
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Unknown document or chunk id
//   - -32002: Text is empty or whitespace-only
//   - -32003: Supplied chunk set is not a valid partition of the document
//
// # Logging
//
// The server logs to stderr (stdout is reserved for MCP protocol):
//
//	log.SetOutput(os.Stderr)
//	log.Printf("MCP server started")
package mcp
