package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lorechunk/lorechunk-mcp/internal/detector"
	"github.com/lorechunk/lorechunk-mcp/internal/editor"
	"github.com/lorechunk/lorechunk-mcp/internal/session"
	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound        = -32001 // Unknown document or chunk id
	ErrorCodeEmptyText       = -32002 // Text is empty or whitespace-only
	ErrorCodeInvalidChunkSet = -32003 // Supplied chunk set violates the partition invariant
)

// handleDetectChunks handles the detect_chunks tool invocation
func (s *Server) handleDetectChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text, ok := args["text"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing",
		})
	}

	docID := getStringDefault(args, "doc_id", "")
	if docID == "" {
		docID = session.DeriveDocID(getStringDefault(args, "title", ""), text)
	}

	d := s.cfg.Detector
	params := detector.Params{
		MinChars:    getIntDefault(args, "min_chars", d.MinChars),
		TargetChars: getIntDefault(args, "target_chars", d.TargetChars),
		MaxChars:    getIntDefault(args, "max_chars", d.MaxChars),
		Overlap:     getIntDefault(args, "overlap", d.Overlap),
	}

	sess, err := s.manager.Session(docID)
	if err != nil {
		return nil, mapError(err)
	}
	res, err := sess.DetectOrReuse(ctx, text, params)
	if err != nil {
		return nil, mapError(err)
	}

	response := map[string]interface{}{
		"doc_id":      docID,
		"version":     res.Version,
		"persisted":   res.Persisted,
		"reused":      res.Reused,
		"chunk_count": res.Set.Len(),
		"chunks":      chunksJSON(res.Set.Chunks),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetDocument handles the get_document tool invocation
func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "doc_id parameter is required", map[string]interface{}{
			"param":  "doc_id",
			"reason": "missing or empty",
		})
	}

	snap, err := s.openSnapshot(ctx, docID)
	if err != nil {
		return nil, mapError(err)
	}

	response := map[string]interface{}{
		"doc_id":      snap.DocID,
		"version":     snap.Version,
		"finalized":   snap.Finalized,
		"dirty":       snap.Dirty,
		"state":       string(snap.State),
		"chunk_count": len(snap.Chunks),
		"chunks":      chunksJSON(snap.Chunks),
	}
	if getBoolDefault(args, "include_text", false) {
		response["text"] = snap.Text
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListDocuments handles the list_documents tool invocation
func (s *Server) handleListDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	documents := make([]interface{}, 0, len(infos))
	for _, info := range infos {
		documents = append(documents, map[string]interface{}{
			"doc_id":      info.DocID,
			"version":     info.Version,
			"finalized":   info.Finalized,
			"chunk_count": info.ChunkCount,
			"text_chars":  info.TextChars,
			"updated_at":  info.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	response := map[string]interface{}{
		"count":     len(documents),
		"documents": documents,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEditBoundary handles the edit_boundary tool invocation
func (s *Server) handleEditBoundary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "doc_id parameter is required", map[string]interface{}{
			"param":  "doc_id",
			"reason": "missing or empty",
		})
	}
	op, ok := args["op"].(string)
	if !ok || op == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "op parameter is required", map[string]interface{}{
			"param":  "op",
			"reason": "missing or empty",
		})
	}

	sess, err := s.manager.Session(docID)
	if err != nil {
		return nil, mapError(err)
	}
	if err := sess.Open(ctx); err != nil {
		return nil, mapError(err)
	}

	chunkID := getStringDefault(args, "chunk_id", "")
	needChunk := op != "carve"
	if needChunk && chunkID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunk_id parameter is required for this op", map[string]interface{}{
			"param": "chunk_id",
			"op":    op,
		})
	}

	var (
		changed    bool
		newChunkID string
	)
	switch op {
	case "split":
		changed, err = sess.Split(chunkID)
	case "merge":
		dir := editor.Direction(getStringDefault(args, "direction", ""))
		changed, err = sess.MergeWithNeighbor(chunkID, dir)
	case "nudge":
		edge := editor.Edge(getStringDefault(args, "edge", ""))
		delta, present := intArg(args, "delta_lines")
		if !present {
			return nil, newMCPError(ErrorCodeInvalidParams, "delta_lines parameter is required for nudge", map[string]interface{}{
				"param": "delta_lines",
			})
		}
		changed, err = sess.NudgeBoundary(chunkID, edge, delta)
	case "snap":
		edge := editor.Edge(getStringDefault(args, "edge", ""))
		dir := editor.SnapDirection(getStringDefault(args, "direction", ""))
		changed, err = sess.ParagraphSnap(chunkID, edge, dir)
	case "carve":
		start, startOK := intArg(args, "start_line")
		end, endOK := intArg(args, "end_line")
		if !startOK || !endOK {
			return nil, newMCPError(ErrorCodeInvalidParams, "start_line and end_line are required for carve", map[string]interface{}{
				"op": op,
			})
		}
		var carved *types.Chunk
		carved, err = sess.CarveFromSelection(start, end)
		if err == nil {
			changed = true
			newChunkID = carved.ChunkID
		}
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "unknown op", map[string]interface{}{
			"param":   "op",
			"value":   op,
			"allowed": []string{"split", "merge", "nudge", "snap", "carve"},
		})
	}
	if err != nil {
		return nil, mapError(err)
	}

	snap, err := sess.Snapshot()
	if err != nil {
		return nil, mapError(err)
	}
	response := map[string]interface{}{
		"doc_id":      docID,
		"op":          op,
		"changed":     changed,
		"dirty":       snap.Dirty,
		"chunk_count": len(snap.Chunks),
		"chunks":      chunksJSON(snap.Chunks),
	}
	if newChunkID != "" {
		response["new_chunk_id"] = newChunkID
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSaveChunks handles the save_chunks tool invocation
func (s *Server) handleSaveChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "doc_id parameter is required", map[string]interface{}{
			"param":  "doc_id",
			"reason": "missing or empty",
		})
	}
	finalized := getBoolDefault(args, "finalized", false)
	text := getStringDefault(args, "text", "")

	chunks, err := parseChunks(args)
	if err != nil {
		return nil, mapError(err)
	}

	sess, err := s.manager.Session(docID)
	if err != nil {
		return nil, mapError(err)
	}

	var version int
	switch {
	case text != "":
		if chunks == nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "chunks are required when text is supplied", map[string]interface{}{
				"param": "chunks",
			})
		}
		version, err = sess.FinalizeWithText(ctx, text, finalized, chunks)
	case chunks != nil:
		if openErr := sess.Open(ctx); openErr != nil {
			return nil, mapError(openErr)
		}
		version, err = sess.Finalize(ctx, finalized, chunks)
	default:
		if openErr := sess.Open(ctx); openErr != nil {
			return nil, mapError(openErr)
		}
		version, err = sess.Save(ctx, finalized)
	}
	if err != nil {
		return nil, mapError(err)
	}

	response := map[string]interface{}{
		"doc_id":    docID,
		"version":   version,
		"finalized": finalized,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEmbedHandoff handles the embed_handoff tool invocation
func (s *Server) handleEmbedHandoff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "doc_id parameter is required", map[string]interface{}{
			"param":  "doc_id",
			"reason": "missing or empty",
		})
	}

	snap, err := s.openSnapshot(ctx, docID)
	if err != nil {
		return nil, mapError(err)
	}

	emitted, err := s.dispatcher.Dispatch(ctx, docID, snap.Chunks)
	if err != nil {
		return nil, mapError(err)
	}

	response := map[string]interface{}{
		"doc_id":  docID,
		"version": snap.Version,
		"emitted": emitted,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// openSnapshot loads a session's persisted state if needed and snapshots it
func (s *Server) openSnapshot(ctx context.Context, docID string) (*session.Snapshot, error) {
	sess, err := s.manager.Session(docID)
	if err != nil {
		return nil, err
	}
	if err := sess.Open(ctx); err != nil {
		return nil, err
	}
	return sess.Snapshot()
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// mapError translates engine errors into MCP protocol errors
func mapError(err error) error {
	var (
		ve *types.ValidationError
		sv *types.StructuralViolation
		me *MCPError
	)
	switch {
	case errors.As(err, &me):
		return err
	case errors.Is(err, types.ErrNoContent):
		return newMCPError(ErrorCodeEmptyText, "text is empty or whitespace-only", nil)
	case errors.Is(err, types.ErrNotFound):
		return newMCPError(ErrorCodeNotFound, "not found", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.As(err, &ve):
		return newMCPError(ErrorCodeInvalidParams, ve.Error(), map[string]interface{}{
			"param": ve.Field,
		})
	case errors.As(err, &sv):
		return newMCPError(ErrorCodeInvalidChunkSet, sv.Error(), nil)
	default:
		return newMCPError(ErrorCodeInternalError, "operation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// parseChunks builds a chunk list from the chunks argument. A missing
// argument returns nil; malformed entries are rejected.
func parseChunks(args map[string]interface{}) ([]*types.Chunk, error) {
	raw, present := args["chunks"]
	if !present {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, &types.ValidationError{Field: "chunks", Reason: "must be an array"}
	}

	chunks := make([]*types.Chunk, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, &types.ValidationError{
				Field:  "chunks",
				Reason: fmt.Sprintf("entry %d is not an object", i),
			}
		}
		c := &types.Chunk{
			ChunkID:         getStringDefault(m, "chunk_id", ""),
			StartLine:       getIntDefault(m, "start_line", 0),
			EndLine:         getIntDefault(m, "end_line", 0),
			IsMetaChunk:     getBoolDefault(m, "is_meta", false),
			Text:            getStringDefault(m, "text", ""),
			SummaryTitle:    getStringDefault(m, "summary_title", ""),
			ThingType:       getStringDefault(m, "thing_type", ""),
			Confidence:      getFloatDefault(m, "confidence", 1.0),
			BoundaryReasons: stringsArg(m, "boundary_reasons"),
			Tags:            stringsArg(m, "tags"),
			EntityIDs:       stringsArg(m, "entity_ids"),
		}
		if c.ChunkID == "" {
			c.ChunkID = uuid.NewString()
		}
		kind := getStringDefault(m, "chunk_kind", "")
		switch {
		case kind != "":
			c.ChunkKind = types.ChunkKind(kind)
		case c.IsMetaChunk:
			c.ChunkKind = types.ChunkDocumentMeta
		default:
			c.ChunkKind = types.ChunkChapterText
		}
		if extraRaw, ok := m["extra"].(map[string]interface{}); ok {
			c.Extra = make(map[string]types.MetaValue, len(extraRaw))
			for key, value := range extraRaw {
				mv, err := types.MetaValueOf(value)
				if err != nil {
					return nil, err
				}
				c.Extra[key] = mv
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// chunksJSON converts chunks to response payload maps
func chunksJSON(chunks []*types.Chunk) []interface{} {
	out := make([]interface{}, 0, len(chunks))
	for _, c := range chunks {
		entry := map[string]interface{}{
			"chunk_id":         c.ChunkID,
			"start_line":       c.StartLine,
			"end_line":         c.EndLine,
			"start_char":       c.StartChar,
			"end_char":         c.EndChar,
			"length_lines":     c.LengthLines,
			"length_chars":     c.LengthChars,
			"text":             c.Text,
			"boundary_reasons": c.BoundaryReasons,
			"confidence":       c.Confidence,
			"chunk_kind":       string(c.ChunkKind),
			"is_meta":          c.IsMetaChunk,
			"source_section":   c.SourceSection(),
		}
		if c.ContextBefore != "" {
			entry["context_before"] = c.ContextBefore
			entry["overlap"] = c.Overlap
		}
		if c.SummaryTitle != "" {
			entry["summary_title"] = c.SummaryTitle
		}
		if c.ThingType != "" {
			entry["thing_type"] = c.ThingType
		}
		if len(c.Tags) > 0 {
			entry["tags"] = c.Tags
		}
		if len(c.EntityIDs) > 0 {
			entry["entity_ids"] = c.EntityIDs
		}
		out = append(out, entry)
	}
	return out
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := intArg(args, key); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// intArg extracts an integer parameter, reporting whether it was present
func intArg(args map[string]interface{}, key string) (int, bool) {
	if val, ok := args[key].(float64); ok {
		return int(val), true
	}
	if val, ok := args[key].(int); ok {
		return val, true
	}
	return 0, false
}

// stringsArg extracts a string array parameter
func stringsArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
