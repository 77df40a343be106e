package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/lorechunk/lorechunk-mcp/internal/config"
	"github.com/lorechunk/lorechunk-mcp/internal/detector"
	"github.com/lorechunk/lorechunk-mcp/internal/handoff"
	"github.com/lorechunk/lorechunk-mcp/internal/session"
	"github.com/lorechunk/lorechunk-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "lorechunk-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp        *server.MCPServer
	store      storage.Storage
	manager    *session.Manager
	dispatcher *handoff.Dispatcher
	cfg        *config.Config
}

// Option customizes server construction
type Option func(*serverOptions)

type serverOptions struct {
	sink     handoff.Sink
	enricher session.Enricher
	embed    detector.EmbedFunc
}

// WithSink wires the external indexing collaborator that receives embed
// handoffs. Without one, handoffs are logged and dropped.
func WithSink(sink handoff.Sink) Option {
	return func(o *serverOptions) { o.sink = sink }
}

// WithEnricher wires an external enrichment collaborator applied to freshly
// detected chunks.
func WithEnricher(e session.Enricher) Option {
	return func(o *serverOptions) { o.enricher = e }
}

// WithEmbedFunc wires an embedding function into the detector for semantic
// boundary scoring.
func WithEmbedFunc(fn detector.EmbedFunc) Option {
	return func(o *serverOptions) { o.embed = fn }
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var detOpts []detector.Option
	if o.embed != nil {
		detOpts = append(detOpts, detector.WithEmbedFunc(o.embed))
	}
	det := detector.New(detOpts...)

	managerOpts := []session.ManagerOption{
		session.WithAutosaveInterval(cfg.Autosave.Interval.Std()),
	}
	if o.enricher != nil {
		managerOpts = append(managerOpts, session.WithEnricher(o.enricher))
	}
	manager, err := session.NewManager(store, det, cfg.Sessions.MaxOpen, managerOpts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	sink := o.sink
	if sink == nil {
		sink = logSink{}
	}

	s := &Server{
		mcp:        server.NewMCPServer(ServerName, ServerVersion),
		store:      store,
		manager:    manager,
		dispatcher: handoff.NewDispatcher(sink, cfg.Handoff.Workers),
		cfg:        cfg,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() {
		s.manager.Close()
		_ = s.store.Close()
	}()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(detectChunksTool(), s.handleDetectChunks)
	s.mcp.AddTool(getDocumentTool(), s.handleGetDocument)
	s.mcp.AddTool(listDocumentsTool(), s.handleListDocuments)
	s.mcp.AddTool(editBoundaryTool(), s.handleEditBoundary)
	s.mcp.AddTool(saveChunksTool(), s.handleSaveChunks)
	s.mcp.AddTool(embedHandoffTool(), s.handleEmbedHandoff)
}

// logSink records handoffs on stderr when no indexing collaborator is wired
type logSink struct{}

func (logSink) EmbedChunk(_ context.Context, rec *handoff.Record) error {
	log.Printf("handoff: doc %s chunk %s (%s)", rec.SourceFile, rec.ChunkID, rec.SourceSection)
	return nil
}
