package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lorechunk/lorechunk-mcp/internal/chunkset"
	"github.com/lorechunk/lorechunk-mcp/internal/detector"
	"github.com/lorechunk/lorechunk-mcp/internal/document"
	"github.com/lorechunk/lorechunk-mcp/internal/editor"
	"github.com/lorechunk/lorechunk-mcp/internal/storage"
	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

// State is the lifecycle phase of a document session.
type State string

const (
	StateUnloaded  State = "unloaded"
	StateDetecting State = "detecting"
	StateClean     State = "clean"
	StateDirty     State = "dirty"
	StateSaving    State = "saving"
)

// autosaveTimeout bounds the persistence call made by a fired autosave.
const autosaveTimeout = 10 * time.Second

// Enricher assigns semantic titles, types and tags to freshly detected
// chunks. Implementations live outside this engine; enrichment failures are
// non-fatal.
type Enricher interface {
	EnrichChunks(ctx context.Context, doc *document.Document, chunks []*types.Chunk) error
}

// DetectResult is the outcome of DetectOrReuse.
type DetectResult struct {
	Set       *chunkset.Set
	Version   int
	Persisted bool
	Reused    bool
}

// Snapshot is a point-in-time copy of a session's document state.
type Snapshot struct {
	DocID     string
	Text      string
	Version   int
	Finalized bool
	Dirty     bool
	State     State
	Chunks    []*types.Chunk
}

// Session owns the in-memory chunk set for one document. All operations are
// serialized; the only background activity is the debounced autosave, which
// re-enters through Save.
type Session struct {
	docID    string
	store    storage.Storage
	det      *detector.Detector
	enricher Enricher

	mu        sync.Mutex
	doc       *document.Document
	set       *chunkset.Set
	ed        *editor.Editor
	version   int
	finalized bool
	dirty     bool
	state     State

	autosave *debouncer
}

func newSession(docID string, store storage.Storage, det *detector.Detector, enricher Enricher, autosaveInterval time.Duration) *Session {
	s := &Session{
		docID:    docID,
		store:    store,
		det:      det,
		enricher: enricher,
		state:    StateUnloaded,
	}
	s.autosave = newDebouncer(autosaveInterval, s.fireAutosave)
	return s
}

// DocID returns the document id this session owns.
func (s *Session) DocID() string { return s.docID }

// DetectOrReuse returns the chunk set for the supplied text. When the stored
// text for this document matches, the persisted set is reused without
// recomputation; otherwise the detector runs and the result is persisted as
// a draft under the next version. On a failed persist the detected set stays
// in memory marked dirty, so autosave can retry.
func (s *Session) DetectOrReuse(ctx context.Context, text string, params detector.Params) (*DetectResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateDetecting
	stored, err := s.store.LoadDocument(ctx, s.docID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		s.state = StateUnloaded
		return nil, err
	}
	if err == nil && stored.Text == text {
		s.adoptLocked(text, chunkset.New(s.docID, stored.Chunks...), stored.Version, stored.Finalized)
		return &DetectResult{Set: s.set.Clone(), Version: s.version, Reused: true}, nil
	}

	doc := document.New(s.docID, text)
	set, err := s.det.Detect(doc, params)
	if err != nil {
		s.state = StateUnloaded
		return nil, err
	}

	if s.enricher != nil {
		if err := s.enricher.EnrichChunks(ctx, doc, set.Chunks); err != nil {
			log.Printf("enrichment for %s failed: %v", s.docID, err)
		}
	}

	s.doc = doc
	s.ed = editor.New(doc)
	s.set = set
	s.finalized = false

	version, err := s.store.SaveChunkSet(ctx, s.docID, text, false, set.Chunks)
	if err != nil {
		s.markDirtyLocked()
		return nil, err
	}
	s.version = version
	s.dirty = false
	s.state = StateClean
	return &DetectResult{Set: s.set.Clone(), Version: version, Persisted: true}, nil
}

// Open loads the persisted state for this document if nothing is in memory
// yet.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		return nil
	}
	stored, err := s.store.LoadDocument(ctx, s.docID)
	if err != nil {
		return err
	}
	s.adoptLocked(stored.Text, chunkset.New(s.docID, stored.Chunks...), stored.Version, stored.Finalized)
	return nil
}

func (s *Session) adoptLocked(text string, set *chunkset.Set, version int, finalized bool) {
	s.doc = document.New(s.docID, text)
	s.ed = editor.New(s.doc)
	set.Normalize(s.doc)
	s.set = set
	s.version = version
	s.finalized = finalized
	s.dirty = false
	s.state = StateClean
}

// Snapshot returns a copy of the current in-memory state.
func (s *Session) Snapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, &types.ValidationError{Field: "doc_id", Reason: "no document loaded"}
	}
	clone := s.set.Clone()
	return &Snapshot{
		DocID:     s.docID,
		Text:      s.doc.Text,
		Version:   s.version,
		Finalized: s.finalized,
		Dirty:     s.dirty,
		State:     s.state,
		Chunks:    clone.Chunks,
	}, nil
}

// Split bisects a chunk at its line midpoint.
func (s *Session) Split(chunkID string) (bool, error) {
	return s.edit(func() (bool, error) { return s.ed.Split(s.set, chunkID) })
}

// MergeWithNeighbor merges a chunk with its previous or next neighbor.
func (s *Session) MergeWithNeighbor(chunkID string, dir editor.Direction) (bool, error) {
	return s.edit(func() (bool, error) { return s.ed.MergeWithNeighbor(s.set, chunkID, dir) })
}

// NudgeBoundary moves one chunk edge, resizing the neighbor to match.
func (s *Session) NudgeBoundary(chunkID string, edge editor.Edge, deltaLines int) (bool, error) {
	return s.edit(func() (bool, error) { return s.ed.NudgeBoundary(s.set, chunkID, edge, deltaLines) })
}

// ParagraphSnap moves one chunk edge to the nearest blank line.
func (s *Session) ParagraphSnap(chunkID string, edge editor.Edge, dir editor.SnapDirection) (bool, error) {
	return s.edit(func() (bool, error) { return s.ed.ParagraphSnap(s.set, chunkID, edge, dir) })
}

// CarveFromSelection inserts a new chunk over the selected line range.
func (s *Session) CarveFromSelection(startLine, endLine int) (*types.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, &types.ValidationError{Field: "doc_id", Reason: "no document loaded"}
	}
	carved, err := s.ed.CarveFromSelection(s.set, startLine, endLine)
	if err != nil {
		return nil, err
	}
	s.markDirtyLocked()
	return carved.Clone(), nil
}

func (s *Session) edit(op func() (bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return false, &types.ValidationError{Field: "doc_id", Reason: "no document loaded"}
	}
	changed, err := op()
	if err != nil {
		return false, err
	}
	if changed {
		s.markDirtyLocked()
	}
	return changed, nil
}

// markDirtyLocked flags unsaved edits and reschedules the autosave debounce.
func (s *Session) markDirtyLocked() {
	s.dirty = true
	s.state = StateDirty
	s.autosave.Trigger()
}

// Save persists the current chunk set under the next version. Any pending
// autosave is cancelled first, so a scheduled draft save never races a
// manual one. On failure the set stays in memory and remains dirty.
func (s *Session) Save(ctx context.Context, finalized bool) (int, error) {
	s.autosave.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, finalized)
}

// Finalize replaces the in-memory chunk set (when chunks are supplied) and
// persists it. The replacement is normalized and validated against the
// document before anything is overwritten.
func (s *Session) Finalize(ctx context.Context, finalized bool, chunks []*types.Chunk) (int, error) {
	s.autosave.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0, &types.ValidationError{Field: "doc_id", Reason: "no document loaded"}
	}
	if chunks != nil {
		replacement := chunkset.New(s.docID, chunks...)
		replacement.Normalize(s.doc)
		if err := replacement.Validate(s.doc); err != nil {
			return 0, err
		}
		s.set = replacement
		s.dirty = true
	}
	return s.saveLocked(ctx, finalized)
}

// FinalizeWithText persists the supplied text and chunk set verbatim after
// normalization, adopting them as the session's state on success. Nothing in
// memory changes when validation or the write fails.
func (s *Session) FinalizeWithText(ctx context.Context, text string, finalized bool, chunks []*types.Chunk) (int, error) {
	s.autosave.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(chunks) == 0 {
		return 0, &types.ValidationError{Field: "chunks", Reason: "must not be empty"}
	}
	doc := document.New(s.docID, text)
	set := chunkset.New(s.docID, chunks...)
	set.Normalize(doc)
	if err := set.Validate(doc); err != nil {
		return 0, err
	}

	version, err := s.store.SaveChunkSet(ctx, s.docID, text, finalized, set.Chunks)
	if err != nil {
		return 0, err
	}
	s.doc = doc
	s.ed = editor.New(doc)
	s.set = set
	s.version = version
	s.finalized = finalized
	s.dirty = false
	s.state = StateClean
	return version, nil
}

func (s *Session) saveLocked(ctx context.Context, finalized bool) (int, error) {
	if s.doc == nil || s.set == nil {
		return 0, &types.ValidationError{Field: "doc_id", Reason: "no document loaded"}
	}
	s.set.Normalize(s.doc)
	if err := s.set.Validate(s.doc); err != nil {
		return 0, err
	}

	s.state = StateSaving
	version, err := s.store.SaveChunkSet(ctx, s.docID, s.doc.Text, finalized, s.set.Chunks)
	if err != nil {
		s.state = StateDirty
		return 0, err
	}
	s.version = version
	s.finalized = finalized
	s.dirty = false
	s.state = StateClean
	return version, nil
}

func (s *Session) fireAutosave() {
	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return
	}
	// Autosave always writes a draft, never a finalized version.
	if _, err := s.saveLocked(ctx, false); err != nil {
		log.Printf("autosave for %s failed: %v", s.docID, err)
	}
}

// Close stops the autosave timer and flushes unsaved edits as a draft.
func (s *Session) Close() {
	s.autosave.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty || s.doc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()
	if _, err := s.saveLocked(ctx, s.finalized); err != nil {
		log.Printf("flush on close for %s failed: %v", s.docID, err)
	}
}
