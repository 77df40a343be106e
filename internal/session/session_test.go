package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorechunk/lorechunk-mcp/internal/detector"
	"github.com/lorechunk/lorechunk-mcp/internal/editor"
	"github.com/lorechunk/lorechunk-mcp/internal/storage"
	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

// fakeStore is an in-memory Storage for orchestration tests.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]*storage.StoredDocument
	saves   int
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]*storage.StoredDocument{}}
}

func (f *fakeStore) SaveChunkSet(_ context.Context, docID, text string, finalized bool, chunks []*types.Chunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errors.New("disk full")
	}
	version := 1
	if prev, ok := f.docs[docID]; ok {
		version = prev.Version + 1
	}
	copied := make([]*types.Chunk, len(chunks))
	for i, c := range chunks {
		copied[i] = c.Clone()
	}
	f.docs[docID] = &storage.StoredDocument{
		DocID:     docID,
		Text:      text,
		Version:   version,
		Finalized: finalized,
		UpdatedAt: time.Now(),
		Chunks:    copied,
	}
	f.saves++
	return version, nil
}

func (f *fakeStore) LoadDocument(_ context.Context, docID string) (*storage.StoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", docID, types.ErrNotFound)
	}
	copied := make([]*types.Chunk, len(doc.Chunks))
	for i, c := range doc.Chunks {
		copied[i] = c.Clone()
	}
	dup := *doc
	dup.Chunks = copied
	return &dup, nil
}

func (f *fakeStore) ListDocuments(context.Context) ([]*storage.DocumentInfo, error) {
	return nil, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, docID)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeStore) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func testText() string {
	para := strings.Repeat("a", 20)
	return para + "\n\n" + para + "\n\n" + para + "\n\n" + para
}

func testParams() detector.Params {
	return detector.Params{MinChars: 10, TargetChars: 30, MaxChars: 200}
}

func newTestManager(t *testing.T, store storage.Storage, interval time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(store, detector.New(), 8, WithAutosaveInterval(interval))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestDetectOrReuse_FreshDocumentPersistsDraft(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	res, err := s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.False(t, res.Reused)
	assert.Equal(t, 1, res.Version)
	assert.GreaterOrEqual(t, res.Set.Len(), 2)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, StateClean, snap.State)
	assert.False(t, snap.Dirty)
}

func TestDetectOrReuse_MatchingTextReusesStoredSet(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	first, err := s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)
	savesAfterDetect := store.saveCount()

	second, err := s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.False(t, second.Persisted)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, savesAfterDetect, store.saveCount())
}

func TestDetectOrReuse_ChangedTextRedetects(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	_, err = s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)

	res, err := s.DetectOrReuse(context.Background(), testText()+"\n\nnew paragraph", testParams())
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.Equal(t, 2, res.Version)
}

func TestDetectOrReuse_EmptyText(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	_, err = s.DetectOrReuse(context.Background(), "   ", testParams())
	assert.ErrorIs(t, err, types.ErrNoContent)
	assert.Equal(t, 0, store.saveCount())
}

func TestAutosave_DebouncesBurstsIntoOneSave(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 150*time.Millisecond)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	res, err := s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)
	base := store.saveCount()

	chunkID := res.Set.Chunks[0].ChunkID
	_, err = s.NudgeBoundary(chunkID, editor.EdgeEnd, 1)
	require.NoError(t, err)

	time.Sleep(75 * time.Millisecond)
	// Second dirty mark inside the quiet interval reschedules the save.
	_, err = s.NudgeBoundary(chunkID, editor.EdgeEnd, -1)
	require.NoError(t, err)

	time.Sleep(75 * time.Millisecond)
	assert.Equal(t, base, store.saveCount(), "save fired before the quiet interval elapsed")

	assert.Eventually(t, func() bool {
		return store.saveCount() == base+1
	}, 2*time.Second, 10*time.Millisecond)

	// No second save follows.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, base+1, store.saveCount())

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.Dirty)
}

func TestSave_CancelsPendingAutosave(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 100*time.Millisecond)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	res, err := s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)

	_, err = s.NudgeBoundary(res.Set.Chunks[0].ChunkID, editor.EdgeEnd, 1)
	require.NoError(t, err)

	version, err := s.Save(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, res.Version+1, version)
	base := store.saveCount()

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, base, store.saveCount(), "cancelled autosave still fired")
}

func TestSave_FailureKeepsDirty(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	res, err := s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)

	_, err = s.NudgeBoundary(res.Set.Chunks[0].ChunkID, editor.EdgeEnd, 1)
	require.NoError(t, err)

	store.setFailing(true)
	_, err = s.Save(context.Background(), false)
	require.Error(t, err)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.Dirty)
	assert.Equal(t, StateDirty, snap.State)

	store.setFailing(false)
	version, err := s.Save(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, res.Version+1, version)

	snap, err = s.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.Dirty)
}

func TestFinalize_MarksFinalizedAndBumpsVersion(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	res, err := s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)

	version, err := s.Finalize(context.Background(), true, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Version+1, version)

	stored, err := store.LoadDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, stored.Finalized)

	// Finalized documents can be edited again.
	_, err = s.NudgeBoundary(res.Set.Chunks[0].ChunkID, editor.EdgeEnd, 1)
	require.NoError(t, err)
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.Dirty)
}

func TestFinalize_RejectsInvalidReplacementSet(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	res, err := s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)

	// A single chunk that covers only part of the document leaves a gap.
	bad := []*types.Chunk{{
		ChunkID:   "partial",
		DocID:     "doc-1",
		StartLine: 0,
		EndLine:   0,
		ChunkKind: types.ChunkChapterText,
	}}
	_, err = s.Finalize(context.Background(), true, bad)
	var sv *types.StructuralViolation
	require.ErrorAs(t, err, &sv)

	// The previous set is still in place and saveable.
	version, err := s.Save(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, res.Version+1, version)
}

func TestOpen_LoadsPersistedState(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)

	s1, err := m.Session("doc-1")
	require.NoError(t, err)
	res, err := s1.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)
	m.Drop("doc-1")

	s2, err := m.Session("doc-1")
	require.NoError(t, err)
	require.NoError(t, s2.Open(context.Background()))

	snap, err := s2.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, res.Version, snap.Version)
	assert.Equal(t, testText(), snap.Text)
	assert.Len(t, snap.Chunks, res.Set.Len())
}

func TestOpen_UnknownDocument(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, 0)
	s, err := m.Session("missing")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Open(context.Background()), types.ErrNotFound)
}

func TestDrop_FlushesDirtySession(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, time.Hour)
	s, err := m.Session("doc-1")
	require.NoError(t, err)

	res, err := s.DetectOrReuse(context.Background(), testText(), testParams())
	require.NoError(t, err)

	_, err = s.NudgeBoundary(res.Set.Chunks[0].ChunkID, editor.EdgeEnd, 1)
	require.NoError(t, err)

	m.Drop("doc-1")
	stored, err := store.LoadDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, res.Version+1, stored.Version)
}

func TestManager_ReturnsSameSession(t *testing.T) {
	m := newTestManager(t, newFakeStore(), 0)
	a, err := m.Session("doc-1")
	require.NoError(t, err)
	b, err := m.Session("doc-1")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = m.Session("")
	var ve *types.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDeriveDocID(t *testing.T) {
	assert.Equal(t, "the-shattered-realm", DeriveDocID("The Shattered Realm!", "text"))
	assert.Equal(t, "chapter-12-draft", DeriveDocID("  Chapter 12 (draft) ", "text"))

	hashed := DeriveDocID("!!!", "some text")
	assert.True(t, strings.HasPrefix(hashed, "doc-"))
	assert.Len(t, hashed, len("doc-")+12)
	assert.Equal(t, hashed, DeriveDocID("", "some text"))
}
