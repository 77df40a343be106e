package session

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lorechunk/lorechunk-mcp/internal/detector"
	"github.com/lorechunk/lorechunk-mcp/internal/storage"
	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

const (
	// DefaultAutosaveInterval is the quiet period before a dirty session
	// writes a draft.
	DefaultAutosaveInterval = 2 * time.Second

	// DefaultMaxSessions bounds the number of documents held in memory at
	// once; evicted sessions flush their unsaved edits.
	DefaultMaxSessions = 32
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Manager hands out one Session per document id, keeping recently used
// sessions in an LRU cache. Eviction closes the session, which flushes any
// unsaved edits as a draft.
type Manager struct {
	store    storage.Storage
	det      *detector.Detector
	enricher Enricher
	interval time.Duration

	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager) error

// WithEnricher wires an external enrichment collaborator into new sessions.
func WithEnricher(e Enricher) ManagerOption {
	return func(m *Manager) error {
		m.enricher = e
		return nil
	}
}

// WithAutosaveInterval overrides the autosave quiet period. A zero or
// negative interval disables autosave.
func WithAutosaveInterval(d time.Duration) ManagerOption {
	return func(m *Manager) error {
		m.interval = d
		return nil
	}
}

// NewManager creates a Manager over the given store and detector.
func NewManager(store storage.Storage, det *detector.Detector, maxSessions int, opts ...ManagerOption) (*Manager, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	m := &Manager{
		store:    store,
		det:      det,
		interval: DefaultAutosaveInterval,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	cache, err := lru.NewWithEvict[string, *Session](maxSessions, func(_ string, s *Session) {
		s.Close()
	})
	if err != nil {
		return nil, err
	}
	m.sessions = cache
	return m, nil
}

// Session returns the session for a document, creating one on first use.
func (m *Manager) Session(docID string) (*Session, error) {
	if docID == "" {
		return nil, &types.ValidationError{Field: "doc_id", Reason: "must not be empty"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions.Get(docID); ok {
		return s, nil
	}
	s := newSession(docID, m.store, m.det, m.enricher, m.interval)
	m.sessions.Add(docID, s)
	return s, nil
}

// Drop removes a session from the cache, flushing it on the way out.
func (m *Manager) Drop(docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Remove(docID)
}

// Store exposes the underlying storage for read-only listing operations.
func (m *Manager) Store() storage.Storage {
	return m.store
}

// Close flushes and discards all cached sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Purge()
}

// DeriveDocID builds a stable document id from a title, falling back to a
// content hash when the title has no usable characters.
func DeriveDocID(title, text string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug != "" {
		return slug
	}
	sum := sha1.Sum([]byte(text))
	return "doc-" + hex.EncodeToString(sum[:])[:12]
}
