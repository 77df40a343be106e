package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SaveChunkSet replaces the stored chunk set for a document under the next
// version number, atomically with the document text update.
func (s *SQLiteStorage) SaveChunkSet(ctx context.Context, docID, text string, finalized bool, chunks []*types.Chunk) (int, error) {
	if docID == "" {
		return 0, &types.ValidationError{Field: "doc_id", Reason: "must not be empty"}
	}
	if len(chunks) == 0 {
		return 0, &types.ValidationError{Field: "chunks", Reason: "must not be empty"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	var version int
	query := `
		INSERT INTO documents (doc_id, text, version, finalized, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			text = excluded.text,
			version = documents.version + 1,
			finalized = excluded.finalized,
			updated_at = excluded.updated_at
		RETURNING version
	`
	if err := tx.QueryRowContext(ctx, query, docID, text, finalized, now, now).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to upsert document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", docID); err != nil {
		return 0, fmt.Errorf("failed to clear chunks: %w", err)
	}

	for i, c := range chunks {
		if err := insertChunk(ctx, tx, docID, i, c, now); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit save: %w", err)
	}
	return version, nil
}

func insertChunk(ctx context.Context, q querier, docID string, position int, c *types.Chunk, now time.Time) error {
	reasons, err := encodeJSON(c.BoundaryReasons)
	if err != nil {
		return fmt.Errorf("chunk %s: failed to encode boundary reasons: %w", c.ChunkID, err)
	}
	tags, err := encodeJSON(c.Tags)
	if err != nil {
		return fmt.Errorf("chunk %s: failed to encode tags: %w", c.ChunkID, err)
	}
	entityIDs, err := encodeJSON(c.EntityIDs)
	if err != nil {
		return fmt.Errorf("chunk %s: failed to encode entity ids: %w", c.ChunkID, err)
	}
	childIDs, err := encodeJSON(c.ChildChunkIDs)
	if err != nil {
		return fmt.Errorf("chunk %s: failed to encode child ids: %w", c.ChunkID, err)
	}
	extra, err := encodeJSON(c.Extra)
	if err != nil {
		return fmt.Errorf("chunk %s: failed to encode extra: %w", c.ChunkID, err)
	}

	query := `
		INSERT INTO chunks (
			doc_id, chunk_id, position, start_line, end_line, start_char, end_char,
			text, context_before, overlap, boundary_reasons, confidence, chunk_kind,
			summary_title, thing_type, tags, entity_ids, parent_chunk_id,
			child_chunk_ids, is_meta, extra, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		docID, c.ChunkID, position, c.StartLine, c.EndLine, c.StartChar, c.EndChar,
		c.Text, nullString(c.ContextBefore), c.Overlap, reasons, c.Confidence, string(c.ChunkKind),
		nullString(c.SummaryTitle), nullString(c.ThingType), tags, entityIDs, nullString(c.ParentChunkID),
		childIDs, c.IsMetaChunk, extra, now)
	if err != nil {
		return fmt.Errorf("failed to insert chunk %s: %w", c.ChunkID, err)
	}
	return nil
}

// LoadDocument returns the stored document and its chunk set
func (s *SQLiteStorage) LoadDocument(ctx context.Context, docID string) (*StoredDocument, error) {
	query := `
		SELECT doc_id, text, version, finalized, updated_at
		FROM documents
		WHERE doc_id = ?
	`
	var doc StoredDocument
	err := s.db.QueryRowContext(ctx, query, docID).Scan(
		&doc.DocID, &doc.Text, &doc.Version, &doc.Finalized, &doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", docID, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", docID, err)
	}

	chunks, err := s.loadChunks(ctx, docID)
	if err != nil {
		return nil, err
	}
	doc.Chunks = chunks
	return &doc, nil
}

func (s *SQLiteStorage) loadChunks(ctx context.Context, docID string) ([]*types.Chunk, error) {
	query := `
		SELECT chunk_id, start_line, end_line, start_char, end_char, text,
		       context_before, overlap, boundary_reasons, confidence, chunk_kind,
		       summary_title, thing_type, tags, entity_ids, parent_chunk_id,
		       child_chunk_ids, is_meta, extra
		FROM chunks
		WHERE doc_id = ?
		ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks for %s: %w", docID, err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*types.Chunk
	for rows.Next() {
		c := &types.Chunk{DocID: docID}
		var contextBefore, summaryTitle, thingType, parentID sql.NullString
		var reasons, tags, entityIDs, childIDs, extra sql.NullString
		var kind string
		err := rows.Scan(
			&c.ChunkID, &c.StartLine, &c.EndLine, &c.StartChar, &c.EndChar, &c.Text,
			&contextBefore, &c.Overlap, &reasons, &c.Confidence, &kind,
			&summaryTitle, &thingType, &tags, &entityIDs, &parentID,
			&childIDs, &c.IsMetaChunk, &extra,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk for %s: %w", docID, err)
		}
		c.ChunkKind = types.ChunkKind(kind)
		c.ContextBefore = contextBefore.String
		c.SummaryTitle = summaryTitle.String
		c.ThingType = thingType.String
		c.ParentChunkID = parentID.String
		if c.BoundaryReasons, err = decodeStrings(reasons); err != nil {
			return nil, fmt.Errorf("chunk %s: invalid boundary reasons: %w", c.ChunkID, err)
		}
		if c.Tags, err = decodeStrings(tags); err != nil {
			return nil, fmt.Errorf("chunk %s: invalid tags: %w", c.ChunkID, err)
		}
		if c.EntityIDs, err = decodeStrings(entityIDs); err != nil {
			return nil, fmt.Errorf("chunk %s: invalid entity ids: %w", c.ChunkID, err)
		}
		if c.ChildChunkIDs, err = decodeStrings(childIDs); err != nil {
			return nil, fmt.Errorf("chunk %s: invalid child ids: %w", c.ChunkID, err)
		}
		if extra.Valid {
			if err := json.Unmarshal([]byte(extra.String), &c.Extra); err != nil {
				return nil, fmt.Errorf("chunk %s: invalid extra: %w", c.ChunkID, err)
			}
		}
		c.LengthChars = len(c.Text)
		if !c.IsMetaChunk {
			c.LengthLines = c.EndLine - c.StartLine + 1
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListDocuments returns summaries for all stored documents, most recent first
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*DocumentInfo, error) {
	query := `
		SELECT d.doc_id, d.version, d.finalized, length(d.text), d.updated_at,
		       COUNT(c.chunk_id)
		FROM documents d
		LEFT JOIN chunks c ON c.doc_id = d.doc_id
		GROUP BY d.doc_id
		ORDER BY d.updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []*DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		if err := rows.Scan(&info.DocID, &info.Version, &info.Finalized,
			&info.TextChars, &info.UpdatedAt, &info.ChunkCount); err != nil {
			return nil, fmt.Errorf("failed to scan document info: %w", err)
		}
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}

// DeleteDocument removes a document and, via cascade, its chunks
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, docID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", docID, types.ErrNotFound)
	}
	return nil
}

// encodeJSON serializes a slice or map to a nullable JSON column, storing
// NULL for empty values
func encodeJSON(v interface{}) (sql.NullString, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	case map[string]types.MetaValue:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeStrings(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
