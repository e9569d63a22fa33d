package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	spallerrors "github.com/spall/spall/internal/errors"
)

// Store is the storage engine's process-wide handle: a single-writer
// SQLite connection plus the two parallel indices (vector, FTS) that
// live alongside it. Per spec.md §5 the backend is single-writer; Go's
// database/sql pool is pinned to one open connection so writes
// serialize the same way the teacher's SQLiteBM25Index does.
type Store struct {
	db      *sql.DB
	vec     *VectorIndex
	fts     *FTSIndex
	mu      sync.Mutex // guards composite read-modify-write across db+vec+fts
	dims    int
	dataDir string
}

// Config controls schema creation and index placement.
type Config struct {
	DataDir          string
	EmbeddingModel   string
	EmbeddingDims    int
}

// Open creates (on first use) or opens the storage engine rooted at
// cfg.DataDir: spall.db for the relational store, plus sibling
// vectors/ and fts/ directories for the parallel indices.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dbPath := filepath.Join(cfg.DataDir, "spall.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open storage database: %w", err)
	}
	// Single-writer resource: one connection prevents SQLITE_BUSY storms
	// across goroutines, consistent with the teacher's SQLite backend.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if err := migrateNotesSize(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate notes.size: %w", err)
	}

	if err := seedDefaultCorpus(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed default corpus: %w", err)
	}

	if err := writeMetaRow(ctx, db, cfg.EmbeddingModel, cfg.EmbeddingDims); err != nil {
		db.Close()
		return nil, fmt.Errorf("write meta row: %w", err)
	}

	vec := NewVectorIndex(cfg.EmbeddingDims)
	if err := vec.Load(filepath.Join(cfg.DataDir, "vectors", "index.hnsw")); err != nil {
		db.Close()
		return nil, fmt.Errorf("load vector index: %w", err)
	}

	fts, err := NewFTSIndex(filepath.Join(cfg.DataDir, "fts"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open fts index: %w", err)
	}

	return &Store{db: db, vec: vec, fts: fts, dims: cfg.EmbeddingDims, dataDir: cfg.DataDir}, nil
}

// OpenInMemory creates a Store rooted in a scratch temp directory with
// in-memory-equivalent indices, used by tests.
func OpenInMemory(ctx context.Context, dataDir string, dims int) (*Store, error) {
	return Open(ctx, Config{DataDir: dataDir, EmbeddingModel: "test-model", EmbeddingDims: dims})
}

// migrateNotesSize adds notes.size if missing and backfills it from
// content length, per spec.md §4.1's "lightweight migration step".
func migrateNotesSize(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA table_info(notes)`)
	if err != nil {
		return err
	}
	hasSize := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		if name == "size" {
			hasSize = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if hasSize {
		return nil
	}

	if _, err := db.ExecContext(ctx, `ALTER TABLE notes ADD COLUMN size INTEGER NOT NULL DEFAULT 0`); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `UPDATE notes SET size = length(content) WHERE size = 0`)
	return err
}

func seedDefaultCorpus(ctx context.Context, db *sql.DB) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx,
		`INSERT INTO corpora (id, name, created_at, updated_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`, defaultCorpusName, now, now)
	return err
}

func writeMetaRow(ctx context.Context, db *sql.DB, model string, dims int) error {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('embedding_model_name', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, model); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('embedding_dims', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fmt.Sprintf("%d", dims))
	return err
}

// withTx runs fn inside a transaction, committing on success and
// rolling back on any error or panic — the "all transactional
// composites are all-or-nothing" contract of spec.md §4.1.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}

// Close persists the vector index and releases the database connection
// and both parallel indices.
func (s *Store) Close() error {
	var errs []error
	if err := s.vec.Save(filepath.Join(s.dataDir, "vectors", "index.hnsw")); err != nil {
		errs = append(errs, err)
	}
	if err := s.vec.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.fts.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return spallerrors.Internal("error closing storage engine", errs[0])
	}
	return nil
}
