package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// VectorStore persists the dense vectors and the build manifest of one index
// in a SQLite database.
type VectorStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// The index database is written once by a single builder, then only read,
	// so a rollback journal keeps the directory to one file once closed.
	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// CreateVectorStore creates a new vector store at dbPath and applies migrations
func CreateVectorStore(ctx context.Context, dbPath string) (*VectorStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &VectorStore{db: db}, nil
}

// OpenVectorStore opens an existing vector store and checks its schema version
func OpenVectorStore(ctx context.Context, dbPath string) (*VectorStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := CheckCompatible(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &VectorStore{db: db}, nil
}

// Close closes the database connection
func (s *VectorStore) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// WriteIndex stores the manifest and all vectors in a single transaction.
// chunkIDs[i] identifies the chunk owning vectors[i].
func (s *VectorStore) WriteIndex(ctx context.Context, m *Manifest, chunkIDs []string, vectors [][]float32) error {
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("%w: %d chunk IDs for %d vectors", ErrMisaligned, len(chunkIDs), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.writeManifestWithQuerier(ctx, tx, m); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO vectors (position, chunk_id, dimension, vector) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for pos, vec := range vectors {
		if len(vec) != m.Dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, manifest says %d", ErrMisaligned, pos, len(vec), m.Dimension)
		}
		if _, err := stmt.ExecContext(ctx, pos, chunkIDs[pos], len(vec), serializeVector(vec)); err != nil {
			return fmt.Errorf("failed to insert vector %d: %w", pos, err)
		}
	}

	return tx.Commit()
}

func (s *VectorStore) writeManifestWithQuerier(ctx context.Context, q querier, m *Manifest) error {
	query := `
		INSERT INTO manifest (id, build_id, created_at, chunk_count, dimension, provider, model, chunk_size, overlap, source_dir)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			build_id = excluded.build_id,
			created_at = excluded.created_at,
			chunk_count = excluded.chunk_count,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			chunk_size = excluded.chunk_size,
			overlap = excluded.overlap,
			source_dir = excluded.source_dir
	`
	_, err := q.ExecContext(ctx, query,
		m.BuildID, m.CreatedAt.UTC().Format(time.RFC3339Nano), m.ChunkCount, m.Dimension,
		m.Provider, m.Model, m.ChunkSize, m.Overlap, m.SourceDir)
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Manifest reads the build manifest
func (s *VectorStore) Manifest(ctx context.Context) (*Manifest, error) {
	query := `
		SELECT build_id, created_at, chunk_count, dimension, provider, model, chunk_size, overlap, source_dir
		FROM manifest WHERE id = 1
	`
	var m Manifest
	var createdAt string
	err := s.db.QueryRowContext(ctx, query).Scan(
		&m.BuildID, &createdAt, &m.ChunkCount, &m.Dimension,
		&m.Provider, &m.Model, &m.ChunkSize, &m.Overlap, &m.SourceDir)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: manifest missing", ErrCorruptIndex)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid manifest timestamp %q", ErrCorruptIndex, createdAt)
	}
	return &m, nil
}

// VectorRecord is one stored vector row
type VectorRecord struct {
	Position int
	ChunkID  string
	Vector   []float32
}

// Vectors reads every stored vector in position order
func (s *VectorStore) Vectors(ctx context.Context) ([]VectorRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT position, chunk_id, dimension, vector FROM vectors ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]VectorRecord, 0)
	for rows.Next() {
		var rec VectorRecord
		var dim int
		var blob []byte
		if err := rows.Scan(&rec.Position, &rec.ChunkID, &dim, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		rec.Vector, err = deserializeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("vector at position %d: %w", rec.Position, err)
		}
		if len(rec.Vector) != dim {
			return nil, fmt.Errorf("%w: vector at position %d has %d values, row says %d",
				ErrCorruptIndex, rec.Position, len(rec.Vector), dim)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Stats holds row counts and on-disk size of the vector store
type Stats struct {
	Vectors       int   `json:"vectors"`
	DatabaseBytes int64 `json:"database_bytes"`
}

// Stats returns row counts and the database size
func (s *VectorStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&st.Vectors); err != nil {
		return nil, err
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	st.DatabaseBytes = pageCount * pageSize
	return &st, nil
}
