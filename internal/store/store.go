package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/valpere/novtran/internal"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Workers in parallel mode share the handle; sqlite allows one writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS progress (
		document_id TEXT PRIMARY KEY,
		completed_json TEXT NOT NULL DEFAULT '[]',
		total_chunks INTEGER NOT NULL DEFAULT 0,
		last_chunk INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	-- chunk_attempts keeps one row per pass of the chunk pipeline
	CREATE TABLE IF NOT EXISTS chunk_attempts (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		status TEXT NOT NULL,
		credential TEXT,
		error TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_document ON chunk_attempts(document_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ProgressRecord is the persisted progress of one document.
type ProgressRecord struct {
	DocumentID  string
	Completed   []int
	TotalChunks int
	LastChunk   int
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// LoadProgress returns the record for documentID. The bool is false when the
// document has no record yet.
func (s *Store) LoadProgress(ctx context.Context, documentID string) (*ProgressRecord, bool, error) {
	rec := ProgressRecord{DocumentID: documentID}
	var raw string
	var started, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT completed_json, total_chunks, last_chunk, started_at, updated_at FROM progress WHERE document_id = ?`,
		documentID).Scan(&raw, &rec.TotalChunks, &rec.LastChunk, &started, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if err := json.Unmarshal([]byte(raw), &rec.Completed); err != nil {
		return nil, false, fmt.Errorf("corrupt progress record for %s: %w", documentID, err)
	}
	sort.Ints(rec.Completed)
	rec.StartedAt = time.UnixMilli(started)
	rec.UpdatedAt = time.UnixMilli(updated)
	return &rec, true, nil
}

// SaveProgress upserts rec. A zero StartedAt keeps the stored value, or
// UpdatedAt for a new row.
func (s *Store) SaveProgress(ctx context.Context, rec ProgressRecord) error {
	completed := append([]int(nil), rec.Completed...)
	sort.Ints(completed)
	if completed == nil {
		completed = []int{}
	}
	raw, err := json.Marshal(completed)
	if err != nil {
		return err
	}

	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	started := rec.StartedAt
	if started.IsZero() {
		started = updated
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress (document_id, completed_json, total_chunks, last_chunk, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET
			completed_json = excluded.completed_json,
			total_chunks = excluded.total_chunks,
			last_chunk = excluded.last_chunk,
			updated_at = excluded.updated_at`,
		rec.DocumentID, string(raw), rec.TotalChunks, rec.LastChunk, started.UnixMilli(), updated.UnixMilli())
	return err
}

// DeleteProgress removes the record for documentID and reports whether one
// existed.
func (s *Store) DeleteProgress(ctx context.Context, documentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE document_id = ?`, documentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordAttempt stores one attempt. Missing ID and CreatedAt are filled in.
func (s *Store) RecordAttempt(ctx context.Context, a internal.Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunk_attempts (id, run_id, document_id, chunk_index, status, credential, error, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.DocumentID, a.ChunkIndex, a.Status, a.Credential, a.Error,
		a.Latency.Milliseconds(), a.CreatedAt.UnixMilli())
	return err
}

// RecentAttempts returns up to limit attempts for documentID, newest first.
func (s *Store) RecentAttempts(ctx context.Context, documentID string, limit int) ([]internal.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, document_id, chunk_index, status, COALESCE(credential, ''), COALESCE(error, ''), COALESCE(latency_ms, 0), created_at
		 FROM chunk_attempts WHERE document_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Attempt
	for rows.Next() {
		var (
			a                  internal.Attempt
			latency, createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.DocumentID, &a.ChunkIndex, &a.Status, &a.Credential, &a.Error, &latency, &createdAt); err != nil {
			return nil, err
		}
		a.Latency = time.Duration(latency) * time.Millisecond
		a.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AttemptStats summarises the attempts recorded for a document.
type AttemptStats struct {
	Total      int
	Succeeded  int
	Failed     int
	Runs       int
	AvgLatency time.Duration
	LastAt     time.Time
}

func (s *Store) AttemptStats(ctx context.Context, documentID string) (*AttemptStats, error) {
	var (
		stats  AttemptStats
		avg    float64
		lastAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT run_id),
			COALESCE(AVG(latency_ms), 0),
			COALESCE(MAX(created_at), 0)
		FROM chunk_attempts WHERE document_id = ?`,
		internal.AttemptSucceeded, internal.AttemptFailed, documentID).Scan(
		&stats.Total,
		&stats.Succeeded,
		&stats.Failed,
		&stats.Runs,
		&avg,
		&lastAt,
	)
	if err != nil {
		return nil, err
	}
	stats.AvgLatency = time.Duration(avg * float64(time.Millisecond))
	if lastAt > 0 {
		stats.LastAt = time.UnixMilli(lastAt)
	}
	return &stats, nil
}
