// Package store persists a manifest of pipeline runs in SQLite so past
// downloads and detection passes can be inspected later.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run kinds.
const (
	KindDownload = "download"
	KindDetect   = "detect"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID            string
	Name          string
	Kind          string
	Zoom          int
	Status        string
	TileCount     int
	FailedFetches int
	Detections    int
	OutputDir     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TileRecord is one stitched image recorded for a download run.
type TileRecord struct {
	Filename       string
	X, Y, Z        int
	FailedSubtiles int
}

// Store wraps the manifest database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the manifest database and configures WAL mode.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	kind           TEXT NOT NULL,
	zoom           INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'running',
	tile_count     INTEGER NOT NULL DEFAULT 0,
	failed_fetches INTEGER NOT NULL DEFAULT 0,
	detections     INTEGER NOT NULL DEFAULT 0,
	output_dir     TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_tiles (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	filename        TEXT NOT NULL,
	x               INTEGER NOT NULL,
	y               INTEGER NOT NULL,
	z               INTEGER NOT NULL,
	failed_subtiles INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_tiles_run_id ON run_tiles(run_id);
`

// Migrate creates the manifest schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new running entry and returns it.
func (s *Store) CreateRun(ctx context.Context, name, kind string, zoom int) (*Run, error) {
	now := time.Now().UTC()
	r := &Run{
		ID:        uuid.New().String(),
		Name:      name,
		Kind:      kind,
		Zoom:      zoom,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, kind, zoom, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Kind, r.Zoom, r.Status, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert run")
	}
	return r, nil
}

// FinishRun records the terminal status and counters for a run.
func (s *Store) FinishRun(ctx context.Context, runID, status string, tileCount, failedFetches, detections int, outputDir string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, tile_count = ?, failed_fetches = ?, detections = ?, output_dir = ?, updated_at = ? WHERE id = ?`,
		status, tileCount, failedFetches, detections, outputDir, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Errorf("store: run %s not found", runID)
	}
	return nil
}

// AddTiles records the stitched images produced by a download run.
func (s *Store) AddTiles(ctx context.Context, runID string, tiles []TileRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_tiles (run_id, filename, x, y, z, failed_subtiles) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "store: prepare insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, t := range tiles {
		if _, err := stmt.ExecContext(ctx, runID, t.Filename, t.X, t.Y, t.Z, t.FailedSubtiles); err != nil {
			return eris.Wrapf(err, "store: insert tile %s", t.Filename)
		}
	}
	return eris.Wrap(tx.Commit(), "store: commit tiles")
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, zoom, status, tile_count, failed_fetches, detections, output_dir, created_at, updated_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind, &r.Zoom, &r.Status, &r.TileCount,
			&r.FailedFetches, &r.Detections, &r.OutputDir, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "store: iterate runs")
}

// GetRun loads one run and its tile records.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, []TileRecord, error) {
	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, zoom, status, tile_count, failed_fetches, detections, output_dir, created_at, updated_at
		 FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.Name, &r.Kind, &r.Zoom, &r.Status, &r.TileCount,
			&r.FailedFetches, &r.Detections, &r.OutputDir, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, eris.Errorf("store: run %s not found", runID)
	}
	if err != nil {
		return nil, nil, eris.Wrapf(err, "store: get run %s", runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, x, y, z, failed_subtiles FROM run_tiles WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: query run tiles")
	}
	defer rows.Close()

	var tiles []TileRecord
	for rows.Next() {
		var t TileRecord
		if err := rows.Scan(&t.Filename, &t.X, &t.Y, &t.Z, &t.FailedSubtiles); err != nil {
			return nil, nil, eris.Wrap(err, "store: scan tile")
		}
		tiles = append(tiles, t)
	}
	return &r, tiles, eris.Wrap(rows.Err(), "store: iterate tiles")
}
