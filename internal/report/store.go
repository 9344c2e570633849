package report

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    input TEXT NOT NULL,
    base_url TEXT NOT NULL,
    output_directory TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    total_resources INTEGER NOT NULL DEFAULT 0,
    downloaded INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    bytes INTEGER NOT NULL DEFAULT 0,
    document_rewritten BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS url_map (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    local_path TEXT NOT NULL,
    PRIMARY KEY (run_id, url)
);

CREATE TABLE IF NOT EXISTS failed_urls (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    reference TEXT,
    error TEXT,
    PRIMARY KEY (run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_url_map_local_path ON url_map(local_path);
`

// Store keeps a history of runs in SQLite. It is write-only from the pipeline's
// point of view: nothing read back from it influences a later run.
type Store struct {
	*sql.DB
	path string
}

// OpenStore opens or creates the database at path. ":memory:" works for tests.
func OpenStore(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// an in-memory database lives only as long as its one connection
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{DB: sqlDB, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Record inserts the run with its URL map and failures in one transaction.
func (s *Store) Record(r *Report) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var finished interface{}
	if !r.FinishedAt.IsZero() {
		finished = r.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err = tx.Exec(`
		INSERT INTO runs (id, input, base_url, output_directory, started_at, finished_at,
			total_resources, downloaded, failed, bytes, document_rewritten)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Input, r.BaseURL, r.OutputDirectory, r.StartedAt.UTC().Format(time.RFC3339Nano), finished,
		r.Stats.TotalResources, r.Stats.Downloaded, r.Stats.Failed, r.Stats.Bytes, r.DocumentRewritten)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	keys := make([]string, 0, len(r.URLMap))
	for k := range r.URLMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.Exec(`INSERT INTO url_map (run_id, url, local_path) VALUES (?, ?, ?)`,
			r.RunID, k, r.URLMap[k]); err != nil {
			return fmt.Errorf("failed to insert url mapping: %w", err)
		}
	}

	for _, f := range r.Failures {
		if _, err := tx.Exec(`INSERT INTO failed_urls (run_id, url, reference, error) VALUES (?, ?, ?, ?)`,
			r.RunID, f.URL, f.Reference, f.Error); err != nil {
			return fmt.Errorf("failed to insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunCount returns the number of recorded runs.
func (s *Store) RunCount() (int, error) {
	var n int
	if err := s.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}
