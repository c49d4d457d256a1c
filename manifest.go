package kiln

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Manifest wraps a SQLite database recording what each build produced. It
// is what makes rebuilds incremental: a source whose hash and outputs are
// unchanged is skipped entirely.
type Manifest struct {
	db *sql.DB
}

// OpenManifest opens (or creates) the manifest database at path, ensures
// the containing directory exists, and runs schema migrations.
func OpenManifest(path string) (*Manifest, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL mode lets the preview server read while a watch-mode build
	// writes; busy_timeout makes writers wait instead of failing with
	// SQLITE_BUSY; synchronous=NORMAL is safe with WAL and skips an fsync
	// per transaction.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	m := &Manifest{db: db}
	if err := m.ensureSchema(); err != nil {
		return nil, err
	}
	return m, nil
}

// Close closes the underlying database connection.
func (m *Manifest) Close() error {
	return m.db.Close()
}

func (m *Manifest) ensureSchema() error {
	_, err := m.db.Exec(`
CREATE TABLE IF NOT EXISTS assets (
    source TEXT NOT NULL,
    output TEXT NOT NULL,
    kind TEXT NOT NULL,
    source_hash TEXT NOT NULL,
    size INTEGER NOT NULL,
    run_id TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (source, output)
);
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    files INTEGER NOT NULL,
    errors INTEGER NOT NULL
);
`)
	return err
}

// UpToDate reports whether every recorded output for source matches hash
// and still exists on disk. A source with no recorded outputs is never up
// to date.
func (m *Manifest) UpToDate(source, hash string) (bool, error) {
	rows, err := m.db.Query(`SELECT output, source_hash FROM assets WHERE source = ?`, source)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var output, recorded string
		if err := rows.Scan(&output, &recorded); err != nil {
			return false, err
		}
		found = true
		if recorded != hash {
			return false, nil
		}
		if _, err := os.Stat(output); err != nil {
			return false, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return found, nil
}

// RecordAssets replaces the recorded outputs for one source file.
func (m *Manifest) RecordAssets(runID, source, hash string, assets []Asset) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("record assets: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM assets WHERE source = ?`, source); err != nil {
		return fmt.Errorf("record assets: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range assets {
		if _, err := tx.Exec(
			`INSERT INTO assets (source, output, kind, source_hash, size, run_id, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.Source, a.Path, string(a.Kind), hash, a.Size, runID, now,
		); err != nil {
			return fmt.Errorf("record assets: %w", err)
		}
	}
	return tx.Commit()
}

// RunRecord is one row of build history.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	DurationMs int64
	Files      int
	Errors     int
}

// RecordRun appends one run to the build history.
func (m *Manifest) RecordRun(r RunRecord) error {
	_, err := m.db.Exec(
		`INSERT OR REPLACE INTO runs (id, started_at, duration_ms, files, errors) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.Format(time.RFC3339), r.DurationMs, r.Files, r.Errors,
	)
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (m *Manifest) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := m.db.Query(
		`SELECT id, started_at, duration_ms, files, errors FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started string
		if err := rows.Scan(&r.ID, &started, &r.DurationMs, &r.Files, &r.Errors); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			r.StartedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListAssets returns all recorded assets ordered by output path.
func (m *Manifest) ListAssets() ([]Asset, error) {
	rows, err := m.db.Query(`SELECT source, output, kind, size FROM assets ORDER BY output`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		var kind string
		if err := rows.Scan(&a.Source, &a.Path, &kind, &a.Size); err != nil {
			return nil, err
		}
		a.Kind = Kind(kind)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
