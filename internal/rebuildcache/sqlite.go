package rebuildcache

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// sqliteBackend stores fingerprints in a small SQLite database keyed by
// artifact name, giving atomic multi-artifact reads/writes for free where
// the original used one flat file per artifact (SPEC_FULL.md §2).
type sqliteBackend struct {
	db *sql.DB
}

func newSQLiteBackend(path string) (*sqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS fingerprints (
			artifact    TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			run_id      TEXT NOT NULL,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating fingerprints table")
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Load(artifact string) (string, bool, error) {
	var fingerprint string
	err := b.db.QueryRow(`SELECT fingerprint FROM fingerprints WHERE artifact = ?`, artifact).Scan(&fingerprint)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return fingerprint, true, nil
}

func (b *sqliteBackend) Store(artifact, fingerprint, runID string) error {
	_, err := b.db.Exec(`
		INSERT INTO fingerprints (artifact, fingerprint, run_id, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(artifact) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			run_id = excluded.run_id,
			updated_at = CURRENT_TIMESTAMP
	`, artifact, fingerprint, runID)
	return err
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
