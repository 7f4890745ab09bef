package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the project database.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// AUTOINCREMENT keeps file and crate IDs from being reused after deletes.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS source_roots (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  path            TEXT NOT NULL UNIQUE,
  package         TEXT,
  is_member       BOOLEAN DEFAULT TRUE,
  generation      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  path            TEXT NOT NULL UNIQUE,
  source_root_id  INTEGER REFERENCES source_roots(id),
  hash            TEXT,
  line_count      INTEGER,
  last_indexed    TIMESTAMP,
  generation      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS crates (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  name            TEXT NOT NULL,
  target          TEXT NOT NULL,
  display_name    TEXT,
  kind            TEXT NOT NULL,
  edition         TEXT,
  root_file_id    INTEGER NOT NULL REFERENCES files(id),
  manifest_path   TEXT NOT NULL,
  ordinal         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS crate_features (
  crate_id        INTEGER NOT NULL REFERENCES crates(id),
  name            TEXT NOT NULL,
  enabled         BOOLEAN DEFAULT FALSE,
  PRIMARY KEY (crate_id, name)
);

CREATE TABLE IF NOT EXISTS crate_files (
  crate_id        INTEGER NOT NULL REFERENCES crates(id),
  file_id         INTEGER NOT NULL REFERENCES files(id),
  PRIMARY KEY (crate_id, file_id)
);

CREATE TABLE IF NOT EXISTS crate_deps (
  from_crate_id   INTEGER NOT NULL REFERENCES crates(id),
  to_crate_id     INTEGER NOT NULL REFERENCES crates(id),
  name            TEXT NOT NULL,
  PRIMARY KEY (from_crate_id, to_crate_id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_files_root ON files(source_root_id);
CREATE INDEX IF NOT EXISTS idx_crates_ordinal ON crates(ordinal);
CREATE INDEX IF NOT EXISTS idx_crates_root_file ON crates(root_file_id);
CREATE INDEX IF NOT EXISTS idx_crate_files_file ON crate_files(file_id);
CREATE INDEX IF NOT EXISTS idx_crate_deps_to ON crate_deps(to_crate_id);
`

// GetMetadata returns the value stored under key, or "" if absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value.String, nil
}

// setMetadataTx upserts a metadata value. Writes happen only through
// CommitBatch so metadata always describes the committed snapshot.
func setMetadataTx(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// clearCratesTx deletes in reverse-dependency order to respect FK constraints.
func clearCratesTx(tx *sql.Tx) error {
	for _, q := range []string{
		"DELETE FROM crate_deps",
		"DELETE FROM crate_files",
		"DELETE FROM crate_features",
		"DELETE FROM crates",
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("clear crates: %w", err)
		}
	}
	return nil
}
