package store

import (
	"database/sql"
	"fmt"
	"slices"
	"strconv"
)

// CommitBatch replaces the stored workspace snapshot with the contents of a
// BatchedStore within a single transaction. Fake (negative) IDs are remapped
// to real IDs, and all FK references within the batch are rewritten using
// the fakeToReal mapping.
//
// Source roots and files are upserted by path so a path keeps its ID across
// reloads; rows whose path is absent from the batch are deleted. Crates and
// their dependent rows are always rebuilt.
//
// Insert order respects FK dependencies:
//  1. SourceRoots
//  2. Files (depend on source_root_id)
//  3. Crates (depend on root_file_id)
//  4. Features, CrateFiles, Deps (depend on crate_id, file_id)
//  5. Metadata, including the new generation
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	generation, err := nextGenerationTx(tx)
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	if err := clearCratesTx(tx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	fakeToReal := make(map[int64]int64)
	remap := func(id int64) int64 {
		if id < 0 {
			return fakeToReal[id]
		}
		return id
	}

	// 1. SourceRoots
	for _, r := range batch.SourceRoots {
		realID, err := upsertSourceRootTx(tx, &r, generation)
		if err != nil {
			return fmt.Errorf("commit batch: source root %q: %w", r.Path, err)
		}
		fakeToReal[r.ID] = realID
	}

	// 2. Files
	for _, f := range batch.Files {
		if f.SourceRootID != nil && *f.SourceRootID < 0 {
			realID := fakeToReal[*f.SourceRootID]
			f.SourceRootID = &realID
		}
		realID, err := upsertFileTx(tx, &f, generation)
		if err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		fakeToReal[f.ID] = realID
	}

	// Drop files and roots that no longer exist in the workspace.
	for _, q := range []string{
		"DELETE FROM files WHERE generation <> ?",
		"DELETE FROM source_roots WHERE generation <> ?",
	} {
		if _, err := tx.Exec(q, generation); err != nil {
			return fmt.Errorf("commit batch: prune: %w", err)
		}
	}

	// 3. Crates
	for _, c := range batch.Crates {
		c.RootFileID = remap(c.RootFileID)
		realID, err := insertCrateTx(tx, &c)
		if err != nil {
			return fmt.Errorf("commit batch: crate %q: %w", c.Target, err)
		}
		fakeToReal[c.ID] = realID
	}

	// 4. Crate children
	for _, f := range batch.Features {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO crate_features (crate_id, name, enabled) VALUES (?, ?, ?)",
			remap(f.CrateID), f.Name, f.Enabled,
		); err != nil {
			return fmt.Errorf("commit batch: feature %q: %w", f.Name, err)
		}
	}
	for _, cf := range batch.CrateFiles {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO crate_files (crate_id, file_id) VALUES (?, ?)",
			remap(cf.CrateID), remap(cf.FileID),
		); err != nil {
			return fmt.Errorf("commit batch: crate file: %w", err)
		}
	}
	for _, d := range batch.Deps {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO crate_deps (from_crate_id, to_crate_id, name) VALUES (?, ?, ?)",
			remap(d.FromCrateID), remap(d.ToCrateID), d.Name,
		); err != nil {
			return fmt.Errorf("commit batch: dep %q: %w", d.Name, err)
		}
	}

	if err := setMetadataTx(tx, "generation", strconv.FormatInt(generation, 10)); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	keys := make([]string, 0, len(batch.Metadata))
	for k := range batch.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := setMetadataTx(tx, k, batch.Metadata[k]); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	}

	return tx.Commit()
}

func nextGenerationTx(tx *sql.Tx) (int64, error) {
	var value sql.NullString
	err := tx.QueryRow("SELECT value FROM metadata WHERE key = 'generation'").Scan(&value)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("read generation: %w", err)
	}
	if !value.Valid {
		return 1, nil
	}
	n, err := strconv.ParseInt(value.String, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse generation %q: %w", value.String, err)
	}
	return n + 1, nil
}

func upsertSourceRootTx(tx *sql.Tx, r *SourceRoot, generation int64) (int64, error) {
	if _, err := tx.Exec(
		`INSERT INTO source_roots (path, package, is_member, generation) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET package = excluded.package,
		   is_member = excluded.is_member, generation = excluded.generation`,
		r.Path, r.Package, r.IsMember, generation,
	); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRow("SELECT id FROM source_roots WHERE path = ?", r.Path).Scan(&id)
	return id, err
}

func upsertFileTx(tx *sql.Tx, f *File, generation int64) (int64, error) {
	if _, err := tx.Exec(
		`INSERT INTO files (path, source_root_id, hash, line_count, last_indexed, generation)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET source_root_id = excluded.source_root_id,
		   hash = excluded.hash, line_count = excluded.line_count,
		   last_indexed = excluded.last_indexed, generation = excluded.generation`,
		f.Path, f.SourceRootID, f.Hash, f.LineCount, f.LastIndexed, generation,
	); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&id)
	return id, err
}

func insertCrateTx(tx *sql.Tx, c *Crate) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO crates (name, target, display_name, kind, edition, root_file_id, manifest_path, ordinal)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Target, nullIfEmpty(c.DisplayName), c.Kind, c.Edition,
		c.RootFileID, c.ManifestPath, c.Ordinal,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
