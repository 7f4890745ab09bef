package store

import (
	"database/sql"
	"fmt"
)

// --- Source root operations ---

func (s *Store) InsertSourceRoot(r *SourceRoot) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO source_roots (path, package, is_member) VALUES (?, ?, ?)",
		r.Path, r.Package, r.IsMember,
	)
	if err != nil {
		return 0, fmt.Errorf("insert source root: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	return id, nil
}

func (s *Store) SourceRoots() ([]*SourceRoot, error) {
	rows, err := s.db.Query("SELECT id, path, package, is_member FROM source_roots ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("source roots: %w", err)
	}
	defer rows.Close()
	var roots []*SourceRoot
	for rows.Next() {
		r := &SourceRoot{}
		var pkg sql.NullString
		if err := rows.Scan(&r.ID, &r.Path, &pkg, &r.IsMember); err != nil {
			return nil, fmt.Errorf("scan source root: %w", err)
		}
		r.Package = pkg.String
		roots = append(roots, r)
	}
	return roots, rows.Err()
}

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, source_root_id, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.SourceRootID, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = "id, path, source_root_id, hash, line_count, last_indexed"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	var hash sql.NullString
	var lines sql.NullInt64
	var indexed sql.NullTime
	if err := scanner.Scan(&f.ID, &f.Path, &f.SourceRootID, &hash, &lines, &indexed); err != nil {
		return nil, err
	}
	f.Hash = hash.String
	f.LineCount = int(lines.Int64)
	f.LastIndexed = indexed.Time
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// Files returns every tracked file ordered by ID.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// OrphanFiles returns tracked files that no crate owns.
func (s *Store) OrphanFiles() ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT " + fileCols + ` FROM files
		 WHERE id NOT IN (SELECT file_id FROM crate_files)
		 ORDER BY path`,
	)
	if err != nil {
		return nil, fmt.Errorf("orphan files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
