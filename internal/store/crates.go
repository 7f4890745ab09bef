package store

import (
	"database/sql"
	"fmt"
)

// --- Crate operations ---

func (s *Store) InsertCrate(c *Crate) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO crates (name, target, display_name, kind, edition, root_file_id, manifest_path, ordinal)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Target, nullIfEmpty(c.DisplayName), c.Kind, c.Edition,
		c.RootFileID, c.ManifestPath, c.Ordinal,
	)
	if err != nil {
		return 0, fmt.Errorf("insert crate: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return id, nil
}

func (s *Store) InsertCrateFeature(f *CrateFeature) error {
	_, err := s.db.Exec(
		"INSERT INTO crate_features (crate_id, name, enabled) VALUES (?, ?, ?)",
		f.CrateID, f.Name, f.Enabled,
	)
	if err != nil {
		return fmt.Errorf("insert crate feature: %w", err)
	}
	return nil
}

func (s *Store) InsertCrateFile(cf *CrateFile) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO crate_files (crate_id, file_id) VALUES (?, ?)",
		cf.CrateID, cf.FileID,
	)
	if err != nil {
		return fmt.Errorf("insert crate file: %w", err)
	}
	return nil
}

func (s *Store) InsertCrateDep(d *CrateDep) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO crate_deps (from_crate_id, to_crate_id, name) VALUES (?, ?, ?)",
		d.FromCrateID, d.ToCrateID, d.Name,
	)
	if err != nil {
		return fmt.Errorf("insert crate dep: %w", err)
	}
	return nil
}

// CrateCols is the column list for crate queries.
const CrateCols = `c.id, c.name, c.target, c.display_name, c.kind, c.edition,
	c.root_file_id, c.manifest_path, c.ordinal`

// ScanCrateRow scans a single row selected with CrateCols.
func ScanCrateRow(scanner interface{ Scan(...any) error }) (*Crate, error) {
	c := &Crate{}
	var display, edition sql.NullString
	err := scanner.Scan(
		&c.ID, &c.Name, &c.Target, &display, &c.Kind, &edition,
		&c.RootFileID, &c.ManifestPath, &c.Ordinal,
	)
	if err != nil {
		return nil, err
	}
	c.DisplayName = display.String
	c.Edition = edition.String
	return c, nil
}

func (s *Store) queryCrates(query string, args ...any) ([]*Crate, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	var crates []*Crate
	for rows.Next() {
		c, err := ScanCrateRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan crate: %w", err)
		}
		crates = append(crates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Features are loaded after the crate cursor is closed; the feature query
	// would otherwise wait on the same connection.
	ids := make([]int64, len(crates))
	for i, c := range crates {
		ids[i] = c.ID
	}
	feats, err := s.enabledFeaturesFor(ids)
	if err != nil {
		return nil, err
	}
	for _, c := range crates {
		c.Features = feats[c.ID]
		if c.Features == nil {
			c.Features = []string{}
		}
	}
	return crates, nil
}

// enabledFeaturesFor loads the enabled features of several crates in one
// query, keyed by crate ID and sorted by name.
func (s *Store) enabledFeaturesFor(ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(
		"SELECT crate_id, name FROM crate_features WHERE enabled AND crate_id IN ("+
			placeholderList(len(ids))+") ORDER BY crate_id, name",
		int64sToArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("enabled features: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

// Crates returns every crate in enumeration order.
func (s *Store) Crates() ([]*Crate, error) {
	crates, err := s.queryCrates("SELECT " + CrateCols + " FROM crates c ORDER BY c.ordinal, c.id")
	if err != nil {
		return nil, fmt.Errorf("crates: %w", err)
	}
	return crates, nil
}

func (s *Store) CrateByID(id int64) (*Crate, error) {
	crates, err := s.queryCrates("SELECT "+CrateCols+" FROM crates c WHERE c.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("crate by id: %w", err)
	}
	if len(crates) == 0 {
		return nil, nil
	}
	return crates[0], nil
}

// CratesForFile returns the crates whose module tree includes fileID, in
// enumeration order. A tracked file owned by no crate yields an empty slice.
func (s *Store) CratesForFile(fileID int64) ([]*Crate, error) {
	crates, err := s.queryCrates(
		"SELECT "+CrateCols+` FROM crate_files cf
		 JOIN crates c ON c.id = cf.crate_id
		 WHERE cf.file_id = ?
		 ORDER BY c.ordinal, c.id`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("crates for file: %w", err)
	}
	return crates, nil
}

// CrateFeatures returns every declared feature of a crate, enabled or not.
func (s *Store) CrateFeatures(crateID int64) ([]*CrateFeature, error) {
	rows, err := s.db.Query(
		"SELECT crate_id, name, enabled FROM crate_features WHERE crate_id = ? ORDER BY name", crateID,
	)
	if err != nil {
		return nil, fmt.Errorf("crate features: %w", err)
	}
	defer rows.Close()
	var feats []*CrateFeature
	for rows.Next() {
		f := &CrateFeature{}
		if err := rows.Scan(&f.CrateID, &f.Name, &f.Enabled); err != nil {
			return nil, fmt.Errorf("scan crate feature: %w", err)
		}
		feats = append(feats, f)
	}
	return feats, rows.Err()
}

// CrateFileCount returns how many files a crate owns.
func (s *Store) CrateFileCount(crateID int64) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM crate_files WHERE crate_id = ?", crateID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("crate file count: %w", err)
	}
	return n, nil
}

// CrateDeps returns the direct dependencies of a crate.
func (s *Store) CrateDeps(crateID int64) ([]*CrateDep, error) {
	rows, err := s.db.Query(
		"SELECT from_crate_id, to_crate_id, name FROM crate_deps WHERE from_crate_id = ? ORDER BY name", crateID,
	)
	if err != nil {
		return nil, fmt.Errorf("crate deps: %w", err)
	}
	defer rows.Close()
	var deps []*CrateDep
	for rows.Next() {
		d := &CrateDep{}
		if err := rows.Scan(&d.FromCrateID, &d.ToCrateID, &d.Name); err != nil {
			return nil, fmt.Errorf("scan crate dep: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}
