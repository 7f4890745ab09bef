package cratescope

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jward/cratescope/internal/store"
	"github.com/jward/cratescope/internal/workspace"
)

// Metadata keys written by Load.
const (
	metaManifestRoot = "manifest_root"
	metaManifestHash = "manifest_hash"
	metaLoadedAt     = "loaded_at"
)

// Engine ties the project database to the workspace loader and the query
// components: path normalization, the virtual path space, crate resolution
// and text introspection.
type Engine struct {
	store        *store.Store
	loadOpts     workspace.Options
	logger       *slog.Logger
	cacheSize    int
	introspector *Introspector

	// Set by Open.
	paths    *PathSpace
	resolver *CrateResolver
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoadOptions sets the options used by Load.
func WithLoadOptions(opts workspace.Options) Option {
	return func(e *Engine) {
		e.loadOpts = opts
	}
}

// WithLogger sets the logger for the engine and the workspace loader.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCacheSize bounds the number of files whose crates are memoized.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithAnalyzer replaces the tree-sitter analyzer behind Introspector.
func WithAnalyzer(a Analyzer) Option {
	return func(e *Engine) {
		e.introspector = NewIntrospector(a)
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("cratescope: create store: %w: %w", ErrIO, err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("cratescope: migrate: %w: %w", ErrIO, err)
	}

	e := &Engine{
		store:     s,
		cacheSize: DefaultCacheSize,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.introspector == nil {
		e.introspector = NewIntrospector(nil)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Introspector returns the text analysis facade.
func (e *Engine) Introspector() *Introspector {
	return e.introspector
}

// LoadStats describes the outcome of Load.
type LoadStats struct {
	Root     string
	Skipped  bool // database already matched the workspace
	Packages int
	Crates   int
	Files    int
	Duration time.Duration
}

// Load builds the project database from the workspace at root and opens it
// for queries. Unless force is set, the load is skipped when the manifests,
// source files and load options are unchanged since the last load.
func (e *Engine) Load(ctx context.Context, root string, force bool) (*LoadStats, error) {
	start := time.Now()
	opts := e.loadOpts
	opts.Logger = e.logger

	if !force {
		hash, err := e.currentHash(root, opts)
		if err != nil {
			return nil, err
		}
		stored, err := e.store.GetMetadata(metaManifestHash)
		if err != nil {
			return nil, fmt.Errorf("cratescope: load: %w: %w", ErrIO, err)
		}
		if stored == hash {
			e.logger.Debug("workspace unchanged, skipping load", "root", root)
			if err := e.Open(); err != nil {
				return nil, err
			}
			storedRoot, _ := e.store.GetMetadata(metaManifestRoot)
			return &LoadStats{Root: storedRoot, Skipped: true, Files: e.paths.Len(), Duration: time.Since(start)}, nil
		}
	}

	snap, err := workspace.Load(ctx, root, opts)
	if err != nil {
		return nil, fmt.Errorf("cratescope: load: %w: %w", ErrLoader, err)
	}
	snap.Batch.SetMetadata(metaManifestRoot, snap.Root)
	snap.Batch.SetMetadata(metaManifestHash, store.ComputeManifestHash(snap.Inputs, opts.Fingerprint()))
	snap.Batch.SetMetadata(metaLoadedAt, time.Now().UTC().Format(time.RFC3339))
	if err := e.store.CommitBatch(snap.Batch); err != nil {
		return nil, fmt.Errorf("cratescope: load: %w: %w", ErrIO, err)
	}
	if err := e.Open(); err != nil {
		return nil, err
	}

	stats := &LoadStats{
		Root:     snap.Root,
		Packages: len(snap.Packages),
		Crates:   len(snap.Batch.Crates),
		Files:    len(snap.Batch.Files),
		Duration: time.Since(start),
	}
	e.logger.Info("database built", "root", stats.Root, "crates", stats.Crates, "files", stats.Files, "duration", stats.Duration)
	return stats, nil
}

// currentHash fingerprints the workspace as it is on disk now. Files the
// last load tracked outside every package directory are stamped from the
// database, since discovery alone cannot find them.
func (e *Engine) currentHash(root string, opts workspace.Options) (string, error) {
	inputs, err := workspace.Inputs(root, opts)
	if err != nil {
		return "", fmt.Errorf("cratescope: load: %w: %w", ErrLoader, err)
	}
	files, err := e.store.Files()
	if err != nil {
		return "", fmt.Errorf("cratescope: load: %w: %w", ErrIO, err)
	}
	var loose []string
	for _, f := range files {
		if f.SourceRootID == nil {
			loose = append(loose, f.Path)
		}
	}
	inputs = append(inputs, workspace.Stamps(loose)...)
	return store.ComputeManifestHash(inputs, opts.Fingerprint()), nil
}

// Open builds the path space and resolver from the current database
// contents. Load calls it; use it directly to query an existing database.
func (e *Engine) Open() error {
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("cratescope: open: %w: %w", ErrIO, err)
	}
	paths := NewPathSpace(files)
	resolver, err := NewCrateResolver(e.store, paths, e.cacheSize)
	if err != nil {
		return err
	}
	e.paths = paths
	e.resolver = resolver
	e.logger.Debug("database opened", "files", paths.Len())
	return nil
}

func (e *Engine) ensureOpen() error {
	if e.resolver != nil {
		return nil
	}
	return e.Open()
}

// Paths returns the virtual path space, opening the database if needed.
func (e *Engine) Paths() (*PathSpace, error) {
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}
	return e.paths, nil
}

// Resolver returns the crate resolver, opening the database if needed.
func (e *Engine) Resolver() (*CrateResolver, error) {
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}
	return e.resolver, nil
}

// ResolveFileCrates normalizes file against cwd, looks it up in the path
// space and returns every crate that includes it.
func (e *Engine) ResolveFileCrates(cwd, file string) ([]Crate, error) {
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}
	path, err := Normalize(cwd, file)
	if err != nil {
		return nil, err
	}
	id, err := e.paths.Lookup(path)
	if err != nil {
		return nil, err
	}
	return e.resolver.CratesFor(id)
}

// Crates lists every crate in enumeration order.
func (e *Engine) Crates() ([]*Crate, error) {
	crates, err := e.store.Crates()
	if err != nil {
		return nil, fmt.Errorf("cratescope: crates: %w: %w", ErrIO, err)
	}
	return crates, nil
}

// CrateDeps returns the crates a crate depends on directly, ordered by
// dependency name.
func (e *Engine) CrateDeps(crateID int64) ([]*Crate, error) {
	edges, err := e.store.CrateDeps(crateID)
	if err != nil {
		return nil, fmt.Errorf("cratescope: crate deps: %w: %w", ErrIO, err)
	}
	deps := make([]*Crate, 0, len(edges))
	for _, d := range edges {
		c, err := e.store.CrateByID(d.ToCrateID)
		if err != nil {
			return nil, fmt.Errorf("cratescope: crate deps: %w: %w", ErrIO, err)
		}
		if c != nil {
			deps = append(deps, c)
		}
	}
	return deps, nil
}

// CrateFeatures returns every feature a crate declares, enabled or not.
func (e *Engine) CrateFeatures(crateID int64) ([]*CrateFeature, error) {
	feats, err := e.store.CrateFeatures(crateID)
	if err != nil {
		return nil, fmt.Errorf("cratescope: crate features: %w: %w", ErrIO, err)
	}
	return feats, nil
}

// File returns the tracked record for file, normalized against cwd.
func (e *Engine) File(cwd, file string) (*File, error) {
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}
	path, err := Normalize(cwd, file)
	if err != nil {
		return nil, err
	}
	id, err := e.paths.Lookup(path)
	if err != nil {
		return nil, err
	}
	f, err := e.store.FileByID(int64(id))
	if err != nil {
		return nil, fmt.Errorf("cratescope: file: %w: %w", ErrIO, err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrUntrackedPath, path)
	}
	return f, nil
}

// Files lists every tracked file in ID order.
func (e *Engine) Files() ([]*File, error) {
	files, err := e.store.Files()
	if err != nil {
		return nil, fmt.Errorf("cratescope: files: %w: %w", ErrIO, err)
	}
	return files, nil
}

// WorkspaceSummary describes the loaded workspace.
type WorkspaceSummary struct {
	Root        string `json:"root"`
	LoadedAt    string `json:"loaded_at,omitempty"`
	SourceRoots int    `json:"source_roots"`
	Members     int    `json:"members"`
	Crates      int    `json:"crates"`
	Files       int    `json:"files"`
	Orphans     int    `json:"orphans"`
}

// Workspace summarizes the database contents.
func (e *Engine) Workspace() (*WorkspaceSummary, error) {
	var sum WorkspaceSummary
	var err error
	if sum.Root, err = e.store.GetMetadata(metaManifestRoot); err != nil {
		return nil, fmt.Errorf("cratescope: workspace: %w: %w", ErrIO, err)
	}
	if sum.LoadedAt, err = e.store.GetMetadata(metaLoadedAt); err != nil {
		return nil, fmt.Errorf("cratescope: workspace: %w: %w", ErrIO, err)
	}
	roots, err := e.store.SourceRoots()
	if err != nil {
		return nil, fmt.Errorf("cratescope: workspace: %w: %w", ErrIO, err)
	}
	sum.SourceRoots = len(roots)
	for _, r := range roots {
		if r.IsMember {
			sum.Members++
		}
	}
	crates, err := e.Crates()
	if err != nil {
		return nil, err
	}
	sum.Crates = len(crates)
	files, err := e.Files()
	if err != nil {
		return nil, err
	}
	sum.Files = len(files)
	orphans, err := e.store.OrphanFiles()
	if err != nil {
		return nil, fmt.Errorf("cratescope: workspace: %w: %w", ErrIO, err)
	}
	sum.Orphans = len(orphans)
	return &sum, nil
}
