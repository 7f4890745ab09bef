package workspace

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jward/cratescope/internal/store"
	"golang.org/x/sync/errgroup"
)

// Options shapes a workspace load.
type Options struct {
	// IncludeBuildScripts adds a build crate for each package's build.rs.
	IncludeBuildScripts bool
	// IncludeProcMacros requests proc-macro expansion. Macros are never
	// expanded, so it only enters the fingerprint; proc-macro libraries are
	// always loaded.
	IncludeProcMacros bool

	Features          []string // "feat" or "pkg/feat"
	AllFeatures       bool
	NoDefaultFeatures bool

	// Cfg lists active cfg options as "name" or `key="value"`. Empty means
	// debug_assertions plus the host's target family.
	Cfg []string

	// Ignore holds globs, relative to the manifest root, of paths that are
	// neither tracked nor walked.
	Ignore []string

	// Workers bounds concurrent module-tree walks. Zero means NumCPU.
	Workers int

	Logger *slog.Logger

	// Progress, if set, is called after each crate's module tree is walked.
	Progress func(done, total int)
}

// Fingerprint renders the options that affect load output, for change
// detection alongside the manifest inputs.
func (o Options) Fingerprint() string {
	feats := slices.Clone(o.Features)
	sort.Strings(feats)
	cfg := slices.Clone(o.Cfg)
	sort.Strings(cfg)
	ignore := slices.Clone(o.Ignore)
	sort.Strings(ignore)
	return fmt.Sprintf("build=%t;procmacro=%t;features=%s;all=%t;nodefault=%t;cfg=%s;ignore=%s",
		o.IncludeBuildScripts, o.IncludeProcMacros, strings.Join(feats, ","),
		o.AllFeatures, o.NoDefaultFeatures, strings.Join(cfg, ","), strings.Join(ignore, ","))
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (o Options) cfgSet() *CfgSet {
	if len(o.Cfg) > 0 {
		return NewCfgSet(o.Cfg...)
	}
	return DefaultCfgSet()
}

// DefaultCfgSet is the cfg set of a debug build on the host platform.
func DefaultCfgSet() *CfgSet {
	family := "unix"
	if runtime.GOOS == "windows" {
		family = "windows"
	}
	s := NewCfgSet("debug_assertions", family)
	s.Set("target_family", family)
	s.Set("target_os", runtime.GOOS)
	return s
}

// Snapshot is the result of a load, ready for store.CommitBatch.
type Snapshot struct {
	Root     string
	Batch    *store.BatchedStore
	Inputs   []store.ManifestInput
	Packages []*Package
}

// Load reads the workspace rooted at root and builds its snapshot.
func Load(ctx context.Context, root string, opts Options) (*Snapshot, error) {
	logger := opts.logger()
	root, err := canonicalDir(root)
	if err != nil {
		return nil, fmt.Errorf("manifest root: %w", err)
	}
	ignore, err := newMatcher(opts.Ignore)
	if err != nil {
		return nil, err
	}

	pkgs, manifests, err := discoverPackages(root, ignore)
	if err != nil {
		return nil, err
	}
	if opts.IncludeProcMacros {
		logger.Debug("proc-macro expansion requested but not performed")
	}
	for _, p := range pkgs {
		discoverTargets(p, opts)
	}
	resolver := resolveFeatures(pkgs, opts.Features, opts.AllFeatures, opts.NoDefaultFeatures)
	for _, p := range pkgs {
		p.Targets = slices.DeleteFunc(p.Targets, func(t Target) bool {
			for _, req := range t.RequiredFeatures {
				if !slices.Contains(p.Features, req) {
					logger.Debug("target skipped, missing required feature", "package", p.Name, "target", t.Name, "feature", req)
					return true
				}
			}
			return false
		})
		logger.Debug("package", "name", p.Name, "dir", p.Dir, "member", p.IsMember, "targets", len(p.Targets), "features", p.Features)
	}

	crates, err := orderCrates(pkgs, resolver)
	if err != nil {
		return nil, err
	}
	if err := walkCrates(ctx, crates, opts, logger); err != nil {
		return nil, err
	}

	snap := &Snapshot{Root: root, Batch: store.NewBatchedStore(), Packages: pkgs}
	for path, data := range manifests {
		snap.Inputs = append(snap.Inputs, store.ManifestInput{Path: path, Stamp: fmt.Sprintf("%x", sha256.Sum256(data))})
	}
	if err := snap.fill(root, pkgs, crates, ignore); err != nil {
		return nil, err
	}
	logger.Info("workspace loaded", "root", root, "packages", len(pkgs), "crates", len(snap.Batch.Crates), "files", len(snap.Batch.Files))
	return snap, nil
}

// walkCrates fills each crate's file list, walking crates concurrently.
func walkCrates(ctx context.Context, crates []*crateNode, opts Options, logger *slog.Logger) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	base := opts.cfgSet()

	var mu sync.Mutex
	done := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, c := range crates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cfg := base.With()
			for _, f := range c.pkg.Features {
				cfg.Set("feature", f)
			}
			if c.target.Test() {
				cfg.Enable("test")
			}
			if c.target.Kind == store.KindProcMacro {
				cfg.Enable("proc_macro")
			}
			files, err := walkModules(c.target.RootFile, cfg, logger)
			if err != nil {
				return fmt.Errorf("crate %s (%s %s): %w", c.pkg.Name, c.target.Kind, c.target.Name, err)
			}
			c.files = files

			mu.Lock()
			done++
			if opts.Progress != nil {
				opts.Progress(done, len(crates))
			}
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// fill writes source roots, files, crates, features, ownership and
// dependency edges into the batch.
func (s *Snapshot) fill(root string, pkgs []*Package, crates []*crateNode, ignore *matcher) error {
	var b store.DataStore = s.Batch
	fileIDs := map[string]int64{}

	addFile := func(path string, rootID *int64) error {
		if _, ok := fileIDs[path]; ok {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		f := &store.File{
			Path:         path,
			SourceRootID: rootID,
			Hash:         fmt.Sprintf("%x", sha256.Sum256(data)),
			LineCount:    lineCount(data),
			LastIndexed:  time.Now(),
		}
		id, err := b.InsertFile(f)
		if err != nil {
			return err
		}
		fileIDs[path] = id
		s.Inputs = append(s.Inputs, store.ManifestInput{Path: path, Stamp: stamp(info)})
		return nil
	}

	for _, p := range pkgs {
		rootID, err := b.InsertSourceRoot(&store.SourceRoot{Path: p.Dir, Package: p.Name, IsMember: p.IsMember})
		if err != nil {
			return err
		}
		files, err := sourceFiles(p.Dir, root, ignore)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := addFile(f, &rootID); err != nil {
				return err
			}
		}
	}
	// Files pulled in through #[path] or a target path outside every
	// package directory are tracked without a source root.
	for _, c := range crates {
		for _, f := range c.files {
			if err := addFile(f, nil); err != nil {
				return err
			}
		}
	}

	crateIDs := map[*crateNode]int64{}
	for _, c := range crates {
		id, err := b.InsertCrate(&store.Crate{
			Name:         c.pkg.Name,
			Target:       c.target.Name,
			DisplayName:  c.target.Name,
			Kind:         c.target.Kind,
			Edition:      c.pkg.Edition,
			RootFileID:   fileIDs[c.target.RootFile],
			ManifestPath: c.pkg.ManifestPath,
			Ordinal:      c.ordinal,
		})
		if err != nil {
			return err
		}
		crateIDs[c] = id
		for _, feat := range c.pkg.Declared() {
			enabled := slices.Contains(c.pkg.Features, feat)
			if err := b.InsertCrateFeature(&store.CrateFeature{CrateID: id, Name: feat, Enabled: enabled}); err != nil {
				return err
			}
		}
		for _, f := range c.files {
			if err := b.InsertCrateFile(&store.CrateFile{CrateID: id, FileID: fileIDs[f]}); err != nil {
				return err
			}
		}
	}
	for _, c := range crates {
		for _, e := range c.deps {
			if err := b.InsertCrateDep(&store.CrateDep{FromCrateID: crateIDs[c], ToCrateID: crateIDs[e.dep], Name: e.name}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Inputs lists the manifests and source files a load of root would read,
// with content or size/mtime stamps. It is much cheaper than Load and is
// used to decide whether a stored snapshot is still current.
func Inputs(root string, opts Options) ([]store.ManifestInput, error) {
	root, err := canonicalDir(root)
	if err != nil {
		return nil, fmt.Errorf("manifest root: %w", err)
	}
	ignore, err := newMatcher(opts.Ignore)
	if err != nil {
		return nil, err
	}
	pkgs, manifests, err := discoverPackages(root, ignore)
	if err != nil {
		return nil, err
	}
	var inputs []store.ManifestInput
	for path, data := range manifests {
		inputs = append(inputs, store.ManifestInput{Path: path, Stamp: fmt.Sprintf("%x", sha256.Sum256(data))})
	}
	for _, p := range pkgs {
		files, err := sourceFiles(p.Dir, root, ignore)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			info, err := os.Stat(f)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", f, err)
			}
			inputs = append(inputs, store.ManifestInput{Path: f, Stamp: stamp(info)})
		}
	}
	return inputs, nil
}

// Stamps stamps files tracked outside every package directory, which
// Inputs cannot discover on its own. A missing file gets a stamp no
// load could have recorded.
func Stamps(paths []string) []store.ManifestInput {
	inputs := make([]store.ManifestInput, 0, len(paths))
	for _, path := range paths {
		st := "missing"
		if info, err := os.Stat(path); err == nil {
			st = stamp(info)
		}
		inputs = append(inputs, store.ManifestInput{Path: path, Stamp: st})
	}
	return inputs
}

func stamp(info os.FileInfo) string {
	return fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano())
}

func lineCount(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// RelPath renders path relative to root for display, falling back to path.
func RelPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
