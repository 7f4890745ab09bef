package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jward/cratescope/internal/syntax"
)

// moduleFile is a file to scan: its path and the directory its out-of-line
// child modules resolve against.
type moduleFile struct {
	path     string
	childDir string
}

// walkModules follows mod declarations from a crate root and returns every
// reachable file, root first. Modules whose cfg evaluates false are not
// followed. Declared modules with no file on disk are logged and skipped.
func walkModules(rootFile string, cfg *CfgSet, logger *slog.Logger) ([]string, error) {
	seen := map[string]bool{rootFile: true}
	files := []string{rootFile}
	queue := []moduleFile{{path: rootFile, childDir: filepath.Dir(rootFile)}}

	var errs []error
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		src, err := os.ReadFile(cur.path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", cur.path, err))
			continue
		}
		for _, next := range resolveDecls(cur, syntax.ModDecls(string(src)), cfg, logger) {
			if seen[next.path] {
				continue
			}
			seen[next.path] = true
			files = append(files, next.path)
			queue = append(queue, next)
		}
	}
	if len(errs) > 0 {
		return files, fmt.Errorf("module tree of %s had %d error(s): %w", rootFile, len(errs), errors.Join(errs...))
	}
	return files, nil
}

// resolveDecls maps the declarations of one file to module files.
func resolveDecls(cur moduleFile, decls []syntax.ModDecl, cfg *CfgSet, logger *slog.Logger) []moduleFile {
	var out []moduleFile
	var visit func(dir, pathBase string, decls []syntax.ModDecl)
	visit = func(dir, pathBase string, decls []syntax.ModDecl) {
		for _, d := range decls {
			if !cfgEnabled(d.Cfgs, cfg, cur.path, logger) {
				logger.Debug("module disabled by cfg", "file", cur.path, "module", d.Name)
				continue
			}
			if d.Inline {
				childDir := filepath.Join(dir, d.Name)
				if d.Path != "" {
					childDir = filepath.Join(dir, d.Path)
				}
				visit(childDir, childDir, d.Children)
				continue
			}
			if m, ok := locateModule(dir, pathBase, d); ok {
				out = append(out, m)
			} else {
				logger.Warn("unresolved module", "file", cur.path, "module", d.Name)
			}
		}
	}
	// Top-level #[path] attributes are relative to the declaring file.
	visit(cur.childDir, filepath.Dir(cur.path), decls)
	return out
}

// locateModule finds the file for an out-of-line module declared in dir.
// #[path] files and mod.rs files own their directory; any other name.rs
// keeps its children in dir/name/.
func locateModule(dir, pathBase string, d syntax.ModDecl) (moduleFile, bool) {
	if d.Path != "" {
		p := filepath.Join(pathBase, d.Path)
		if canon, ok := canonicalFile(p); ok {
			return moduleFile{path: canon, childDir: filepath.Dir(canon)}, true
		}
		return moduleFile{}, false
	}
	if canon, ok := canonicalFile(filepath.Join(dir, d.Name+".rs")); ok {
		return moduleFile{path: canon, childDir: filepath.Join(filepath.Dir(canon), d.Name)}, true
	}
	if canon, ok := canonicalFile(filepath.Join(dir, d.Name, "mod.rs")); ok {
		return moduleFile{path: canon, childDir: filepath.Dir(canon)}, true
	}
	return moduleFile{}, false
}

// cfgEnabled evaluates every cfg predicate on a declaration. Predicates that
// fail to parse count as enabled so the module stays visible.
func cfgEnabled(preds []string, cfg *CfgSet, file string, logger *slog.Logger) bool {
	for _, pred := range preds {
		ok, err := cfg.Eval(pred)
		if err != nil {
			logger.Debug("unparseable cfg", "file", file, "cfg", pred, "error", err)
			continue
		}
		if !ok {
			return false
		}
	}
	return true
}

func canonicalFile(path string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", false
	}
	if !fileExists(resolved) {
		return "", false
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false
	}
	return filepath.Clean(abs), true
}

// sourceFiles lists every .rs file under dir, skipping target/, hidden
// directories, nested packages (they are their own source roots) and
// ignored paths. root is the base for ignore matching.
func sourceFiles(dir, root string, ignore *matcher) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if skipDir(d.Name()) || ignore.Match(rel) || fileExists(filepath.Join(path, ManifestFile)) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := syntax.LanguageForFile(d.Name()); !ok || ignore.Match(rel) {
			return nil
		}
		if canon, ok := canonicalFile(path); ok {
			files = append(files, canon)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sources in %s: %w", dir, err)
	}
	return files, nil
}
