package cratescope

import "errors"

// Sentinel errors. Callers match them with errors.Is; the wrapped chain
// carries the underlying cause.
var (
	// ErrIO reports a failure reading standard input, the filesystem or the
	// project database.
	ErrIO = errors.New("i/o error")

	// ErrPathResolution reports a path that could not be made canonical:
	// missing target, broken symlink or a relative working directory.
	ErrPathResolution = errors.New("path resolution failed")

	// ErrUntrackedPath reports a canonical path, or file ID, that the
	// workspace loader never indexed.
	ErrUntrackedPath = errors.New("path not tracked in workspace")

	// ErrLoader wraps any failure of the workspace loader.
	ErrLoader = errors.New("workspace loader failed")
)
