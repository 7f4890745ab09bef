package cratescope

import (
	"fmt"
	"path/filepath"
)

// AbsolutePath is an absolute filesystem path with symlinks resolved and no
// . or .. segments.
type AbsolutePath string

func (p AbsolutePath) String() string { return string(p) }

// Normalize anchors input at cwd when it is relative and canonicalizes the
// result. The target must exist. cwd must be absolute.
func Normalize(cwd, input string) (AbsolutePath, error) {
	if !filepath.IsAbs(cwd) {
		return "", fmt.Errorf("%w: working directory %q is not absolute", ErrPathResolution, cwd)
	}
	joined := input
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(cwd, joined)
	}
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPathResolution, input, err)
	}
	return AbsolutePath(filepath.Clean(resolved)), nil
}
