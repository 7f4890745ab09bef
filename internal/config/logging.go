package config

import (
	"io"
	"log/slog"
)

// Verbosity is the CLI's logging level, set by -q and repeated -v.
type Verbosity int

const (
	Quiet Verbosity = iota
	Normal
	Verbose
	Spammy
)

// VerbosityFrom maps the -q flag and the -v count to a Verbosity.
// -q wins over any -v.
func VerbosityFrom(quiet bool, verbose int) Verbosity {
	switch {
	case quiet:
		return Quiet
	case verbose <= 0:
		return Normal
	case verbose == 1:
		return Verbose
	default:
		return Spammy
	}
}

// Level is the minimum slog level logged at v.
func (v Verbosity) Level() slog.Level {
	switch v {
	case Quiet:
		return slog.LevelWarn
	case Normal:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// NewLogger returns a text logger on w filtered to v. Spammy adds source
// locations.
func NewLogger(w io.Writer, v Verbosity) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     v.Level(),
		AddSource: v == Spammy,
	}))
}
