package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat indicates an unsupported output format.
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrInvalidCacheSize indicates a non-positive resolver cache size.
	ErrInvalidCacheSize = errors.New("invalid cache size")

	// ErrInvalidWorkers indicates a negative loader worker count.
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrConflictingFeatures indicates all_features combined with an explicit list.
	ErrConflictingFeatures = errors.New("conflicting feature selection")
)

// Validate checks every setting and reports all problems at once.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: %q (must be text or json)", ErrInvalidFormat, cfg.Format))
	}

	if cfg.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d (must be > 0)", ErrInvalidCacheSize, cfg.CacheSize))
	}

	if cfg.Load.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: %d (must be >= 0)", ErrInvalidWorkers, cfg.Load.Workers))
	}

	if cfg.Load.AllFeatures && len(cfg.Load.Features) > 0 {
		errs = append(errs, fmt.Errorf("%w: all_features with an explicit features list", ErrConflictingFeatures))
	}

	return errors.Join(errs...)
}
