package config

import (
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
)

// Validate rejects configuration combinations that cannot be satisfied,
// after Normalize has already filled in defaults.
func Validate(cfg *Config) error {
	if cfg.Repository == "" {
		return errs.ConfigNotFound("<unset>").WithField("reason", "repository path required")
	}

	if _, err := hashpolicy.ParseMode(cfg.HashPolicy); err != nil {
		return err
	}

	if cfg.DeltaMaxDepth < 1 {
		return errs.New(errs.CategoryUsage, "delta_max_depth must be >= 1")
	}
	if cfg.ReconstructionCacheSize < 1 {
		return errs.New(errs.CategoryUsage, "reconstruction_cache_size must be >= 1")
	}
	if cfg.Sync.MaxConcurrentSessions < 1 {
		return errs.New(errs.CategoryUsage, "sync.max_concurrent_sessions must be >= 1")
	}

	rp := cfg.RetryPolicy()
	if err := rp.Validate(); err != nil {
		return errs.Wrap(err, errs.CategoryUsage, "invalid sync retry policy")
	}

	return nil
}
