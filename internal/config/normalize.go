package config

import "time"

// Normalize fills derived/default fields on cfg in place. Any field the
// caller left at its zero value is set to a sensible default; fields the
// caller explicitly set are left untouched.
func Normalize(cfg *Config) {
	if cfg.HashPolicy == "" {
		cfg.HashPolicy = "auto"
	}

	if cfg.Sync.Timeout <= 0 {
		cfg.Sync.Timeout = 30 * time.Second
	}
	if cfg.Sync.RetryBackoff == "" {
		cfg.Sync.RetryBackoff = "linear"
	}
	if cfg.Sync.RetryInitial <= 0 {
		cfg.Sync.RetryInitial = time.Second
	}
	if cfg.Sync.RetryMax <= 0 {
		cfg.Sync.RetryMax = 30 * time.Second
	}
	if cfg.Sync.MaxRetries < 0 {
		cfg.Sync.MaxRetries = 0
	}
	if cfg.Sync.MaxConcurrentSessions <= 0 {
		cfg.Sync.MaxConcurrentSessions = 8
	}

	if cfg.Bind == "" {
		cfg.Bind = "127.0.0.1:8080"
	}
	if cfg.DeltaMaxDepth <= 0 {
		cfg.DeltaMaxDepth = 32
	}
	if cfg.ReconstructionCacheSize <= 0 {
		cfg.ReconstructionCacheSize = 256
	}
	if cfg.Notify.URL != "" && cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "fossilgo.events"
	}
}
