// Package config loads and validates fossilgo's runtime configuration:
// repository location, hash-naming policy, sync retry/timeout behavior,
// moderation requirements, and the transfer server's bind address.
//
// Precedence, lowest to highest: built-in defaults, a YAML config file,
// environment variables (including a ".env"/".env.local" file loaded via
// godotenv), then CLI flags applied by the caller after Load returns.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fossilgo/fossilgo/internal/retry"
)

// Config is fossilgo's top-level runtime configuration.
type Config struct {
	// Repository is the path to the repository's SQLite database file.
	Repository string `yaml:"repository"`

	// HashPolicy selects the SHA1/SHA3 naming mode (§4.6): one of
	// sha1, auto, sha3, sha3-only, shun-sha1.
	HashPolicy string `yaml:"hash_policy"`

	// Sync holds sync-engine timing and retry configuration.
	Sync SyncConfig `yaml:"sync"`

	// Moderation holds moderation-queue capability requirements.
	Moderation ModerationConfig `yaml:"moderation"`

	// Bind is the address the transfer server listens on ("host:port").
	Bind string `yaml:"bind"`

	// DeltaMaxDepth bounds recursive delta resolution (§4.1).
	DeltaMaxDepth int `yaml:"delta_max_depth"`

	// ReconstructionCacheSize bounds the LRU cache of reconstructed blob
	// content, measured in entries.
	ReconstructionCacheSize int `yaml:"reconstruction_cache_size"`

	// Remotes lists the remote repository URLs `fossilgo daemon`
	// autosyncs against on each scheduled tick.
	Remotes []string `yaml:"remotes"`

	// Notify configures the best-effort repository-event publisher.
	Notify NotifyConfig `yaml:"notify"`
}

// NotifyConfig controls the optional NATS-backed repository-event
// publisher (internal/notify). Empty URL disables publishing entirely.
type NotifyConfig struct {
	// URL is the NATS server URL events are published to.
	URL string `yaml:"url"`

	// Subject is the NATS subject events are published under.
	Subject string `yaml:"subject"`
}

// SyncConfig controls the sync client/server round-trip behavior.
type SyncConfig struct {
	// Timeout bounds a single HTTP round-trip to the remote.
	Timeout time.Duration `yaml:"timeout"`

	// RetryBackoff selects fixed/linear/exponential backoff for Busy retries.
	RetryBackoff string `yaml:"retry_backoff"`

	// RetryInitial is the base retry delay.
	RetryInitial time.Duration `yaml:"retry_initial"`

	// RetryMax caps the retry delay.
	RetryMax time.Duration `yaml:"retry_max"`

	// MaxRetries bounds the number of Busy retries per round-trip.
	MaxRetries int `yaml:"max_retries"`

	// MaxConcurrentSessions bounds concurrent inbound sync sessions the
	// transfer server will accept.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`

	// User is the login name `fossilgo daemon` authenticates as when
	// autosyncing against Remotes.
	User string `yaml:"user"`
}

// ModerationConfig controls which artifact types require moderation
// approval from users lacking the matching capability.
type ModerationConfig struct {
	// RequireForWiki requires moderation for wiki artifacts from
	// unprivileged users.
	RequireForWiki bool `yaml:"require_for_wiki"`

	// RequireForTicket requires moderation for ticket artifacts from
	// unprivileged users.
	RequireForTicket bool `yaml:"require_for_ticket"`

	// RequireForAttachment requires moderation for attachment artifacts
	// from unprivileged users.
	RequireForAttachment bool `yaml:"require_for_attachment"`
}

// Load reads configuration from configPath (if non-empty and present),
// applies environment-variable overrides (loading a .env file first if
// one exists), then fills defaults and validates the result.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "note: no .env file loaded: %v\n", err)
	}

	cfg := &Config{}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads a ".env" or ".env.local" file into the process
// environment via godotenv, without overriding variables already set.
func loadDotEnv() error {
	for _, path := range []string{".env", ".env.local"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		existing, err := godotenv.Read(path)
		if err != nil {
			return err
		}
		for k, v := range existing {
			if os.Getenv(k) == "" {
				_ = os.Setenv(k, v)
			}
		}
		return nil
	}
	return fmt.Errorf("no .env file found")
}

// applyEnvOverrides applies FOSSILGO_*-prefixed environment variables over
// whatever the YAML file (or defaults) already populated.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FOSSILGO_REPOSITORY"); v != "" {
		cfg.Repository = v
	}
	if v := os.Getenv("FOSSILGO_HASH_POLICY"); v != "" {
		cfg.HashPolicy = v
	}
	if v := os.Getenv("FOSSILGO_BIND"); v != "" {
		cfg.Bind = v
	}
}

// Init writes an example configuration file to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Repository: "./repo.fossil",
		HashPolicy: "auto",
		Sync: SyncConfig{
			Timeout:               30 * time.Second,
			RetryBackoff:          "linear",
			RetryInitial:          time.Second,
			RetryMax:              30 * time.Second,
			MaxRetries:            2,
			MaxConcurrentSessions: 8,
		},
		Moderation: ModerationConfig{
			RequireForWiki:        false,
			RequireForTicket:      false,
			RequireForAttachment:  false,
		},
		Bind:                    "127.0.0.1:8080",
		DeltaMaxDepth:           32,
		ReconstructionCacheSize: 256,
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RetryPolicy builds a retry.Policy from the Sync section.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.NewPolicyFromString(c.Sync.RetryBackoff, c.Sync.RetryInitial, c.Sync.RetryMax, c.Sync.MaxRetries)
}
