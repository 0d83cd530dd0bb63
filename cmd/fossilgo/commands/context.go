// Package commands implements the Run method for each cmd/fossilgo
// kong subcommand, laid out one file per command group exactly the
// way the teacher splits cmd/docbuilder's commands across files, and
// sharing a Global struct for process-wide logging/config state.
package commands

import (
	"log/slog"
	"net/http"

	"github.com/fossilgo/fossilgo/internal/config"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/metrics"
	"github.com/fossilgo/fossilgo/internal/notify"
	"github.com/fossilgo/fossilgo/internal/repo"
	"github.com/fossilgo/fossilgo/internal/transfer"
)

// Global is the shared state every subcommand's Run receives, built
// once in main() after flag parsing (the teacher's *Global pattern).
type Global struct {
	Logger *slog.Logger
	Config *config.Config
}

// Root carries the flags every subcommand needs regardless of which
// one is invoked: the repository path (-R/--repository) and verbosity.
type Root struct {
	Repository string `short:"R" help:"Path to the repository database file." default:"./repo.fossil"`
	ConfigPath string `short:"c" name:"config" help:"Configuration file path." default:"fossilgo.yaml"`
	Verbose    bool   `short:"v" help:"Enable verbose logging."`
}

// OpenRepo loads configuration (if present), opens the repository
// named by -R (falling back to the config file's repository field),
// and constructs the hash policy it should be opened under. The
// policy is also returned directly since internal/repo.Repo does not
// expose the one it was opened with (internal/sync's Client/
// ServerSession need their own handle on it).
func OpenRepo(root *Root) (*repo.Repo, *config.Config, *hashpolicy.Policy, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, nil, nil, err
	}

	path := root.Repository
	if path == "" || path == "./repo.fossil" {
		if cfg.Repository != "" {
			path = cfg.Repository
		}
	}

	mode, err := hashpolicy.ParseMode(orDefault(cfg.HashPolicy, string(hashpolicy.ModeAuto)))
	if err != nil {
		return nil, nil, nil, err
	}
	policy := hashpolicy.NewPolicy(mode)

	r, err := repo.Open(path, repo.Options{
		Policy:        policy,
		MaxDeltaDepth: cfg.DeltaMaxDepth,
		CacheSize:     cfg.ReconstructionCacheSize,
		RetryPolicy:   cfg.RetryPolicy(),
		Recorder:      metrics.NoopRecorder{},
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return r, cfg, policy, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// NewHTTPClientFromConfig builds the HTTP client every sync-family
// subcommand uses to reach a remote, honoring the configured
// round-trip timeout.
func NewHTTPClientFromConfig(cfg *config.Config) *http.Client {
	return transfer.NewHTTPClient(cfg.Sync.Timeout)
}

// NewNotifierFromConfig builds the best-effort event publisher every
// ingest-touching subcommand arms its xref.Builder/moderation.Queue
// with, or nil if cfg.Notify.URL is unset (the common case: notify is
// strictly additive, never required for fossilgo to function).
func NewNotifierFromConfig(cfg *config.Config) *notify.Publisher {
	if cfg.Notify.URL == "" {
		return nil
	}
	return notify.NewPublisher(cfg.Notify.URL, cfg.Notify.Subject)
}
