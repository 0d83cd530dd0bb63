// Command fossilgo is the CLI entrypoint: it wires kong's flag parser
// over the subcommands implemented in cmd/fossilgo/commands and hands
// every error off to errs.CLIErrorAdapter for exit-code mapping (§6,
// §7).
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/fossilgo/fossilgo/cmd/fossilgo/commands"
	"github.com/fossilgo/fossilgo/internal/errs"
)

// Set at build time with: -ldflags "-X main.version=1.0.0"
var version = "dev"

// CLI is the root kong command tree. commands.Root is embedded so its
// fields (-R/--repository, --config, -v) are promoted to top-level
// flags shared by every subcommand.
type CLI struct {
	commands.Root `embed:""`

	Version kong.VersionFlag `name:"version" help:"Show version and exit."`

	Clone   commands.CloneCmd   `cmd:"" help:"Clone a remote repository into a new local file."`
	Pull    commands.PullCmd    `cmd:"" help:"Pull artifacts from a remote repository."`
	Push    commands.PushCmd    `cmd:"" help:"Push artifacts to a remote repository."`
	Sync    commands.SyncCmd    `cmd:"" help:"Exchange artifacts with a remote repository in both directions."`
	Rebuild commands.RebuildCmd `cmd:"" help:"Recompute all derived tables from stored artifact content."`
	Scrub   commands.ScrubCmd   `cmd:"" help:"Irreversibly purge all private artifacts."`
	Bundle  commands.BundleCmd  `cmd:"" help:"Export, import, or inspect a bundle file."`
	Bisect  commands.BisectCmd  `cmd:"" help:"Binary-search the commit graph for a regression."`
	Serve   commands.ServeCmd   `cmd:"" help:"Serve the sync protocol over HTTP."`
	Daemon  commands.DaemonCmd  `cmd:"" help:"Run as a long-lived mirror, autosyncing configured remotes."`
}

// AfterApply runs once flags are parsed and installs the process-wide
// slog logger at the requested verbosity, the same place the teacher
// repo's CLI.AfterApply does it.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func main() {
	cli := &CLI{}
	parser := kong.Parse(cli,
		kong.Name("fossilgo"),
		kong.Description("fossilgo: a content-addressed distributed version-control core."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)

	logger := slog.Default()
	globals := &commands.Global{Logger: logger}

	err := parser.Run(globals, &cli.Root)
	adapter := errs.NewCLIErrorAdapter(cli.Verbose, logger)
	if err != nil {
		adapter.HandleError(err)
	}
}
