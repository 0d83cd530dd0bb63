package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/sync"
)

// DaemonCmd runs fossilgo as a long-lived mirror: on a cron-style
// schedule it pulls (or syncs) against every configured remote, the
// autosync behavior a continuously-running mirror needs instead of an
// operator invoking `sync` by hand. A second, coarser job coalesces
// rebuilds across whatever arrived during the interval (§4.5 "Cluster
// economy": batch the derived-table rebuild rather than paying its
// cost once per inbound artifact).
type DaemonCmd struct {
	Interval  time.Duration `help:"How often to autosync every configured remote." default:"5m"`
	Rebuild   time.Duration `help:"How often to coalesce a rebuild pass across everything autosync landed." default:"15m"`
	Role      string        `help:"Sync role to run against each remote: pull, push, or sync." default:"sync" enum:"pull,push,sync"`
}

func (c *DaemonCmd) Run(g *Global, root *Root) error {
	r, cfg, policy, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()

	role, err := parseDaemonRole(c.Role)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "start daemon scheduler")
	}

	for _, remote := range cfg.Remotes {
		remote := remote
		_, err := scheduler.NewJob(
			gocron.DurationJob(c.Interval),
			gocron.NewTask(func() {
				if err := runSyncRole(ctx, g, cfg, r, policy, remote, role, cfg.Sync.User); err != nil {
					g.Logger.Error("autosync failed", "remote", remote, "error", err)
				}
			}),
			gocron.WithName("autosync:"+remote),
		)
		if err != nil {
			return errs.Wrap(err, errs.CategoryInternal, "schedule autosync for remote: "+remote)
		}
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(c.Rebuild),
		gocron.NewTask(func() {
			n, err := RunRebuild(ctx, r, NewNotifierFromConfig(cfg))
			if err != nil {
				g.Logger.Error("scheduled rebuild failed", "error", err)
				return
			}
			g.Logger.Info("scheduled rebuild complete", "rids", n)
		}),
		gocron.WithName("rebuild-coalesce"),
	)
	if err != nil {
		return errs.Wrap(err, errs.CategoryInternal, "schedule rebuild coalescing")
	}

	g.Logger.Info("daemon starting", "remotes", len(cfg.Remotes), "interval", c.Interval, "rebuild_interval", c.Rebuild)
	scheduler.Start()

	<-ctx.Done()
	g.Logger.Info("shutdown signal received, stopping daemon")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	done := make(chan error, 1)
	go func() { done <- scheduler.Shutdown() }()
	select {
	case err := <-done:
		if err != nil {
			return errs.Wrap(err, errs.CategoryInternal, "stop daemon scheduler")
		}
	case <-stopCtx.Done():
		g.Logger.Warn("daemon scheduler shutdown timed out")
	}

	g.Logger.Info("daemon stopped")
	return nil
}

func parseDaemonRole(s string) (sync.Role, error) {
	switch s {
	case "pull":
		return sync.RolePull, nil
	case "push":
		return sync.RolePush, nil
	case "sync", "":
		return sync.RoleSync, nil
	default:
		return 0, errs.New(errs.CategoryUsage, "unknown daemon role: "+s)
	}
}
