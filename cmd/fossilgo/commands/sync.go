package commands

import (
	"context"
	"net/url"

	"github.com/fossilgo/fossilgo/internal/config"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/repo"
	"github.com/fossilgo/fossilgo/internal/sync"
	"github.com/fossilgo/fossilgo/internal/transfer"
)

// CloneCmd implements `fossilgo clone URL PATH`: opens a brand-new
// repository at PATH and runs a clone-role session against URL.
type CloneCmd struct {
	URL  string `arg:"" help:"Remote repository URL to clone from."`
	Path string `arg:"" help:"Local repository file to create."`
	User string `help:"Username for authenticated sync."`
}

func (c *CloneCmd) Run(g *Global, root *Root) error {
	root.Repository = c.Path
	r, cfg, policy, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	return runSyncRole(context.Background(), g, cfg, r, policy, c.URL, sync.RoleClone, c.User)
}

// PullCmd implements `fossilgo pull URL`.
type PullCmd struct {
	URL  string `arg:"" help:"Remote repository URL to pull from."`
	User string `help:"Username for authenticated sync."`
}

func (c *PullCmd) Run(g *Global, root *Root) error {
	r, cfg, policy, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	return runSyncRole(context.Background(), g, cfg, r, policy, c.URL, sync.RolePull, c.User)
}

// PushCmd implements `fossilgo push URL`.
type PushCmd struct {
	URL  string `arg:"" help:"Remote repository URL to push to."`
	User string `help:"Username for authenticated sync."`
}

func (c *PushCmd) Run(g *Global, root *Root) error {
	r, cfg, policy, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	return runSyncRole(context.Background(), g, cfg, r, policy, c.URL, sync.RolePush, c.User)
}

// SyncCmd implements `fossilgo sync URL`: a combined push+pull round.
type SyncCmd struct {
	URL  string `arg:"" help:"Remote repository URL to sync with."`
	User string `help:"Username for authenticated sync."`
}

func (c *SyncCmd) Run(g *Global, root *Root) error {
	r, cfg, policy, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	return runSyncRole(context.Background(), g, cfg, r, policy, c.URL, sync.RoleSync, c.User)
}

// runSyncRole drives a Client session to completion against remoteURL,
// one HTTP round-trip per NEGOTIATE round (§4.5), the CLI-side
// equivalent of the teacher's daemon poll loop but for a single finite
// session rather than an ongoing scheduler.
func runSyncRole(ctx context.Context, g *Global, cfg *config.Config, r *repo.Repo, policy *hashpolicy.Policy, remoteURL string, role sync.Role, user string) error {
	if _, err := url.Parse(remoteURL); err != nil {
		return errs.Wrap(err, errs.CategoryUsage, "invalid remote URL")
	}

	client := sync.NewClient(r.Store, r, policy, role)
	if user != "" {
		client = client.WithLogin(user, "")
	}
	if role == sync.RolePush || role == sync.RoleSync {
		localUUIDs, err := localUUIDs(ctx, r)
		if err != nil {
			return err
		}
		client = client.WithUnsent(localUUIDs)
	}

	httpClient := NewHTTPClientFromConfig(cfg)

	outbound, err := client.Start(ctx)
	if err != nil {
		return err
	}

	for {
		payload := sync.Encode(outbound)
		replyBytes, err := transfer.RoundTrip(ctx, httpClient, remoteURL, payload, false)
		if err != nil {
			return err
		}
		inbound, err := sync.Decode(replyBytes)
		if err != nil {
			return err
		}

		tx, err := r.Begin(ctx)
		if err != nil {
			return err
		}
		next, done, stepErr := client.Step(ctx, tx, inbound)
		if stepErr != nil {
			_ = tx.Rollback()
			return stepErr
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		if done {
			if role != sync.RolePush {
				if _, err := RunRebuild(ctx, r, NewNotifierFromConfig(cfg)); err != nil {
					return err
				}
			}
			g.Logger.Info("sync complete", "role", role, "remote", remoteURL)
			return nil
		}
		outbound = next
	}
}

func localUUIDs(ctx context.Context, r *repo.Repo) ([]string, error) {
	rows, err := r.QueryContext(ctx, `SELECT uuid FROM blob WHERE size >= 0`)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryInternal, "list local uuids for push")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, err
		}
		out = append(out, uuid)
	}
	return out, rows.Err()
}
