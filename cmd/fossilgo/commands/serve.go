package commands

import (
	"net/http"

	"github.com/fossilgo/fossilgo/internal/sync"
	"github.com/fossilgo/fossilgo/internal/transfer"
)

// ServeCmd implements `fossilgo serve`: runs the transfer server's
// /xfer handler against the local repository, the counterpart a
// remote clone/pull/push/sync subcommand talks to.
type ServeCmd struct {
	Bind         string `help:"Address to listen on." default:""`
	Password     string `help:"Required login password for inbound sessions; empty disables auth."`
	AllowPrivate bool   `name:"allow-private" help:"Serve and accept private artifacts to authenticated sessions."`
	MaxSessions  int    `name:"max-sessions" help:"Maximum concurrent inbound sync sessions (0 uses the config value)."`
}

func (c *ServeCmd) Run(g *Global, root *Root) error {
	r, cfg, policy, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()

	bind := c.Bind
	if bind == "" {
		bind = cfg.Bind
	}
	if bind == "" {
		bind = "127.0.0.1:8080"
	}

	maxSessions := c.MaxSessions
	if maxSessions <= 0 {
		maxSessions = cfg.Sync.MaxConcurrentSessions
	}

	session := sync.NewServerSession(r.Store, policy, sync.ServerOptions{
		Password:     c.Password,
		AllowPrivate: c.AllowPrivate,
	})

	handle := func(req *http.Request, inbound []sync.Card) ([]sync.Card, error) {
		tx, err := r.Begin(req.Context())
		if err != nil {
			return nil, err
		}
		outbound, err := session.HandleRound(req.Context(), tx, inbound)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return outbound, nil
	}

	mux := http.NewServeMux()
	mux.Handle(transfer.XferPath, &transfer.Server{
		Handle:  handle,
		Shedder: transfer.NewLoadShedder(maxSessions),
	})

	g.Logger.Info("serving sync protocol", "bind", bind, "path", transfer.XferPath)
	return http.ListenAndServe(bind, mux)
}
