package sync

import (
	"context"
	"database/sql"

	"github.com/fossilgo/fossilgo/internal/errs"
)

// DB is the subset of *repo.Tx/*repo.Repo this package needs, expressed
// structurally so internal/sync never imports internal/repo.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Unresolved is the union §4.5 names: phantom rows still missing
// content, advertised cluster members not yet held locally, and (for a
// push) the local unsent set minus what the peer has already
// acknowledged. A non-empty Unresolved means NEGOTIATE must run
// another round.
type Unresolved struct {
	Phantoms       []string
	ClusterMembers []string
	Unsent         []string
}

// Empty reports whether every unresolved category is drained, the
// condition that lets the client state machine move to FINISH.
func (u Unresolved) Empty() bool {
	return len(u.Phantoms) == 0 && len(u.ClusterMembers) == 0 && len(u.Unsent) == 0
}

// PhantomUUIDs lists every blob row with no content yet (size = -1),
// the set the manifest parser queues a gimme for whenever it names an
// artifact the receiver does not hold (§4.5 "Phantom handling").
func PhantomUUIDs(ctx context.Context, db DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT uuid FROM blob WHERE size = -1`)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryInternal, "list phantom uuids")
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

// ClusterTracker accumulates artifact uuids advertised by cluster
// cards that are not yet present locally, and drops a uuid once Have
// reports it as present — the driving state for "outstanding cluster
// members" in §4.5's NEGOTIATE loop condition.
type ClusterTracker struct {
	pending map[string]bool
}

// NewClusterTracker constructs an empty tracker.
func NewClusterTracker() *ClusterTracker {
	return &ClusterTracker{pending: make(map[string]bool)}
}

// Advertise records uuid as a cluster member not yet confirmed present.
func (c *ClusterTracker) Advertise(uuid string) {
	if !c.pending[uuid] {
		c.pending[uuid] = true
	}
}

// Resolve marks uuid as received, removing it from the pending set.
func (c *ClusterTracker) Resolve(uuid string) {
	delete(c.pending, uuid)
}

// Pending lists the uuids still outstanding.
func (c *ClusterTracker) Pending() []string {
	out := make([]string, 0, len(c.pending))
	for uuid := range c.pending {
		out = append(out, uuid)
	}
	return out
}

// UnsentTracker tracks, for a push, the local artifacts not yet
// acknowledged by the peer (via an igot card the peer sent back).
type UnsentTracker struct {
	pending map[string]bool
}

// NewUnsentTracker seeds the tracker with every local uuid the push
// intends to offer.
func NewUnsentTracker(localUUIDs []string) *UnsentTracker {
	t := &UnsentTracker{pending: make(map[string]bool, len(localUUIDs))}
	for _, uuid := range localUUIDs {
		t.pending[uuid] = true
	}
	return t
}

// Ack removes uuid from the unsent set once the peer igots it.
func (t *UnsentTracker) Ack(uuid string) {
	delete(t.pending, uuid)
}

// Pending lists the uuids still unsent.
func (t *UnsentTracker) Pending() []string {
	out := make([]string, 0, len(t.pending))
	for uuid := range t.pending {
		out = append(out, uuid)
	}
	return out
}
