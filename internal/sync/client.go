package sync

import (
	"bytes"
	"context"

	"github.com/fossilgo/fossilgo/internal/blob"
	"github.com/fossilgo/fossilgo/internal/blob/delta"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/privacy"
)

// Role is the operation a client session performs, selecting what
// NEGOTIATE exchanges and what FINISH commits.
type Role string

const (
	RoleClone Role = "clone"
	RolePull  Role = "pull"
	RolePush  Role = "push"
	RoleSync  Role = "sync"
)

// State is a client session's position in §4.5's state machine:
// INIT -> AUTH -> NEGOTIATE(loop) -> FINISH.
type State string

const (
	StateInit      State = "init"
	StateAuth      State = "auth"
	StateNegotiate State = "negotiate"
	StateFinish    State = "finish"
)

// Client drives one sync session against a remote peer, message by
// message: each Step call encodes the next outbound round, the caller
// transports it (internal/transfer) and feeds the peer's reply back
// in on the next call. The db bound at construction serves only the
// pre-round Start scan (before any round's transaction exists); every
// round's actual reads and writes, including those made through store,
// go through the db Step is given, so they land inside the caller's
// transaction instead of bypassing it.
type Client struct {
	store  blob.Store
	db     DB
	policy *hashpolicy.Policy

	role  Role
	state State

	user, password string
	sendPrivate    bool

	cluster *ClusterTracker
	unsent  *UnsentTracker

	lastOutbound []byte
}

// NewClient constructs a session driver for role against store/db.
func NewClient(store blob.Store, db DB, policy *hashpolicy.Policy, role Role) *Client {
	return &Client{store: store, db: db, policy: policy, role: role, state: StateInit, cluster: NewClusterTracker()}
}

// WithLogin arms the session to send a login card with the given
// credentials on the first round.
func (c *Client) WithLogin(user, password string) *Client {
	c.user, c.password = user, password
	return c
}

// WithSendPrivate arms the session to advertise `pragma send-private`,
// requesting the server also offer (and accept) private artifacts.
func (c *Client) WithSendPrivate() *Client {
	c.sendPrivate = true
	return c
}

// WithUnsent seeds the push-direction unsent set (§4.5's "local
// unsent set minus what the server igot-acknowledged").
func (c *Client) WithUnsent(localUUIDs []string) *Client {
	c.unsent = NewUnsentTracker(localUUIDs)
	return c
}

// State reports the session's current state-machine position.
func (c *Client) State() State { return c.state }

// Start produces the first outbound round: login (if armed), the
// role's opening verb as a pragma-equivalent clone/pull/push/sync
// marker, and this session's declared pragmas. This runs before any
// round's transaction exists, so it reads through the session's own db
// rather than one supplied by the caller.
func (c *Client) Start(ctx context.Context) ([]Card, error) {
	var cards []Card
	if c.user != "" {
		nonce, err := NewNonce()
		if err != nil {
			return nil, err
		}
		cards = append(cards, Login(c.user, nonce, LoginSignature(nonce, c.password)))
	}
	if c.sendPrivate {
		cards = append(cards, Pragma("send-private", ""))
	}
	cards = append(cards, Card{Kind: KindClone, Version: string(c.role)})
	c.state = StateAuth

	phantoms, err := PhantomUUIDs(ctx, c.db)
	if err != nil {
		return nil, err
	}
	for _, uuid := range phantoms {
		cards = append(cards, Gimme(uuid))
	}
	if c.role == RolePush || c.role == RoleSync {
		for _, uuid := range c.unsentPending() {
			cards = append(cards, Igot(uuid, false))
		}
	}
	c.state = StateNegotiate
	c.lastOutbound = Encode(cards)
	return cards, nil
}

func (c *Client) unsentPending() []string {
	if c.unsent == nil {
		return nil
	}
	return c.unsent.Pending()
}

// Step consumes one inbound round from the peer and produces the next
// outbound round, or reports done=true once FINISH is reached (either
// because Unresolved drained, or because two consecutive rounds made
// no progress — §4.5 "A stalled round-trip ... is treated as
// completion"). db is the caller's open transaction for this round: every
// blob write and phantom-scan read this round performs goes through it,
// so a mid-stream failure leaves nothing durable beyond the caller's own
// rollback boundary.
func (c *Client) Step(ctx context.Context, db DB, inbound []Card) (outbound []Card, done bool, err error) {
	if c.state == StateFinish {
		return nil, true, nil
	}

	for _, card := range inbound {
		switch card.Kind {
		case KindError:
			return nil, true, errs.New(errs.CategoryProtocol, "peer aborted: "+card.Text)
		case KindFile:
			if err := c.ingestFile(ctx, db, card); err != nil {
				return nil, true, err
			}
			c.cluster.Resolve(card.UUID)
			if c.unsent != nil {
				c.unsent.Ack(card.UUID)
			}
		case KindIgot:
			c.cluster.Resolve(card.UUID)
			if c.unsent != nil {
				c.unsent.Ack(card.UUID)
			}
			if c.role == RolePull || c.role == RoleClone || c.role == RoleSync {
				// The peer is advertising content we may lack; turn it
				// into a phantom so the next round's PhantomUUIDs scan
				// picks it up and gimmes it (§4.5 "an igot for a local
				// phantom is answered... in the next round").
				if _, err := c.store.Reference(ctx, db, card.UUID); err != nil {
					return nil, true, err
				}
			}
		case KindCluster:
			c.cluster.Advertise(card.UUID)
		}
	}

	unresolved, err := c.unresolved(ctx, db)
	if err != nil {
		return nil, true, err
	}

	var next []Card
	for _, uuid := range unresolved.Phantoms {
		next = append(next, Gimme(uuid))
	}
	for _, uuid := range unresolved.ClusterMembers {
		next = append(next, Gimme(uuid))
	}
	for _, uuid := range unresolved.Unsent {
		content, getErr := c.fetchForSend(ctx, db, uuid)
		if getErr != nil {
			return nil, true, getErr
		}
		next = append(next, File(uuid, content))
	}

	encoded := Encode(next)
	if unresolved.Empty() || bytes.Equal(encoded, c.lastOutbound) {
		c.state = StateFinish
		return next, true, nil
	}
	c.lastOutbound = encoded
	return next, false, nil
}

func (c *Client) unresolved(ctx context.Context, db DB) (Unresolved, error) {
	phantoms, err := PhantomUUIDs(ctx, db)
	if err != nil {
		return Unresolved{}, err
	}
	u := Unresolved{Phantoms: phantoms, ClusterMembers: c.cluster.Pending()}
	if c.unsent != nil {
		u.Unsent = c.unsent.Pending()
	}
	return u, nil
}

// ingestFile applies an inbound file card's content to the blob store via
// db, resolving it against the referenced delta source when present. The
// caller's transaction wrapper runs the integrity verifier before
// commit, so a corrupt payload surfaces there rather than here.
func (c *Client) ingestFile(ctx context.Context, db DB, card Card) error {
	if c.policy != nil && !c.policy.AcceptOnSync(card.UUID, c.role == RoleClone) {
		return errs.New(errs.CategoryPermission, "hash policy refuses artifact "+card.UUID)
	}
	shunned, err := privacy.IsShunned(ctx, db, card.UUID)
	if err != nil {
		return err
	}
	if shunned {
		return nil
	}
	if !card.IsDelta {
		_, _, err := c.store.Put(ctx, db, card.Bytes)
		return err
	}
	srcRid, err := c.store.Reference(ctx, db, card.SrcUUID)
	if err != nil {
		return err
	}
	base, err := c.store.Get(ctx, db, srcRid)
	if err != nil {
		return err
	}
	full, err := delta.Apply(base, card.Bytes)
	if err != nil {
		return errs.CorruptDelta(err.Error())
	}
	_, _, err = c.store.Put(ctx, db, full)
	return err
}

func (c *Client) fetchForSend(ctx context.Context, db DB, uuid string) ([]byte, error) {
	rid, err := c.store.Reference(ctx, db, uuid)
	if err != nil {
		return nil, err
	}
	return c.store.Get(ctx, db, rid)
}
