package sync

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fossilgo/fossilgo/internal/blob"
	"github.com/fossilgo/fossilgo/internal/blob/delta"
	"github.com/fossilgo/fossilgo/internal/errs"
	"github.com/fossilgo/fossilgo/internal/hashpolicy"
	"github.com/fossilgo/fossilgo/internal/metrics"
	"github.com/fossilgo/fossilgo/internal/privacy"
)

// ServerOptions configures a ServerSession.
type ServerOptions struct {
	// Password, if non-empty, requires the first round to carry a
	// valid login card for this value (§4.5 "login" / AuthFailed).
	Password string
	// AllowPrivate permits a session that sends `pragma send-private`
	// to both receive and accept private artifacts; otherwise the
	// pragma is silently ignored (§4.7's permission check).
	AllowPrivate bool
	// BatchSize bounds how many locally-held rids are advertised via
	// igot cards in a single round during a pull/clone/sync transfer,
	// the server-side analog of a cluster's coalescing economy.
	BatchSize int
	// Recorder receives sync outcome/round metrics; nil uses a no-op.
	Recorder metrics.Recorder
}

// ServerSession drives the server side of one sync round-trip against
// the card stream internal/transfer hands it. Unlike Client, a
// ServerSession carries no long-lived in-process state across HTTP
// calls: every round reconstructs its working set from the inbound
// cards plus a resumption cursor threaded through a cookie card, so a
// new process (or a load-balanced peer) can pick up the next round
// without having served the first (§4.5 "protocol state is carried
// entirely in the card stream"). It also holds no db handle of its own:
// HandleRound is given the caller's open transaction for the round, so
// every read and write a round performs lands inside it.
type ServerSession struct {
	store  blob.Store
	policy *hashpolicy.Policy
	opts   ServerOptions
}

// NewServerSession constructs a session driver over store.
func NewServerSession(store blob.Store, policy *hashpolicy.Policy, opts ServerOptions) *ServerSession {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &ServerSession{store: store, policy: policy, opts: opts}
}

const cookiePrefix = "cursor:"

// HandleRound processes one inbound card stream and produces the
// reply, implementing the server half of §4.5's NEGOTIATE loop:
// answering gimme with file, answering an unrecognized igot with
// gimme (push direction), ingesting inbound file cards, and
// advertising up to BatchSize locally-known rids past the resumption
// cursor via igot cards (pull/clone/sync direction) so the peer's
// Client.Step converts each into a phantom-and-gimme on its next
// round. db is the caller's open transaction for this round.
func (s *ServerSession) HandleRound(ctx context.Context, db DB, inbound []Card) ([]Card, error) {
	var role Role
	var cursor int64
	sendPrivate := false
	authenticated := s.opts.Password == ""

	for _, card := range inbound {
		switch card.Kind {
		case KindError:
			return nil, errs.New(errs.CategoryProtocol, "peer aborted: "+card.Text)
		case KindLogin:
			if err := VerifyLogin(card, s.opts.Password); err != nil {
				return nil, err
			}
			authenticated = true
		case KindPragma:
			if card.Name == "send-private" && s.opts.AllowPrivate {
				sendPrivate = true
			}
		case KindClone:
			role = Role(card.Version)
		case KindCookie:
			if n, ok := parseCursorCookie(card.Token); ok {
				cursor = n
			}
		}
	}

	if cursor == 0 && s.opts.Password != "" && !authenticated {
		return nil, errs.LoginFailed("", fmt.Errorf("missing login card"))
	}

	var outbound []Card

	for _, card := range inbound {
		switch card.Kind {
		case KindGimme:
			fileCard, err := s.fileCardFor(ctx, db, card.UUID, sendPrivate)
			if err != nil {
				return nil, err
			}
			outbound = append(outbound, fileCard)
		case KindIgot:
			if role == RolePush || role == RoleSync {
				known, err := s.haveContent(ctx, db, card.UUID)
				if err != nil {
					return nil, err
				}
				if !known {
					outbound = append(outbound, Gimme(card.UUID))
				}
			}
		case KindFile:
			if err := s.ingestFile(ctx, db, card); err != nil {
				return nil, err
			}
		}
	}

	if role == RolePull || role == RoleClone || role == RoleSync {
		advertised, nextCursor, err := s.advertiseBatch(ctx, db, cursor, sendPrivate)
		if err != nil {
			return nil, err
		}
		outbound = append(outbound, advertised...)
		if nextCursor != cursor {
			outbound = append(outbound, Cookie(fmt.Sprintf("%s%d", cookiePrefix, nextCursor)))
		}
	}

	return outbound, nil
}

func parseCursorCookie(token string) (int64, bool) {
	if !strings.HasPrefix(token, cookiePrefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(token, cookiePrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// fileCardFor builds the reply to a gimme card, respecting the
// private-visibility gate (§4.7): a private artifact is only sent if
// the session negotiated send-private.
func (s *ServerSession) fileCardFor(ctx context.Context, db DB, uuid string, sendPrivate bool) (Card, error) {
	rid, err := s.lookupRid(ctx, db, uuid)
	if err != nil {
		return Card{}, err
	}
	if !sendPrivate {
		private, err := s.isPrivate(ctx, db, rid)
		if err != nil {
			return Card{}, err
		}
		if private {
			return Card{}, errs.New(errs.CategoryPermission, "artifact is private: "+uuid)
		}
	}
	content, err := s.store.Get(ctx, db, rid)
	if err != nil {
		return Card{}, err
	}
	return File(uuid, content), nil
}

func (s *ServerSession) ingestFile(ctx context.Context, db DB, card Card) error {
	if s.policy != nil && !s.policy.AcceptOnSync(card.UUID, false) {
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
		_, _, err := s.store.Put(ctx, db, card.Bytes)
		return err
	}
	srcRid, err := s.store.Reference(ctx, db, card.SrcUUID)
	if err != nil {
		return err
	}
	base, err := s.store.Get(ctx, db, srcRid)
	if err != nil {
		return err
	}
	full, err := delta.Apply(base, card.Bytes)
	if err != nil {
		return errs.CorruptDelta(err.Error())
	}
	_, _, err = s.store.Put(ctx, db, full)
	return err
}

func (s *ServerSession) haveContent(ctx context.Context, db DB, uuid string) (bool, error) {
	var size int64
	row := db.QueryRowContext(ctx, `SELECT size FROM blob WHERE uuid = ?`, uuid)
	if err := row.Scan(&size); err != nil {
		return false, nil // no row at all: not known
	}
	return size >= 0, nil
}

func (s *ServerSession) lookupRid(ctx context.Context, db DB, uuid string) (int64, error) {
	var rid int64
	row := db.QueryRowContext(ctx, `SELECT rid FROM blob WHERE uuid = ?`, uuid)
	if err := row.Scan(&rid); err != nil {
		return 0, errs.NotFound("no blob with uuid " + uuid)
	}
	return rid, nil
}

func (s *ServerSession) isPrivate(ctx context.Context, db DB, rid int64) (bool, error) {
	var one int
	row := db.QueryRowContext(ctx, `SELECT 1 FROM private WHERE rid = ?`, rid)
	if err := row.Scan(&one); err != nil {
		return false, nil
	}
	return true, nil
}

// advertiseBatch lists up to BatchSize rids strictly greater than
// cursor, with non-NULL content (never advertise a phantom we don't
// actually have), filtering out private rids unless sendPrivate, and
// returns the igot cards plus the new cursor.
func (s *ServerSession) advertiseBatch(ctx context.Context, db DB, cursor int64, sendPrivate bool) ([]Card, int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.rid, b.uuid, CASE WHEN p.rid IS NULL THEN 0 ELSE 1 END AS is_private
		FROM blob b LEFT JOIN private p ON p.rid = b.rid
		WHERE b.rid > ? AND b.size >= 0
		ORDER BY b.rid ASC`, cursor)
	if err != nil {
		return nil, cursor, errs.Wrap(err, errs.CategoryInternal, "list rids to advertise")
	}
	defer rows.Close()

	type row struct {
		rid     int64
		uuid    string
		private bool
	}
	var all []row
	for rows.Next() {
		var r row
		var isPrivate int
		if err := rows.Scan(&r.rid, &r.uuid, &isPrivate); err != nil {
			return nil, cursor, err
		}
		r.private = isPrivate != 0
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, cursor, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].rid < all[j].rid })

	var cards []Card
	nextCursor := cursor
	for _, r := range all {
		if len(cards) >= s.opts.BatchSize {
			break
		}
		nextCursor = r.rid
		if r.private && !sendPrivate {
			continue
		}
		cards = append(cards, Igot(r.uuid, r.private))
	}
	return cards, nextCursor, nil
}
