// Package notify publishes repository events (new commit ingested,
// artifact shunned, moderation decision) to a NATS subject for
// downstream mirrors/CI, strictly additive and never on fossilgo's
// critical ingest path: a publish failure is logged and swallowed,
// never propagated as an ingest error. Grounded in the teacher's
// internal/linkverify.NATSClient connection-and-reconnect shape,
// simplified to core NATS publish/subscribe (no JetStream/KV) since
// this package has no caching concern to justify one.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// EventKind identifies the repository occurrence being published.
type EventKind string

const (
	EventCommitIngested    EventKind = "commit_ingested"
	EventArtifactShunned   EventKind = "artifact_shunned"
	EventModerationDecided EventKind = "moderation_decided"
)

// Event is the JSON payload published for every repository occurrence.
type Event struct {
	// ID is a random event identifier (never an artifact UUID, which
	// is a content hash per §4.6, not a random one).
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	UUID      string    `json:"uuid,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher connects to a NATS server and publishes Events to a
// single subject, reconnecting automatically in the background.
type Publisher struct {
	url     string
	subject string

	mu           sync.RWMutex
	conn         *nats.Conn
	reconnecting atomic.Bool
}

// NewPublisher constructs a Publisher targeting url/subject. Connection
// failures at construction time are non-fatal; the first Publish call
// retries the connection.
func NewPublisher(url, subject string) *Publisher {
	p := &Publisher{url: url, subject: subject}
	if err := p.connect(); err != nil {
		slog.Warn("initial NATS connection failed, will retry on first publish", "url", url, "error", err)
	}
	return p
}

func (p *Publisher) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}

	conn, err := nats.Connect(p.url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectJitter(500*time.Millisecond, 2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("notify: NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("notify: NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return err
	}
	p.conn = conn
	return nil
}

func (p *Publisher) ensureConnected() error {
	p.mu.RLock()
	connected := p.conn != nil && p.conn.IsConnected()
	p.mu.RUnlock()
	if connected {
		return nil
	}
	if p.reconnecting.Swap(true) {
		return errors.New("notify: reconnection already in progress")
	}
	defer p.reconnecting.Store(false)
	return p.connect()
}

// Publish sends kind/uuid/detail as an Event to the configured
// subject. A connectivity failure is returned to the caller (who, per
// the strictly-additive contract, should log and continue rather than
// fail the ingest path) rather than retried synchronously.
func (p *Publisher) Publish(ctx context.Context, kind EventKind, artifactUUID, detail string) error {
	if err := p.ensureConnected(); err != nil {
		return err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	evt := Event{ID: id.String(), Kind: kind, UUID: artifactUUID, Detail: detail, Timestamp: time.Now()}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil {
		return errors.New("notify: not connected")
	}
	return conn.Publish(p.subject, data)
}

// PublishBestEffort calls Publish and logs (rather than propagates)
// any failure, the shape every ingest call site uses so a notify
// outage can never fail a commit, shun, or moderation decision.
func (p *Publisher) PublishBestEffort(ctx context.Context, kind EventKind, artifactUUID, detail string) {
	if err := p.Publish(ctx, kind, artifactUUID, detail); err != nil {
		slog.Warn("notify: best-effort publish failed", "kind", kind, "uuid", artifactUUID, "error", err)
	}
}

// Close closes the underlying NATS connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	return nil
}
