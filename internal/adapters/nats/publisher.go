package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// Subject prefixes.
const (
	SubjectTasks      = "taskpin.tasks"
	SubjectNavigation = "taskpin.nav"
	SubjectPosition   = "taskpin.position"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "TASK_EVENTS",
			Subjects:  []string{SubjectTasks + ".>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "NAVIGATION",
			Subjects:  []string{SubjectNavigation + ".>"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "POSITIONS",
			Subjects:  []string{SubjectPosition + ".>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    10 * time.Minute,
			Storage:   nats.MemoryStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishTaskEvent(ctx context.Context, event domain.TaskEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectTasks+"."+event.Type, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishAnnouncement(ctx context.Context, sessionID string, a domain.Announcement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(navSubject(sessionID, "announce"), data, nats.Context(ctx))
	return err
}

// PublishRoute publishes the current route; a nil route clears it.
func (p *Publisher) PublishRoute(ctx context.Context, sessionID string, route *domain.Route) error {
	data := []byte("null")
	if route != nil {
		var err error
		if data, err = json.Marshal(route); err != nil {
			return err
		}
	}
	_, err := p.js.Publish(navSubject(sessionID, "route"), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishPosition(ctx context.Context, sessionID string, pos domain.Position) error {
	_, err := p.js.Publish(SubjectPosition+"."+sessionID, EncodePosition(pos), nats.Context(ctx))
	return err
}

// Session returns a notification sink and route renderer that publish on
// the session's navigation subjects.
func (p *Publisher) Session(sessionID string) *SessionChannel {
	return &SessionChannel{pub: p, id: sessionID}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// SessionChannel adapts a Publisher to ports.NotificationSink and
// ports.RouteRenderer for one navigation session.
type SessionChannel struct {
	pub *Publisher
	id  string
}

// Announce publishes the announcement. Failures are logged and dropped.
func (c *SessionChannel) Announce(ctx context.Context, a domain.Announcement) {
	if err := c.pub.PublishAnnouncement(ctx, c.id, a); err != nil {
		slog.Warn("publish announcement", "session", c.id, "kind", a.Kind, "error", err)
	}
}

func (c *SessionChannel) DrawRoute(ctx context.Context, route domain.Route) error {
	return c.pub.PublishRoute(ctx, c.id, &route)
}

func (c *SessionChannel) ClearRoute(ctx context.Context) error {
	return c.pub.PublishRoute(ctx, c.id, nil)
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("taskpin"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

func navSubject(sessionID, kind string) string {
	return SubjectNavigation + "." + sessionID + "." + kind
}
