package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// Subscriber consumes navigation input from NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// PositionSource returns a ports.PositionSource reading the session's
// position subject.
func (s *Subscriber) PositionSource(sessionID string) *PositionSource {
	return &PositionSource{sub: s, sessionID: sessionID}
}

func (s *Subscriber) track(sub *nats.Subscription) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

// PositionSource implements ports.PositionSource over
// taskpin.position.<session>. Only the most recent undelivered position is
// kept; older ones are acknowledged and discarded.
type PositionSource struct {
	sub       *Subscriber
	sessionID string
}

func (p *PositionSource) Positions(ctx context.Context) (<-chan domain.Position, error) {
	out := make(chan domain.Position, 1)
	var (
		mu     sync.Mutex
		closed bool
	)

	sub, err := p.sub.js.Subscribe(SubjectPosition+"."+p.sessionID, func(msg *nats.Msg) {
		pos, err := DecodePosition(msg.Data)
		if err != nil {
			slog.Warn("drop position frame", "session", p.sessionID, "error", err)
			_ = msg.Term()
			return
		}
		_ = msg.Ack()

		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		offerLatest(out, pos)
	},
		nats.Durable("navigator-"+p.sessionID),
		nats.ManualAck(),
		nats.DeliverNew(),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe positions: %w: %v", domain.ErrLocationUnavailable, err)
	}
	p.sub.track(sub)

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out, nil
}

// offerLatest puts pos on a one-slot channel, replacing any position still
// waiting there.
func offerLatest(ch chan domain.Position, pos domain.Position) {
	for {
		select {
		case ch <- pos:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
