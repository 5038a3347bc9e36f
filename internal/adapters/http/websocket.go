package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/taskpin/internal/adapters/nats"
	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/core/navigation"
	"github.com/samirrijal/taskpin/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsConn serialises writes to a WebSocket connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// keepAlive pings until done is closed or a write fails.
func (w *wsConn) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// ---------------------------------------------------------------------------
// /ws/navigate
// ---------------------------------------------------------------------------

// positionFrame is sent by the browser for every location reading.
type positionFrame struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy float64  `json:"accuracy"`
	// Error reports a client-side geolocation failure.
	Error string `json:"error"`
}

// navFrame is sent to the browser.
type navFrame struct {
	Type         string               `json:"type"` // announcement | route | route_clear | state | error
	Announcement *domain.Announcement `json:"announcement,omitempty"`
	Route        *domain.Route        `json:"route,omitempty"`
	State        *navigation.Snapshot `json:"state,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// wsNavigator is the browser side of a navigation session: it is both the
// notification sink and the route renderer.
type wsNavigator struct {
	ws        *wsConn
	sessionID string
	events    eventMirror
	logger    *slog.Logger
}

// eventMirror is the subset of ports.EventPublisher used to mirror a
// browser session onto the broker.
type eventMirror interface {
	PublishAnnouncement(ctx context.Context, sessionID string, a domain.Announcement) error
	PublishRoute(ctx context.Context, sessionID string, route *domain.Route) error
}

func (n *wsNavigator) Announce(ctx context.Context, a domain.Announcement) {
	if err := n.ws.writeJSON(navFrame{Type: "announcement", Announcement: &a}); err != nil {
		n.logger.Debug("ws announce write failed", "error", err)
	}
	if n.events != nil {
		if err := n.events.PublishAnnouncement(ctx, n.sessionID, a); err != nil {
			n.logger.Warn("mirror announcement", "error", err)
		}
	}
}

func (n *wsNavigator) DrawRoute(ctx context.Context, route domain.Route) error {
	if n.events != nil {
		if err := n.events.PublishRoute(ctx, n.sessionID, &route); err != nil {
			n.logger.Warn("mirror route", "error", err)
		}
	}
	return n.ws.writeJSON(navFrame{Type: "route", Route: &route})
}

func (n *wsNavigator) ClearRoute(ctx context.Context) error {
	if n.events != nil {
		if err := n.events.PublishRoute(ctx, n.sessionID, nil); err != nil {
			n.logger.Warn("mirror route clear", "error", err)
		}
	}
	return n.ws.writeJSON(navFrame{Type: "route_clear"})
}

// NavigateHandler runs one navigation session per WebSocket connection.
// Clients send {"lat":43.26,"lng":-2.93,"accuracy":12}; the server answers
// with announcement, route, route_clear and state frames.
func NavigateHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		sessionID := "ws-" + uuid.NewString()
		logger := slog.Default().With("session", sessionID, "remote", c.RemoteAddr().String())
		logger.Info("navigation client connected")

		metrics.ActiveSessions.Inc()
		defer metrics.ActiveSessions.Dec()

		ws := &wsConn{conn: c}
		nav := &wsNavigator{ws: ws, sessionID: sessionID, logger: logger}
		if deps.Events != nil {
			nav.events = deps.Events
		}

		session := navigation.NewSession(deps.Tasks, nav, nav, navigation.Config{
			ID:          sessionID,
			ThresholdKm: deps.ThresholdKm,
			Logger:      logger,
			OnUpdate: func(snap navigation.Snapshot) {
				_ = ws.writeJSON(navFrame{Type: "state", State: &snap})
			},
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Single-slot mailbox: a newer reading replaces one not yet consumed.
		positions := make(chan domain.Position, 1)
		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			if err := session.Run(ctx, navigation.ChannelSource(positions)); err != nil {
				logger.Warn("navigation loop ended", "error", err)
			}
		}()

		done := make(chan struct{})
		go ws.keepAlive(done)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var f positionFrame
			if err := json.Unmarshal(msg, &f); err != nil {
				_ = ws.writeJSON(navFrame{Type: "error", Error: "invalid JSON"})
				continue
			}
			if f.Error != "" {
				nav.Announce(ctx, domain.Announcement{
					Kind:    domain.AnnounceNotice,
					Message: "Location unavailable",
					Time:    time.Now().UTC(),
				})
				continue
			}
			if f.Lat == nil || f.Lng == nil {
				_ = ws.writeJSON(navFrame{Type: "error", Error: "lat and lng are required"})
				continue
			}
			pos := domain.Position{
				Location:  domain.GeoPoint{Lat: *f.Lat, Lon: *f.Lng},
				Time:      time.Now().UTC(),
				AccuracyM: f.Accuracy,
			}
			if !pos.Location.Valid() {
				_ = ws.writeJSON(navFrame{Type: "error", Error: "position out of range"})
				continue
			}
			offerPosition(positions, pos)
		}

		close(done)
		session.Stop()
		<-runDone
		session.Wait()
		logger.Info("navigation client disconnected")
	}
}

// offerPosition replaces any unconsumed reading with pos.
func offerPosition(ch chan domain.Position, pos domain.Position) {
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

// ---------------------------------------------------------------------------
// /ws event relay
// ---------------------------------------------------------------------------

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "tasks" | "navigation" (default: tasks)
	Session string `json:"session"` // navigation session filter (optional, "" = all)
}

// relaySubject maps a channel and optional session onto a NATS subject.
func relaySubject(channel, session string) (string, error) {
	switch channel {
	case "", "tasks":
		return natsadapter.SubjectTasks + ".>", nil
	case "navigation":
		if session != "" {
			return natsadapter.SubjectNavigation + "." + session + ".>", nil
		}
		return natsadapter.SubjectNavigation + ".>", nil
	default:
		return "", fmt.Errorf("unknown channel: %s", channel)
	}
}

// WebSocketHandler relays task and navigation events from NATS to the client.
// Clients send JSON: {"action":"subscribe","channel":"navigation","session":"kitchen"}
// Task events are subscribed by default.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		ws := &wsConn{conn: c}
		if nc == nil {
			_ = ws.writeJSON(map[string]string{"error": "event relay unavailable"})
			return
		}

		subs := make(map[string]*nats.Subscription) // subject -> subscription
		relay := func(msg *nats.Msg) {
			_ = ws.writeJSON(json.RawMessage(msg.Data))
		}

		defaultSubject, _ := relaySubject("tasks", "")
		sub, err := nc.Subscribe(defaultSubject, relay)
		if err != nil {
			slog.Error("ws default subscribe", "error", err)
			return
		}
		subs[defaultSubject] = sub

		done := make(chan struct{})
		go ws.keepAlive(done)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = ws.writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, err := relaySubject(m.Channel, m.Session)
			if err != nil {
				_ = ws.writeJSON(map[string]string{"error": err.Error()})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = ws.writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = ws.writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = ws.writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = ws.writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = ws.writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = ws.writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
