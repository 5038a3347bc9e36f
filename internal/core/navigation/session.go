package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/core/ports"
	"github.com/samirrijal/taskpin/internal/pkg/metrics"
	"github.com/samirrijal/taskpin/internal/pkg/telemetry"
)

// DefaultThresholdKm is the arrival radius. A target is reached when the
// distance to it is strictly below this value.
const DefaultThresholdKm = 0.10

// ErrSessionStopped is returned for updates offered after Stop.
var ErrSessionStopped = errors.New("navigation session stopped")

// State is the navigation loop state.
type State int

const (
	StateIdle     State = iota // no position yet
	StateTracking              // have a target, waiting for arrival
	StateArriving              // arrival sequence in flight
	StateDone                  // task list exhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StateArriving:
		return "arriving"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config tunes a Session. Zero values select defaults.
type Config struct {
	ID          string
	ThresholdKm float64
	// Executor runs delete + re-fetch on arrival. Defaults to the session's store.
	Executor ports.ArrivalExecutor
	Logger   *slog.Logger
	Now      func() time.Time
	// OnUpdate, if set, is called by Run after each processed position.
	OnUpdate func(Snapshot)
}

// Outcome reports what one position update did.
type Outcome struct {
	State   State              `json:"state"`
	Target  *domain.RankedTask `json:"target,omitempty"`
	Arrived *domain.Task       `json:"arrived,omitempty"`
	Dropped bool               `json:"dropped,omitempty"`
}

// Snapshot is a copy of the session's observable state.
type Snapshot struct {
	ID       string             `json:"id"`
	State    State              `json:"state"`
	Position *domain.Position   `json:"position,omitempty"`
	Target   *domain.RankedTask `json:"target,omitempty"`
}

// Session is one navigation loop. It owns the current position, the current
// target and the route overlay. The task list is re-fetched on every update
// so manual edits made elsewhere are picked up without invalidation.
type Session struct {
	id        string
	store     ports.TaskStore
	notifier  ports.NotificationSink
	routes    ports.RouteRenderer
	executor  ports.ArrivalExecutor
	threshold float64
	logger    *slog.Logger
	now       func() time.Time
	tracer    trace.Tracer
	onUpdate  func(Snapshot)

	mu        sync.Mutex
	state     State
	position  *domain.Position
	target    *domain.RankedTask
	seq       uint64 // last update issued
	applied   uint64 // last update whose result was applied
	epoch     uint64 // bumped when an arrival starts; older task lists are stale
	storeDown bool
	stopped   bool
	cancelRun context.CancelFunc
	inflight  sync.WaitGroup

	routeMu sync.Mutex
	drawn   uint64
}

// NewSession creates an idle session. routes may be nil.
func NewSession(store ports.TaskStore, notifier ports.NotificationSink, routes ports.RouteRenderer, cfg Config) *Session {
	s := &Session{
		id:        cfg.ID,
		store:     store,
		notifier:  notifier,
		routes:    routes,
		executor:  cfg.Executor,
		threshold: cfg.ThresholdKm,
		logger:    cfg.Logger,
		now:       cfg.Now,
		tracer:    telemetry.Tracer("navigation"),
		onUpdate:  cfg.OnUpdate,
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThresholdKm
	}
	if s.executor == nil {
		s.executor = StoreExecutor(store)
	}
	if s.routes == nil {
		s.routes = nopRenderer{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("session", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current state, position and target.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{ID: s.id, State: s.state}
	if s.position != nil {
		p := *s.position
		snap.Position = &p
	}
	if s.target != nil {
		t := *s.target
		snap.Target = &t
	}
	return snap
}

// Update feeds one position into the loop. It is safe for concurrent use:
// updates that arrive while an arrival sequence is running are dropped, as
// are updates whose task list was fetched before the latest arrival began or
// that are older than an already-applied update.
func (s *Session) Update(ctx context.Context, pos domain.Position) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanPositionUpdate,
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()

	s.mu.Lock()
	if s.stopped {
		st := s.state
		s.mu.Unlock()
		return Outcome{State: st, Dropped: true}, ErrSessionStopped
	}
	if s.state == StateArriving {
		s.mu.Unlock()
		metrics.PositionUpdates.WithLabelValues("dropped").Inc()
		return Outcome{State: StateArriving, Dropped: true}, nil
	}
	s.seq++
	seq := s.seq
	epoch := s.epoch
	p := pos
	s.position = &p
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list tasks")
		metrics.PositionUpdates.WithLabelValues("store_error").Inc()
		if ctx.Err() == nil {
			s.storeFailed(ctx, "list", err)
		}
		return Outcome{State: s.currentState()}, fmt.Errorf("list tasks: %w", err)
	}
	s.storeRecovered()

	nearest, ok := Nearest(pos.Location, tasks)

	s.mu.Lock()
	if s.state == StateArriving || s.stopped || seq < s.applied || epoch != s.epoch {
		st := s.state
		s.mu.Unlock()
		metrics.PositionUpdates.WithLabelValues("dropped").Inc()
		return Outcome{State: st, Dropped: true}, nil
	}
	s.applied = seq

	if !ok {
		hadTarget := s.target != nil
		s.target = nil
		st := s.state
		s.mu.Unlock()
		metrics.PositionUpdates.WithLabelValues("no_target").Inc()
		if hadTarget {
			s.clearRoute(ctx, seq)
		}
		return Outcome{State: st}, nil
	}

	span.SetAttributes(
		attribute.Int64("task.id", nearest.ID),
		attribute.Float64("task.distance_km", nearest.DistanceKm),
	)

	if nearest.DistanceKm < s.threshold {
		s.state = StateArriving
		s.target = &nearest
		s.epoch++
		s.mu.Unlock()
		metrics.PositionUpdates.WithLabelValues("arrived").Inc()
		return s.arrive(ctx, seq, pos, nearest)
	}

	prev := s.target
	s.state = StateTracking
	s.target = &nearest
	s.mu.Unlock()

	if prev == nil || prev.ID != nearest.ID {
		s.logger.Info("target selected", "task_id", nearest.ID, "title", nearest.Title, "distance_km", nearest.DistanceKm)
	}
	metrics.PositionUpdates.WithLabelValues("tracking").Inc()
	s.drawRoute(ctx, seq, pos, nearest)
	return Outcome{State: StateTracking, Target: &nearest}, nil
}

// arrive runs the arrival sequence: announce, delete, re-fetch, pick the next
// target. It runs on a context detached from cancellation; Stop never
// interrupts it.
func (s *Session) arrive(ctx context.Context, seq uint64, pos domain.Position, target domain.RankedTask) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, telemetry.SpanArrival,
		trace.WithAttributes(attribute.Int64("task.id", target.ID)))
	defer span.End()

	start := s.now()
	metrics.Arrivals.Inc()
	s.logger.Info("arrived", "task_id", target.ID, "title", target.Title, "distance_km", target.DistanceKm)

	s.announce(ctx, domain.AnnounceReached, "You reached "+target.Title, target.ID)

	remaining, err := s.executor.CompleteTask(ctx, target.ID)
	metrics.ArrivalDuration.Observe(s.now().Sub(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete task")
		s.mu.Lock()
		s.state = StateTracking
		s.mu.Unlock()
		s.storeFailed(ctx, "arrival", err)
		arrived := target.Task
		return Outcome{State: StateTracking, Target: &target, Arrived: &arrived}, fmt.Errorf("complete task %d: %w", target.ID, err)
	}
	s.storeRecovered()

	arrived := target.Task
	next, ok := Nearest(pos.Location, remaining)
	if !ok {
		s.mu.Lock()
		s.state = StateDone
		s.target = nil
		s.mu.Unlock()
		s.clearRoute(ctx, seq)
		s.announce(ctx, domain.AnnounceAllCompleted, "All tasks completed", 0)
		s.logger.Info("all tasks completed")
		return Outcome{State: StateDone, Arrived: &arrived}, nil
	}

	s.mu.Lock()
	s.state = StateTracking
	s.target = &next
	s.mu.Unlock()
	s.announce(ctx, domain.AnnounceNextTarget, "Next target is "+next.Title, next.ID)
	s.drawRoute(ctx, seq, pos, next)
	return Outcome{State: StateTracking, Target: &next, Arrived: &arrived}, nil
}

// Run consumes positions from src until ctx ends, the stream closes, or Stop
// is called. Positions that queue up while an update is being processed are
// collapsed so only the latest is evaluated.
func (s *Session) Run(ctx context.Context, src ports.PositionSource) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.mu.Unlock()
	defer cancel()

	positions, err := src.Positions(ctx)
	if err != nil {
		s.announce(ctx, domain.AnnounceNotice, "Location unavailable", 0)
		return fmt.Errorf("subscribe positions: %w", err)
	}
	s.logger.Info("navigation started", "threshold_km", s.threshold)

	for {
		select {
		case <-ctx.Done():
			return nil
		case pos, ok := <-positions:
			if !ok {
				return nil
			}
			pos = latest(positions, pos)
			if _, err := s.Update(ctx, pos); err != nil {
				if errors.Is(err, ErrSessionStopped) {
					return nil
				}
				s.logger.Debug("position update failed", "error", err)
			}
			if s.onUpdate != nil {
				s.onUpdate(s.Snapshot())
			}
		}
	}
}

// Stop unsubscribes from the position stream. An arrival sequence already in
// flight runs to completion; no new update is started.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancelRun
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until in-flight updates have finished. Call after Stop.
func (s *Session) Wait() {
	s.inflight.Wait()
}

func (s *Session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) drawRoute(ctx context.Context, seq uint64, pos domain.Position, target domain.RankedTask) {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()
	if seq < s.drawn {
		return
	}
	s.drawn = seq
	route := domain.Route{
		From:       pos.Location,
		To:         target.Location,
		TaskID:     target.ID,
		DistanceKm: target.DistanceKm,
		DrawnAt:    s.now(),
	}
	if err := s.routes.DrawRoute(ctx, route); err != nil {
		s.logger.Warn("draw route", "task_id", target.ID, "error", err)
	}
}

func (s *Session) clearRoute(ctx context.Context, seq uint64) {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()
	if seq < s.drawn {
		return
	}
	s.drawn = seq
	if err := s.routes.ClearRoute(ctx); err != nil {
		s.logger.Warn("clear route", "error", err)
	}
}

func (s *Session) announce(ctx context.Context, kind domain.AnnouncementKind, msg string, taskID int64) {
	metrics.Announcements.WithLabelValues(string(kind)).Inc()
	s.notifier.Announce(ctx, domain.Announcement{
		Kind:    kind,
		Message: msg,
		TaskID:  taskID,
		Time:    s.now(),
	})
}

// storeFailed logs every failure but only surfaces a notice on the first one
// of a run of failures.
func (s *Session) storeFailed(ctx context.Context, op string, err error) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	s.logger.Warn("task store failure", "operation", op, "error", err)

	s.mu.Lock()
	first := !s.storeDown
	s.storeDown = true
	s.mu.Unlock()
	if first {
		s.announce(ctx, domain.AnnounceNotice, "Task store unavailable, will retry on next position", 0)
	}
}

func (s *Session) storeRecovered() {
	s.mu.Lock()
	s.storeDown = false
	s.mu.Unlock()
}

func latest(ch <-chan domain.Position, pos domain.Position) domain.Position {
	for {
		select {
		case next, ok := <-ch:
			if !ok {
				return pos
			}
			pos = next
		default:
			return pos
		}
	}
}

type nopRenderer struct{}

func (nopRenderer) DrawRoute(context.Context, domain.Route) error { return nil }
func (nopRenderer) ClearRoute(context.Context) error             { return nil }
