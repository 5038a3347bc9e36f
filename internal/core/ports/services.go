package ports

import (
	"context"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// TaskStore is the CRUD contract the navigation loop consumes.
// DeleteTask must be idempotent: unknown ids are not an error.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, title string, location *domain.GeoPoint) (domain.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// NotificationSink announces messages to the user (speech plus a visual alert).
// Announce must not block on playback and never fails the caller.
type NotificationSink interface {
	Announce(ctx context.Context, a domain.Announcement)
}

// RouteRenderer owns the route overlay. DrawRoute replaces the current route.
type RouteRenderer interface {
	DrawRoute(ctx context.Context, route domain.Route) error
	ClearRoute(ctx context.Context) error
}

// PositionSource subscribes to a live position stream. The channel is closed
// when ctx ends or the provider stops. A provider that cannot deliver
// positions returns an error wrapping domain.ErrLocationUnavailable.
type PositionSource interface {
	Positions(ctx context.Context) (<-chan domain.Position, error)
}

// ArrivalExecutor performs the store side of an arrival: delete the reached
// task and return the re-fetched task list.
type ArrivalExecutor interface {
	CompleteTask(ctx context.Context, taskID int64) ([]domain.Task, error)
}

// Geocoder resolves free text to places, best match first.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Place, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishTaskEvent(ctx context.Context, event domain.TaskEvent) error
	PublishAnnouncement(ctx context.Context, sessionID string, a domain.Announcement) error
	PublishRoute(ctx context.Context, sessionID string, route *domain.Route) error
	PublishPosition(ctx context.Context, sessionID string, pos domain.Position) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
