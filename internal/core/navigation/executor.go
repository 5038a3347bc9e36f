package navigation

import (
	"context"
	"fmt"

	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/core/ports"
)

// StoreExecutor completes arrivals directly against a task store.
func StoreExecutor(store ports.TaskStore) ports.ArrivalExecutor {
	return storeExecutor{store: store}
}

type storeExecutor struct {
	store ports.TaskStore
}

func (e storeExecutor) CompleteTask(ctx context.Context, taskID int64) ([]domain.Task, error) {
	if err := e.store.DeleteTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("re-fetch tasks: %w", err)
	}
	return tasks, nil
}

// Sinks fans an announcement out to every sink, in order.
type Sinks []ports.NotificationSink

// Announce implements ports.NotificationSink.
func (m Sinks) Announce(ctx context.Context, a domain.Announcement) {
	for _, sink := range m {
		if sink != nil {
			sink.Announce(ctx, a)
		}
	}
}

// ChannelSource adapts a channel to ports.PositionSource.
type ChannelSource <-chan domain.Position

// Positions implements ports.PositionSource.
func (c ChannelSource) Positions(context.Context) (<-chan domain.Position, error) {
	return c, nil
}
