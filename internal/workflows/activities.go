package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/core/ports"
)

// ArrivalActivities holds the activity implementations for the arrival workflow.
type ArrivalActivities struct {
	Store ports.TaskStore
}

// DeleteTask removes the reached task. Unknown ids succeed.
func (a *ArrivalActivities) DeleteTask(ctx context.Context, taskID int64) error {
	if err := a.Store.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("delete task %d: %w", taskID, err)
	}
	activity.GetLogger(ctx).Info("task deleted", "taskID", taskID)
	return nil
}

// ListTasks returns the task list after the deletion.
func (a *ArrivalActivities) ListTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := a.Store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
