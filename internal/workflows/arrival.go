package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// DefaultTaskQueue is the queue arrival workflows and activities run on.
const DefaultTaskQueue = "taskpin-arrivals"

// ArrivalInput is the input for the arrival workflow.
type ArrivalInput struct {
	SessionID string
	TaskID    int64
}

// ArrivalResult carries the task list as it stood after the deletion.
type ArrivalResult struct {
	Remaining []domain.Task
}

// ArrivalWorkflow deletes a reached task and re-fetches the list. Each
// activity runs exactly once; a failure is reported to the navigation
// session, which retries on the next position update.
func ArrivalWorkflow(ctx workflow.Context, input ArrivalInput) (ArrivalResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting arrival workflow", "sessionID", input.SessionID, "taskID", input.TaskID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Delete the reached task
	if err := workflow.ExecuteActivity(ctx, "DeleteTask", input.TaskID).Get(ctx, nil); err != nil {
		return ArrivalResult{}, err
	}

	// Step 2: Re-fetch what is left
	var remaining []domain.Task
	if err := workflow.ExecuteActivity(ctx, "ListTasks").Get(ctx, &remaining); err != nil {
		return ArrivalResult{}, err
	}

	logger.Info("Arrival completed", "taskID", input.TaskID, "remaining", len(remaining))
	return ArrivalResult{Remaining: remaining}, nil
}
