package workflows

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// Executor implements ports.ArrivalExecutor by running ArrivalWorkflow and
// waiting for its result. The workflow ID is derived from the task ID, so two
// sessions reaching the same task share one execution.
type Executor struct {
	client    client.Client
	taskQueue string
	sessionID string
	timeout   time.Duration
}

// DefaultArrivalTimeout bounds one arrival when no timeout is configured.
const DefaultArrivalTimeout = 30 * time.Second

// NewExecutor creates an executor for one navigation session. An arrival
// that has not finished within timeout fails with domain.ErrStoreUnavailable.
func NewExecutor(c client.Client, taskQueue, sessionID string, timeout time.Duration) *Executor {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	if timeout <= 0 {
		timeout = DefaultArrivalTimeout
	}
	return &Executor{client: c, taskQueue: taskQueue, sessionID: sessionID, timeout: timeout}
}

func (e *Executor) CompleteTask(ctx context.Context, taskID int64) ([]domain.Task, error) {
	// The session runs arrivals on a context without cancellation, so the
	// deadline has to come from here.
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       "arrival-" + strconv.FormatInt(taskID, 10),
		TaskQueue:                e.taskQueue,
		WorkflowExecutionTimeout: e.timeout,
	}, ArrivalWorkflow, ArrivalInput{SessionID: e.sessionID, TaskID: taskID})
	if err != nil {
		return nil, fmt.Errorf("start arrival workflow: %w: %v", domain.ErrStoreUnavailable, err)
	}

	var result ArrivalResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("arrival workflow %s: %w: %v", run.GetID(), domain.ErrStoreUnavailable, err)
	}
	return result.Remaining, nil
}
