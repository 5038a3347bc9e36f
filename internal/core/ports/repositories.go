package ports

import (
	"context"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// TaskRepository persists tasks.
type TaskRepository interface {
	// List returns every task in creation order.
	List(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) error
	// Delete removes a task. It reports false when the id was unknown.
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
}
