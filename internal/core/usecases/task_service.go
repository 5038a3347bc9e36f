package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/core/navigation"
	"github.com/samirrijal/taskpin/internal/core/ports"
	"github.com/samirrijal/taskpin/internal/pkg/geospatial"
	"github.com/samirrijal/taskpin/internal/pkg/metrics"
)

// maxTitleLen bounds task titles.
const maxTitleLen = 200

// TaskService handles task-related business logic. It satisfies
// ports.TaskStore so an in-process navigator can use it directly.
type TaskService struct {
	tasks     ports.TaskRepository
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewTaskService creates a new TaskService. publisher may be nil.
func NewTaskService(tasks ports.TaskRepository, publisher ports.EventPublisher) *TaskService {
	return &TaskService{tasks: tasks, publisher: publisher, now: time.Now}
}

// ListTasks returns every task in creation order.
func (s *TaskService) ListTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return tasks, nil
}

// ListPage returns a window of tasks plus the total count.
func (s *TaskService) ListPage(ctx context.Context, offset, limit int) ([]domain.Task, int, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := len(tasks)
	if offset >= total {
		return []domain.Task{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return tasks[offset:end], total, nil
}

// Nearby returns every task ordered nearest-first from pos.
func (s *TaskService) Nearby(ctx context.Context, pos domain.GeoPoint) ([]domain.RankedTask, error) {
	if !pos.Valid() {
		return nil, fmt.Errorf("position %s: %w", pos, domain.ErrInvalidInput)
	}
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return navigation.SortByDistance(pos, tasks), nil
}

// NearbyWithin is Nearby restricted to tasks at most radiusM meters away.
func (s *TaskService) NearbyWithin(ctx context.Context, pos domain.GeoPoint, radiusM float64) ([]domain.RankedTask, error) {
	if radiusM <= 0 {
		return nil, fmt.Errorf("radius %g: %w", radiusM, domain.ErrInvalidInput)
	}
	ranked, err := s.Nearby(ctx, pos)
	if err != nil {
		return nil, err
	}

	box := geospatial.BoundingBox(pos, radiusM)
	within := make([]domain.RankedTask, 0, len(ranked))
	for _, r := range ranked {
		if !box.Contains(r.Location) {
			continue
		}
		if geospatial.Haversine(pos.Lat, pos.Lon, r.Location.Lat, r.Location.Lon) <= radiusM {
			within = append(within, r)
		}
	}
	return within, nil
}

// CreateTask validates and stores a new task.
func (s *TaskService) CreateTask(ctx context.Context, title string, location *domain.GeoPoint) (domain.Task, error) {
	title = strings.TrimSpace(title)
	if err := validateTask(title, location); err != nil {
		return domain.Task{}, err
	}

	task := domain.Task{Title: title, Location: *location, CreatedAt: s.now().UTC()}
	if err := s.tasks.Create(ctx, &task); err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w: %v", domain.ErrStoreUnavailable, err)
	}
	metrics.TasksCreated.Inc()

	s.publish(ctx, domain.TaskEvent{Type: "created", TaskID: task.ID, Title: task.Title})
	return task, nil
}

// DeleteTask removes a task. Unknown ids are not an error.
func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	found, err := s.tasks.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w: %v", id, domain.ErrStoreUnavailable, err)
	}
	if !found {
		return nil
	}
	metrics.TasksDeleted.Inc()

	s.publish(ctx, domain.TaskEvent{Type: "deleted", TaskID: id})
	return nil
}

// Count returns the number of stored tasks.
func (s *TaskService) Count(ctx context.Context) (int, error) {
	return s.tasks.Count(ctx)
}

func (s *TaskService) publish(ctx context.Context, ev domain.TaskEvent) {
	if s.publisher == nil {
		return
	}
	ev.Time = s.now().UTC()
	// Best-effort; the store write already succeeded.
	if err := s.publisher.PublishTaskEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish task event", "type", ev.Type, "task_id", ev.TaskID, "error", err)
	}
}

func validateTask(title string, location *domain.GeoPoint) error {
	var problems []string
	if title == "" {
		problems = append(problems, "title is required")
	}
	if len(title) > maxTitleLen {
		problems = append(problems, fmt.Sprintf("title longer than %d characters", maxTitleLen))
	}
	if location == nil {
		problems = append(problems, "location is required")
	} else if !location.Valid() {
		problems = append(problems, fmt.Sprintf("location %s out of range", *location))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}
