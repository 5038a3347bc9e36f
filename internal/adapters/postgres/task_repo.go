package postgres

import (
	"context"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// TaskRepo implements ports.TaskRepository.
type TaskRepo struct {
	db *DB
}

func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) List(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, title, lat, lng, created_at
		FROM tasks ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Location.Lat, &t.Location.Lon, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO tasks (title, lat, lng, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
		RETURNING id, created_at
	`, task.Title, task.Location.Lat, task.Location.Lon, nilIfZero(task.CreatedAt)).Scan(&task.ID, &task.CreatedAt)
}

func (r *TaskRepo) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TaskRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM tasks`).Scan(&n)
	return n, err
}
