package repository

import (
	"context"

	"workerbee/internal/shared/model"
)

const taskColumns = `id, title, description, priority, status, due_date,
	assigned_to, created_by, completed_at, completed_by, created_at, updated_at`

// CreateTask 创建任务
func (s *Store) CreateTask(ctx context.Context, task *model.Task) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`),
		task.ID, task.Title, task.Description, task.Priority, task.Status, task.DueDate,
		task.AssignedTo, task.CreatedBy, task.CompletedAt, task.CompletedBy,
		task.CreatedAt, task.UpdatedAt,
	)
	return wrapError(err)
}

func (s *Store) scanTask(scan func(dest ...interface{}) error) (*model.Task, error) {
	t := &model.Task{}
	err := scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.DueDate,
		&t.AssignedTo, &t.CreatedBy, &t.CompletedAt, &t.CompletedBy,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, wrapError(err)
	}
	return t, nil
}

// GetTask 通过 ID 查找任务
func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`), id)
	return s.scanTask(row.Scan)
}

// ListTasks 列出全部任务（过滤/排序/分页由业务层在内存完成）
func (s *Store) ListTasks(ctx context.Context) ([]*model.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`))
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := s.scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, wrapError(rows.Err())
}

// UpdateTask 整记录覆盖更新（created_by/created_at 不可变，不参与 SET）
func (s *Store) UpdateTask(ctx context.Context, task *model.Task) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE tasks SET title = $1, description = $2, priority = $3, status = $4,
		 due_date = $5, assigned_to = $6, completed_at = $7, completed_by = $8, updated_at = $9
		 WHERE id = $10`),
		task.Title, task.Description, task.Priority, task.Status,
		task.DueDate, task.AssignedTo, task.CompletedAt, task.CompletedBy, task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return wrapError(err)
	}
	return requireAffected(res)
}

// DeleteTask 删除任务
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM tasks WHERE id = $1`), id)
	if err != nil {
		return wrapError(err)
	}
	return requireAffected(res)
}
