package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/model"
)

// CreateTask stores a new task, assigning an id when none is set.
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *model.Task) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: task", ErrNilParameter)
	}
	if err := validateString(task.Title, "title"); err != nil {
		return err
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, notes, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, task.ID, task.Title, nullString(task.Notes), task.Completed, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by id.
func (s *SQLiteStorage) GetTask(ctx context.Context, id string) (*model.Task, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, notes, completed, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// GetTasks retrieves all tasks, newest first.
func (s *SQLiteStorage) GetTasks(ctx context.Context) ([]model.Task, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, notes, completed, created_at, updated_at
		FROM tasks ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// DeleteTask deletes a task and, by cascade, its geofence.
func (s *SQLiteStorage) DeleteTask(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireAffected(result, "task "+id)
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		task  model.Task
		notes sql.NullString
	)
	if err := row.Scan(&task.ID, &task.Title, &notes, &task.Completed, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}
	task.Notes = notes.String
	return &task, nil
}
