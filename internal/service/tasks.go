package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	domainerrors "tasklist/internal/domain/errors"
	"tasklist/internal/domain/models"
)

// TaskService scopes every task operation to the authenticated owner. Each
// call re-reads the task by (id, owner) instead of trusting an earlier check.
type TaskService struct {
	tasks    TaskRepository
	maxLimit int
}

func NewTaskService(tasks TaskRepository, maxLimit int) *TaskService {
	if maxLimit <= 0 || maxLimit > MaxLimit {
		maxLimit = MaxLimit
	}
	return &TaskService{tasks: tasks, maxLimit: maxLimit}
}

func (s *TaskService) Create(ctx context.Context, userID, title, description string) (*models.Task, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	verr := domainerrors.NewValidationError()
	checkTitle(verr, title)
	checkDescription(verr, description)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       title,
		Description: description,
		Completed:   false,
		OwnerID:     userID,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, userID string, opts models.ListOptions) (*models.TaskPage, error) {
	if err := s.validateListOptions(opts); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListTasks(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	counts, err := s.tasks.CountTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	if tasks == nil {
		tasks = []models.Task{}
	}

	return &models.TaskPage{
		Tasks: tasks,
		Pagination: models.Pagination{
			Total:     counts.Total,
			Completed: counts.Completed,
			Pending:   counts.Total - counts.Completed,
			Page:      opts.Page,
			Limit:     opts.Limit,
		},
	}, nil
}

func (s *TaskService) GetByID(ctx context.Context, userID, taskID string) (*models.Task, error) {
	return s.owned(ctx, userID, taskID)
}

func (s *TaskService) Update(ctx context.Context, userID, taskID string, update models.TaskUpdate) (*models.Task, error) {
	verr := domainerrors.NewValidationError()
	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		update.Title = &trimmed
		checkTitle(verr, trimmed)
	}
	if update.Description != nil {
		trimmed := strings.TrimSpace(*update.Description)
		update.Description = &trimmed
		checkDescription(verr, trimmed)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	task, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if update.Empty() {
		return task, nil
	}

	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Completed != nil {
		task.Completed = *update.Completed
	}

	if err := s.save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	if _, err := s.owned(ctx, userID, taskID); err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, taskID, userID); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.ErrTaskNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *TaskService) ToggleCompletion(ctx context.Context, userID, taskID string) (*models.Task, error) {
	task, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	task.Completed = !task.Completed
	if err := s.save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) owned(ctx context.Context, userID, taskID string) (*models.Task, error) {
	task, err := s.tasks.GetTaskByOwner(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *TaskService) save(ctx context.Context, task *models.Task) error {
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.ErrTaskNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *TaskService) validateListOptions(opts models.ListOptions) error {
	verr := domainerrors.NewValidationError()
	validLimit := opts.Limit >= 1 && opts.Limit <= s.maxLimit
	switch {
	case opts.Page < 1:
		verr.Add("page", "page must be an integer greater than 0", opts.Page)
	case validLimit && opts.Page-1 > math.MaxInt/opts.Limit:
		// (page-1)*limit must fit in an int offset.
		verr.Add("page", "page is too large", opts.Page)
	}
	if !validLimit {
		verr.Add("limit", fmt.Sprintf("limit must be between 1 and %d", s.maxLimit), opts.Limit)
	}
	if !sortableFields[opts.SortBy] {
		verr.Add("sortBy", "sortBy must be one of: createdAt, updatedAt, title, completed", opts.SortBy)
	}
	if opts.SortOrder != models.SortAsc && opts.SortOrder != models.SortDesc {
		verr.Add("sortOrder", "sortOrder must be asc or desc", opts.SortOrder)
	}
	return verr.OrNil()
}

func checkTitle(verr *domainerrors.ValidationError, title string) {
	if title == "" {
		verr.Add("title", "title is required", title)
		return
	}
	if runeLen(title) > MaxTitleLength {
		verr.Add("title", fmt.Sprintf("title must be between 1 and %d characters", MaxTitleLength), nil)
	}
}

func checkDescription(verr *domainerrors.ValidationError, description string) {
	if runeLen(description) > MaxDescriptionLength {
		verr.Add("description", fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength), nil)
	}
}
