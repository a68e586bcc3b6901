package service

import (
	"context"

	"tasklist/internal/domain/models"
)

// UserRepository is the credential store. GetUserByID and GetUserByEmail
// return errors.ErrUserNotFound when nothing matches; CreateUser returns
// errors.ErrDuplicateEmail on a uniqueness violation.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// TaskRepository is the task store. Every lookup and write is keyed by the
// task id together with the owner id; a miss on either returns
// errors.ErrNotFound.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTaskByOwner(ctx context.Context, id, ownerID string) (*models.Task, error)
	ListTasks(ctx context.Context, ownerID string, opts models.ListOptions) ([]models.Task, error)
	CountTasks(ctx context.Context, ownerID string) (models.TaskCounts, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id, ownerID string) error
}

// TokenIssuer mints bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}
