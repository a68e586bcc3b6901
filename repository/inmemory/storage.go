package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tasklist/internal/domain/errors"
	"tasklist/internal/domain/models"

	"github.com/google/uuid"
)

type Storage struct {
	mu    sync.RWMutex
	users map[string]models.User
	// emails maps a normalized email to the owning user id.
	emails map[string]string
	tasks  map[string]models.Task
	now    func() time.Time
}

func NewStorage() *Storage {
	return &Storage{
		users:  make(map[string]models.User),
		emails: make(map[string]string),
		tasks:  make(map[string]models.Task),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the source of created/updated timestamps.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	s.now = now
	return s
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.emails[strings.ToLower(email)]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := s.emails[key]; exists {
		return errors.ErrDuplicateEmail
	}

	now := s.now()
	user.ID = uuid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	s.emails[key] = user.ID
	return nil
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	task.ID = uuid.New().String()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = *task
	return nil
}

func (s *Storage) GetTaskByOwner(_ context.Context, id, ownerID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists || task.OwnerID != ownerID {
		return nil, errors.ErrNotFound
	}
	return &task, nil
}

func (s *Storage) ListTasks(_ context.Context, ownerID string, opts models.ListOptions) ([]models.Task, error) {
	s.mu.RLock()
	tasks := make([]models.Task, 0)
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			tasks = append(tasks, t)
		}
	}
	s.mu.RUnlock()

	desc := opts.SortOrder == models.SortDesc
	sort.Slice(tasks, func(i, j int) bool {
		c := compareTasks(tasks[i], tasks[j], opts.SortBy)
		if c == 0 {
			c = strings.Compare(tasks[i].ID, tasks[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	offset := opts.Offset()
	if offset < 0 || offset >= len(tasks) {
		return []models.Task{}, nil
	}
	end := offset + opts.Limit
	if end > len(tasks) {
		end = len(tasks)
	}
	return tasks[offset:end], nil
}

func (s *Storage) CountTasks(_ context.Context, ownerID string) (models.TaskCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts models.TaskCounts
	for _, t := range s.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		counts.Total++
		if t.Completed {
			counts.Completed++
		}
	}
	return counts, nil
}

func (s *Storage) UpdateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.tasks[task.ID]
	if !exists || existing.OwnerID != task.OwnerID {
		return errors.ErrNotFound
	}

	existing.Title = task.Title
	existing.Description = task.Description
	existing.Completed = task.Completed
	existing.UpdatedAt = s.now()
	s.tasks[task.ID] = existing
	*task = existing
	return nil
}

func (s *Storage) DeleteTask(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists || task.OwnerID != ownerID {
		return errors.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func compareTasks(a, b models.Task, sortBy string) int {
	switch sortBy {
	case models.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case models.SortByTitle:
		return strings.Compare(a.Title, b.Title)
	case models.SortByCompleted:
		return compareBool(a.Completed, b.Completed)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
