// Package sqlite stores users and tasks in a single SQLite file. It serves
// single-node deployments that have no Postgres available.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"tasklist/internal/domain/errors"
	"tasklist/internal/domain/models"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

const queryTimeout = 15 * time.Second

var sortColumns = map[string]string{
	models.SortByCreatedAt: "created_at",
	models.SortByUpdatedAt: "updated_at",
	models.SortByTitle:     "title",
	models.SortByCompleted: "completed",
}

type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// NewStorage opens (creating if needed) the database at path and applies the
// embedded migrations.
func NewStorage(path string) (*Storage, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Println("[ERROR] failed to open sqlite database:", err)
		return nil, err
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Println("[SUCCESS] sqlite database ready:", path)
	return &Storage{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("init sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		log.Println("[ERROR] failed to apply sqlite migrations:", err)
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// WithClock replaces the source of created/updated timestamps.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	s.now = now
	return s
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := s.now()
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password, created_at, updated_at) VALUES (?, ?, lower(?), ?, ?, ?)`,
		id, user.Name, user.Email, user.Password, now.UnixNano(), now.UnixNano())
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
			return errors.ErrDuplicateEmail
		}
		log.Println("[ERROR] failed to create user:", err)
		return err
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password, created_at, updated_at FROM users WHERE email = ?`, email)
}

func (s *Storage) getUser(ctx context.Context, query, arg string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		user             models.User
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Name, &user.Email, &user.Password, &created, &updated)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] failed to get user:", err)
		return nil, err
	}
	user.CreatedAt = fromNanos(created)
	user.UpdatedAt = fromNanos(updated)
	return &user, nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := s.now()
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, completed, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, task.Title, task.Description, task.Completed, task.OwnerID, now.UnixNano(), now.UnixNano())
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return errors.ErrUserNotFound
		}
		log.Println("[ERROR] failed to create task:", err)
		return err
	}

	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now
	return nil
}

func (s *Storage) GetTaskByOwner(ctx context.Context, id, ownerID string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, completed, user_id, created_at, updated_at FROM tasks WHERE id = ? AND user_id = ?`,
		id, ownerID)
	task, err := scanTask(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		log.Println("[ERROR] failed to get task:", err)
		return nil, err
	}
	return task, nil
}

func (s *Storage) ListTasks(ctx context.Context, ownerID string, opts models.ListOptions) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	column, ok := sortColumns[opts.SortBy]
	if !ok {
		return nil, errors.ErrInvalidInput
	}
	direction := "ASC"
	if opts.SortOrder == models.SortDesc {
		direction = "DESC"
	}
	query := fmt.Sprintf(`SELECT id, title, description, completed, user_id, created_at, updated_at
		FROM tasks WHERE user_id = ?
		ORDER BY %s %s, id %s
		LIMIT ? OFFSET ?`, column, direction, direction)

	rows, err := s.db.QueryContext(ctx, query, ownerID, opts.Limit, opts.Offset())
	if err != nil {
		log.Println("[ERROR] failed to list tasks:", err)
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Println("[ERROR] failed to read task row:", err)
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *Storage) CountTasks(ctx context.Context, ownerID string) (models.TaskCounts, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var counts models.TaskCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(sum(completed), 0) FROM tasks WHERE user_id = ?`, ownerID).
		Scan(&counts.Total, &counts.Completed)
	if err != nil {
		log.Println("[ERROR] failed to count tasks:", err)
		return models.TaskCounts{}, err
	}
	return counts, nil
}

func (s *Storage) UpdateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, completed = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		task.Title, task.Description, task.Completed, now.UnixNano(), task.ID, task.OwnerID)
	if err != nil {
		log.Println("[ERROR] failed to update task:", err)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.ErrNotFound
	}
	task.UpdatedAt = now
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, id, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		log.Println("[ERROR] failed to delete task:", err)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task             models.Task
		created, updated int64
	)
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Completed, &task.OwnerID, &created, &updated); err != nil {
		return nil, err
	}
	task.CreatedAt = fromNanos(created)
	task.UpdatedAt = fromNanos(updated)
	return &task, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isConstraint(err error, code int) bool {
	var sqliteErr *sqlite.Error
	return stderrors.As(err, &sqliteErr) && sqliteErr.Code() == code
}
