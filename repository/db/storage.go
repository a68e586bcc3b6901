package db

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"tasklist/internal/domain/errors"
	"tasklist/internal/domain/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	queryTimeout = 15 * time.Second

	pgUniqueViolation     = "23505"
	pgInvalidText         = "22P02"
	pgForeignKeyViolation = "23503"
)

const (
	prepCreateTask = `INSERT INTO tasks (title, description, completed, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	prepGetTaskByOwner = `SELECT id, title, description, completed, user_id, created_at, updated_at
		FROM tasks WHERE id = $1 AND user_id = $2`
	prepListTasks = `SELECT id, title, description, completed, user_id, created_at, updated_at
		FROM tasks WHERE user_id = $1
		ORDER BY %s %s, id %s
		LIMIT $2 OFFSET $3`
	prepCountTasks = `SELECT count(*), count(*) FILTER (WHERE completed)
		FROM tasks WHERE user_id = $1`
	prepUpdateTask = `UPDATE tasks SET title = $1, description = $2, completed = $3, updated_at = now()
		WHERE id = $4 AND user_id = $5
		RETURNING created_at, updated_at`
	prepDeleteTask = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`

	prepCreateUser = `INSERT INTO users (name, email, password)
		VALUES ($1, lower($2), $3)
		RETURNING id, email, created_at, updated_at`
	prepGetUserByID    = `SELECT id, name, email, password, created_at, updated_at FROM users WHERE id = $1`
	prepGetUserByEmail = `SELECT id, name, email, password, created_at, updated_at FROM users WHERE email = lower($1)`
)

var sortColumns = map[string]string{
	models.SortByCreatedAt: "created_at",
	models.SortByUpdatedAt: "updated_at",
	models.SortByTitle:     "title",
	models.SortByCompleted: "completed",
}

type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] failed to configure database pool:", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Println("[ERROR] failed to connect to database:", err)
		return nil, err
	}

	log.Println("[SUCCESS] database connection established")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx, prepCreateTask, task.Title, task.Description, task.Completed, task.OwnerID)
	if err := row.Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt); err != nil {
		log.Println("[ERROR] failed to create task:", err)
		if isPgCode(err, pgForeignKeyViolation) {
			return errors.ErrUserNotFound
		}
		return err
	}
	log.Println("[SUCCESS] task created:", task.ID)
	return nil
}

func (s *Storage) GetTaskByOwner(ctx context.Context, id, ownerID string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	task, err := scanTask(s.pool.QueryRow(ctx, prepGetTaskByOwner, id, ownerID))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) || isPgCode(err, pgInvalidText) {
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
	query := fmt.Sprintf(prepListTasks, column, direction, direction)

	rows, err := s.pool.Query(ctx, query, ownerID, opts.Limit, opts.Offset())
	if err != nil {
		if isPgCode(err, pgInvalidText) {
			return []models.Task{}, nil
		}
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
	if err := rows.Err(); err != nil {
		log.Println("[ERROR] failed to iterate tasks:", err)
		return nil, err
	}
	return tasks, nil
}

func (s *Storage) CountTasks(ctx context.Context, ownerID string) (models.TaskCounts, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var counts models.TaskCounts
	if err := s.pool.QueryRow(ctx, prepCountTasks, ownerID).Scan(&counts.Total, &counts.Completed); err != nil {
		if isPgCode(err, pgInvalidText) {
			return models.TaskCounts{}, nil
		}
		log.Println("[ERROR] failed to count tasks:", err)
		return models.TaskCounts{}, err
	}
	return counts, nil
}

func (s *Storage) UpdateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx, prepUpdateTask, task.Title, task.Description, task.Completed, task.ID, task.OwnerID)
	if err := row.Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) || isPgCode(err, pgInvalidText) {
			log.Println("[ERROR] task to update not found:", task.ID)
			return errors.ErrNotFound
		}
		log.Println("[ERROR] failed to update task:", err)
		return err
	}
	log.Println("[SUCCESS] task updated:", task.ID)
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, id, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, prepDeleteTask, id, ownerID)
	if err != nil {
		if isPgCode(err, pgInvalidText) {
			return errors.ErrNotFound
		}
		log.Println("[ERROR] failed to delete task:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		log.Println("[ERROR] task to delete not found:", id)
		return errors.ErrNotFound
	}
	log.Println("[SUCCESS] task deleted:", id)
	return nil
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx, prepCreateUser, user.Name, user.Email, user.Password)
	if err := row.Scan(&user.ID, &user.Email, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return errors.ErrDuplicateEmail
		}
		log.Println("[ERROR] failed to create user:", err)
		return err
	}
	log.Println("[SUCCESS] user created:", user.ID)
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, prepGetUserByID, id)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, prepGetUserByEmail, email)
}

func (s *Storage) getUser(ctx context.Context, query, arg string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user := &models.User{}
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) || isPgCode(err, pgInvalidText) {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] failed to get user:", err)
		return nil, err
	}
	return user, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	task := &models.Task{}
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Completed, &task.OwnerID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == code
}
