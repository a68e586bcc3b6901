package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasklist/internal/server"
	"tasklist/internal/service"
	db "tasklist/repository/db"
	inmemory "tasklist/repository/inmemory"
	"tasklist/repository/sqlite"
)

type repositories struct {
	users  service.UserRepository
	tasks  service.TaskRepository
	closer io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func main() {
	log.Println("starting task service...")

	cfg, err := server.ReadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("[ERROR] invalid configuration: %v", err)
	}

	repos, err := openRepositories(cfg)
	if err != nil {
		log.Fatalf("[ERROR] failed to open storage: %v", err)
	}
	defer func() {
		if err := repos.closer.Close(); err != nil {
			log.Printf("[ERROR] failed to close storage: %v", err)
		}
	}()

	api := server.NewTaskAPI(repos.users, repos.tasks, cfg)
	if api == nil {
		log.Fatal("[ERROR] failed to initialise API")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("service listening on %s (storage: %s)", cfg.ListenAddr(), cfg.Storage)
		if err := api.Start(); err != nil {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("[INFO] received signal %v, shutting down...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] graceful shutdown failed: %v", err)
		} else {
			log.Println("[SUCCESS] graceful shutdown complete")
		}

	case err := <-serverErr:
		log.Printf("[ERROR] server error: %v", err)
	}

	log.Println("service stopped")
}

// openRepositories picks the storage backend. An unreachable Postgres falls
// back to in-memory storage.
func openRepositories(cfg *server.Config) (*repositories, error) {
	switch cfg.Storage {
	case server.StorageMemory:
		return memoryRepositories(), nil

	case server.StorageSQLite:
		store, err := sqlite.NewStorage(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &repositories{users: store, tasks: store, closer: store}, nil

	default:
		if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
			log.Println("[WARN] failed to apply migrations, using in-memory storage:", err)
			return memoryRepositories(), nil
		}
		log.Println("[SUCCESS] migrations applied")

		store, err := db.NewStorage(cfg.DBStr)
		if err != nil {
			log.Println("[WARN] failed to connect to database, using in-memory storage:", err)
			return memoryRepositories(), nil
		}
		return &repositories{
			users: store,
			tasks: store,
			closer: closerFunc(func() error {
				store.Close()
				return nil
			}),
		}, nil
	}
}

func memoryRepositories() *repositories {
	inmem := inmemory.NewStorage()
	return &repositories{
		users:  inmem,
		tasks:  inmem,
		closer: closerFunc(func() error { return nil }),
	}
}
