// Command relay serves the shared game documents to battleships clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wojtekolesinski/onchain-battleships/config"
	"github.com/wojtekolesinski/onchain-battleships/docstore"
	"github.com/wojtekolesinski/onchain-battleships/relay"
)

const shutdownTimeout = 10 * time.Second

func openBackend(ctx context.Context, cfg config.Relay) (docstore.Backend, error) {
	switch cfg.Backend {
	case "postgres":
		return docstore.OpenPostgres(ctx, cfg.DSN)
	case "sqlite":
		return docstore.OpenSQLite(cfg.DSN)
	case "memory":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Info("relay no .env file, using environment")
	}
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal("relay [config]", "err", err)
	}
	log.SetLevel(cfg.Level())

	ctx := context.Background()

	log.Info("relay opening store", "backend", cfg.Relay.Backend)
	backend, err := openBackend(ctx, cfg.Relay)
	if err != nil {
		log.Fatal("relay [openBackend]", "err", err)
	}
	hub := docstore.NewMemory()
	if backend != nil {
		hub = docstore.NewHub(backend)
	}
	defer hub.Close()

	sched := relay.NewScheduler(hub, cfg.Relay.Retention.Std(), log.Default())
	if err := sched.Start(cfg.Relay.CleanupSchedule); err != nil {
		log.Fatal("relay [scheduler]", "err", err)
	}
	defer sched.Stop()

	server := &http.Server{
		Addr:    cfg.Relay.Addr,
		Handler: relay.NewServer(hub, log.Default()).Handler(),
	}

	go func() {
		log.Info("relay listening", "addr", cfg.Relay.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("relay [ListenAndServe]", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("relay shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("relay [Shutdown]", "err", err)
	}
	log.Info("relay stopped")
}
