// Command quotactl inspects and adjusts user quotas from the command line.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/aiwriterpros/aiwriter/internal"
	"github.com/aiwriterpros/aiwriter/internal/repository"
	"github.com/aiwriterpros/aiwriter/internal/service"
	"github.com/aiwriterpros/aiwriter/internal/usagestore"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// app holds what the commands operate on.
type app struct {
	quota service.QuotaService
	db    *sql.DB
	close func() error
}

// opener builds the app on first use. Commands that need no backend never
// call it.
type opener func(ctx context.Context) (*app, error)

var errNoDatabase = errors.New("this command requires a database")

// openFromEnv connects using the same environment as the server.
func openFromEnv(ctx context.Context) (*app, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(io.Discard, cfg.Env, cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	store, closeStore, err := usagestore.Open(ctx, cfg.UsageStore, cfg.RedisURL, repository.New(db), cfg.StoreTimeout)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("usage store initialization failed: %w", err)
	}

	return &app{
		quota: service.NewQuotaService(store, nil, logger),
		db:    db,
		close: func() error {
			return errors.Join(closeStore(), db.Close())
		},
	}, nil
}

func main() {
	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		log.SetFlags(0)
		log.Fatal(err)
	}
}
