//go:build testutil

// Package testdb starts a throwaway PostgreSQL container with the embedded
// migrations applied.
package testdb

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/noah-isme/lms-points-api/pkg/database"
)

type DBHandle struct {
	DB     *sqlx.DB
	cancel func()
	stop   func(context.Context) error
}

func (h *DBHandle) Close() {
	if h.DB != nil {
		_ = h.DB.Close()
	}
	if h.stop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.stop(ctx)
	}
	if h.cancel != nil {
		h.cancel()
	}
}

func Start(ctx context.Context) (*DBHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("lms_points"),
		postgres.WithUsername("lms"),
		postgres.WithPassword("lms"),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	fail := func(err error) (*DBHandle, error) {
		_ = pg.Terminate(context.Background())
		cancel()
		return nil, err
	}

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fail(err)
	}
	db, err := sqlx.Open("postgres", uri)
	if err != nil {
		return fail(err)
	}
	db.SetMaxOpenConns(20)
	if err := waitReady(ctx, db); err != nil {
		_ = db.Close()
		return fail(err)
	}
	if err := database.Migrate(db, "."); err != nil {
		_ = db.Close()
		return fail(err)
	}

	return &DBHandle{DB: db, cancel: cancel, stop: pg.Terminate}, nil
}

func waitReady(ctx context.Context, db *sqlx.DB) error {
	dead := time.Now().Add(20 * time.Second)
	for time.Now().Before(dead) {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("db not ready")
}

// Reset empties every table between tests.
func (h *DBHandle) Reset(ctx context.Context) error {
	_, err := h.DB.ExecContext(ctx, `TRUNCATE shop_settings, discount_claims, lesson_scores, lessons, groups, users CASCADE`)
	return err
}
