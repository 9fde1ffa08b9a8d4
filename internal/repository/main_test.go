package repository

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/prperemyshlev/adlink-service/migrations"
	"github.com/prperemyshlev/adlink-service/pkg/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testPostgres *database.Postgres
	testRedis    *database.Redis
)

func TestMain(m *testing.M) {
	flag.Parse()

	var cleanups []func()
	if !testing.Short() {
		cleanups = startContainers()
	}

	code := m.Run()

	for _, cleanup := range cleanups {
		cleanup()
	}
	os.Exit(code)
}

// startContainers starts Postgres and Redis. A failure leaves the matching
// test handle nil so the tests that need it skip instead of failing.
func startContainers() []func() {
	ctx := context.Background()
	var cleanups []func()

	pg, cleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres container unavailable: %v\n", err)
	} else {
		testPostgres = pg
		cleanups = append(cleanups, cleanup)
	}

	rdb, cleanup, err := startRedis(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis container unavailable: %v\n", err)
	} else {
		testRedis = rdb
		cleanups = append(cleanups, cleanup)
	}

	return cleanups
}

func startPostgres(ctx context.Context) (pg *database.Postgres, cleanup func(), err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("adlink_test"),
		postgres.WithUsername("adlink"),
		postgres.WithPassword("adlink"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, nil, err
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	pg, err = database.NewPostgres(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	if err := database.Migrate(pg.DB, migrations.FS); err != nil {
		_ = pg.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	return pg, func() {
		_ = pg.Close()
		_ = container.Terminate(ctx)
	}, nil
}

func startRedis(ctx context.Context) (rdb *database.Redis, cleanup func(), err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, nil, err
	}

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	rdb, err = database.NewRedis(ctx, addr, "", 0)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	return rdb, func() {
		_ = rdb.Close()
		_ = container.Terminate(ctx)
	}, nil
}

func requirePostgres(t *testing.T) *database.Postgres {
	t.Helper()
	if testPostgres == nil {
		t.Skip("postgres container not available")
	}
	for _, table := range []string{"oauth_flow_states", "ad_connections", "link_audit_events"} {
		if _, err := testPostgres.DB.Exec("TRUNCATE " + table); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
	return testPostgres
}

func requireRedis(t *testing.T) *database.Redis {
	t.Helper()
	if testRedis == nil {
		t.Skip("redis container not available")
	}
	if err := testRedis.Client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
	return testRedis
}
