//go:build integration

// Package pgtest starts a throwaway Postgres for integration tests and applies
// the embedded migrations to it.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/database"
	"github.com/Additional-Code/buildmart/internal/migration"
)

// Connections returns migrated connections. TEST_DB_DSN points the helper at an
// existing database instead of starting a container.
func Connections(t *testing.T) *database.Connections {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = startContainer(t, ctx)
	}

	cfg := config.Config{Database: config.Database{
		Driver:       "postgres",
		WriterDSN:    dsn,
		ReaderDSN:    dsn,
		MaxOpenConns: 10,
		MaxIdleConns: 10,
	}}
	logger := zaptest.NewLogger(t)

	lc := fxtest.NewLifecycle(t)
	conns, err := database.New(lc, cfg, logger)
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)

	m, err := migration.New(cfg, conns, logger)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))

	_, err = conns.Writer.ExecContext(ctx, "TRUNCATE applications, tenders, companies")
	require.NoError(t, err)
	return conns
}

func startContainer(t *testing.T, ctx context.Context) string {
	t.Helper()
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_USER":     "test",
				"POSTGRES_DB":       "buildmart",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://test:test@%s:%s/buildmart?sslmode=disable", host, port.Port())
}
