//go:build integration_pg

// Package pgtest starts a throwaway Postgres for integration tests
package pgtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tariffsync/internal/platform/store"
	"tariffsync/internal/platform/store/schema"

	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Start runs postgres:16-alpine and returns its DSN; the container is removed on cleanup
func Start(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "tariffs",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/tariffs?sslmode=disable", host, mapped.Port())
}

// Open starts a container, opens a Store on it and applies the schema
func Open(t *testing.T) *store.Store {
	t.Helper()
	dsn := Start(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := store.Open(ctx, store.Config{
		AppName: "tariffsync-it",
		PG:      store.PGConfig{Enabled: true, URL: dsn, MaxConns: 4},
	}, store.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	if err := schema.ApplyPG(ctx, s.PG); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return s
}
