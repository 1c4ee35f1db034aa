// Package testservices starts throwaway Postgres, Redis and Memgraph
// containers for integration tests.
package testservices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Service is a started container and the address tests reach it on.
type Service struct {
	Host string
	Port int
}

func (s *Service) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Postgres starts postgres:15-alpine and returns a lib/pq DSN for it.
func Postgres(t *testing.T) (string, *Service) {
	t.Helper()

	svc := start(t, testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "yeastmine",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "yeastmine",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")

	dsn := fmt.Sprintf("postgres://yeastmine:password@%s:%d/yeastmine?sslmode=disable", svc.Host, svc.Port)
	return dsn, svc
}

func Redis(t *testing.T) *Service {
	t.Helper()

	return start(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}, "6379/tcp")
}

func Memgraph(t *testing.T) *Service {
	t.Helper()

	return start(t, testcontainers.ContainerRequest{
		Image:        "memgraph/memgraph:latest",
		ExposedPorts: []string{"7687/tcp"},
		WaitingFor: wait.ForListeningPort("7687/tcp").
			WithStartupTimeout(60 * time.Second),
	}, "7687/tcp")
}

func start(t *testing.T, req testcontainers.ContainerRequest, port nat.Port) *Service {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start %s", req.Image)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate %s: %v", req.Image, err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	return &Service{Host: host, Port: mapped.Int()}
}
