//go:build integration

package lock

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.PortEndpoint(ctx, "6379/tcp", "redis")
	require.NoError(t, err)
	return endpoint
}

func TestRedisLocker_Integration(t *testing.T) {
	client, err := NewRedisClient(startRedis(t))
	require.NoError(t, err)
	defer client.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewRedisLocker(client, "test", Options{TTL: time.Second, Wait: 50 * time.Millisecond, RetryInterval: 10 * time.Millisecond}, logger)
	ctx := context.Background()
	require.NoError(t, l.Ping(ctx))

	unlock, err := l.Lock(ctx, "order:1")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "order:1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	exists, err := client.Exists(ctx, l.Key("order:1")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	t.Run("expired lock is not released by its old holder", func(t *testing.T) {
		stale, err := l.Lock(ctx, "order:2")
		require.NoError(t, err)
		require.NoError(t, client.Set(ctx, l.Key("order:2"), "someone-else", time.Minute).Err())

		stale()
		val, err := client.Get(ctx, l.Key("order:2")).Result()
		require.NoError(t, err)
		assert.Equal(t, "someone-else", val)
	})
}
