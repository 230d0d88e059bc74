//go:build integration

package pending_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/pending"
	"github.com/bagtrack/bagtrack-backend/pkg/clock"
	"github.com/bagtrack/bagtrack-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	addr := startRedis(t, ctx)

	client, err := pending.NewRedisClient(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := pending.NewRedisStore(client, "bagtrack:test:pending:")
	clk := clock.System{}

	got, err := store.Get(ctx, "gun-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Put(ctx, confirmation(clk, "gun-1", "I2501230002", time.Minute)))
	got, err = store.Get(ctx, "gun-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "I2501230002", got.Barcode)

	ttl, err := client.TTL(ctx, "bagtrack:test:pending:gun-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	deleted, err := store.Delete(ctx, "gun-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = store.Get(ctx, "gun-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, "up", store.Health(ctx)["status"])
}

func TestRedisStore_Expires(t *testing.T) {
	ctx := context.Background()
	addr := startRedis(t, ctx)

	client, err := pending.NewRedisClient(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := pending.NewRedisStore(client, "bagtrack:test:pending:")
	require.NoError(t, store.Put(ctx, confirmation(clock.System{}, "gun-9", "I2501230009", 1100*time.Millisecond)))

	time.Sleep(1500 * time.Millisecond)
	got, err := store.Get(ctx, "gun-9")
	require.NoError(t, err)
	assert.Nil(t, got)
}
