//go:build integration

package cache

import (
	"context"
	"encoding/json"
	"fmt"
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
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedisCache(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}

	c, err := NewRedisCache(RedisConfig{URL: url, Prefix: "test:", TTL: time.Minute, Clock: clock.Now})
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get(ctx, "workout:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "workout:1", json.RawMessage(`{"title":"Core"}`)))

	v, ok, err := c.Get(ctx, "workout:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"title":"Core"}`, string(v))

	clock.Advance(time.Minute)
	_, ok, err = c.Get(ctx, "workout:1")
	require.NoError(t, err)
	assert.False(t, ok)
}
