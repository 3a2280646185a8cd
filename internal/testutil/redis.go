package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const defaultRedisTestAddr = "localhost:6380"

// GetRedisTestAddr returns the redis test address, checking environment variable first.
func GetRedisTestAddr() string {
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return defaultRedisTestAddr
}

// SetupRedis returns a client connected to the test redis server, skipping the test when
// the server is unreachable or when running with -short. The client is closed on cleanup.
func SetupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	client := redis.NewClient(&redis.Options{Addr: GetRedisTestAddr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available: %v", err)
	}

	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})
	return client
}
