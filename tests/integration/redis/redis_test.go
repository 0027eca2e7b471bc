package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bigshort-one/bigshort/internal/cache"
	"github.com/bigshort-one/bigshort/internal/pool"
)

func setupRedis(t testing.TB) *goredis.Client {
	t.Helper()

	ctx := context.Background()

	redisCont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExposedPort(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := redisCont.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate redis container: %v", err)
		}
	})

	redisHost, err := redisCont.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	redisPort, err := redisCont.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Fatalf("Failed to close redis client: %v", err)
		}
	})

	return client
}

func TestPool_Allocate(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()
	client := setupRedis(t)
	codePool := pool.New(client)

	t.Run("empty pool is exhausted", func(t *testing.T) {
		code, err := codePool.Allocate(ctx)

		assert.Error(t, err)
		assert.ErrorIs(t, err, pool.ErrExhausted)
		assert.Empty(t, code)
	})

	t.Run("concurrent allocations never overlap", func(t *testing.T) {
		const n = 100

		codes := make([]string, n)
		for i := range codes {
			codes[i] = fmt.Sprintf("code%04d", i)
		}

		added, err := codePool.Add(ctx, codes...)
		require.NoError(t, err)
		require.Equal(t, int64(n), added)

		results := make(chan string, n)

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				code, err := codePool.Allocate(ctx)
				if assert.NoError(t, err) {
					results <- code
				}
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[string]bool, n)
		for code := range results {
			assert.False(t, seen[code], "code %q allocated twice", code)
			seen[code] = true
		}
		assert.Len(t, seen, n)

		size, err := codePool.Size(ctx)
		assert.NoError(t, err)
		assert.Zero(t, size)

		_, err = codePool.Allocate(ctx)
		assert.ErrorIs(t, err, pool.ErrExhausted)
	})
}

func TestPool_RegisterCustom(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()
	client := setupRedis(t)
	codePool := pool.New(client)

	t.Run("success", func(t *testing.T) {
		err := codePool.RegisterCustom(ctx, "my-custom-code")

		assert.NoError(t, err)
	})

	t.Run("conflict with registered code", func(t *testing.T) {
		err := codePool.RegisterCustom(ctx, "my-custom-code")

		assert.Error(t, err)
		assert.ErrorIs(t, err, pool.ErrCodeTaken)
	})

	t.Run("conflict with allocated code", func(t *testing.T) {
		_, err := codePool.Add(ctx, "consumed1")
		require.NoError(t, err)
		code, err := codePool.Allocate(ctx)
		require.NoError(t, err)
		require.Equal(t, "consumed1", code)

		err = codePool.RegisterCustom(ctx, "consumed1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, pool.ErrCodeTaken)
	})

	t.Run("conflict with unconsumed pre-generated code", func(t *testing.T) {
		_, err := codePool.Add(ctx, "pregen01")
		require.NoError(t, err)

		err = codePool.RegisterCustom(ctx, "pregen01")

		assert.Error(t, err)
		assert.ErrorIs(t, err, pool.ErrCodeTaken)
	})
}

func TestPool_Add(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()
	client := setupRedis(t)
	codePool := pool.New(client)

	t.Run("skips active codes", func(t *testing.T) {
		require.NoError(t, codePool.RegisterCustom(ctx, "already-active"))

		added, err := codePool.Add(ctx, "already-active", "fresh001", "fresh002")

		assert.NoError(t, err)
		assert.Equal(t, int64(2), added)

		size, err := codePool.Size(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(2), size)
	})

	t.Run("no codes", func(t *testing.T) {
		added, err := codePool.Add(ctx)

		assert.NoError(t, err)
		assert.Zero(t, added)
	})
}

func TestCache(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()
	client := setupRedis(t)
	resolutionCache := cache.New(client, time.Hour)

	t.Run("miss on unknown code", func(t *testing.T) {
		target, err := resolutionCache.Lookup(ctx, "abc1234")

		assert.Error(t, err)
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
		assert.Empty(t, target)
	})

	t.Run("seeded entries have no expiry", func(t *testing.T) {
		require.NoError(t, resolutionCache.Seed(ctx, "abc1234", "https://example.com"))

		target, err := resolutionCache.Lookup(ctx, "abc1234")
		assert.NoError(t, err)
		assert.Equal(t, "https://example.com", target)

		ttl, err := client.TTL(ctx, "url:abc1234").Result()
		assert.NoError(t, err)
		assert.Equal(t, time.Duration(-1), ttl)
	})

	t.Run("promoted entries carry a ttl", func(t *testing.T) {
		require.NoError(t, resolutionCache.Promote(ctx, "def5678", "https://example.org"))

		target, err := resolutionCache.Lookup(ctx, "def5678")
		assert.NoError(t, err)
		assert.Equal(t, "https://example.org", target)

		ttl, err := client.TTL(ctx, "url:def5678").Result()
		assert.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Hour)
	})

	t.Run("evicted entries miss", func(t *testing.T) {
		require.NoError(t, resolutionCache.Seed(ctx, "ghi9012", "https://example.net"))
		require.NoError(t, resolutionCache.Evict(ctx, "ghi9012"))

		target, err := resolutionCache.Lookup(ctx, "ghi9012")

		assert.Error(t, err)
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
		assert.Empty(t, target)
	})
}
