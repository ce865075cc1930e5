package cache

import (
	"context"
	"testing"
	"time"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newMemoryService(t *testing.T) Service {
	t.Helper()
	cfg := &config.Config{Cache: config.CacheConfig{Enabled: true, Type: "memory"}}
	svc, err := NewService(cfg, logrus.New())
	require.NoError(t, err)
	return svc
}

func TestMemoryCacheRoundtrip(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	_, found := svc.Get(ctx, "missing")
	require.False(t, found)

	require.NoError(t, svc.Set(ctx, "k", "v", time.Hour))
	val, found := svc.Get(ctx, "k")
	require.True(t, found)
	require.Equal(t, "v", val)

	require.NoError(t, svc.Delete(ctx, "k"))
	_, found = svc.Get(ctx, "k")
	require.False(t, found)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "short", "v", 20*time.Millisecond))
	time.Sleep(50 * time.Millisecond)
	_, found := svc.Get(ctx, "short")
	require.False(t, found)
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "pinned", "v", 0))
	time.Sleep(20 * time.Millisecond)
	val, found := svc.Get(ctx, "pinned")
	require.True(t, found)
	require.Equal(t, "v", val)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	cfg := &config.Config{Cache: config.CacheConfig{Enabled: false}}
	svc, err := NewService(cfg, logrus.New())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "k", "v", time.Hour))
	_, found := svc.Get(ctx, "k")
	require.False(t, found)
	require.NoError(t, svc.Delete(ctx, "k"))
}

func TestUnsupportedCacheType(t *testing.T) {
	cfg := &config.Config{Cache: config.CacheConfig{Enabled: true, Type: "memcached"}}
	_, err := NewService(cfg, logrus.New())
	require.Error(t, err)
}

func TestKeyFormats(t *testing.T) {
	require.Equal(t, "user:o1:chatbot:b1:context", ContextKey("o1", "b1"))
	require.Equal(t, "user:o1:chatbot:b1", ChatbotKey("o1", "b1"))
	require.Equal(t, "user:o1:chatbots", ListingKey("o1"))
	require.Equal(t, "sessions:o1:b1", SessionListKey("o1", "b1"))
	require.Equal(t, "session:s1", SessionKey("s1"))
}
