package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Service defines the key-value cache the pipeline and listing paths use.
// Values are serialized strings; a zero TTL means the backend default.
type Service interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ContextKey is the cache key for a chatbot's raw context data, keyed
// strictly by the owner/chatbot pair so a hit can never serve another
// chatbot's context.
func ContextKey(ownerID, chatbotID string) string {
	return fmt.Sprintf("user:%s:chatbot:%s:context", ownerID, chatbotID)
}

// ChatbotKey is the cache key for a single chatbot record
func ChatbotKey(ownerID, chatbotID string) string {
	return fmt.Sprintf("user:%s:chatbot:%s", ownerID, chatbotID)
}

// ListingKey is the cache key for an owner's chatbot listing
func ListingKey(ownerID string) string {
	return fmt.Sprintf("user:%s:chatbots", ownerID)
}

// SessionListKey is the cache key for a chatbot's session list
func SessionListKey(ownerID, chatbotID string) string {
	return fmt.Sprintf("sessions:%s:%s", ownerID, chatbotID)
}

// SessionKey is the cache key for a single session's details
func SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// NewService creates the configured cache backend. A disabled cache returns
// a no-op implementation so callers never branch on configuration.
func NewService(cfg *config.Config, logger *logrus.Logger) (Service, error) {
	if !cfg.Cache.Enabled {
		return &noopCache{}, nil
	}

	switch cfg.Cache.Type {
	case "redis":
		return newRedisCache(cfg, logger)
	case "memory":
		return newMemoryCache(logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Cache.Type)
	}
}

type noopCache struct{}

func (n *noopCache) Get(ctx context.Context, key string) (string, bool) { return "", false }
func (n *noopCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}
func (n *noopCache) Delete(ctx context.Context, key string) error { return nil }

// RedisCache backs the cache service with Redis
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

func newRedisCache(cfg *config.Config, logger *logrus.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, logger: logger}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Redis get failed")
		return "", false
	}
	return val, true
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// MemoryCache backs the cache service with an in-process store
type MemoryCache struct {
	cache  *gocache.Cache
	logger *logrus.Logger
}

func newMemoryCache(logger *logrus.Logger) *MemoryCache {
	return &MemoryCache{
		cache:  gocache.New(gocache.NoExpiration, 10*time.Minute),
		logger: logger,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) (string, bool) {
	if val, found := m.cache.Get(key); found {
		return val.(string), true
	}
	return "", false
}

func (m *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		m.cache.Set(key, value, gocache.NoExpiration)
		return nil
	}
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}
