package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"atpkiosk/models"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "kioskSession:"

// MemoryCache holds sessions for the life of the process.
type MemoryCache struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{sessions: make(map[string]models.Session)}
}

func (m *MemoryCache) Get(_ context.Context, sessionID string) (*models.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (m *MemoryCache) Put(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

// RedisCache stores sessions in Redis so several kiosk processes on one
// host share a scan. Entries live until the session expires.
type RedisCache struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, now: time.Now}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// ttlFor is the time left until expiry; zero means do not store.
func ttlFor(s models.Session, now time.Time) time.Duration {
	ttl := s.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func (r *RedisCache) Get(ctx context.Context, sessionID string) (*models.Session, bool, error) {
	data, err := r.client.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session from cache: %w", err)
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached session: %w", err)
	}
	return &s, true, nil
}

func (r *RedisCache) Put(ctx context.Context, s models.Session) error {
	ttl := ttlFor(s, r.now())
	if ttl == 0 {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(s.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}
	return nil
}
