package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/models"
)

var (
	// ErrSessionNotFound is returned when a token has no live session
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when a stored session is past its expiry
	ErrSessionExpired = errors.New("session expired")
)

// RedisStore keeps admin sessions and request throttling counters
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis at host:port
func NewRedisStore(host, port string) (*RedisStore, error) {
	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logrus.Infof("Connected to Redis at %s", addr)
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Ping checks that Redis answers
func (s *RedisStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return s.client.Ping(ctx).Err()
}

// hashToken creates a SHA256 hash of the access token for use as Redis key
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func sessionKey(token string) string {
	return "admin:session:" + hashToken(token)
}

func tenantSessionsKey(tenantID uuid.UUID) string {
	return "admin:sessions:" + tenantID.String()
}

// CreateAdminSession stores a session under the hash of the token
func (s *RedisStore) CreateAdminSession(ctx context.Context, token string, profile models.AdminProfile, ttl time.Duration) (*models.AdminSession, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	now := time.Now()
	session := &models.AdminSession{
		SessionID: uuid.NewString(),
		Profile:   profile,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	key := sessionKey(token)
	indexKey := tenantSessionsKey(profile.TenantID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.SAdd(ctx, indexKey, key)
	pipe.Expire(ctx, indexKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return session, nil
}

// GetAdminSession loads the session for a token
func (s *RedisStore) GetAdminSession(ctx context.Context, token string) (*models.AdminSession, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := s.client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session models.AdminSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if time.Now().After(session.ExpiresAt) {
		s.client.Del(ctx, sessionKey(token))
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// RevokeAdminSession removes the session of one token
func (s *RedisStore) RevokeAdminSession(ctx context.Context, token string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeTenantSessions removes every session of a tenant
func (s *RedisStore) RevokeTenantSessions(ctx context.Context, tenantID uuid.UUID) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	indexKey := tenantSessionsKey(tenantID)
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	keys = append(keys, indexKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// Allow counts a hit against key in a fixed window and reports whether the
// caller is still under limit. Redis failures let the request through.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if s == nil || s.client == nil {
		return true, 0, nil
	}

	key = "throttle:" + key
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, fmt.Errorf("failed to update throttle counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return true, 0, fmt.Errorf("failed to set throttle window: %w", err)
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return false, ttl, nil
}
