package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in Redis, one key per session with a TTL matching its expiry.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix means "session:".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = redisKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

type redisSession struct {
	UserID       int64     `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// CreateSession implements Store.
func (s *RedisStore) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.LastActivity.IsZero() {
		sess.LastActivity = time.Now().UTC()
	}
	return s.write(ctx, sess.TokenHash, redisSession{
		UserID:       sess.UserID,
		ExpiresAt:    sess.ExpiresAt.UTC(),
		LastActivity: sess.LastActivity.UTC(),
	}, true)
}

// GetSession implements Store.
func (s *RedisStore) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &models.Session{
		TokenHash:    tokenHash,
		UserID:       rs.UserID,
		ExpiresAt:    rs.ExpiresAt,
		LastActivity: rs.LastActivity,
	}, nil
}

// RenewSession implements Store.
func (s *RedisStore) RenewSession(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	cur, err := s.GetSession(ctx, tokenHash)
	if err != nil {
		return err
	}
	return s.write(ctx, tokenHash, redisSession{
		UserID:       cur.UserID,
		ExpiresAt:    expiresAt.UTC(),
		LastActivity: time.Now().UTC(),
	}, false)
}

// DeleteSession implements Store.
func (s *RedisStore) DeleteSession(ctx context.Context, tokenHash string) error {
	return s.rdb.Del(ctx, s.key(tokenHash)).Err()
}

func (s *RedisStore) write(ctx context.Context, tokenHash string, rs redisSession, create bool) error {
	ttl := time.Until(rs.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired at %s", rs.ExpiresAt)
	}
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}

	if !create {
		// XX: renewal never resurrects a session deleted in the meantime.
		ok, err := s.rdb.SetXX(ctx, s.key(tokenHash), data, ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrNotFound
		}
		return nil
	}
	return s.rdb.Set(ctx, s.key(tokenHash), data, ttl).Err()
}
