package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Krisp140/sebi/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Store = (*RedisStore)(nil)

// RedisStore хранит сессии в Redis как JSON. Флаг занятости сессии хранится
// отдельным ключом, который выставляется через SETNX с TTL.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewRedisStore создает хранилище. lockTTL ограничивает жизнь флага занятости,
// если процесс упал, не освободив сессию.
func NewRedisStore(client *redis.Client, ttl, lockTTL time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		ttl:     ttl,
		lockTTL: lockTTL,
		logger:  logger.Named("RedisSessionStore"),
	}
}

func sessionKey(id string) string { return fmt.Sprintf("comic_session:%s", id) }
func lockKey(id string) string    { return fmt.Sprintf("comic_session_lock:%s", id) }

// releaseScript удаляет ключ блокировки, только если в нем токен вызывающего.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisStore) Acquire(ctx context.Context, id string) (string, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(id), token, r.lockTTL).Result()
	if err != nil {
		r.logger.Error("Failed to acquire session lock", zap.String("session_id", id), zap.Error(err))
		return "", fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !ok {
		return "", models.ErrGenerationInProgress
	}
	return token, nil
}

func (r *RedisStore) Release(ctx context.Context, id, token string) error {
	deleted, err := releaseScript.Run(ctx, r.client, []string{lockKey(id)}, token).Int()
	if err != nil {
		r.logger.Error("Failed to release session lock", zap.String("session_id", id), zap.Error(err))
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	if deleted == 0 {
		r.logger.Warn("Session lock expired or taken by another run, not released", zap.String("session_id", id))
	}
	return nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(s.ID), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save session", zap.String("session_id", s.ID), zap.Error(err))
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		r.logger.Error("Failed to load session", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if s.Panels == nil {
		s.Panels = []Panel{}
	}
	return &s, nil
}
