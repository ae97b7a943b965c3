package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/loginapp/internal/common"
)

// RedisStore keeps sessions in Redis under a key prefix, with expiry handled
// by the server-side TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

func (s *RedisStore) Create(ctx context.Context, username string) (string, error) {
	session := &Session{Username: username, CreatedAt: time.Now().UTC()}

	payload, err := json.Marshal(session)
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	if err := s.client.Set(ctx, s.key(token), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return token, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	payload, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	session := &Session{}
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, fmt.Errorf("corrupt session payload: %w", err)
	}

	return session, nil
}

func (s *RedisStore) Destroy(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}
