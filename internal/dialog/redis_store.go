package dialog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "dialog:"

// redisStore implements Store on Redis with JSON-encoded sessions, for
// deployments that want dialogs to survive a process restart.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Get implements Store.
func (s *redisStore) Get(ctx context.Context, key string) (*Session, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Put implements Store.
func (s *redisStore) Put(ctx context.Context, key string, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+key, b, s.ttl).Err()
}

// Delete implements Store.
func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}
