package dialog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persistence errors.
var (
	// ErrInvalidStoreType is returned by NewStore for unknown driver names.
	ErrInvalidStoreType = errors.New("invalid session store type")
	// ErrInvalidConfig is returned when a driver is missing required options.
	ErrInvalidConfig = errors.New("invalid session store config")
)

// Store persists in-flight dialog sessions keyed by (chat, document type).
// Get returns (nil, nil) when no session exists. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (*Session, error)
	Put(ctx context.Context, key string, s *Session) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// StoreType names a session store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
}

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

// WithRedisClient supplies the client used by the redis driver.
func WithRedisClient(c *redis.Client) StoreOption {
	return func(cfg *storeConfig) { cfg.redisClient = c }
}

// WithRedisTTL overrides the redis key TTL (default 24h).
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(cfg *storeConfig) { cfg.redisTTL = ttl }
}

// NewStore creates a session store for the given driver type.
// Supports "memory" and "redis"; redis requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return &memoryStore{sessions: make(map[string]*Session)}, nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := config.redisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return &redisStore{client: config.redisClient, ttl: ttl}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// memoryStore implements Store with an in-process map. This is the default
// driver; sessions do not survive a restart, which matches the dialog
// abandonment semantics (the next message simply starts fresh).
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Get implements Store.
func (s *memoryStore) Get(ctx context.Context, key string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	cp := *sess
	cp.Fields = make(map[string]string, len(sess.Fields))
	for k, v := range sess.Fields {
		cp.Fields[k] = v
	}
	return &cp, nil
}

// Put implements Store.
func (s *memoryStore) Put(ctx context.Context, key string, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sess
	return nil
}

// Delete implements Store.
func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	return nil
}
