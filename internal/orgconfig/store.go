package orgconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON document per org.
type RedisStore struct {
	redis *redis.Client
}

var _ Provider = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("orgconfig: redis client cannot be nil")
	}
	return &RedisStore{redis: client}
}

func (s *RedisStore) key(orgID string) string {
	return fmt.Sprintf("booking:config:%s", orgID)
}

// Get decodes and validates the stored configuration.
func (s *RedisStore) Get(ctx context.Context, orgID string) (*BusinessConfiguration, error) {
	data, err := s.redis.Get(ctx, s.key(orgID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orgconfig: get config: %w", err)
	}

	var cfg BusinessConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("orgconfig: unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orgconfig: stored config for %s is invalid: %w", orgID, err)
	}
	return &cfg, nil
}

// Set validates and saves cfg.
func (s *RedisStore) Set(ctx context.Context, cfg *BusinessConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("orgconfig: marshal config: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(cfg.OrgID), data, 0).Err(); err != nil {
		return fmt.Errorf("orgconfig: set config: %w", err)
	}
	return nil
}

// MemoryStore is a Provider for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]BusinessConfiguration
}

var _ Provider = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]BusinessConfiguration)}
}

func (m *MemoryStore) Get(_ context.Context, orgID string) (*BusinessConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (m *MemoryStore) Set(_ context.Context, cfg *BusinessConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.OrgID] = *cfg
	return nil
}
