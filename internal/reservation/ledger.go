package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when the ledger has no entry for a token.
var ErrTokenNotFound = errors.New("reservation: token not found")

// Ledger records pending reservation tokens.
type Ledger interface {
	Add(ctx context.Context, token *Token) error
	Get(ctx context.Context, tokenID string) (*Token, error)
	Remove(ctx context.Context, tokenID string) error
	// CreatedBefore returns up to limit tokens created before cutoff, oldest
	// first. A limit of zero or less means no limit.
	CreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Token, error)
}

const (
	redisPendingKey     = "booking:reservations:pending"
	redisTokenKeyPrefix = "booking:reservation:"
)

// RedisLedger indexes tokens in a sorted set scored by creation time and keeps
// each token body as a JSON string.
type RedisLedger struct {
	redis *redis.Client
}

var _ Ledger = (*RedisLedger)(nil)

func NewRedisLedger(client *redis.Client) *RedisLedger {
	if client == nil {
		panic("reservation: redis client cannot be nil")
	}
	return &RedisLedger{redis: client}
}

func tokenKey(id string) string {
	return redisTokenKeyPrefix + id
}

func (l *RedisLedger) Add(ctx context.Context, token *Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("reservation: marshal token: %w", err)
	}
	pipe := l.redis.TxPipeline()
	pipe.Set(ctx, tokenKey(token.ID), data, 0)
	pipe.ZAdd(ctx, redisPendingKey, redis.Z{Score: float64(token.CreatedAt.UnixMilli()), Member: token.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reservation: add token: %w", err)
	}
	return nil
}

func (l *RedisLedger) Get(ctx context.Context, tokenID string) (*Token, error) {
	data, err := l.redis.Get(ctx, tokenKey(tokenID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reservation: get token: %w", err)
	}
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("reservation: unmarshal token: %w", err)
	}
	return &token, nil
}

func (l *RedisLedger) Remove(ctx context.Context, tokenID string) error {
	pipe := l.redis.TxPipeline()
	pipe.Del(ctx, tokenKey(tokenID))
	pipe.ZRem(ctx, redisPendingKey, tokenID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reservation: remove token: %w", err)
	}
	return nil
}

func (l *RedisLedger) CreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Token, error) {
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	ids, err := l.redis.ZRangeByScore(ctx, redisPendingKey, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("reservation: list pending tokens: %w", err)
	}

	out := make([]*Token, 0, len(ids))
	for _, id := range ids {
		token, err := l.Get(ctx, id)
		if errors.Is(err, ErrTokenNotFound) {
			// Body gone without the index entry; drop the dangling member.
			if zerr := l.redis.ZRem(ctx, redisPendingKey, id).Err(); zerr != nil {
				return nil, fmt.Errorf("reservation: drop dangling token: %w", zerr)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, token)
	}
	return out, nil
}

// MemoryLedger is a Ledger for local runs and tests.
type MemoryLedger struct {
	mu     sync.Mutex
	tokens map[string]Token
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{tokens: make(map[string]Token)}
}

func (l *MemoryLedger) Add(_ context.Context, token *Token) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[token.ID] = *token
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, tokenID string) (*Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	token, ok := l.tokens[tokenID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &token, nil
}

func (l *MemoryLedger) Remove(_ context.Context, tokenID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tokens, tokenID)
	return nil
}

func (l *MemoryLedger) CreatedBefore(_ context.Context, cutoff time.Time, limit int) ([]*Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*Token
	for _, token := range l.tokens {
		if token.CreatedAt.Before(cutoff) {
			t := token
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports how many tokens are pending.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tokens)
}
