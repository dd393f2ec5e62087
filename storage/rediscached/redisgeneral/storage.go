package redisgeneral

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-redis/redis/v8"
	"time"
)

// Versioned entries are stored as a hash {"value": json, "vers": version}.
// A write never replaces an entry holding a newer version or a tombstone.

type WithVersion interface {
	GetVersion() int
}

type Storage[T WithVersion] struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStorage[T WithVersion](client *redis.Client, ttl time.Duration) *Storage[T] {
	if client == nil {
		panic("nil redis client")
	}
	return &Storage[T]{
		client: client,
		ttl:    ttl,
	}
}

func (s *Storage[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	marshalled, err := s.client.HGet(ctx, key, "value").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("redis error: %w", err)
	}

	result, err := s.unmarshalJSON([]byte(marshalled))
	if err != nil {
		return zero, false, err
	}
	return result, true, nil
}

// Bury replaces key with a tombstone for one ttl. Writes to a buried key are refused.
func (s *Storage[T]) Bury(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "gone", 1)
		pipe.PExpire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis failed bury: %w", err)
	}
	return nil
}

// Generation reads the counter guarding writes made through SetWithGeneration. A missing counter is 0.
func (s *Storage[T]) Generation(ctx context.Context, genKey string) (int, error) {
	gen, err := s.client.Get(ctx, genKey).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return gen, nil
}

// Invalidate drops key and bumps its generation, so values read before the call can no longer be stored.
func (s *Storage[T]) Invalidate(ctx context.Context, key, genKey string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.PExpire(ctx, genKey, s.generationTTL())
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis failed invalidate: %w", err)
	}
	return nil
}

//go:embed set_fresh.lua
var setWithFreshnessSource string
var setWithFreshnessScript = redis.NewScript(setWithFreshnessSource)

// SetWithFreshness stores value unless the entry already holds a newer version,
// and returns whichever value the entry holds afterwards. A refused write returns value itself.
func (s *Storage[T]) SetWithFreshness(ctx context.Context, key string, value T) (T, error) {
	return s.set(ctx, []string{key}, value)
}

// SetWithGeneration is SetWithFreshness for values versioned by the generation counter at genKey.
// Values older than the current generation are not stored.
func (s *Storage[T]) SetWithGeneration(ctx context.Context, key, genKey string, value T) (T, error) {
	return s.set(ctx, []string{key, genKey}, value)
}

func (s *Storage[T]) set(ctx context.Context, keys []string, value T) (T, error) {
	var zero T
	marshalled, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("marshalling failed: %w", err)
	}

	argv := []interface{}{marshalled, value.GetVersion(), s.ttl.Milliseconds(), s.generationTTL().Milliseconds()}
	returned, err := setWithFreshnessScript.Run(ctx, s.client, keys, argv...).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, nil
		}
		return zero, fmt.Errorf("redis error: %w", err)
	}
	return s.unmarshalJSON([]byte(returned))
}

// generation counters outlive the entries they guard
func (s *Storage[T]) generationTTL() time.Duration {
	return 2 * s.ttl
}

func (s *Storage[T]) unmarshalJSON(valueJSON []byte) (T, error) {
	var result T
	if err := json.Unmarshal(valueJSON, &result); err != nil {
		return result, fmt.Errorf("incorrect json: %w", err)
	}
	return result, nil
}
