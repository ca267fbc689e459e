package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/pkg/logger"
	"storefront/pkg/redis"
)

const maxUpdateRetries = 3

// RedisStore keeps each node as a JSON string and indexes child names in a set
// per parent so collections can be listed without SCAN.
type RedisStore struct {
	client *redis.Client
	keys   *redis.KeyBuilder
	log    *logger.Logger
}

// NewRedisStore creates a store on top of the Redis wrapper
func NewRedisStore(client *redis.Client, log *logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		keys:   client.KeyBuilder,
		log:    log.Named("store.redis"),
	}
}

func (s *RedisStore) Read(ctx context.Context, path string) (json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, s.keys.KeyNode(path))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return json.RawMessage(val), nil
}

func (s *RedisStore) Write(ctx context.Context, path string, value interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.keys.KeyNode(path), data, 0)
		s.index(ctx, pipe, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	key := s.keys.KeyNode(path)

	txf := func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		merged, err := mergeFields(current, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, merged, 0)
			s.index(ctx, pipe, path)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.ErrTxConflict) {
			break
		}
		s.log.Debug("update conflict, retrying", zap.String("path", path), zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	keys, err := s.subtreeKeys(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	parent, name := split(path)
	err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, s.keys.KeyChildren(parent), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, path string) (bool, error) {
	path, err := CleanPath(path)
	if err != nil {
		return false, err
	}

	ok, err := s.client.Exists(ctx, s.keys.KeyNode(path))
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	return ok, nil
}

func (s *RedisStore) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	names, err := s.client.SMembers(ctx, s.keys.KeyChildren(path))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	sort.Strings(names)

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = s.keys.KeyNode(path + "/" + name)
	}

	vals, err := s.client.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}

	children := make(map[string]json.RawMessage, len(names))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Intermediate node without a value of its own
			continue
		}
		children[names[i]] = json.RawMessage(str)
	}
	return children, nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// index registers path and all of its ancestors in their parents' child sets
func (s *RedisStore) index(ctx context.Context, pipe goredis.Pipeliner, path string) {
	for path != "" {
		parent, name := split(path)
		pipe.SAdd(ctx, s.keys.KeyChildren(parent), name)
		path = parent
	}
}

func (s *RedisStore) subtreeKeys(ctx context.Context, path string) ([]string, error) {
	keys := []string{s.keys.KeyNode(path), s.keys.KeyChildren(path)}

	names, err := s.client.SMembers(ctx, s.keys.KeyChildren(path))
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		sub, err := s.subtreeKeys(ctx, path+"/"+name)
		if err != nil {
			return nil, err
		}
		keys = append(keys, sub...)
	}
	return keys, nil
}
