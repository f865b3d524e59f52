package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aalan294/campus-life-admin/pkg/engine"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps collections in Redis. Each collection uses three keys:
//
//	<prefix>:<name>:docs   hash  id -> JSON document
//	<prefix>:<name>:order  zset  id scored by insertion sequence
//	<prefix>:<name>:seq    string counter
//
// and <prefix>:collections is the set of known collection names.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	newID  func() string
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   -1, // the entity workflow never retries
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStoreWithClient(rdb, opts.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "campus"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, newID: uuid.NewString}
}

func (s *RedisStore) docsKey(name string) string  { return s.prefix + ":" + name + ":docs" }
func (s *RedisStore) orderKey(name string) string { return s.prefix + ":" + name + ":order" }
func (s *RedisStore) seqKey(name string) string   { return s.prefix + ":" + name + ":seq" }
func (s *RedisStore) setKey() string              { return s.prefix + ":collections" }

func (s *RedisStore) ListAll(ctx context.Context, collection string) ([]schema.Entry, error) {
	if err := engine.ValidCollection(collection); err != nil {
		return nil, err
	}
	ids, err := s.rdb.ZRange(ctx, s.orderKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	entries := make([]schema.Entry, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}

	raw, err := s.rdb.HMGet(ctx, s.docsKey(collection), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	for i, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue // removed between ZRANGE and HMGET
		}
		var doc schema.Document
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, ids[i], err)
		}
		entries = append(entries, schema.Entry{ID: ids[i], Fields: doc})
	}
	return entries, nil
}

func (s *RedisStore) Insert(ctx context.Context, collection string, doc schema.Document) (string, error) {
	id := s.newID()
	if err := s.write(ctx, collection, id, doc, true); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Put(ctx context.Context, collection, id string, doc schema.Document) error {
	if id == "" {
		return fmt.Errorf("put into %s: empty id", collection)
	}
	return s.write(ctx, collection, id, doc, false)
}

// write stores doc under id, appending id to the order when it is new.
func (s *RedisStore) write(ctx context.Context, collection, id string, doc schema.Document, fresh bool) error {
	if err := engine.ValidCollection(collection); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if !fresh {
		exists, err := s.rdb.HExists(ctx, s.docsKey(collection), id).Result()
		if err != nil {
			return fmt.Errorf("put %s/%s: %w", collection, id, err)
		}
		fresh = !exists
	}

	var seq int64
	if fresh {
		if seq, err = s.rdb.Incr(ctx, s.seqKey(collection)).Result(); err != nil {
			return fmt.Errorf("write %s/%s: %w", collection, id, err)
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docsKey(collection), id, body)
		if fresh {
			pipe.ZAdd(ctx, s.orderKey(collection), redis.Z{Score: float64(seq), Member: id})
			pipe.SAdd(ctx, s.setKey(), collection)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *RedisStore) Patch(ctx context.Context, collection, id string, partial schema.Document) error {
	if err := engine.ValidCollection(collection); err != nil {
		return err
	}
	key := s.docsKey(collection)

	// WATCH makes the read-merge-write a single transaction; a concurrent
	// writer makes EXEC fail with TxFailedErr, which is returned as is.
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("patch %s/%s: %w", collection, id, ErrNotFound)
		}
		if err != nil {
			return err
		}

		var doc schema.Document
		if err := json.Unmarshal([]byte(current), &doc); err != nil {
			return fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		body, err := json.Marshal(doc.Merge(partial))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, body)
			return nil
		})
		return err
	}, key)
	return err
}

func (s *RedisStore) Remove(ctx context.Context, collection, id string) error {
	if err := engine.ValidCollection(collection); err != nil {
		return err
	}
	n, err := s.rdb.HDel(ctx, s.docsKey(collection), id).Result()
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("remove %s/%s: %w", collection, id, ErrNotFound)
	}
	if err := s.rdb.ZRem(ctx, s.orderKey(collection), id).Err(); err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *RedisStore) Collections(ctx context.Context) ([]string, error) {
	names, err := s.rdb.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, name := range names {
		n, err := s.rdb.ZCard(ctx, s.orderKey(name)).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
