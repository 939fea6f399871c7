package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// Entry is a stored HTTP response
type Entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// ResponseStore keeps rendered responses with tags for bulk invalidation
type ResponseStore interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry *Entry, tags []string, ttl time.Duration) error
	InvalidateTags(ctx context.Context, tags ...string) (int, error)
	Clear(ctx context.Context) (int, error)
}

// RedisStore keeps each entry under its key and the keys of each tag in a
// set, so a tag can be invalidated without scanning the keyspace.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) tagKey(tag string) string {
	return s.prefix + "tag:" + tag
}

func (s *RedisStore) tagIndexKey() string {
	return s.prefix + "tags"
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// unreadable entries are dropped and treated as a miss
		s.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, entry *Entry, tags []string, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, raw, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, s.tagKey(tag), key)
			if ttl > 0 {
				pipe.Expire(ctx, s.tagKey(tag), ttl)
			}
			pipe.SAdd(ctx, s.tagIndexKey(), tag)
		}
		return nil
	})
	return err
}

// InvalidateTags deletes every entry carrying any of tags and returns the
// number of entries removed.
func (s *RedisStore) InvalidateTags(ctx context.Context, tags ...string) (int, error) {
	removed := 0
	for _, tag := range tags {
		keys, err := s.client.SMembers(ctx, s.tagKey(tag)).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		if err := s.client.Del(ctx, s.tagKey(tag)).Err(); err != nil {
			return removed, err
		}
		s.client.SRem(ctx, s.tagIndexKey(), tag)
	}
	return removed, nil
}

// Clear removes all entries and tag sets
func (s *RedisStore) Clear(ctx context.Context) (int, error) {
	tags, err := s.client.SMembers(ctx, s.tagIndexKey()).Result()
	if err != nil {
		return 0, err
	}
	removed, err := s.InvalidateTags(ctx, tags...)
	if err != nil {
		return removed, err
	}
	return removed, s.client.Del(ctx, s.tagIndexKey()).Err()
}
