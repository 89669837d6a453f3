package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists each storage location as a redis hash: the hash key
// is the prefixed location name, hash fields are document ids, and hash
// values are JSON-encoded wire documents.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix namespaces all location keys
	Prefix string
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "quill:",
	}
}

// NewRedisStore creates a Redis-backed store and verifies the connection
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, prefix: config.Prefix}, nil
}

// NewRedisStoreWithClient creates a store with an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(location string) string {
	return s.prefix + location
}

// ListLocations implements Store
func (s *RedisStore) ListLocations(ctx context.Context) ([]string, error) {
	keys, err := s.client.Keys(ctx, s.prefix+"*").Result()
	if err != nil {
		return nil, err
	}
	locations := make([]string, 0, len(keys))
	for _, k := range keys {
		locations = append(locations, strings.TrimPrefix(k, s.prefix))
	}
	sort.Strings(locations)
	return locations, nil
}

// Read implements Store
func (s *RedisStore) Read(ctx context.Context, location string, filter Filter) (map[string]any, error) {
	// Fast path: lookup by id alone
	if id, ok := filter[IDKey].(string); ok && len(filter) == 1 {
		body, err := s.client.HGet(ctx, s.key(location), id).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return unmarshalDoc(body)
	}

	all, err := s.client.HGetAll(ctx, s.key(location)).Result()
	if err != nil {
		return nil, err
	}

	// Deterministic scan order
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		doc, err := unmarshalDoc(all[id])
		if err != nil {
			return nil, err
		}
		if matches(doc, filter) {
			return doc, nil
		}
	}
	return nil, ErrNotFound
}

// Write implements Store
func (s *RedisStore) Write(ctx context.Context, location string, doc map[string]any) error {
	id, err := documentID(doc)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: marshal document %s: %w", id, err)
	}
	return s.client.HSet(ctx, s.key(location), id, body).Err()
}

// Delete implements Store
func (s *RedisStore) Delete(ctx context.Context, location string, id string) error {
	n, err := s.client.HDel(ctx, s.key(location), id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func unmarshalDoc(body string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("docstore: unmarshal document: %w", err)
	}
	return doc, nil
}
