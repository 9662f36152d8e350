package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes
const (
	KeyPrefixJob = "batyr:job:"
)

// Getter is satisfied by *redis.Client, *redis.Tx and pipelines.
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Setter is satisfied by *redis.Client, *redis.Tx and pipelines.
type Setter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// GetJSON retrieves a value from Redis and unmarshals it into dest.
// A missing key is reported as redis.Nil.
func GetJSON(ctx context.Context, rdb Getter, key string, dest interface{}) error {
	data, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON stores a value in Redis with a TTL. Inside a pipeline the
// returned error only covers encoding.
func SetJSON(ctx context.Context, rdb Setter, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, data, ttl).Err()
}
