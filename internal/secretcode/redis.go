package secretcode

import (
	"context"
	"errors"
	"fmt"

	"number_baseball/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultAvailableKey = "secretcode:available"
	defaultAllocatedKey = "secretcode:allocated"
)

// SPOP picks uniformly at random; moving the code into the allocated set in
// the same script keeps refill from resurrecting it.
var popScript = redis.NewScript(`
local code = redis.call('SPOP', KEYS[1])
if not code then
	return false
end
redis.call('SADD', KEYS[2], code)
return code
`)

var refillScript = redis.NewScript(`
local added = 0
for code = tonumber(ARGV[1]), tonumber(ARGV[2]) do
	if redis.call('SISMEMBER', KEYS[2], code) == 0 then
		added = added + redis.call('SADD', KEYS[1], code)
	end
end
return added
`)

// RedisStore keeps both code sets in Redis, so allocations survive a
// restart of the server.
type RedisStore struct {
	rdb          *redis.Client
	availableKey string
	allocatedKey string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return NewRedisStoreWithPrefix(rdb, "")
}

// NewRedisStoreWithPrefix namespaces the keys, mostly for tests sharing a
// Redis instance.
func NewRedisStoreWithPrefix(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		rdb:          rdb,
		availableKey: prefix + defaultAvailableKey,
		allocatedKey: prefix + defaultAllocatedKey,
	}
}

func (r *RedisStore) PopRandom(ctx context.Context) (int, error) {
	code, err := popScript.Run(ctx, r.rdb, []string{r.availableKey, r.allocatedKey}).Int()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrExhausted
	}
	if err != nil {
		return 0, fmt.Errorf("pop secret code: %w", err)
	}
	return code, nil
}

func (r *RedisStore) Refill(ctx context.Context, min, max int) (int, error) {
	n, err := refillScript.Run(ctx, r.rdb, []string{r.availableKey, r.allocatedKey}, min, max).Int()
	if err != nil {
		return 0, fmt.Errorf("refill secret codes: %w", err)
	}
	return n, nil
}

func (r *RedisStore) Release(ctx context.Context, code int) error {
	if err := r.rdb.SRem(ctx, r.allocatedKey, code).Err(); err != nil {
		return fmt.Errorf("release secret code %d: %w", code, err)
	}
	return nil
}

// Reset drops both sets.
func (r *RedisStore) Reset(ctx context.Context) error {
	return r.rdb.Del(ctx, r.availableKey, r.allocatedKey).Err()
}
