package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another run is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PlanLockRepository implements short-lived mutual exclusion on Redis keys.
type PlanLockRepository struct {
	client redis.UniversalClient
}

// NewPlanLockRepository constructs repository.
func NewPlanLockRepository(client redis.UniversalClient) *PlanLockRepository {
	return &PlanLockRepository{client: client}
}

// Acquire sets key to token if absent. It reports false when another holder
// owns the key.
func (r *PlanLockRepository) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes key if it still holds token.
func (r *PlanLockRepository) Release(ctx context.Context, key, token string) (bool, error) {
	deleted, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("redis release %s: %w", key, err)
	}
	return deleted == 1, nil
}
