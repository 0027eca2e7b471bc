// Package pool supplies unique, never-reused short codes from a
// pre-generated set held in Redis.
//
// The available set and the active set together form the code namespace:
// a code sits in exactly one of them, or in neither (never generated).
// Every operation is a single atomic Redis call, so two workers can never
// observe the same available code; check-then-remove across calls cannot
// be expressed against this API.
package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// availableKey holds the pre-generated, unassigned codes.
	availableKey = "codes:available"
	// activeKey holds every code currently bound to a record: consumed
	// pre-generated codes and registered custom codes alike.
	activeKey = "codes:active"
)

var (
	// ErrExhausted is returned when the available set is empty. It is a
	// normal outcome under load, not an infrastructure failure; refill is
	// an external batch job.
	ErrExhausted = errors.New("code pool exhausted")
	// ErrCodeTaken is returned when a custom code collides with any code
	// in the namespace, assigned or not.
	ErrCodeTaken = errors.New("code already taken")
)

// allocateScript pops one code from the available set and commits it to the
// active set in one atomic step. Once popped, the code belongs to the request
// even if that request later fails; it is never returned to the pool.
var allocateScript = redis.NewScript(`
local code = redis.call('SPOP', KEYS[1])
if not code then
	return false
end
redis.call('SADD', KEYS[2], code)
return code
`)

// registerScript test-and-inserts a custom code. Membership in the available
// set is a conflict too: a custom code equal to a not-yet-consumed
// pre-generated code would double-assign it later.
var registerScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
	return 0
end
return redis.call('SADD', KEYS[2], ARGV[1])
`)

// addScript feeds freshly generated codes into the available set, skipping
// anything already active.
var addScript = redis.NewScript(`
local added = 0
for i = 1, #ARGV do
	if redis.call('SISMEMBER', KEYS[2], ARGV[i]) == 0 then
		added = added + redis.call('SADD', KEYS[1], ARGV[i])
	end
end
return added
`)

// Pool is the allocation primitive over a shared Redis instance. It holds
// no in-process state; all coordination happens in Redis, so no client-side
// locking is ever required.
type Pool struct {
	client *redis.Client
}

func New(client *redis.Client) *Pool {
	return &Pool{
		client: client,
	}
}

// Allocate atomically removes one code from the available set and returns
// it. Returns ErrExhausted when the pool is empty. Callers must not retry
// on infrastructure errors: under partial failure the pop may already have
// committed, and a retry would burn a second code.
func (p *Pool) Allocate(ctx context.Context) (string, error) {
	const op = "pool.Pool.Allocate"

	code, err := allocateScript.Run(ctx, p.client, []string{availableKey, activeKey}).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, ErrExhausted)
		}

		return "", fmt.Errorf("%s: failed to allocate code: %w", op, err)
	}

	return code, nil
}

// RegisterCustom atomically claims a caller-supplied code, checking both the
// unassigned and the active namespaces. Returns ErrCodeTaken on collision.
func (p *Pool) RegisterCustom(ctx context.Context, code string) error {
	const op = "pool.Pool.RegisterCustom"

	added, err := registerScript.Run(ctx, p.client, []string{availableKey, activeKey}, code).Int()
	if err != nil {
		return fmt.Errorf("%s: failed to register custom code: %w", op, err)
	}
	if added == 0 {
		return fmt.Errorf("%s: %w", op, ErrCodeTaken)
	}

	return nil
}

// Size reports how many codes remain available, so callers can surface
// exhaustion before failing deep in the request path.
func (p *Pool) Size(ctx context.Context) (int64, error) {
	const op = "pool.Pool.Size"

	n, err := p.client.SCard(ctx, availableKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get pool size: %w", op, err)
	}

	return n, nil
}

// Add feeds pre-generated codes into the available set, skipping codes that
// are already active. It returns the number actually added; the shortfall
// is codes that collided with either set. Used by the refill batch tool.
func (p *Pool) Add(ctx context.Context, codes ...string) (int64, error) {
	const op = "pool.Pool.Add"

	if len(codes) == 0 {
		return 0, nil
	}

	args := make([]interface{}, len(codes))
	for i, code := range codes {
		args[i] = code
	}

	added, err := addScript.Run(ctx, p.client, []string{availableKey, activeKey}, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to add codes: %w", op, err)
	}

	return added, nil
}
