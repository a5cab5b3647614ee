package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup marks processed event ids so redeliveries can be skipped.
type Dedup struct {
	R *redis.Client
}

// Seen reports whether (service, id) was already recorded, and records it.
// SET NX keeps check-and-mark a single round trip.
func (d Dedup) Seen(ctx context.Context, service, id string) (bool, error) {
	key := fmt.Sprintf(KeyDedup, service, id)
	ok, err := d.R.SetNX(ctx, key, "1", TTLDedup).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Marked reports whether (service, id) was recorded, without recording it.
// Pairs with Mark for handlers that must not remember an event until its
// side effects have actually been applied.
func (d Dedup) Marked(ctx context.Context, service, id string) (bool, error) {
	n, err := d.R.Exists(ctx, fmt.Sprintf(KeyDedup, service, id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records (service, id).
func (d Dedup) Mark(ctx context.Context, service, id string) error {
	return d.R.Set(ctx, fmt.Sprintf(KeyDedup, service, id), "1", TTLDedup).Err()
}
