package adapter

import (
	"context"
	"time"
)

// Locker is a distributed mutex. TryLock returns domain.ErrRunInProgress when
// the key is held by someone else; any other error means the backend failed.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
