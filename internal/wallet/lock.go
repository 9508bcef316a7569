package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	lockTTL        = 10 * time.Second
	lockRetryDelay = 50 * time.Millisecond
	lockRetries    = 40
)

// Lock serializes balance mutations per wallet across all server instances.
// It is a redis lease: SetNX with a TTL, released only by the owner. The TTL
// bounds the damage of a crashed holder.
type Lock struct {
	client *redis.Client
}

func NewLock(client *redis.Client) *Lock {
	return &Lock{client: client}
}

func lockKey(walletID string) string {
	return fmt.Sprintf("wallet_lock:%s", walletID)
}

// Acquire blocks until the wallet lease is held or the retries are exhausted.
// The returned token must be passed to Release.
func (l *Lock) Acquire(ctx context.Context, walletID string) (string, error) {
	token := uuid.NewString()
	key := lockKey(walletID)

	for i := 0; i < lockRetries; i++ {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return "", fmt.Errorf("acquiring wallet lock: %w", err)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return "", fmt.Errorf("wallet %s is locked by another operation", walletID)
}

// Release frees the lease if this holder still owns it. A lease that expired
// and was re-acquired by someone else is left alone.
func (l *Lock) Release(ctx context.Context, walletID, token string) {
	key := lockKey(walletID)
	current, err := l.client.Get(ctx, key).Result()
	if err != nil || current != token {
		return
	}
	l.client.Del(ctx, key)
}
