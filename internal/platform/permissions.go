package platform

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hatid-express/client-core/internal/location"
)

// Redis keys and channels for permission state.
const (
	keyPermissionStatus  = "device:permission:location"
	keyServicesEnabled   = "device:location:services"
	channelPromptRequest = "device:permission:prompts"
)

// promptPollInterval is how often Request re-checks the status while waiting
// for the user to answer the prompt.
const promptPollInterval = 500 * time.Millisecond

// RedisPermissions reads permission state published by the device shell.
// Status and ServicesEnabled are pure reads; only Request asks the shell to
// show a prompt.
type RedisPermissions struct {
	rdb *redis.Client
}

// NewRedisPermissions creates a permissions adapter over the shared Redis
// client.
func NewRedisPermissions(rdb *redis.Client) *RedisPermissions {
	return &RedisPermissions{rdb: rdb}
}

// Status returns the current permission state. A missing key means the user
// has never been asked.
func (p *RedisPermissions) Status(ctx context.Context) (location.PermissionStatus, error) {
	raw, err := p.rdb.Get(ctx, keyPermissionStatus).Result()
	if err == redis.Nil {
		return location.PermissionUndetermined, nil
	}
	if err != nil {
		return location.PermissionUndetermined, err
	}
	return parseStatus(raw), nil
}

// ServicesEnabled reports whether device location services are on. A missing
// key is treated as disabled.
func (p *RedisPermissions) ServicesEnabled(ctx context.Context) (bool, error) {
	raw, err := p.rdb.Get(ctx, keyServicesEnabled).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return raw == "1" || raw == "true", nil
}

// Request asks the shell to prompt the user, then waits for the status to
// resolve or the context to expire. Already-resolved states return
// immediately without a prompt.
func (p *RedisPermissions) Request(ctx context.Context) (location.PermissionStatus, error) {
	status, err := p.Status(ctx)
	if err != nil {
		return location.PermissionUndetermined, err
	}
	if status != location.PermissionUndetermined {
		return status, nil
	}

	if err := p.rdb.Publish(ctx, channelPromptRequest, "location").Err(); err != nil {
		return location.PermissionUndetermined, err
	}

	ticker := time.NewTicker(promptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return location.PermissionUndetermined, ctx.Err()
		case <-ticker.C:
			status, err := p.Status(ctx)
			if err != nil {
				return location.PermissionUndetermined, err
			}
			if status != location.PermissionUndetermined {
				return status, nil
			}
		}
	}
}

func parseStatus(raw string) location.PermissionStatus {
	switch raw {
	case "granted":
		return location.PermissionGranted
	case "denied":
		return location.PermissionDenied
	default:
		return location.PermissionUndetermined
	}
}
