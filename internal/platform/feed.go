// Package platform bridges the agent to the host device shell over Redis.
// The shell publishes raw position fixes and permission state; this package
// adapts them to the location service's provider interfaces.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hatid-express/client-core/internal/location"
)

// Redis keys and channels shared with the device shell.
const (
	keyLatestGPSFix     = "device:fix:gps"
	keyLatestNetworkFix = "device:fix:network"
	channelFixStream    = "device:fix:stream"
)

// maxLatestFixAge is how recent a stored GPS fix must be to count as a live
// reading rather than a leftover.
const maxLatestFixAge = 10 * time.Second

// ErrNoFix is returned when the shell has not published a usable fix.
var ErrNoFix = errors.New("no position fix available")

// deviceFix is the wire format the shell publishes.
type deviceFix struct {
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"ts"` // epoch millis
}

func (f deviceFix) toFix() location.Fix {
	return location.Fix{Latitude: f.Latitude, Longitude: f.Longitude, Accuracy: f.Accuracy}
}

// GPSProvider acquires precise fixes. It serves a recent stored fix
// immediately and otherwise waits on the live stream until the context
// deadline.
type GPSProvider struct {
	rdb *redis.Client
	now func() time.Time
}

// NewGPSProvider creates a GPS provider over the shared Redis client.
func NewGPSProvider(rdb *redis.Client) *GPSProvider {
	return &GPSProvider{rdb: rdb, now: time.Now}
}

func (p *GPSProvider) Name() string { return "gps" }

// Acquire returns a fresh GPS fix or fails when the deadline passes first.
func (p *GPSProvider) Acquire(ctx context.Context) (location.Fix, error) {
	if fix, err := p.latest(ctx); err == nil {
		return fix, nil
	}

	sub := p.rdb.Subscribe(ctx, channelFixStream)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return location.Fix{}, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return location.Fix{}, ErrNoFix
			}
			var fix deviceFix
			if err := json.Unmarshal([]byte(msg.Payload), &fix); err != nil {
				continue
			}
			return fix.toFix(), nil
		}
	}
}

func (p *GPSProvider) latest(ctx context.Context) (location.Fix, error) {
	raw, err := p.rdb.Get(ctx, keyLatestGPSFix).Result()
	if err != nil {
		return location.Fix{}, ErrNoFix
	}
	var fix deviceFix
	if err := json.Unmarshal([]byte(raw), &fix); err != nil {
		return location.Fix{}, ErrNoFix
	}
	if p.now().Sub(time.UnixMilli(fix.Timestamp)) > maxLatestFixAge {
		return location.Fix{}, ErrNoFix
	}
	return fix.toFix(), nil
}

// NetworkProvider serves the shell's last coarse network-derived fix. Any
// age is accepted; the caller's staleness policy applies afterwards.
type NetworkProvider struct {
	rdb *redis.Client
}

// NewNetworkProvider creates a network provider over the shared Redis client.
func NewNetworkProvider(rdb *redis.Client) *NetworkProvider {
	return &NetworkProvider{rdb: rdb}
}

func (p *NetworkProvider) Name() string { return "network" }

func (p *NetworkProvider) Acquire(ctx context.Context) (location.Fix, error) {
	raw, err := p.rdb.Get(ctx, keyLatestNetworkFix).Result()
	if err != nil {
		return location.Fix{}, ErrNoFix
	}
	var fix deviceFix
	if err := json.Unmarshal([]byte(raw), &fix); err != nil {
		return location.Fix{}, ErrNoFix
	}
	return fix.toFix(), nil
}

// FixStream exposes the shell's continuous fix feed as a location.Stream.
type FixStream struct {
	rdb *redis.Client
}

// NewFixStream creates a stream over the shared Redis client.
func NewFixStream(rdb *redis.Client) *FixStream {
	return &FixStream{rdb: rdb}
}

// Fixes subscribes to the live feed. The returned channel closes when the
// context is cancelled.
func (s *FixStream) Fixes(ctx context.Context) (<-chan location.Fix, error) {
	sub := s.rdb.Subscribe(ctx, channelFixStream)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan location.Fix)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var fix deviceFix
				if err := json.Unmarshal([]byte(msg.Payload), &fix); err != nil {
					continue
				}
				select {
				case out <- fix.toFix():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
