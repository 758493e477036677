// Package location implements the device location acquisition and caching
// subsystem: a single service instance that maintains the best-known device
// position through a tiered fallback chain, persists it durably, and keeps it
// fresh while the app is foregrounded.
package location

import (
	"context"
	"errors"
	"time"
)

// Source records the provenance of a cached location.
type Source string

const (
	SourceGPS     Source = "gps"
	SourceNetwork Source = "network"
	SourceCached  Source = "cached"
)

// CachedLocation is the persisted best-known device position.
type CachedLocation struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // meters
	Timestamp int64    `json:"timestamp"`          // epoch milliseconds
	Source    Source   `json:"source"`
}

// Age returns how old the location is relative to now.
func (l CachedLocation) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(l.Timestamp))
}

// Fix is a raw position report from an acquisition provider or stream.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64 // meters, nil when the source does not report one
}

// Config is the tunable cache policy, read by every acquisition decision.
type Config struct {
	StaleThreshold    time.Duration // when the cache stops short-circuiting acquisition
	MaxAge            time.Duration // when the cache stops being usable at all
	UpdateInterval    time.Duration // foreground periodic refresh cadence
	MinAccuracyMeters float64       // stream/periodic fixes worse than this are discarded
}

// DefaultConfig returns the delivery-app defaults.
func DefaultConfig() Config {
	return Config{
		StaleThreshold:    5 * time.Minute,
		MaxAge:            24 * time.Hour,
		UpdateInterval:    2 * time.Minute,
		MinAccuracyMeters: 100,
	}
}

// ConfigPatch updates a subset of the config; nil fields are left unchanged.
type ConfigPatch struct {
	StaleThreshold    *time.Duration
	MaxAge            *time.Duration
	UpdateInterval    *time.Duration
	MinAccuracyMeters *float64
}

// PermissionStatus mirrors the platform's location permission state.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// Permissions exposes the platform permission state. Status and
// ServicesEnabled never prompt the user; Request may, and must only be
// reached from user-initiated foreground actions.
type Permissions interface {
	Status(ctx context.Context) (PermissionStatus, error)
	Request(ctx context.Context) (PermissionStatus, error)
	ServicesEnabled(ctx context.Context) (bool, error)
}

// Provider acquires a single position fix. Implementations should honor the
// context deadline and return an error when no fix is available.
type Provider interface {
	Name() string
	Acquire(ctx context.Context) (Fix, error)
}

// Stream delivers a continuous feed of fixes while subscribed. The returned
// channel is closed when the context is cancelled.
type Stream interface {
	Fixes(ctx context.Context) (<-chan Fix, error)
}

// Store persists the cached location across process restarts. The service is
// the sole writer of the record.
type Store interface {
	Load(ctx context.Context) (CachedLocation, bool, error)
	Save(ctx context.Context, loc CachedLocation) error
	Clear(ctx context.Context) error
}

// AppState is an application lifecycle transition reported by the host.
type AppState string

const (
	StateForeground AppState = "foreground"
	StateBackground AppState = "background"
)

// ErrPermissionDenied is returned by user-initiated refreshes when the
// platform permission request was declined.
var ErrPermissionDenied = errors.New("location permission denied")
