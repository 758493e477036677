package location

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeProvider struct {
	mu    sync.Mutex
	fix   Fix
	err   error
	calls int32
	gate  chan struct{} // when non-nil, Acquire blocks until closed
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Acquire(ctx context.Context) (Fix, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return Fix{}, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return Fix{}, p.err
	}
	return p.fix, nil
}

func (p *fakeProvider) callCount() int32 { return atomic.LoadInt32(&p.calls) }

type fakePermissions struct {
	status   PermissionStatus
	enabled  bool
	requests int32
}

func (p *fakePermissions) Status(ctx context.Context) (PermissionStatus, error) {
	return p.status, nil
}

func (p *fakePermissions) Request(ctx context.Context) (PermissionStatus, error) {
	atomic.AddInt32(&p.requests, 1)
	return p.status, nil
}

func (p *fakePermissions) ServicesEnabled(ctx context.Context) (bool, error) {
	return p.enabled, nil
}

type fakeStore struct {
	mu    sync.Mutex
	loc   *CachedLocation
	saves int
	err   error
}

func (s *fakeStore) Load(ctx context.Context) (CachedLocation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		return CachedLocation{}, false, nil
	}
	return *s.loc, true, nil
}

func (s *fakeStore) Save(ctx context.Context, loc CachedLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.loc = &loc
	s.saves++
	return nil
}

func (s *fakeStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loc = nil
	return nil
}

func (s *fakeStore) saved() (CachedLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		return CachedLocation{}, false
	}
	return *s.loc, true
}

type fixture struct {
	svc     *Service
	gps     *fakeProvider
	network *fakeProvider
	perms   *fakePermissions
	store   *fakeStore
	clock   *fakeClock
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()

	f := &fixture{
		gps:     &fakeProvider{fix: Fix{Latitude: 10.6765, Longitude: 122.9509}},
		network: &fakeProvider{fix: Fix{Latitude: 10.6800, Longitude: 122.9600}},
		perms:   &fakePermissions{status: PermissionGranted, enabled: true},
		store:   &fakeStore{},
		clock:   newFakeClock(),
	}

	deps := Deps{
		GPS:         f.gps,
		Network:     f.network,
		Permissions: f.perms,
		Store:       f.store,
		Logger:      zap.NewNop(),
		Config:      DefaultConfig(),
		Fallback:    Fix{Latitude: 10.6772, Longitude: 122.9547},
		GPSTimeout:  100 * time.Millisecond,
		Now:         f.clock.Now,
	}
	for _, m := range mutate {
		m(&deps)
	}

	f.svc = NewService(deps)
	return f
}

func (f *fixture) seedCache(age time.Duration, src Source) CachedLocation {
	loc := CachedLocation{
		Latitude:  10.70,
		Longitude: 122.95,
		Timestamp: f.clock.Now().Add(-age).UnixMilli(),
		Source:    src,
	}
	f.svc.mu.Lock()
	f.svc.cached = &loc
	f.svc.lastSaved = &Fix{Latitude: loc.Latitude, Longitude: loc.Longitude}
	f.svc.mu.Unlock()
	return loc
}

func TestGetLocationFreshCacheSkipsProviders(t *testing.T) {
	f := newFixture(t)
	want := f.seedCache(time.Minute, SourceGPS)

	got := f.svc.GetLocation(context.Background())

	assert.Equal(t, want, got)
	assert.EqualValues(t, 0, f.gps.callCount())
	assert.EqualValues(t, 0, f.network.callCount())
}

func TestGetLocationStaleCacheAcquiresGPS(t *testing.T) {
	f := newFixture(t)
	f.seedCache(10*time.Minute, SourceGPS)

	got := f.svc.GetLocation(context.Background())

	assert.Equal(t, SourceGPS, got.Source)
	assert.Equal(t, f.gps.fix.Latitude, got.Latitude)
	assert.EqualValues(t, 1, f.gps.callCount())

	saved, ok := f.store.saved()
	require.True(t, ok)
	assert.Equal(t, got, saved)
}

func TestGetLocationFallsBackToNetwork(t *testing.T) {
	f := newFixture(t)
	f.gps.err = errors.New("gps unavailable")

	got := f.svc.GetLocation(context.Background())

	assert.Equal(t, SourceNetwork, got.Source)
	assert.Equal(t, f.network.fix.Latitude, got.Latitude)
	assert.EqualValues(t, 1, f.network.callCount())
}

func TestGetLocationStaleCacheRetaggedWhenAcquisitionFails(t *testing.T) {
	f := newFixture(t)
	f.gps.err = errors.New("gps unavailable")
	f.network.err = errors.New("network unavailable")
	seeded := f.seedCache(30*time.Minute, SourceGPS)

	got := f.svc.GetLocation(context.Background())

	assert.Equal(t, SourceCached, got.Source)
	assert.Equal(t, seeded.Latitude, got.Latitude)
	assert.Equal(t, seeded.Timestamp, got.Timestamp)
}

func TestGetLocationCityFallbackWhenCacheTooOld(t *testing.T) {
	f := newFixture(t)
	f.gps.err = errors.New("gps unavailable")
	f.network.err = errors.New("network unavailable")
	f.seedCache(25*time.Hour, SourceGPS)

	got := f.svc.GetLocation(context.Background())

	assert.Equal(t, 10.6772, got.Latitude)
	assert.Equal(t, 122.9547, got.Longitude)
	assert.Equal(t, SourceNetwork, got.Source)

	// The fallback is persisted so the next call is served from cache.
	saved, ok := f.store.saved()
	require.True(t, ok)
	assert.Equal(t, got, saved)

	got2 := f.svc.GetLocation(context.Background())
	assert.Equal(t, got, got2)
	assert.EqualValues(t, 1, f.gps.callCount())
}

func TestGetLocationPermissionDeniedUsesStaleCache(t *testing.T) {
	f := newFixture(t)
	f.perms.status = PermissionDenied
	seeded := f.seedCache(time.Hour, SourceNetwork)

	got := f.svc.GetLocation(context.Background())

	assert.Equal(t, SourceCached, got.Source)
	assert.Equal(t, seeded.Latitude, got.Latitude)
	assert.EqualValues(t, 0, f.gps.callCount())
	assert.EqualValues(t, 0, f.perms.requests, "must never prompt")
}

func TestStartDiscardsExpiredPersistedLocation(t *testing.T) {
	f := newFixture(t)
	old := CachedLocation{
		Latitude:  10.70,
		Longitude: 122.95,
		Timestamp: f.clock.Now().Add(-48 * time.Hour).UnixMilli(),
		Source:    SourceGPS,
	}
	f.store.loc = &old

	require.NoError(t, f.svc.Start(context.Background()))

	_, ok := f.svc.Current()
	assert.False(t, ok)
}

func TestStartLoadsRecentPersistedLocation(t *testing.T) {
	f := newFixture(t)
	recent := CachedLocation{
		Latitude:  10.70,
		Longitude: 122.95,
		Timestamp: f.clock.Now().Add(-time.Hour).UnixMilli(),
		Source:    SourceNetwork,
	}
	f.store.loc = &recent

	require.NoError(t, f.svc.Start(context.Background()))

	got, ok := f.svc.Current()
	require.True(t, ok)
	assert.Equal(t, recent, got)
}

func TestGetFreshLocationSingleFlight(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.GPSTimeout = time.Second })
	f.gps.gate = make(chan struct{})
	prev := f.seedCache(10*time.Minute, SourceGPS)

	first := make(chan CachedLocation, 1)
	go func() {
		loc, _ := f.svc.GetFreshLocation(context.Background())
		first <- loc
	}()

	// Wait until the first caller holds the update slot.
	require.Eventually(t, func() bool {
		return f.gps.callCount() == 1
	}, time.Second, time.Millisecond)

	loc, acquired := f.svc.GetFreshLocation(context.Background())
	assert.False(t, acquired)
	assert.Equal(t, prev.Latitude, loc.Latitude)
	assert.Equal(t, prev.Timestamp, loc.Timestamp)

	close(f.gps.gate)
	got := <-first
	assert.Equal(t, SourceGPS, got.Source)
	assert.EqualValues(t, 1, f.gps.callCount())
}

func TestGetFreshLocationFailureKeepsCache(t *testing.T) {
	f := newFixture(t)
	f.gps.err = errors.New("gps unavailable")
	f.network.err = errors.New("network unavailable")
	seeded := f.seedCache(time.Minute, SourceGPS)

	loc, acquired := f.svc.GetFreshLocation(context.Background())

	assert.False(t, acquired)
	assert.Equal(t, seeded, loc)

	cur, ok := f.svc.Current()
	require.True(t, ok)
	assert.Equal(t, seeded, cur)
}

func TestRefreshWithPromptDenied(t *testing.T) {
	f := newFixture(t)
	f.perms.status = PermissionDenied

	_, acquired, err := f.svc.RefreshWithPrompt(context.Background())

	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, acquired)
	assert.EqualValues(t, 1, f.perms.requests)
	assert.EqualValues(t, 0, f.gps.callCount())
}

func TestRefreshWithPromptGranted(t *testing.T) {
	f := newFixture(t)

	loc, acquired, err := f.svc.RefreshWithPrompt(context.Background())

	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Equal(t, SourceGPS, loc.Source)
	assert.EqualValues(t, 1, f.perms.requests)
}

func TestMonitoredFixAccuracyGate(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedCache(time.Minute, SourceGPS)

	poor := 150.0
	f.svc.handleMonitoredFix(context.Background(), Fix{
		Latitude: 11.0, Longitude: 123.0, Accuracy: &poor,
	})

	cur, ok := f.svc.Current()
	require.True(t, ok)
	assert.Equal(t, seeded, cur, "poor-accuracy fix must not overwrite the cache")
}

func TestMonitoredFixSignificantDisplacement(t *testing.T) {
	f := newFixture(t)
	f.seedCache(time.Minute, SourceGPS)
	f.svc.mu.Lock()
	f.svc.lastUpdate = f.clock.Now()
	f.svc.mu.Unlock()

	// ~11m north of the last save: below the displacement threshold.
	f.svc.handleMonitoredFix(context.Background(), Fix{Latitude: 10.7001, Longitude: 122.95})
	cur, _ := f.svc.Current()
	assert.Equal(t, 10.70, cur.Latitude)

	// ~55m north: accepted.
	f.svc.handleMonitoredFix(context.Background(), Fix{Latitude: 10.7005, Longitude: 122.95})
	cur, _ = f.svc.Current()
	assert.Equal(t, 10.7005, cur.Latitude)
}

func TestMonitoredFixIntervalElapsed(t *testing.T) {
	f := newFixture(t)
	f.seedCache(time.Minute, SourceGPS)
	f.svc.mu.Lock()
	f.svc.lastUpdate = f.clock.Now()
	f.svc.mu.Unlock()

	small := Fix{Latitude: 10.7001, Longitude: 122.95}

	f.svc.handleMonitoredFix(context.Background(), small)
	cur, _ := f.svc.Current()
	assert.Equal(t, 10.70, cur.Latitude)

	f.clock.Advance(3 * time.Minute)
	f.svc.handleMonitoredFix(context.Background(), small)
	cur, _ = f.svc.Current()
	assert.Equal(t, 10.7001, cur.Latitude)
}

func TestSaveTimestampsNeverGoBackwards(t *testing.T) {
	f := newFixture(t)

	first := f.svc.saveFix(context.Background(), f.gps.fix, SourceGPS)

	// Simulate a clock that stepped backwards between saves.
	f.clock.Advance(-time.Minute)
	second := f.svc.saveFix(context.Background(), f.network.fix, SourceNetwork)

	assert.GreaterOrEqual(t, second.Timestamp, first.Timestamp)
}

func TestBackgroundStopsPeriodicRefresh(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		cfg := DefaultConfig()
		cfg.UpdateInterval = 10 * time.Millisecond
		d.Config = cfg
	})
	f.seedCache(time.Minute, SourceGPS)

	ctx := context.Background()
	f.svc.HandleAppState(ctx, StateForeground)

	require.Eventually(t, func() bool {
		return f.gps.callCount() >= 2
	}, time.Second, time.Millisecond)

	f.svc.HandleAppState(ctx, StateBackground)
	time.Sleep(30 * time.Millisecond)
	after := f.gps.callCount()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, after, f.gps.callCount(), "no acquisitions after backgrounding")
}

func TestUpdateIfStaleSkipsFreshCache(t *testing.T) {
	f := newFixture(t)
	f.seedCache(time.Minute, SourceGPS)

	f.svc.UpdateIfStale(context.Background())

	assert.EqualValues(t, 0, f.gps.callCount())
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	f.svc.saveFix(context.Background(), f.gps.fix, SourceGPS)

	require.NoError(t, f.svc.ClearCache(context.Background()))

	_, ok := f.svc.Current()
	assert.False(t, ok)
	_, ok = f.store.saved()
	assert.False(t, ok)
}

func TestUpdateConfigPartialPatch(t *testing.T) {
	f := newFixture(t)

	threshold := 10 * time.Minute
	got := f.svc.UpdateConfig(ConfigPatch{StaleThreshold: &threshold})

	assert.Equal(t, threshold, got.StaleThreshold)
	assert.Equal(t, DefaultConfig().MaxAge, got.MaxAge)

	accuracy := 50.0
	got = f.svc.UpdateConfig(ConfigPatch{MinAccuracyMeters: &accuracy})
	assert.Equal(t, accuracy, got.MinAccuracyMeters)
	assert.Equal(t, threshold, got.StaleThreshold)
}

func TestPersistFailureStillUpdatesMemory(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("disk full")

	loc := f.svc.saveFix(context.Background(), f.gps.fix, SourceGPS)

	cur, ok := f.svc.Current()
	require.True(t, ok)
	assert.Equal(t, loc, cur)
}
