package location

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// significantDisplacementMeters is the movement threshold for opportunistic
// stream updates.
const significantDisplacementMeters = 50

// defaultGPSTimeout bounds a single GPS acquisition attempt.
const defaultGPSTimeout = 5 * time.Second

// Deps are the collaborators injected into the Service. GPS, Network,
// Permissions and Store are required; Stream is optional.
type Deps struct {
	GPS         Provider
	Network     Provider
	Permissions Permissions
	Store       Store
	Stream      Stream
	Logger      *zap.Logger
	Config      Config
	Fallback    Fix // city-center coordinate used when every tier fails
	GPSTimeout  time.Duration
	Now         func() time.Time
}

// Service is the location cache service. One instance exists for the
// process's lifetime; it is the sole writer of the persisted location record.
type Service struct {
	gps        Provider
	network    Provider
	perms      Permissions
	store      Store
	stream     Stream
	log        *zap.Logger
	fallback   Fix
	gpsTimeout time.Duration
	now        func() time.Time

	mu         sync.Mutex
	cfg        Config
	cached     *CachedLocation
	updating   bool
	lastSaved  *Fix      // displacement reference for stream updates
	lastUpdate time.Time // interval reference for stream updates

	refreshCancel context.CancelFunc
}

// NewService creates the location cache service. It does not load persisted
// state or start any background work; call Start and Run for that.
func NewService(d Deps) *Service {
	cfg := d.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := d.GPSTimeout
	if timeout <= 0 {
		timeout = defaultGPSTimeout
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		gps:        d.GPS,
		network:    d.Network,
		perms:      d.Permissions,
		store:      d.Store,
		stream:     d.Stream,
		log:        log,
		fallback:   d.Fallback,
		gpsTimeout: timeout,
		now:        now,
		cfg:        cfg,
	}
}

// Start loads the persisted location record. Entries older than MaxAge are
// discarded rather than resurrected.
func (s *Service) Start(ctx context.Context) error {
	loc, ok, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn("failed to load cached location", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if loc.Age(s.now()) >= s.cfg.MaxAge {
		s.log.Info("cached location too old, discarding",
			zap.Duration("age", loc.Age(s.now())),
		)
		return nil
	}

	s.cached = &loc
	s.lastSaved = &Fix{Latitude: loc.Latitude, Longitude: loc.Longitude, Accuracy: loc.Accuracy}
	s.log.Info("loaded cached location",
		zap.Float64("lat", loc.Latitude),
		zap.Float64("lon", loc.Longitude),
		zap.String("source", string(loc.Source)),
	)
	return nil
}

// Run consumes application lifecycle transitions until the context is
// cancelled or the channel closes. Intended to be run in its own goroutine.
func (s *Service) Run(ctx context.Context, states <-chan AppState) {
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case state, ok := <-states:
			if !ok {
				s.Stop()
				return
			}
			s.HandleAppState(ctx, state)
		}
	}
}

// HandleAppState reacts to a lifecycle transition. Foreground triggers a
// staleness check and (re)starts periodic refresh; background stops all
// refresh activity to conserve battery. Neither path ever prompts the user.
func (s *Service) HandleAppState(ctx context.Context, state AppState) {
	switch state {
	case StateForeground:
		go s.UpdateIfStale(ctx)
		s.startRefresh(ctx)
	case StateBackground:
		s.stopRefresh()
	}
}

// Stop halts periodic refresh and stream consumption.
func (s *Service) Stop() {
	s.stopRefresh()
}

// GetLocation resolves the best-known position through the fallback chain:
// fresh cache, new GPS/network fix, stale cache (re-tagged cached), and
// finally the city-center fallback. The fallback is persisted as a network
// fix so subsequent calls short-circuit to the fresh-cache tier.
func (s *Service) GetLocation(ctx context.Context) CachedLocation {
	now := s.now()

	s.mu.Lock()
	cfg := s.cfg
	if s.cached != nil && s.cached.Age(now) < cfg.StaleThreshold {
		loc := *s.cached
		s.mu.Unlock()
		s.log.Debug("using fresh cached location")
		return loc
	}
	s.mu.Unlock()

	if loc, acquired := s.GetFreshLocation(ctx); acquired {
		return loc
	}

	s.mu.Lock()
	if s.cached != nil && s.cached.Age(now) < cfg.MaxAge {
		loc := *s.cached
		loc.Source = SourceCached
		s.mu.Unlock()
		s.log.Debug("using stale cached location as fallback")
		return loc
	}
	s.mu.Unlock()

	s.log.Warn("no location available, using city-center fallback")
	return s.saveFix(ctx, s.fallback, SourceNetwork)
}

// GetFreshLocation forces a re-acquisition: GPS bounded by the acquisition
// timeout, then the coarse network source. Only one attempt is in flight at
// a time; callers arriving mid-update receive the previous cached value with
// acquired=false. Failed attempts never overwrite the existing cache.
func (s *Service) GetFreshLocation(ctx context.Context) (CachedLocation, bool) {
	s.mu.Lock()
	if s.updating {
		var loc CachedLocation
		if s.cached != nil {
			loc = *s.cached
		}
		s.mu.Unlock()
		s.log.Debug("location update already in progress")
		return loc, false
	}
	s.updating = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.updating = false
		s.mu.Unlock()
	}()

	if !s.readyWithoutPrompt(ctx) {
		return s.lastKnown(), false
	}

	gctx, cancel := context.WithTimeout(ctx, s.gpsTimeout)
	fix, err := s.gps.Acquire(gctx)
	cancel()
	if err == nil {
		s.log.Debug("got fresh gps location")
		return s.saveFix(ctx, fix, SourceGPS), true
	}
	s.log.Debug("gps acquisition failed, trying network", zap.Error(err))

	fix, err = s.network.Acquire(ctx)
	if err == nil {
		s.log.Debug("got fresh network location")
		return s.saveFix(ctx, fix, SourceNetwork), true
	}
	s.log.Debug("network acquisition failed", zap.Error(err))

	return s.lastKnown(), false
}

// RefreshWithPrompt is the user-initiated refresh path. It is the only place
// allowed to request the platform permission.
func (s *Service) RefreshWithPrompt(ctx context.Context) (CachedLocation, bool, error) {
	status, err := s.perms.Request(ctx)
	if err != nil {
		return s.lastKnown(), false, err
	}
	if status != PermissionGranted {
		return s.lastKnown(), false, ErrPermissionDenied
	}

	loc, acquired := s.GetFreshLocation(ctx)
	return loc, acquired, nil
}

// UpdateIfStale re-acquires the location when the cache is missing or older
// than the stale threshold.
func (s *Service) UpdateIfStale(ctx context.Context) {
	if !s.IsStale() {
		s.log.Debug("cached location is still fresh")
		return
	}
	s.log.Debug("cached location is stale, updating")
	s.GetFreshLocation(ctx)
}

// IsStale reports whether the cache is missing or older than StaleThreshold.
func (s *Service) IsStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		return true
	}
	return s.cached.Age(s.now()) > s.cfg.StaleThreshold
}

// Current returns the in-memory cached location without triggering any
// acquisition.
func (s *Service) Current() (CachedLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		return CachedLocation{}, false
	}
	return *s.cached, true
}

// Age returns the cache age, or false when no location is cached.
func (s *Service) Age() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		return 0, false
	}
	return s.cached.Age(s.now()), true
}

// ClearCache removes the cached location from memory and durable storage.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.lastSaved = nil
	s.lastUpdate = time.Time{}
	return nil
}

// UpdateConfig applies a partial config update and returns the effective
// config. A changed UpdateInterval takes effect on the next foreground
// transition.
func (s *Service) UpdateConfig(patch ConfigPatch) Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.StaleThreshold != nil {
		s.cfg.StaleThreshold = *patch.StaleThreshold
	}
	if patch.MaxAge != nil {
		s.cfg.MaxAge = *patch.MaxAge
	}
	if patch.UpdateInterval != nil {
		s.cfg.UpdateInterval = *patch.UpdateInterval
	}
	if patch.MinAccuracyMeters != nil {
		s.cfg.MinAccuracyMeters = *patch.MinAccuracyMeters
	}
	return s.cfg
}

// Config returns the effective cache policy.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// --- internal ---

// startRefresh launches the periodic refresh ticker and, when a stream is
// available, the displacement-driven consumer. Idempotent while running.
func (s *Service) startRefresh(ctx context.Context) {
	s.mu.Lock()
	if s.refreshCancel != nil {
		s.mu.Unlock()
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	s.refreshCancel = cancel
	interval := s.cfg.UpdateInterval
	s.mu.Unlock()

	s.log.Debug("started location refresh", zap.Duration("interval", interval))

	go s.runPeriodicRefresh(rctx, interval)
	if s.stream != nil {
		go s.runStream(rctx)
	}
}

func (s *Service) stopRefresh() {
	s.mu.Lock()
	cancel := s.refreshCancel
	s.refreshCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.log.Debug("stopped location refresh")
	}
}

// runPeriodicRefresh re-acquires on a fixed cadence regardless of movement.
func (s *Service) runPeriodicRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.periodicAcquire(ctx)
		}
	}
}

// periodicAcquire performs one prompt-free GPS attempt and routes the result
// through the monitored-fix filters.
func (s *Service) periodicAcquire(ctx context.Context) {
	if !s.readyWithoutPrompt(ctx) {
		return
	}

	gctx, cancel := context.WithTimeout(ctx, s.gpsTimeout)
	fix, err := s.gps.Acquire(gctx)
	cancel()
	if err != nil {
		s.log.Debug("periodic acquisition failed", zap.Error(err))
		return
	}
	s.handleMonitoredFix(ctx, fix)
}

// runStream consumes the continuous fix feed while foregrounded.
func (s *Service) runStream(ctx context.Context) {
	fixes, err := s.stream.Fixes(ctx)
	if err != nil {
		s.log.Warn("failed to subscribe to location stream", zap.Error(err))
		return
	}
	for fix := range fixes {
		s.handleMonitoredFix(ctx, fix)
	}
}

// handleMonitoredFix applies the accuracy, displacement and interval gates
// to a passively received fix, then saves it as a GPS reading.
func (s *Service) handleMonitoredFix(ctx context.Context, fix Fix) {
	s.mu.Lock()
	cfg := s.cfg
	now := s.now()

	if fix.Accuracy != nil && *fix.Accuracy > cfg.MinAccuracyMeters {
		s.mu.Unlock()
		s.log.Debug("skipping location update due to poor accuracy",
			zap.Float64("accuracy", *fix.Accuracy),
		)
		return
	}

	accept := false
	switch {
	case s.lastSaved == nil:
		accept = true
	case haversineMeters(s.lastSaved.Latitude, s.lastSaved.Longitude, fix.Latitude, fix.Longitude) >= significantDisplacementMeters:
		accept = true
	case now.Sub(s.lastUpdate) >= cfg.UpdateInterval:
		accept = true
	}
	s.mu.Unlock()

	if !accept {
		return
	}
	s.saveFix(ctx, fix, SourceGPS)
}

// saveFix commits a fix to memory and durable storage. Timestamps never go
// backwards across successive saves.
func (s *Service) saveFix(ctx context.Context, fix Fix, src Source) CachedLocation {
	s.mu.Lock()
	ts := s.now().UnixMilli()
	if s.cached != nil && s.cached.Timestamp > ts {
		ts = s.cached.Timestamp
	}
	loc := CachedLocation{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.Accuracy,
		Timestamp: ts,
		Source:    src,
	}
	s.cached = &loc
	s.lastSaved = &Fix{Latitude: fix.Latitude, Longitude: fix.Longitude, Accuracy: fix.Accuracy}
	s.lastUpdate = s.now()
	s.mu.Unlock()

	if err := s.store.Save(ctx, loc); err != nil {
		s.log.Warn("failed to persist cached location", zap.Error(err))
	}
	return loc
}

// lastKnown returns the in-memory cache without re-tagging.
func (s *Service) lastKnown() CachedLocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		return CachedLocation{}
	}
	return *s.cached
}

// readyWithoutPrompt checks permission and service state without ever
// soliciting a prompt. Denial means the provider tiers are unavailable.
func (s *Service) readyWithoutPrompt(ctx context.Context) bool {
	status, err := s.perms.Status(ctx)
	if err != nil {
		s.log.Debug("permission status check failed", zap.Error(err))
		return false
	}
	if status != PermissionGranted {
		s.log.Debug("location permission not granted")
		return false
	}

	enabled, err := s.perms.ServicesEnabled(ctx)
	if err != nil {
		s.log.Debug("location services check failed", zap.Error(err))
		return false
	}
	if !enabled {
		s.log.Debug("location services disabled")
	}
	return enabled
}
