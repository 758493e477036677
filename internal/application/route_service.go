package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hatid-express/client-core/internal/backend"
	"github.com/hatid-express/client-core/internal/debounce"
	"github.com/hatid-express/client-core/internal/store"
)

// RouteState tracks the lookup lifecycle for one coordinate pair.
type RouteState string

const (
	RouteNotStarted RouteState = "not_started"
	RoutePending    RouteState = "pending"
	RouteDone       RouteState = "done"
	RouteFailed     RouteState = "failed"
)

// RouteKey identifies a pickup/dropoff coordinate pair. A lookup result is
// memoized per key and invalidated when the key changes.
type RouteKey struct {
	PickupLat  float64 `json:"pickup_lat"`
	PickupLon  float64 `json:"pickup_lon"`
	DropoffLat float64 `json:"dropoff_lat"`
	DropoffLon float64 `json:"dropoff_lon"`
}

// RouteStatus is the externally visible lookup state.
type RouteStatus struct {
	State RouteState         `json:"state"`
	Route *backend.RouteInfo `json:"route,omitempty"`
}

const routeDebounceDelay = 500 * time.Millisecond

// RouteService performs debounced route-distance lookups. Rapid endpoint
// changes collapse into a single backend call; a completed result is reused
// until the coordinates change. A failed lookup leaves the draft untouched
// so pricing falls back to the base fare.
type RouteService struct {
	backend   backend.Client
	delivery  *store.DeliveryStore
	quotes    *QuoteService
	logger    *zap.Logger
	debouncer *debounce.Debouncer

	mu    sync.Mutex
	key   RouteKey
	state RouteState
	route *backend.RouteInfo
}

func NewRouteService(
	client backend.Client,
	delivery *store.DeliveryStore,
	quotes *QuoteService,
	logger *zap.Logger,
) *RouteService {
	return &RouteService{
		backend:   client,
		delivery:  delivery,
		quotes:    quotes,
		logger:    logger,
		debouncer: debounce.New(routeDebounceDelay),
		state:     RouteNotStarted,
	}
}

// RequestRoute schedules a lookup for the given endpoints. A key that is
// already pending or done is not re-fetched.
func (s *RouteService) RequestRoute(key RouteKey) RouteStatus {
	s.mu.Lock()
	if key == s.key && (s.state == RoutePending || s.state == RouteDone) {
		status := RouteStatus{State: s.state, Route: s.route}
		s.mu.Unlock()
		return status
	}

	s.key = key
	s.state = RoutePending
	s.route = nil
	s.mu.Unlock()

	s.debouncer.Trigger(func() {
		s.lookup(key)
	})
	return RouteStatus{State: RoutePending}
}

// Status returns the current lookup state and, when done, the route.
func (s *RouteService) Status() RouteStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RouteStatus{State: s.state, Route: s.route}
}

// Stop cancels any pending debounced lookup.
func (s *RouteService) Stop() {
	s.debouncer.Stop()
}

func (s *RouteService) lookup(key RouteKey) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := s.backend.RouteDistance(ctx, key.PickupLat, key.PickupLon, key.DropoffLat, key.DropoffLon)

	s.mu.Lock()
	if key != s.key {
		// A newer request superseded this lookup.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = RouteFailed
		s.route = nil
		s.mu.Unlock()
		s.logger.Warn("route lookup failed", zap.Error(err))
		return
	}
	s.state = RouteDone
	s.route = &info
	s.mu.Unlock()

	s.logger.Debug("route lookup completed",
		zap.Float64("distance_km", info.DistanceKm),
		zap.Float64("duration_minutes", info.DurationMinutes),
	)

	s.delivery.Apply(store.Patch{
		DistanceKm:      &info.DistanceKm,
		DurationMinutes: &info.DurationMinutes,
	})
	if s.quotes != nil {
		s.quotes.RecomputeNow()
	}
}
