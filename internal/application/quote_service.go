package application

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hatid-express/client-core/internal/debounce"
	"github.com/hatid-express/client-core/internal/domain/fare"
	"github.com/hatid-express/client-core/internal/store"
)

// DefaultBasePrice is the starting fare for the standard service tier.
const DefaultBasePrice = 10.0

const quoteDebounceDelay = 150 * time.Millisecond

// QuoteService recomputes the fee breakdown from the current draft and
// writes it back into the delivery store. Tip and compensation edits go
// through the debounced path so rapid keystrokes collapse into one
// recomputation.
type QuoteService struct {
	estimator fare.Estimator
	delivery  *store.DeliveryStore
	logger    *zap.Logger
	debouncer *debounce.Debouncer

	mu        sync.Mutex
	basePrice float64
}

func NewQuoteService(estimator fare.Estimator, delivery *store.DeliveryStore, logger *zap.Logger) *QuoteService {
	return &QuoteService{
		estimator: estimator,
		delivery:  delivery,
		logger:    logger,
		debouncer: debounce.New(quoteDebounceDelay),
		basePrice: DefaultBasePrice,
	}
}

// SetBasePrice switches the service tier's base fare and recomputes.
func (s *QuoteService) SetBasePrice(price float64) {
	s.mu.Lock()
	s.basePrice = price
	s.mu.Unlock()
	s.RecomputeNow()
}

// Recompute schedules a debounced recomputation.
func (s *QuoteService) Recompute() {
	s.debouncer.Trigger(func() {
		s.RecomputeNow()
	})
}

// RecomputeNow reprices the draft immediately and returns the result.
func (s *QuoteService) RecomputeNow() fare.PricingResult {
	s.mu.Lock()
	basePrice := s.basePrice
	s.mu.Unlock()

	draft := s.delivery.Snapshot()
	result, err := s.estimator.Quote(draft.DistanceKm, basePrice, draft.Tip, draft.AdditionalCompensation)
	if err != nil {
		s.logger.Warn("quote computation failed", zap.Error(err))
		return fare.PricingResult{}
	}

	s.delivery.Apply(store.Patch{
		DeliveryFee:      &result.TotalPrice,
		CommissionAmount: &result.CommissionAmount,
		DriverEarnings:   &result.DriverEarnings,
		DurationMinutes:  &result.DurationMins,
	})
	return result
}

// Stop cancels any pending debounced recomputation.
func (s *QuoteService) Stop() {
	s.debouncer.Stop()
}
