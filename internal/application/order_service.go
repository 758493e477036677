package application

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hatid-express/client-core/internal/backend"
	"github.com/hatid-express/client-core/internal/domain"
	"github.com/hatid-express/client-core/internal/events"
	"github.com/hatid-express/client-core/internal/store"
)

const eventSource = "client-core"

// submitPayload is the flat request body for delivery creation. It mirrors
// the order-relevant draft fields.
type submitPayload struct {
	SenderID               *int64      `json:"sender_id"`
	PickupAddress          string      `json:"pickup_address"`
	DropoffAddress         string      `json:"dropoff_address"`
	Payer                  store.Payer `json:"payer"`
	AddInfo                string      `json:"add_info"`
	PickupLat              *float64    `json:"pickup_lat"`
	PickupLong             *float64    `json:"pickup_long"`
	DropoffLat             *float64    `json:"dropoff_lat"`
	DropoffLong            *float64    `json:"dropoff_long"`
	ParcelAmount           float64     `json:"parcel_amount"`
	ReceiverName           string      `json:"receiver_name"`
	ReceiverContact        string      `json:"receiver_contact"`
	DeliveryFee            float64     `json:"delivery_fee"`
	CommissionAmount       float64     `json:"commission_amount"`
	DriverEarnings         float64     `json:"driver_earnings"`
	CommissionDeducted     bool        `json:"commission_deducted"`
	AdditionalCompensation float64     `json:"additional_compensation"`
	Tip                    float64     `json:"tip"`
	DistanceKm             float64     `json:"distance_km"`
	DurationMinutes        float64     `json:"duration_minutes"`
	PickupCity             string      `json:"pickup_city"`
	DropoffCity            string      `json:"dropoff_city"`
}

// OrderSubmittedEvent is the payload published after a successful submission.
type OrderSubmittedEvent struct {
	DeliveryID  int64     `json:"delivery_id"`
	SenderID    *int64    `json:"sender_id"`
	DeliveryFee float64   `json:"delivery_fee"`
	DistanceKm  float64   `json:"distance_km"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// OrderCancelledEvent is published after a delivery is cancelled.
type OrderCancelledEvent struct {
	DeliveryID int64     `json:"delivery_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderService coordinates order submission. It reads the current draft
// snapshot, posts it to the backend, and on success resets the draft and the
// pickup/dropoff selections. A failed submission leaves all state untouched
// so the user can retry.
type OrderService struct {
	delivery   *store.DeliveryStore
	selections *store.SelectionStore
	backend    backend.Client
	producer   *events.Producer
	logger     *zap.Logger

	// loading is advisory: callers check it to avoid double submission,
	// the service itself does not reject overlapping calls.
	loading atomic.Bool
}

// NewOrderService creates an OrderService. producer may be nil when no
// broker is configured.
func NewOrderService(
	delivery *store.DeliveryStore,
	selections *store.SelectionStore,
	client backend.Client,
	producer *events.Producer,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		delivery:   delivery,
		selections: selections,
		backend:    client,
		producer:   producer,
		logger:     logger,
	}
}

// Loading reports whether a submission is currently in flight.
func (s *OrderService) Loading() bool {
	return s.loading.Load()
}

// ValidateDraft checks the submission preconditions: both endpoints must
// have an address and numeric coordinates.
func (s *OrderService) ValidateDraft() error {
	draft := s.delivery.Snapshot()

	if draft.PickupAddress == "" {
		return domain.NewValidationError("pickup address is required")
	}
	if draft.DropoffAddress == "" {
		return domain.NewValidationError("dropoff address is required")
	}
	if draft.PickupLat == nil || draft.PickupLong == nil {
		return domain.NewValidationError("pickup coordinates are required")
	}
	if draft.DropoffLat == nil || draft.DropoffLong == nil {
		return domain.NewValidationError("dropoff coordinates are required")
	}
	return nil
}

// Submit posts the current draft to the backend. On success both stores are
// reset (sender identity survives) and an event is published. On failure the
// draft is left intact and a generic error is returned; the underlying cause
// is only logged.
func (s *OrderService) Submit(ctx context.Context) (backend.Delivery, error) {
	s.loading.Store(true)
	defer s.loading.Store(false)

	draft := s.delivery.Snapshot()
	payload := buildPayload(draft)

	created, err := s.backend.CreateDelivery(ctx, payload)
	if err != nil {
		s.logger.Error("delivery creation failed", zap.Error(err))
		return backend.Delivery{}, domain.NewUnavailableError("Failed to create delivery. Please try again.")
	}

	s.delivery.Reset()
	s.selections.Clear()

	s.logger.Info("delivery created",
		zap.Int64("delivery_id", created.ID),
		zap.Float64("delivery_fee", draft.DeliveryFee),
	)

	s.publishEvent(ctx, events.OrderSubmitted, created.ID, OrderSubmittedEvent{
		DeliveryID:  created.ID,
		SenderID:    draft.SenderID,
		DeliveryFee: draft.DeliveryFee,
		DistanceKm:  draft.DistanceKm,
		OccurredAt:  time.Now().UTC(),
	})

	return created, nil
}

// Cancel marks a delivery as cancelled.
func (s *OrderService) Cancel(ctx context.Context, id int64) (backend.Delivery, error) {
	updated, err := s.backend.UpdateDeliveryStatus(ctx, id, backend.StatusCancelled)
	if err != nil {
		s.logger.Error("delivery cancellation failed",
			zap.Int64("delivery_id", id),
			zap.Error(err),
		)
		return backend.Delivery{}, domain.NewUnavailableError("Failed to cancel delivery. Please try again.")
	}

	s.publishEvent(ctx, events.OrderCancelled, id, OrderCancelledEvent{
		DeliveryID: id,
		OccurredAt: time.Now().UTC(),
	})
	return updated, nil
}

// List returns the user's deliveries.
func (s *OrderService) List(ctx context.Context, userID int64) ([]backend.Delivery, error) {
	deliveries, err := s.backend.ListDeliveries(ctx, userID)
	if err != nil {
		s.logger.Error("listing deliveries failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, domain.NewUnavailableError("Failed to load deliveries. Please try again.")
	}
	return deliveries, nil
}

func buildPayload(draft store.Draft) submitPayload {
	payer := draft.Payer
	if payer == "" {
		payer = store.PayerSender
	}

	return submitPayload{
		SenderID:               draft.SenderID,
		PickupAddress:          draft.PickupAddress,
		DropoffAddress:         draft.DropoffAddress,
		Payer:                  payer,
		AddInfo:                draft.AddInfo,
		PickupLat:              draft.PickupLat,
		PickupLong:             draft.PickupLong,
		DropoffLat:             draft.DropoffLat,
		DropoffLong:            draft.DropoffLong,
		ParcelAmount:           draft.ParcelAmount,
		ReceiverName:           draft.ReceiverName,
		ReceiverContact:        draft.ReceiverContact,
		DeliveryFee:            draft.DeliveryFee,
		CommissionAmount:       draft.CommissionAmount,
		DriverEarnings:         draft.DriverEarnings,
		CommissionDeducted:     draft.CommissionDeducted,
		AdditionalCompensation: draft.AdditionalCompensation,
		Tip:                    draft.Tip,
		DistanceKm:             draft.DistanceKm,
		DurationMinutes:        draft.DurationMinutes,
		PickupCity:             draft.PickupCity,
		DropoffCity:            draft.DropoffCity,
	}
}

func (s *OrderService) publishEvent(ctx context.Context, eventType string, deliveryID int64, data any) {
	if s.producer == nil {
		return
	}

	evt, err := events.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	key := strconv.FormatInt(deliveryID, 10)
	if err := s.producer.PublishEvent(ctx, events.TopicOrderEvents, key, evt); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
