// Package store holds the in-memory, process-wide state shared between the
// order-creation flow and the HTTP surface: the mutable delivery draft and
// the pickup/dropoff selections. Stores are rebuilt fresh on every process
// start; only the sender identity is re-seeded from durable storage.
package store

import "sync"

// Payer identifies who pays the delivery fee.
type Payer string

const (
	PayerSender   Payer = "sender"
	PayerReceiver Payer = "receiver"
)

// Draft is the mutable order draft. Field names follow the backend's
// delivery schema.
type Draft struct {
	SenderID   *int64 `json:"sender_id"`
	ReceiverID *int64 `json:"receiver_id"`
	DriverID   *int64 `json:"driver_id"`

	PickupAddress  string   `json:"pickup_address"`
	DropoffAddress string   `json:"dropoff_address"`
	PickupCity     string   `json:"pickup_city"`
	DropoffCity    string   `json:"dropoff_city"`
	PickupLat      *float64 `json:"pickup_lat"`
	PickupLong     *float64 `json:"pickup_long"`
	DropoffLat     *float64 `json:"dropoff_lat"`
	DropoffLong    *float64 `json:"dropoff_long"`

	ParcelAmount float64 `json:"parcel_amount"`
	Payer        Payer   `json:"payer,omitempty"`
	AddInfo      string  `json:"add_info"`
	Status       string  `json:"status"`

	ReceiverName    string `json:"receiver_name"`
	ReceiverContact string `json:"receiver_contact"`

	DeliveryFee            float64 `json:"delivery_fee"`
	CommissionAmount       float64 `json:"commission_amount"`
	DriverEarnings         float64 `json:"driver_earnings"`
	CommissionDeducted     bool    `json:"commission_deducted"`
	AdditionalCompensation float64 `json:"additional_compensation"`
	Tip                    float64 `json:"tip"`

	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`

	AcceptedAt *string `json:"accepted_at"`
	ReceivedAt *string `json:"received_at"`
}

func defaultDraft() Draft {
	return Draft{Status: "pending"}
}

// Patch is a partial update to the draft: nil fields are left untouched.
// Updates are last-write-wins per field.
type Patch struct {
	SenderID   *int64 `json:"sender_id,omitempty"`
	ReceiverID *int64 `json:"receiver_id,omitempty"`
	DriverID   *int64 `json:"driver_id,omitempty"`

	PickupAddress  *string  `json:"pickup_address,omitempty"`
	DropoffAddress *string  `json:"dropoff_address,omitempty"`
	PickupCity     *string  `json:"pickup_city,omitempty"`
	DropoffCity    *string  `json:"dropoff_city,omitempty"`
	PickupLat      *float64 `json:"pickup_lat,omitempty"`
	PickupLong     *float64 `json:"pickup_long,omitempty"`
	DropoffLat     *float64 `json:"dropoff_lat,omitempty"`
	DropoffLong    *float64 `json:"dropoff_long,omitempty"`

	ParcelAmount *float64 `json:"parcel_amount,omitempty"`
	Payer        *Payer   `json:"payer,omitempty"`
	AddInfo      *string  `json:"add_info,omitempty"`
	Status       *string  `json:"status,omitempty"`

	ReceiverName    *string `json:"receiver_name,omitempty"`
	ReceiverContact *string `json:"receiver_contact,omitempty"`

	DeliveryFee            *float64 `json:"delivery_fee,omitempty"`
	CommissionAmount       *float64 `json:"commission_amount,omitempty"`
	DriverEarnings         *float64 `json:"driver_earnings,omitempty"`
	CommissionDeducted     *bool    `json:"commission_deducted,omitempty"`
	AdditionalCompensation *float64 `json:"additional_compensation,omitempty"`
	Tip                    *float64 `json:"tip,omitempty"`

	DistanceKm      *float64 `json:"distance_km,omitempty"`
	DurationMinutes *float64 `json:"duration_minutes,omitempty"`
}

// DeliveryStore holds the current order draft. It is safe for concurrent
// use, though the order-creation flow is the only expected writer.
type DeliveryStore struct {
	mu    sync.RWMutex
	draft Draft
}

func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{draft: defaultDraft()}
}

// Snapshot returns a copy of the current draft.
func (s *DeliveryStore) Snapshot() Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// Apply merges a partial update into the draft and returns the result.
// Unset patch fields never clobber existing values.
func (s *DeliveryStore) Apply(p Patch) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.SenderID != nil {
		s.draft.SenderID = p.SenderID
	}
	if p.ReceiverID != nil {
		s.draft.ReceiverID = p.ReceiverID
	}
	if p.DriverID != nil {
		s.draft.DriverID = p.DriverID
	}
	if p.PickupAddress != nil {
		s.draft.PickupAddress = *p.PickupAddress
	}
	if p.DropoffAddress != nil {
		s.draft.DropoffAddress = *p.DropoffAddress
	}
	if p.PickupCity != nil {
		s.draft.PickupCity = *p.PickupCity
	}
	if p.DropoffCity != nil {
		s.draft.DropoffCity = *p.DropoffCity
	}
	if p.PickupLat != nil {
		s.draft.PickupLat = p.PickupLat
	}
	if p.PickupLong != nil {
		s.draft.PickupLong = p.PickupLong
	}
	if p.DropoffLat != nil {
		s.draft.DropoffLat = p.DropoffLat
	}
	if p.DropoffLong != nil {
		s.draft.DropoffLong = p.DropoffLong
	}
	if p.ParcelAmount != nil {
		s.draft.ParcelAmount = *p.ParcelAmount
	}
	if p.Payer != nil {
		s.draft.Payer = *p.Payer
	}
	if p.AddInfo != nil {
		s.draft.AddInfo = *p.AddInfo
	}
	if p.Status != nil {
		s.draft.Status = *p.Status
	}
	if p.ReceiverName != nil {
		s.draft.ReceiverName = *p.ReceiverName
	}
	if p.ReceiverContact != nil {
		s.draft.ReceiverContact = *p.ReceiverContact
	}
	if p.DeliveryFee != nil {
		s.draft.DeliveryFee = *p.DeliveryFee
	}
	if p.CommissionAmount != nil {
		s.draft.CommissionAmount = *p.CommissionAmount
	}
	if p.DriverEarnings != nil {
		s.draft.DriverEarnings = *p.DriverEarnings
	}
	if p.CommissionDeducted != nil {
		s.draft.CommissionDeducted = *p.CommissionDeducted
	}
	if p.AdditionalCompensation != nil {
		s.draft.AdditionalCompensation = *p.AdditionalCompensation
	}
	if p.Tip != nil {
		s.draft.Tip = *p.Tip
	}
	if p.DistanceKm != nil {
		s.draft.DistanceKm = *p.DistanceKm
	}
	if p.DurationMinutes != nil {
		s.draft.DurationMinutes = *p.DurationMinutes
	}
	return s.draft
}

// Reset restores the draft to defaults. The sender identity survives the
// reset so a logged-in user does not need re-seeding after every order.
func (s *DeliveryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sender := s.draft.SenderID
	s.draft = defaultDraft()
	s.draft.SenderID = sender
}

// SeedSender sets the sender identity, typically from the stored session at
// startup.
func (s *DeliveryStore) SeedSender(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.SenderID = &id
}
