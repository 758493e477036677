package store

import "sync"

// Selection is a picked pickup or dropoff point.
type Selection struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city,omitempty"`
}

// SelectionPatch updates only the provided fields of a selection.
type SelectionPatch struct {
	Address *string  `json:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	City    *string  `json:"city,omitempty"`
}

// SelectionStore holds the pickup and dropoff selections made in the
// location picker. Cleared on successful submission.
type SelectionStore struct {
	mu      sync.RWMutex
	pickup  *Selection
	dropoff *Selection
}

func NewSelectionStore() *SelectionStore {
	return &SelectionStore{}
}

// SetPickup merges the patch into the pickup selection, creating it when
// absent.
func (s *SelectionStore) SetPickup(p SelectionPatch) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pickup = merge(s.pickup, p)
	return *s.pickup
}

// SetDropoff merges the patch into the dropoff selection, creating it when
// absent.
func (s *SelectionStore) SetDropoff(p SelectionPatch) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropoff = merge(s.dropoff, p)
	return *s.dropoff
}

// Pickup returns the current pickup selection.
func (s *SelectionStore) Pickup() (Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pickup == nil {
		return Selection{}, false
	}
	return *s.pickup, true
}

// Dropoff returns the current dropoff selection.
func (s *SelectionStore) Dropoff() (Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dropoff == nil {
		return Selection{}, false
	}
	return *s.dropoff, true
}

// Clear removes both selections.
func (s *SelectionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pickup = nil
	s.dropoff = nil
}

func merge(cur *Selection, p SelectionPatch) *Selection {
	sel := Selection{}
	if cur != nil {
		sel = *cur
	}
	if p.Address != nil {
		sel.Address = *p.Address
	}
	if p.Lat != nil {
		sel.Lat = *p.Lat
	}
	if p.Lon != nil {
		sel.Lon = *p.Lon
	}
	if p.City != nil {
		sel.City = *p.City
	}
	return &sel
}
