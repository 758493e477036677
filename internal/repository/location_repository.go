package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hatid-express/client-core/internal/domain"
	"github.com/hatid-express/client-core/internal/location"
)

// LocationSnapshotModel is the GORM model for the location_snapshots journal.
// One row per persisted acquisition; the journal preserves history while the
// KV record holds only the latest fix.
type LocationSnapshotModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Latitude  float64   `gorm:"not null"`
	Longitude float64   `gorm:"not null"`
	Accuracy  *float64  `gorm:""`
	Source    string    `gorm:"not null;size:16;index"`
	FixedAt   time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (LocationSnapshotModel) TableName() string {
	return "location_snapshots"
}

// LocationRecordStore persists the cached location in the KV store and
// journals every save. It implements location.Store.
type LocationRecordStore struct {
	kv *GormKVStore
	db *gorm.DB
}

// NewLocationRecordStore creates a new LocationRecordStore.
func NewLocationRecordStore(kv *GormKVStore, db *gorm.DB) *LocationRecordStore {
	return &LocationRecordStore{kv: kv, db: db}
}

// Load reads the persisted location. The legacy lastKnownLocation key is
// consulted when the current key is absent, so records written by older
// builds still load.
func (s *LocationRecordStore) Load(ctx context.Context) (location.CachedLocation, bool, error) {
	raw, err := s.kv.Get(ctx, KeyCachedLocation)
	if err != nil {
		var derr *domain.Error
		if !errors.As(err, &derr) || derr.Kind != domain.KindNotFound {
			return location.CachedLocation{}, false, err
		}
		raw, err = s.kv.Get(ctx, KeyLastKnownLocation)
		if err != nil {
			if errors.As(err, &derr) && derr.Kind == domain.KindNotFound {
				return location.CachedLocation{}, false, nil
			}
			return location.CachedLocation{}, false, err
		}
	}

	var loc location.CachedLocation
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return location.CachedLocation{}, false, fmt.Errorf("failed to decode cached location: %w", err)
	}
	return loc, true, nil
}

// Save writes the location to the KV record and appends a journal row.
func (s *LocationRecordStore) Save(ctx context.Context, loc location.CachedLocation) error {
	raw, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to encode cached location: %w", err)
	}
	if err := s.kv.Set(ctx, KeyCachedLocation, string(raw)); err != nil {
		return err
	}
	return s.appendSnapshot(ctx, loc)
}

// Clear removes the persisted location, including the legacy key.
func (s *LocationRecordStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyCachedLocation); err != nil {
		return err
	}
	return s.kv.Delete(ctx, KeyLastKnownLocation)
}

// History returns the most recent journal entries, newest first.
func (s *LocationRecordStore) History(ctx context.Context, limit int) ([]LocationSnapshotModel, error) {
	var models []LocationSnapshotModel
	if err := s.db.WithContext(ctx).
		Order("fixed_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load location history: %w", err)
	}
	return models, nil
}

func (s *LocationRecordStore) appendSnapshot(ctx context.Context, loc location.CachedLocation) error {
	model := LocationSnapshotModel{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Accuracy:  loc.Accuracy,
		Source:    string(loc.Source),
		FixedAt:   time.UnixMilli(loc.Timestamp).UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to append location snapshot: %w", err)
	}
	return nil
}
