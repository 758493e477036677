package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hatid-express/client-core/internal/domain"
)

// Well-known keys in the client key-value store.
const (
	KeyUserToken         = "userToken"
	KeyUserData          = "userData"
	KeyCachedLocation    = "cachedLocation"
	KeyLastKnownLocation = "lastKnownLocation" // legacy key, read but no longer written
)

// KVModel is the GORM model for the client_kv table.
type KVModel struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (KVModel) TableName() string {
	return "client_kv"
}

// GormKVStore is the durable key-value store backing session and location
// persistence.
type GormKVStore struct {
	db *gorm.DB
}

// NewGormKVStore creates a new GormKVStore.
func NewGormKVStore(db *gorm.DB) *GormKVStore {
	return &GormKVStore{db: db}
}

// Get returns the value for a key.
func (s *GormKVStore) Get(ctx context.Context, key string) (string, error) {
	var model KVModel
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.NewNotFoundError("Key", key)
		}
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return model.Value, nil
}

// Set upserts a key-value pair.
func (s *GormKVStore) Set(ctx context.Context, key, value string) error {
	model := KVModel{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *GormKVStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&KVModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}
