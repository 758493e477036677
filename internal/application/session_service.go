package application

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/hatid-express/client-core/internal/domain"
	"github.com/hatid-express/client-core/internal/repository"
	"github.com/hatid-express/client-core/internal/store"
)

// KV is the durable key-value storage the session is kept in.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// userData is the stored session identity blob.
type userData struct {
	UserID int64 `json:"userId"`
}

// SessionService manages the stored session and re-seeds the delivery draft
// with the sender identity at startup.
type SessionService struct {
	kv       KV
	delivery *store.DeliveryStore
	logger   *zap.Logger
}

func NewSessionService(kv KV, delivery *store.DeliveryStore, logger *zap.Logger) *SessionService {
	return &SessionService{kv: kv, delivery: delivery, logger: logger}
}

// SeedSender reads the stored user identity and seeds the draft's sender
// field. A missing or unreadable record is not an error; the draft simply
// starts without a sender.
func (s *SessionService) SeedSender(ctx context.Context) {
	raw, err := s.kv.Get(ctx, repository.KeyUserData)
	if err != nil {
		var derr *domain.Error
		if !errors.As(err, &derr) || derr.Kind != domain.KindNotFound {
			s.logger.Warn("failed to read stored session", zap.Error(err))
		}
		return
	}

	var data userData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.logger.Warn("failed to parse stored session", zap.Error(err))
		return
	}
	if data.UserID == 0 {
		return
	}

	s.delivery.SeedSender(data.UserID)
	s.logger.Info("seeded sender from stored session", zap.Int64("user_id", data.UserID))
}

// UserID returns the stored user identity.
func (s *SessionService) UserID(ctx context.Context) (int64, error) {
	raw, err := s.kv.Get(ctx, repository.KeyUserData)
	if err != nil {
		return 0, err
	}
	var data userData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return 0, domain.NewValidationError("stored session is corrupt")
	}
	return data.UserID, nil
}

// SaveSession stores the auth token and user identity, then seeds the draft.
func (s *SessionService) SaveSession(ctx context.Context, token string, userID int64) error {
	if err := s.kv.Set(ctx, repository.KeyUserToken, token); err != nil {
		return err
	}
	raw, _ := json.Marshal(userData{UserID: userID})
	if err := s.kv.Set(ctx, repository.KeyUserData, string(raw)); err != nil {
		return err
	}
	s.delivery.SeedSender(userID)
	return nil
}

// ClearSession removes the stored token and identity.
func (s *SessionService) ClearSession(ctx context.Context) error {
	if err := s.kv.Delete(ctx, repository.KeyUserToken); err != nil {
		return err
	}
	return s.kv.Delete(ctx, repository.KeyUserData)
}
