//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hatid-express/client-core/internal/application"
	"github.com/hatid-express/client-core/internal/domain"
	"github.com/hatid-express/client-core/internal/location"
	"github.com/hatid-express/client-core/internal/platform"
	"github.com/hatid-express/client-core/internal/repository"
	"github.com/hatid-express/client-core/internal/store"
)

func TestKVStoreRoundTrip(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	ctx := context.Background()

	kv := repository.NewGormKVStore(infra.DB)

	require.NoError(t, kv.Set(ctx, "userToken", "tok-1"))
	got, err := kv.Get(ctx, "userToken")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	// Upsert overwrites.
	require.NoError(t, kv.Set(ctx, "userToken", "tok-2"))
	got, err = kv.Get(ctx, "userToken")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got)

	require.NoError(t, kv.Delete(ctx, "userToken"))
	_, err = kv.Get(ctx, "userToken")
	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.KindNotFound, derr.Kind)

	// Deleting a missing key is not an error.
	assert.NoError(t, kv.Delete(ctx, "userToken"))
}

func TestLocationRecordStorePersistsAndJournals(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	ctx := context.Background()

	kv := repository.NewGormKVStore(infra.DB)
	records := repository.NewLocationRecordStore(kv, infra.DB)

	first := location.CachedLocation{
		Latitude: 10.6765, Longitude: 122.9509,
		Timestamp: time.Now().Add(-time.Minute).UnixMilli(),
		Source:    location.SourceGPS,
	}
	second := location.CachedLocation{
		Latitude: 10.6800, Longitude: 122.9600,
		Timestamp: time.Now().UnixMilli(),
		Source:    location.SourceNetwork,
	}

	require.NoError(t, records.Save(ctx, first))
	require.NoError(t, records.Save(ctx, second))

	loaded, ok, err := records.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, loaded)

	history, err := records.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "network", history[0].Source)
	assert.Equal(t, "gps", history[1].Source)

	require.NoError(t, records.Clear(ctx))
	_, ok, err = records.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocationRecordStoreReadsLegacyKey(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	ctx := context.Background()

	kv := repository.NewGormKVStore(infra.DB)
	records := repository.NewLocationRecordStore(kv, infra.DB)

	legacy := location.CachedLocation{
		Latitude: 10.70, Longitude: 122.95,
		Timestamp: time.Now().UnixMilli(),
		Source:    location.SourceGPS,
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, repository.KeyLastKnownLocation, string(raw)))

	loaded, ok, err := records.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, legacy, loaded)
}

func TestLocationServiceAgainstRealInfra(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	ctx := context.Background()

	// Shell state: permission granted, services on, one coarse network fix.
	require.NoError(t, infra.Redis.Set(ctx, "device:permission:location", "granted", 0).Err())
	require.NoError(t, infra.Redis.Set(ctx, "device:location:services", "1", 0).Err())
	fix := map[string]any{"lat": 10.6800, "lon": 122.9600, "ts": time.Now().UnixMilli()}
	rawFix, _ := json.Marshal(fix)
	require.NoError(t, infra.Redis.Set(ctx, "device:fix:network", string(rawFix), 0).Err())

	kv := repository.NewGormKVStore(infra.DB)
	records := repository.NewLocationRecordStore(kv, infra.DB)

	newService := func() *location.Service {
		return location.NewService(location.Deps{
			GPS:         platform.NewGPSProvider(infra.Redis),
			Network:     platform.NewNetworkProvider(infra.Redis),
			Permissions: platform.NewRedisPermissions(infra.Redis),
			Store:       records,
			Logger:      zap.NewNop(),
			Fallback:    location.Fix{Latitude: 10.6772, Longitude: 122.9547},
			GPSTimeout:  300 * time.Millisecond,
		})
	}

	svc := newService()
	require.NoError(t, svc.Start(ctx))

	// No GPS fix published, so the service falls through to the network tier.
	loc := svc.GetLocation(ctx)
	assert.Equal(t, location.SourceNetwork, loc.Source)
	assert.Equal(t, 10.6800, loc.Latitude)

	// A fresh process picks the persisted fix back up.
	restarted := newService()
	require.NoError(t, restarted.Start(ctx))
	current, ok := restarted.Current()
	require.True(t, ok)
	assert.Equal(t, loc, current)
}

func TestSessionSurvivesRestart(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	ctx := context.Background()

	kv := repository.NewGormKVStore(infra.DB)

	first := application.NewSessionService(kv, store.NewDeliveryStore(), zap.NewNop())
	require.NoError(t, first.SaveSession(ctx, "tok-abc", 42))

	// Simulate a restart: fresh stores, same database.
	delivery := store.NewDeliveryStore()
	second := application.NewSessionService(kv, delivery, zap.NewNop())
	second.SeedSender(ctx)

	sender := delivery.Snapshot().SenderID
	require.NotNil(t, sender)
	assert.EqualValues(t, 42, *sender)

	require.NoError(t, second.ClearSession(ctx))
	_, err := second.UserID(ctx)
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
}
