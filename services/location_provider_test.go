package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"lifeline/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	calls int32
	pos   *models.Position
	err   error
}

func (s *stubSource) RequestPosition(ctx context.Context, req PositionRequest) (*models.Position, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.pos, s.err
}

type stubGeocoder struct {
	calls   int32
	address string
	err     error
}

func (g *stubGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	return g.address, g.err
}

func TestLocationProvider_GetCurrentSample(t *testing.T) {
	clock := newFakeClock()
	source := &stubSource{pos: &models.Position{Latitude: 51.5, Longitude: -0.12, Accuracy: 4, Timestamp: clock.Now()}}
	geocoder := &stubGeocoder{address: "10 Downing St, London"}
	lp := NewLocationProvider("user-1", source, geocoder, DefaultLocationProviderConfig(), clock.Now)

	sample, err := lp.GetCurrentSample(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 51.5, sample.Latitude)
	assert.Equal(t, models.AccuracyExcellent, sample.AccuracyTier)
	assert.Equal(t, "10 Downing St, London", sample.HumanReadableAddress)
	assert.Equal(t, clock.Now(), sample.CapturedAt)

	t.Run("reuses a fresh sample", func(t *testing.T) {
		clock.Advance(10 * time.Second)
		_, err := lp.GetCurrentSample(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&source.calls))
	})

	t.Run("stale cache goes back to the device", func(t *testing.T) {
		clock.Advance(31 * time.Second)
		source.pos = &models.Position{Latitude: 51.6, Longitude: -0.12, Accuracy: 15}
		sample, err := lp.GetCurrentSample(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&source.calls))
		assert.Equal(t, models.AccuracyModerate, sample.AccuracyTier)
		assert.Equal(t, clock.Now(), sample.CapturedAt)
	})

	t.Run("refresh bypasses cache", func(t *testing.T) {
		_, err := lp.Refresh(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&source.calls))
		assert.Len(t, lp.History(), 3)
	})
}

func TestLocationProvider_Failures(t *testing.T) {
	tests := []struct {
		name   string
		source PositionSource
		reason models.LocationFailureReason
	}{
		{
			name:   "permission denied",
			source: &stubSource{err: &LocationUnavailableError{Reason: models.LocationPermissionDenied}},
			reason: models.LocationPermissionDenied,
		},
		{
			name:   "generic source error",
			source: &stubSource{err: errors.New("gps off")},
			reason: models.LocationUnavailable,
		},
		{
			name:   "invalid coordinates",
			source: &stubSource{pos: &models.Position{Latitude: 123, Longitude: 0, Accuracy: 3}},
			reason: models.LocationUnavailable,
		},
		{
			name:   "negative accuracy",
			source: &stubSource{pos: &models.Position{Latitude: 1, Longitude: 1, Accuracy: -1}},
			reason: models.LocationUnavailable,
		},
		{
			name:   "source ignores deadline",
			source: blockingSource{},
			reason: models.LocationTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lp := NewLocationProvider("user-1", tt.source, nil, DefaultLocationProviderConfig(), nil)

			sample, err := lp.GetCurrentSample(context.Background(), 30*time.Millisecond)
			assert.Nil(t, sample)
			var lu *LocationUnavailableError
			require.ErrorAs(t, err, &lu)
			assert.Equal(t, tt.reason, lu.Reason)
			assert.Empty(t, lp.History())
		})
	}
}

func TestLocationProvider_GeocodeFallback(t *testing.T) {
	source := &stubSource{pos: &models.Position{Latitude: 10.123456, Longitude: 20.654321, Accuracy: 50}}
	lp := NewLocationProvider("user-1", source, &stubGeocoder{err: errors.New("rate limited")}, DefaultLocationProviderConfig(), nil)

	sample, err := lp.Refresh(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "10.12346, 20.65432", sample.HumanReadableAddress)
	assert.Equal(t, models.AccuracyLow, sample.AccuracyTier)
}

func TestLocationProvider_HistoryIsBounded(t *testing.T) {
	source := &stubSource{pos: &models.Position{Latitude: 1, Longitude: 1, Accuracy: 5}}
	cfg := DefaultLocationProviderConfig()
	cfg.HistorySize = 3
	lp := NewLocationProvider("user-1", source, nil, cfg, nil)

	for i := 0; i < 5; i++ {
		source.pos = &models.Position{Latitude: float64(i), Longitude: 1, Accuracy: 5}
		_, err := lp.Refresh(context.Background(), time.Second)
		require.NoError(t, err)
	}

	history := lp.History()
	require.Len(t, history, 3)
	assert.Equal(t, 2.0, history[0].Latitude)
	assert.Equal(t, 4.0, history[2].Latitude)
}
