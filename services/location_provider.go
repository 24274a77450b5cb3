package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"lifeline/models"
	"lifeline/utils"

	"github.com/sirupsen/logrus"
)

// PositionRequest describes a single fix request sent to a device.
type PositionRequest struct {
	UserID       string
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// PositionSource is the platform capability that produces raw fixes.
type PositionSource interface {
	RequestPosition(ctx context.Context, req PositionRequest) (*models.Position, error)
}

type LocationProviderConfig struct {
	FreshnessWindow time.Duration
	HistorySize     int
	GeocodeTimeout  time.Duration
}

func DefaultLocationProviderConfig() LocationProviderConfig {
	return LocationProviderConfig{
		FreshnessWindow: 30 * time.Second,
		HistorySize:     20,
		GeocodeTimeout:  3 * time.Second,
	}
}

// LocationProvider produces best-effort location samples for one user and
// remembers a bounded history of them.
type LocationProvider struct {
	userID   string
	source   PositionSource
	geocoder ReverseGeocoder
	config   LocationProviderConfig
	now      func() time.Time

	mu      sync.Mutex
	latest  *models.LocationSample
	history []models.LocationSample
}

func NewLocationProvider(userID string, source PositionSource, geocoder ReverseGeocoder, config LocationProviderConfig, now func() time.Time) *LocationProvider {
	if now == nil {
		now = time.Now
	}
	if config.HistorySize <= 0 {
		config.HistorySize = 20
	}
	if config.GeocodeTimeout <= 0 {
		config.GeocodeTimeout = 3 * time.Second
	}
	return &LocationProvider{
		userID:   userID,
		source:   source,
		geocoder: geocoder,
		config:   config,
		now:      now,
	}
}

// GetCurrentSample returns the cached sample when it is still fresh and
// otherwise asks the device, never waiting longer than timeout.
func (lp *LocationProvider) GetCurrentSample(ctx context.Context, timeout time.Duration) (*models.LocationSample, error) {
	if sample := lp.freshSample(); sample != nil {
		return sample, nil
	}
	return lp.acquire(ctx, timeout)
}

// Refresh always asks the device, bypassing the cache.
func (lp *LocationProvider) Refresh(ctx context.Context, timeout time.Duration) (*models.LocationSample, error) {
	return lp.acquire(ctx, timeout)
}

// History returns recorded samples, oldest first.
func (lp *LocationProvider) History() []models.LocationSample {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	out := make([]models.LocationSample, len(lp.history))
	copy(out, lp.history)
	return out
}

func (lp *LocationProvider) freshSample() *models.LocationSample {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if lp.latest == nil || lp.latest.IsStale(lp.now(), lp.config.FreshnessWindow) {
		return nil
	}
	sample := *lp.latest
	return &sample
}

type positionResult struct {
	pos *models.Position
	err error
}

func (lp *LocationProvider) acquire(ctx context.Context, timeout time.Duration) (*models.LocationSample, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if lp.source == nil {
		return nil, &LocationUnavailableError{Reason: models.LocationUnavailable, Cause: errors.New("no position source")}
	}

	// Buffered so the source goroutine never leaks when we give up first.
	results := make(chan positionResult, 1)
	go func() {
		pos, err := lp.source.RequestPosition(ctx, PositionRequest{
			UserID:       lp.userID,
			HighAccuracy: true,
			Timeout:      timeout,
			MaximumAge:   lp.config.FreshnessWindow,
		})
		results <- positionResult{pos: pos, err: err}
	}()

	var res positionResult
	select {
	case <-ctx.Done():
		return nil, lp.contextFailure(ctx.Err())
	case res = <-results:
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
			return nil, lp.contextFailure(res.err)
		}
		return nil, AsLocationUnavailable(res.err)
	}
	if res.pos == nil || !utils.IsValidCoordinate(res.pos.Latitude, res.pos.Longitude) || res.pos.Accuracy < 0 {
		return nil, &LocationUnavailableError{Reason: models.LocationUnavailable, Cause: errors.New("invalid position reported")}
	}

	sample := lp.buildSample(ctx, res.pos)
	lp.record(sample)
	return &sample, nil
}

func (lp *LocationProvider) contextFailure(err error) *LocationUnavailableError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &LocationUnavailableError{Reason: models.LocationTimeout, Cause: err}
	}
	return &LocationUnavailableError{Reason: models.LocationUnavailable, Cause: err}
}

func (lp *LocationProvider) buildSample(ctx context.Context, pos *models.Position) models.LocationSample {
	now := lp.now()
	captured := pos.Timestamp
	if captured.IsZero() || captured.After(now) {
		captured = now
	}

	sample := models.LocationSample{
		Latitude:             pos.Latitude,
		Longitude:            pos.Longitude,
		AccuracyMeters:       pos.Accuracy,
		AccuracyTier:         models.TierForAccuracy(pos.Accuracy),
		CapturedAt:           captured,
		HumanReadableAddress: models.PlaceholderAddress(pos.Latitude, pos.Longitude),
	}

	if lp.geocoder == nil {
		return sample
	}
	gctx, cancel := context.WithTimeout(ctx, lp.config.GeocodeTimeout)
	defer cancel()
	address, err := lp.geocoder.ReverseGeocode(gctx, pos.Latitude, pos.Longitude)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": lp.userID}).Warnf("Reverse geocoding failed: %v", err)
		return sample
	}
	if address != "" {
		sample.HumanReadableAddress = address
	}
	return sample
}

func (lp *LocationProvider) record(sample models.LocationSample) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if lp.latest != nil {
		moved := utils.CalculateDistance(lp.latest.Latitude, lp.latest.Longitude, sample.Latitude, sample.Longitude)
		logrus.WithFields(logrus.Fields{"user_id": lp.userID, "moved_m": moved}).Debug("Location sample recorded")
	}

	latest := sample
	lp.latest = &latest
	lp.history = append(lp.history, sample)
	if over := len(lp.history) - lp.config.HistorySize; over > 0 {
		lp.history = append([]models.LocationSample(nil), lp.history[over:]...)
	}
}
