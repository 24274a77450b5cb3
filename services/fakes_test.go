package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"lifeline/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeLocator struct {
	mu      sync.Mutex
	sample  *models.LocationSample
	err     error
	gate    chan struct{}
	called  chan struct{}
	history []models.LocationSample
}

func (f *fakeLocator) GetCurrentSample(ctx context.Context, timeout time.Duration) (*models.LocationSample, error) {
	f.mu.Lock()
	gate, called := f.gate, f.called
	sample, err := f.sample, f.err
	f.mu.Unlock()

	if called != nil {
		select {
		case called <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	return sample, err
}

func (f *fakeLocator) Refresh(ctx context.Context, timeout time.Duration) (*models.LocationSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.history = append(f.history, *f.sample)
	return f.sample, nil
}

func (f *fakeLocator) History() []models.LocationSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.LocationSample(nil), f.history...)
}

type fakeContacts struct {
	contacts []models.EmergencyContact
	err      error
}

func (f *fakeContacts) List(ctx context.Context) ([]models.EmergencyContact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.EmergencyContact(nil), f.contacts...), nil
}

type dispatchCall struct {
	contact  models.EmergencyContact
	payload  models.EmergencyPayload
	channels []models.NotificationChannel
}

type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []dispatchCall
	failing  map[string]bool
	failAll  bool
	gate     chan struct{}
	returned int32
}

func (f *fakeDispatcher) Send(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload, channels []models.NotificationChannel) []models.ChannelResult {
	f.mu.Lock()
	f.calls = append(f.calls, dispatchCall{contact: contact, payload: payload, channels: channels})
	fail := f.failAll || f.failing[contact.Name]
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	defer atomic.AddInt32(&f.returned, 1)

	results := make([]models.ChannelResult, 0, len(channels))
	for _, ch := range channels {
		r := models.ChannelResult{Channel: ch, Success: !fail}
		if fail {
			r.Error = "boom"
		}
		results = append(results, r)
	}
	return results
}

func (f *fakeDispatcher) Calls() []dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatchCall(nil), f.calls...)
}

func (f *fakeDispatcher) CallsOfKind(kind models.PayloadKind) []dispatchCall {
	var out []dispatchCall
	for _, c := range f.Calls() {
		if c.payload.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeDispatcher) SetGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = gate
}

func (f *fakeDispatcher) SetFailAll(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = fail
}

func (f *fakeDispatcher) Returned() int {
	return int(atomic.LoadInt32(&f.returned))
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.CoordinatorEvent
}

func (s *recordingSink) Emit(event models.CoordinatorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) Count(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*models.EmergencyRecord
	err     error
}

func (r *fakeRecorder) SaveEmergency(ctx context.Context, record *models.EmergencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.err
}

func (r *fakeRecorder) HasState(state models.EmergencyState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.State == state {
			return true
		}
	}
	return false
}

func newContact(name string, primary bool) models.EmergencyContact {
	return models.EmergencyContact{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Phone:     "+15550000000",
		IsPrimary: primary,
	}
}

func testSample(at time.Time) *models.LocationSample {
	return &models.LocationSample{
		Latitude:             40.7128,
		Longitude:            -74.0060,
		AccuracyMeters:       8,
		AccuracyTier:         models.AccuracyGood,
		CapturedAt:           at,
		HumanReadableAddress: "New York, NY",
	}
}

var errStoreDown = errors.New("store down")
