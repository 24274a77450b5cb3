package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lifeline/middleware"
	"lifeline/models"
	"lifeline/services"
	"lifeline/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryStore struct {
	mu       sync.Mutex
	contacts []models.EmergencyContact
}

func (m *memoryStore) ListContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EmergencyContact
	for _, c := range m.contacts {
		if c.UserID.Hex() == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryStore) GetContact(ctx context.Context, userID, contactID string) (*models.EmergencyContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.UserID.Hex() == userID && c.ID.Hex() == contactID {
			contact := c
			return &contact, nil
		}
	}
	return nil, utils.NewContactNotFoundError()
}

func (m *memoryStore) CreateContact(ctx context.Context, contact *models.EmergencyContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact.ID = primitive.NewObjectID()
	contact.CreatedAt = time.Now()
	m.contacts = append(m.contacts, *contact)
	return nil
}

func (m *memoryStore) UpdateContact(ctx context.Context, userID, contactID string, req *models.UpdateEmergencyContactRequest) (*models.EmergencyContact, error) {
	return nil, utils.NewContactNotFoundError()
}

func (m *memoryStore) DeleteContact(ctx context.Context, userID, contactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.contacts {
		if c.UserID.Hex() == userID && c.ID.Hex() == contactID {
			m.contacts = append(m.contacts[:i], m.contacts[i+1:]...)
			return nil
		}
	}
	return utils.NewContactNotFoundError()
}

type positionSource struct {
	err error
}

func (p *positionSource) RequestPosition(ctx context.Context, req services.PositionRequest) (*models.Position, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &models.Position{Latitude: 52.52, Longitude: 13.405, Accuracy: 9, Timestamp: time.Now()}, nil
}

type smsSender struct{}

func (smsSender) Send(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload) (string, error) {
	return "SM-" + contact.Name, nil
}

type historyStore struct {
	records []models.EmergencyRecord
}

func (h *historyStore) GetUserEmergencies(ctx context.Context, userID string, limit int64) ([]models.EmergencyRecord, error) {
	return h.records, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	jwt    *utils.JWTService
	store  *memoryStore
	source *positionSource
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := &memoryStore{}
	source := &positionSource{}
	directory := services.NewContactDirectory(store, time.Minute)
	dispatcher := services.NewNotificationDispatcher(map[models.NotificationChannel]services.ChannelSender{
		models.ChannelSMS: smsSender{},
	})

	cfg := services.DefaultCoordinatorConfig()
	cfg.DefaultChannels = []models.NotificationChannel{models.ChannelSMS}
	cfg.LocationTimeout = time.Second
	cfg.AutoResetAfter = 0

	registry := services.NewCoordinatorRegistry(func(principal models.Principal) *services.EmergencyCoordinator {
		return services.NewEmergencyCoordinator(principal, services.CoordinatorDeps{
			Locator:    services.NewLocationProvider(principal.UserID, source, nil, services.DefaultLocationProviderConfig(), nil),
			Contacts:   directory.ForUser(principal.UserID),
			Dispatcher: dispatcher,
		}, cfg)
	})
	t.Cleanup(registry.Shutdown)

	jwtService := utils.NewJWTService("test-secret", "lifeline")
	auth := middleware.NewAuthMiddleware(jwtService)
	emergency := NewEmergencyController(registry, &historyStore{records: []models.EmergencyRecord{{EpisodeID: "ep-old"}}})
	contacts := NewContactController(directory)

	router := gin.New()
	api := router.Group("/api/v1", auth.RequireAuth())
	api.POST("/emergency/confirm", emergency.BeginConfirmation)
	api.POST("/emergency/confirm/abort", emergency.AbortConfirmation)
	api.POST("/emergency/activate", emergency.Activate)
	api.POST("/emergency/cancel", emergency.Cancel)
	api.POST("/emergency/resolve", emergency.Resolve)
	api.POST("/emergency/reset", emergency.Reset)
	api.GET("/emergency/status", emergency.GetStatus)
	api.POST("/emergency/location/refresh", emergency.RefreshLocation)
	api.GET("/emergency/location/history", emergency.GetLocationHistory)
	api.GET("/emergency/history", emergency.GetEmergencyHistory)
	api.GET("/emergency/contacts", contacts.GetContacts)
	api.POST("/emergency/contacts", contacts.CreateContact)
	api.DELETE("/emergency/contacts/:contactId", contacts.DeleteContact)
	api.POST("/responders/emergencies/:userId/resolve",
		auth.RequireRole(models.RoleResponder, models.RoleAdmin), emergency.ResolveForUser)

	return &testServer{t: t, router: router, jwt: jwtService, store: store, source: source}
}

func (s *testServer) token(principal models.Principal) string {
	token, err := s.jwt.GenerateAccessToken(principal)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(token, method, path string, body interface{}) (int, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *testServer) event(env envelope) models.EmergencyEvent {
	s.t.Helper()
	var event models.EmergencyEvent
	require.NoError(s.t, json.Unmarshal(env.Data, &event))
	return event
}

func (s *testServer) addContact(owner primitive.ObjectID, name string, primary bool) {
	s.store.contacts = append(s.store.contacts, models.EmergencyContact{
		ID: primitive.NewObjectID(), UserID: owner, Name: name, Phone: "+15550000000", IsPrimary: primary,
	})
}

func TestEmergencyLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	owner := primitive.NewObjectID()
	s.addContact(owner, "secondary", false)
	s.addContact(owner, "primary", true)
	token := s.token(models.Principal{UserID: owner.Hex(), DisplayName: "Alex"})

	code, env := s.do(token, http.MethodPost, "/api/v1/emergency/activate", nil)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, models.ErrCodeInvalidTransition, env.Error.Code)
	assert.Equal(t, "activate", env.Error.Details["operation"])
	assert.Equal(t, "idle", env.Error.Details["state"])

	code, env = s.do(token, http.MethodPost, "/api/v1/emergency/confirm", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.EmergencyStateConfirming, s.event(env).State)

	code, env = s.do(token, http.MethodPost, "/api/v1/emergency/activate", nil)
	require.Equal(t, http.StatusOK, code)
	active := s.event(env)
	assert.Equal(t, models.EmergencyStateActive, active.State)
	require.Len(t, active.DispatchOrder, 2)
	assert.Equal(t, "primary", active.NotificationResults[active.DispatchOrder[0]].ContactName)
	require.NotNil(t, active.Location)
	assert.Equal(t, models.AccuracyGood, active.Location.AccuracyTier)

	require.Eventually(t, func() bool {
		_, env := s.do(token, http.MethodGet, "/api/v1/emergency/status", nil)
		return s.event(env).DispatchOutcome == models.DispatchOutcomeFully
	}, 2*time.Second, 10*time.Millisecond)

	code, env = s.do(token, http.MethodPost, "/api/v1/emergency/cancel", gin.H{"reason": "false alarm"})
	require.Equal(t, http.StatusOK, code)
	cancelled := s.event(env)
	assert.Equal(t, models.EmergencyStateCancelled, cancelled.State)
	assert.Equal(t, "false alarm", cancelled.CancelReason)

	code, _ = s.do(token, http.MethodPost, "/api/v1/emergency/cancel", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(token, http.MethodPost, "/api/v1/emergency/reset", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.EmergencyStateIdle, s.event(env).State)
}

func TestCancelReasonIsValidated(t *testing.T) {
	s := newTestServer(t)
	token := s.token(models.Principal{UserID: primitive.NewObjectID().Hex()})

	s.do(token, http.MethodPost, "/api/v1/emergency/confirm", nil)
	s.do(token, http.MethodPost, "/api/v1/emergency/activate", nil)

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}
	code, _ := s.do(token, http.MethodPost, "/api/v1/emergency/cancel", gin.H{"reason": string(long)})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestResponderResolve(t *testing.T) {
	s := newTestServer(t)
	owner := primitive.NewObjectID().Hex()
	userToken := s.token(models.Principal{UserID: owner})
	responderToken := s.token(models.Principal{UserID: "responder-1", Role: models.RoleResponder})

	s.do(userToken, http.MethodPost, "/api/v1/emergency/confirm", nil)
	code, _ := s.do(userToken, http.MethodPost, "/api/v1/emergency/activate", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(userToken, http.MethodPost, "/api/v1/responders/emergencies/"+owner+"/resolve", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(responderToken, http.MethodPost, "/api/v1/responders/emergencies/nobody/resolve", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := s.do(responderToken, http.MethodPost, "/api/v1/responders/emergencies/"+owner+"/resolve", gin.H{"resolution": "on scene"})
	require.Equal(t, http.StatusOK, code)
	resolved := s.event(env)
	assert.Equal(t, models.EmergencyStateResolved, resolved.State)
	assert.Equal(t, "responder-1", resolved.ResolvedBy)
	assert.Equal(t, "on scene", resolved.Resolution)
}

func TestRefreshLocationFailure(t *testing.T) {
	s := newTestServer(t)
	s.source.err = &services.LocationUnavailableError{Reason: models.LocationPermissionDenied, Cause: errors.New("denied")}
	token := s.token(models.Principal{UserID: primitive.NewObjectID().Hex()})

	code, env := s.do(token, http.MethodPost, "/api/v1/emergency/location/refresh", nil)
	require.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, models.ErrCodeExternal, env.Error.Code)
	assert.Equal(t, "permission_denied", env.Error.Details["reason"])

	code, _ = s.do(token, http.MethodGet, "/api/v1/emergency/location/history", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestContactsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	owner := primitive.NewObjectID().Hex()
	token := s.token(models.Principal{UserID: owner})

	code, _ := s.do(token, http.MethodPost, "/api/v1/emergency/contacts", gin.H{"name": "Sam", "phone": "not a phone"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(token, http.MethodPost, "/api/v1/emergency/contacts", gin.H{"name": "Sam", "phone": "+15551234567", "notifyMethods": []string{"pigeon"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := s.do(token, http.MethodPost, "/api/v1/emergency/contacts", gin.H{"name": "Sam", "phone": "+15551234567", "isPrimary": true})
	require.Equal(t, http.StatusCreated, code)
	var created models.EmergencyContact
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, owner, created.UserID.Hex())

	code, env = s.do(token, http.MethodGet, "/api/v1/emergency/contacts", nil)
	require.Equal(t, http.StatusOK, code)
	var listed []models.EmergencyContact
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)

	code, _ = s.do(token, http.MethodDelete, "/api/v1/emergency/contacts/"+created.ID.Hex(), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(token, http.MethodDelete, "/api/v1/emergency/contacts/"+created.ID.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEmergencyHistory(t *testing.T) {
	s := newTestServer(t)
	token := s.token(models.Principal{UserID: "u-1"})

	code, env := s.do(token, http.MethodGet, "/api/v1/emergency/history?limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "ep-old")

	code, _ = s.do(token, http.MethodGet, "/api/v1/emergency/history?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
