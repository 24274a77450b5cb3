package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lifeline/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService(t *testing.T) {
	svc := NewJWTService("secret", "lifeline")

	token, err := svc.GenerateAccessToken(models.Principal{UserID: "u1", DisplayName: "Alex"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	p := claims.Principal()
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "Alex", p.Name())
	assert.Equal(t, models.RoleUser, p.Role)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJWTService("other", "lifeline").ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1", TokenType: "refresh"})
		signed, err := refresh.SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = svc.ValidateToken(signed)
		assert.ErrorContains(t, err, "token type")
	})
}

func TestServiceError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewDatabaseError("insert", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)

	wrapped := errors.Join(errors.New("outer"), NewConflictError("busy").WithDetail("state", "active"))
	se, ok := GetServiceError(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.Equal(t, "active", se.Details["state"])
}

func TestValidationService(t *testing.T) {
	vs := NewValidationService()

	valid := models.CreateEmergencyContactRequest{
		Name:          "Sam",
		Phone:         "+15551234567",
		NotifyMethods: []models.NotificationChannel{models.ChannelSMS, models.ChannelCall},
	}
	assert.Empty(t, vs.ValidateStruct(valid))

	invalid := models.CreateEmergencyContactRequest{
		Phone:         "12",
		Email:         "not-an-email",
		NotifyMethods: []models.NotificationChannel{"pigeon"},
	}
	errs := vs.ValidateStruct(invalid)
	tags := make([]string, 0, len(errs))
	for _, e := range errs {
		tags = append(tags, e.Tag)
	}
	assert.ElementsMatch(t, []string{"required", "phone", "email", "channel"}, tags)
}

func TestTruncateAndPhoneHelpers(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	truncated := TruncateString(strings.Repeat("é", 20), 10)
	assert.Equal(t, 10, len([]rune(truncated)))
	assert.True(t, strings.HasSuffix(truncated, "..."))

	assert.Equal(t, "+15551234567", NormalizePhoneNumber("(555) 123-4567"))
	assert.Equal(t, "+*******4567", MaskPhoneNumber("+1 555 123 4567"))
	assert.True(t, IsValidCoordinate(45, 90))
	assert.False(t, IsValidCoordinate(91, 0))

	// London to Paris is roughly 344km
	assert.InDelta(t, 343500, CalculateDistance(51.5074, -0.1278, 48.8566, 2.3522), 1500)
	assert.Zero(t, CalculateDistance(10, 10, 10, 10))
}

func TestHandleServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"untyped error", errors.New("boom"), http.StatusInternalServerError, models.ErrCodeInternal},
		{"forbidden", NewForbiddenError("not yours"), http.StatusForbidden, models.ErrCodeAuthorization},
		{"unavailable", NewServiceUnavailableError("down"), http.StatusServiceUnavailable, models.ErrCodeExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/emergency/status", nil)

			HandleServiceError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body models.APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}
