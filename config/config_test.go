package config

import (
	"testing"
	"time"

	"lifeline/models"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMERGENCY_LOCATION_TIMEOUT", "")
	t.Setenv("EMERGENCY_DEFAULT_CHANNELS", "")
	t.Setenv("EMERGENCY_DIRECTORY_TIMEOUT", "")

	cfg := Load()
	assert.Equal(t, 15*time.Second, cfg.LocationTimeout)
	assert.Equal(t, 30*time.Second, cfg.LocationFreshness)
	assert.Equal(t, 5*time.Second, cfg.DirectoryTimeout)
	assert.Equal(t, []models.NotificationChannel{models.ChannelSMS, models.ChannelCall, models.ChannelPush}, cfg.DefaultChannels)
	assert.Equal(t, "@every 5m", cfg.CoordinatorCleanupSched)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EMERGENCY_LOCATION_TIMEOUT", "20")
	t.Setenv("EMERGENCY_AUTO_RESET_AFTER", "0s")
	t.Setenv("EMERGENCY_DIRECTORY_TIMEOUT", "2s")
	t.Setenv("EMERGENCY_DEFAULT_CHANNELS", "Push, fax ,email")
	t.Setenv("CONTACT_CACHE_TTL", "soon")

	cfg := Load()
	assert.Equal(t, 20*time.Second, cfg.LocationTimeout)
	assert.Equal(t, time.Duration(0), cfg.AutoResetAfter)
	assert.Equal(t, 2*time.Second, cfg.DirectoryTimeout)
	assert.Equal(t, []models.NotificationChannel{models.ChannelPush, models.ChannelEmail}, cfg.DefaultChannels)
	assert.Equal(t, time.Minute, cfg.ContactCacheTTL)
}

func TestInitializeChannelSendersWithoutCredentials(t *testing.T) {
	senders := InitializeChannelSenders(&Config{})
	assert.Empty(t, senders)

	senders = InitializeChannelSenders(&Config{SMTPHost: "smtp.example.com", SMTPPort: "25"})
	assert.Contains(t, senders, models.ChannelEmail)
}
