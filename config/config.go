package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"lifeline/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Environment string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// Firebase Config
	FirebaseCredentials string

	// Twilio Config
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// SMTP Settings
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Emergency settings
	LocationTimeout   time.Duration
	LocationFreshness time.Duration
	DirectoryTimeout  time.Duration
	LocationHistory   int
	DefaultChannels   []models.NotificationChannel
	AutoResetAfter    time.Duration
	ContactCacheTTL   time.Duration

	// Geocoding
	GeocoderURL      string
	GeocodeCacheSize int

	// Coordinator housekeeping
	CoordinatorIdleTTL      time.Duration
	CoordinatorCleanupSched string

	// Rate limiting on confirm/activate, per user per minute
	EmergencyRateLimit int
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/lifeline"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "your-super-secret-jwt-key"),

		// Firebase
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_PATH", ""),

		// Twilio
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		// Email settings
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "alerts@lifeline.app"),

		LocationTimeout:   getEnvAsDuration("EMERGENCY_LOCATION_TIMEOUT", 15*time.Second),
		LocationFreshness: getEnvAsDuration("EMERGENCY_LOCATION_FRESHNESS", 30*time.Second),
		DirectoryTimeout:  getEnvAsDuration("EMERGENCY_DIRECTORY_TIMEOUT", 5*time.Second),
		LocationHistory:   getEnvAsInt("EMERGENCY_LOCATION_HISTORY", 20),
		DefaultChannels:   getEnvAsChannels("EMERGENCY_DEFAULT_CHANNELS", []models.NotificationChannel{models.ChannelSMS, models.ChannelCall, models.ChannelPush}),
		AutoResetAfter:    getEnvAsDuration("EMERGENCY_AUTO_RESET_AFTER", 10*time.Minute),
		ContactCacheTTL:   getEnvAsDuration("CONTACT_CACHE_TTL", time.Minute),

		GeocoderURL:      getEnv("GEOCODER_URL", ""),
		GeocodeCacheSize: getEnvAsInt("GEOCODE_CACHE_SIZE", 512),

		CoordinatorIdleTTL:      getEnvAsDuration("COORDINATOR_IDLE_TTL", 30*time.Minute),
		CoordinatorCleanupSched: getEnv("COORDINATOR_CLEANUP_SCHEDULE", "@every 5m"),

		EmergencyRateLimit: getEnvAsInt("EMERGENCY_RATE_LIMIT", 10),
	}
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// Fallback to default config
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	client := redis.NewClient(opt)
	return client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("15s") or bare seconds ("15").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	logrus.Warnf("Invalid duration for %s: %q, using %s", key, value, defaultValue)
	return defaultValue
}

func getEnvAsChannels(key string, defaultValue []models.NotificationChannel) []models.NotificationChannel {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var channels []models.NotificationChannel
	for _, part := range strings.Split(value, ",") {
		ch := models.NotificationChannel(strings.ToLower(strings.TrimSpace(part)))
		if ch == "" {
			continue
		}
		if !ch.IsValid() {
			logrus.Warnf("Ignoring unknown notification channel %q in %s", ch, key)
			continue
		}
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		return defaultValue
	}
	return channels
}
