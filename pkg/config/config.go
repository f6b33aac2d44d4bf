package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	DatabaseURL      string
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleMapsAPIKey   string

	// TokenEncryptionKey encrypts stored Google refresh tokens at rest.
	// Hex-encoded; must decode to 16, 24 or 32 bytes.
	TokenEncryptionKey string

	GoogleProjectID     string
	GooglePubSubTopic   string
	FirebaseCredentials string

	// FeedFetchTimeout bounds a single upstream ICS fetch.
	FeedFetchTimeout time.Duration
	// DefaultComfortBufferMinutes is used when a user has not configured
	// how early they want to arrive before an event.
	DefaultComfortBufferMinutes int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	fetchTimeout := 15 * time.Second
	if t := os.Getenv("FEED_FETCH_TIMEOUT"); t != "" {
		if parsed, err := time.ParseDuration(t); err == nil {
			fetchTimeout = parsed
		}
	}

	accessExpiry := 15 * time.Minute
	if exp := os.Getenv("JWT_ACCESS_EXPIRY"); exp != "" {
		if parsed, err := time.ParseDuration(exp); err == nil {
			accessExpiry = parsed
		}
	}

	refreshExpiry := 168 * time.Hour // 7 days
	if exp := os.Getenv("JWT_REFRESH_EXPIRY"); exp != "" {
		if parsed, err := time.ParseDuration(exp); err == nil {
			refreshExpiry = parsed
		}
	}

	return &Config{
		Port:                        getEnv("PORT", "8080"),
		DatabaseURL:                 getEnv("DATABASE_URL", "host=localhost user=postgres dbname=famcal port=5432 sslmode=disable"),
		JWTSecret:                   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:             accessExpiry,
		JWTRefreshExpiry:            refreshExpiry,
		GoogleClientID:              getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:          getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:           getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/auth/google/callback"),
		GoogleMapsAPIKey:            getEnv("GOOGLE_MAPS_API_KEY", ""),
		TokenEncryptionKey:          getEnv("TOKEN_ENCRYPTION_KEY", ""),
		GoogleProjectID:             getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:           getEnv("GOOGLE_PUBSUB_TOPIC", "famcal-event-updates"),
		FirebaseCredentials:         getEnv("FIREBASE_CREDENTIALS", ""),
		FeedFetchTimeout:            fetchTimeout,
		DefaultComfortBufferMinutes: getEnvInt("DEFAULT_COMFORT_BUFFER_MINUTES", 15),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
