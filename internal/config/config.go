package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string

	// Pitch generation service
	PitchGenURL     string
	PitchGenTimeout time.Duration

	// Offer ranking
	RankWPrincipal float64
	RankWInterest  float64
	OfferCacheTTL  time.Duration

	// Lifecycle policy
	TieBreakFirstBidder   bool
	BlockSubmitAfterFinal bool

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// App Defaults
	AppName string

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode, // Set from flag
	}

	var err error

	// Helper function to get env var or default
	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	// Helper function to get required env var
	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	// Load basic string values
	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "finvest")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.PitchGenURL = getEnv("PITCHGEN_URL", "http://localhost:5001/generate-pitch")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@finvest.example.com")
	cfg.AppName = getEnv("APP_NAME", "Finvest")

	// Load numeric and time duration values with defaults and parsing
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	pitchGenTimeoutSeconds, err := strconv.ParseInt(getEnv("PITCHGEN_TIMEOUT_SECONDS", "30"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PITCHGEN_TIMEOUT_SECONDS: %w", err)
	}
	cfg.PitchGenTimeout = time.Duration(pitchGenTimeoutSeconds) * time.Second

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.RankWPrincipal, err = strconv.ParseFloat(getEnv("RANK_W_PRINCIPAL", "0.6"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RANK_W_PRINCIPAL: %w", err)
	}
	cfg.RankWInterest, err = strconv.ParseFloat(getEnv("RANK_W_INTEREST", "0.4"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RANK_W_INTEREST: %w", err)
	}

	offerCacheTTLSeconds, err := strconv.ParseInt(getEnv("OFFER_CACHE_TTL_SECONDS", "30"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OFFER_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.OfferCacheTTL = time.Duration(offerCacheTTLSeconds) * time.Second

	cfg.TieBreakFirstBidder, err = strconv.ParseBool(getEnv("TIE_BREAK_FIRST_BIDDER", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIE_BREAK_FIRST_BIDDER: %w", err)
	}
	cfg.BlockSubmitAfterFinal, err = strconv.ParseBool(getEnv("BLOCK_SUBMIT_AFTER_FINAL", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid BLOCK_SUBMIT_AFTER_FINAL: %w", err)
	}

	// Rate Limiting
	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
