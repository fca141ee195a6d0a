package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// AppConfig holds the settings shared by every binary
type AppConfig struct {
	JWTSecret        string
	CapabilitySecret string
	AdminTokenTTL    time.Duration

	TokenTTL         time.Duration
	TokenRateWindow  time.Duration
	VotingSessionTTL time.Duration
	CodeDigits       int
	CodeMaxAttempts  int

	PublicBaseURL string
	ClientVoteURL string
	ClientHomeURL string

	Notifier string
	MailFrom string
	AWSRegion string

	KafkaBroker      string
	KafkaBallotTopic string

	RedisHost string
	RedisPort string

	ThrottleLimit  int
	ThrottleWindow time.Duration
}

// LoadEnv reads a .env file when present
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}
}

// LoadAppConfig builds AppConfig from the environment
func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CapabilitySecret: os.Getenv("CAPABILITY_SECRET"),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		ClientVoteURL:    getEnv("CLIENT_VOTE_URL", "http://localhost:3000/vote"),
		ClientHomeURL:    getEnv("CLIENT_HOME_URL", "http://localhost:3000"),
		Notifier:         getEnv("NOTIFIER", "log"),
		MailFrom:         getEnv("MAIL_FROM", "no-reply@election.local"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		KafkaBroker:      os.Getenv("KAFKA_BROKER"),
		KafkaBallotTopic: getEnv("KAFKA_BALLOT_TOPIC", "ballot-events"),
		RedisHost:        getEnv("REDIS_HOST", "localhost"),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
	}

	var err error
	if cfg.AdminTokenTTL, err = getDuration("ADMIN_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("VERIFY_TOKEN_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TokenRateWindow, err = getDuration("VERIFY_RATE_WINDOW", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.VotingSessionTTL, err = getDuration("VOTING_SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ThrottleWindow, err = getDuration("THROTTLE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.CodeDigits, err = getInt("CODE_DIGITS", 5); err != nil {
		return nil, err
	}
	if cfg.CodeMaxAttempts, err = getInt("CODE_MAX_ATTEMPTS", 10); err != nil {
		return nil, err
	}
	if cfg.ThrottleLimit, err = getInt("THROTTLE_LIMIT", 20); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings
func (c *AppConfig) Validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be set to at least 16 characters")
	}
	if c.CapabilitySecret == "" {
		c.CapabilitySecret = c.JWTSecret + ":capability"
	}
	if c.CodeDigits < 3 || c.CodeDigits > 9 {
		return fmt.Errorf("CODE_DIGITS must be between 3 and 9, got %d", c.CodeDigits)
	}
	if c.CodeMaxAttempts < 1 {
		return fmt.Errorf("CODE_MAX_ATTEMPTS must be positive, got %d", c.CodeMaxAttempts)
	}
	if c.TokenRateWindow > c.TokenTTL {
		return fmt.Errorf("VERIFY_RATE_WINDOW (%s) cannot exceed VERIFY_TOKEN_TTL (%s)", c.TokenRateWindow, c.TokenTTL)
	}
	return nil
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to logrus
func ConfigureLogging() {
	if getEnv("LOG_FORMAT", "text") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL, defaulting to info: %v", err)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// ServicePort returns the port for a service, falling back to def
func ServicePort(key, def string) string {
	return getEnv(key, def)
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
