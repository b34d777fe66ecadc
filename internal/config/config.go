package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds client configuration read from the environment.
type Config struct {
	APIBaseURL     string
	Env            string
	LogLevel       string
	HTTPTimeout    time.Duration
	TokenPath      string
	LookaheadDays  int
	SlotRangeDays  int
	CutoffHour     int
	PushTransport  string // "redis" or "websocket"
	PushWSEndpoint string
	ClinicsTopic   string
	RedisAddr      string
	RedisPassword  string
	MetricsEnabled bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		APIBaseURL:     getEnv("EKLINIK_API_URL", "https://api.apiyonetim.gen.tr/api"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		HTTPTimeout:    getEnvAsDuration("EKLINIK_HTTP_TIMEOUT", 20*time.Second),
		TokenPath:      getEnv("EKLINIK_TOKEN_PATH", defaultTokenPath()),
		LookaheadDays:  getEnvAsInt("EKLINIK_LOOKAHEAD_DAYS", 7),
		SlotRangeDays:  getEnvAsInt("EKLINIK_SLOT_RANGE_DAYS", 30),
		CutoffHour:     getEnvAsInt("EKLINIK_CUTOFF_HOUR", 17),
		PushTransport:  getEnv("EKLINIK_PUSH_TRANSPORT", "websocket"),
		PushWSEndpoint: getEnv("EKLINIK_PUSH_WS_ENDPOINT", "wss://api.apiyonetim.gen.tr/ws"),
		ClinicsTopic:   getEnv("EKLINIK_CLINICS_TOPIC", "clinics"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		MetricsEnabled: getEnvAsBool("EKLINIK_METRICS_ENABLED", false),
	}
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".eklinik-token"
	}
	return home + "/.eklinik/token"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
