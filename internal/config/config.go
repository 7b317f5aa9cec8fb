package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, shared by the exam runner
// and the dev gateway.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// GatewayBaseURL is the root of the remote exam API, e.g.
	// "http://localhost:8000/api".
	GatewayBaseURL string
	// GatewayToken is the bearer token sent on every gateway call.
	// When empty, cmd/examtake prompts for it.
	GatewayToken   string
	GatewayTimeout time.Duration

	// SnapshotBackend selects where attempt snapshots survive restarts:
	// "file" (default) or "redis" for shared-machine setups.
	SnapshotBackend string
	SnapshotDir     string
	RedisURL        string

	// AutosaveInterval is how often the session controller pushes the
	// full working copy to the gateway while an attempt is active.
	// Zero disables periodic autosave.
	AutosaveInterval time.Duration

	// ExamsFile seeds the dev gateway. Empty means the built-in sample.
	ExamsFile string
	JWTSecret string
	JWTExpiry time.Duration
	// AllowedOrigins controls CORS on the dev gateway. Empty means all
	// origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ServerPort:       getEnv("SERVER_PORT", "8000"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		GatewayBaseURL:   getEnv("GATEWAY_BASE_URL", "http://localhost:8000/api"),
		GatewayToken:     getEnv("GATEWAY_TOKEN", ""),
		GatewayTimeout:   time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 15)) * time.Second,
		SnapshotBackend:  getEnv("SNAPSHOT_BACKEND", "file"),
		SnapshotDir:      getEnv("SNAPSHOT_DIR", defaultSnapshotDir()),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AutosaveInterval: time.Duration(getEnvInt("AUTOSAVE_INTERVAL_SECONDS", 30)) * time.Second,
		ExamsFile:        getEnv("EXAMS_FILE", ""),
		JWTSecret:        getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTExpiry:        time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		AllowedOrigins:   parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func defaultSnapshotDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.examflow"
	}
	return "./.examflow"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
