package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthModeLocal  = "local"
	AuthModeRemote = "remote"
)

type Config struct {
	// Dashboard client.
	APIBaseURL    string
	WSBaseURL     string
	AuthMode      string
	SessionFile   string
	CheckInterval time.Duration
	LoginUsername string
	LoginPassword string

	// Shared token policy.
	TokenSecret string
	TokenExpiry time.Duration

	// Simulator.
	Port              int
	GinMode           string
	TelemetryInterval time.Duration
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	// Optional .env next to the binary; absence is not an error.
	_ = godotenv.Load()
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		APIBaseURL:        "http://localhost:8080/api",
		WSBaseURL:         "ws://localhost:8080/api/ws",
		AuthMode:          AuthModeLocal,
		SessionFile:       defaultSessionFile(),
		CheckInterval:     time.Minute,
		TokenSecret:       "aquadash-dev",
		TokenExpiry:       7 * 24 * time.Hour,
		Port:              8080,
		GinMode:           "release",
		TelemetryInterval: 5 * time.Second,
	}

	if raw := env.Getenv("API_BASE_URL"); raw != "" {
		cfg.APIBaseURL = raw
	}
	if raw := env.Getenv("WS_BASE_URL"); raw != "" {
		cfg.WSBaseURL = raw
	}

	if raw := env.Getenv("AUTH_MODE"); raw != "" {
		if raw != AuthModeLocal && raw != AuthModeRemote {
			return Config{}, fmt.Errorf("invalid AUTH_MODE %q", raw)
		}
		cfg.AuthMode = raw
	}

	if raw := env.Getenv("SESSION_FILE"); raw != "" {
		cfg.SessionFile = raw
	}

	if raw := env.Getenv("TOKEN_CHECK_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_CHECK_SECONDS")
		}
		cfg.CheckInterval = time.Duration(seconds) * time.Second
	}

	cfg.LoginUsername = env.Getenv("LOGIN_USERNAME")
	cfg.LoginPassword = env.Getenv("LOGIN_PASSWORD")

	if raw := env.Getenv("TOKEN_SECRET"); raw != "" {
		cfg.TokenSecret = raw
	}

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	if raw := env.Getenv("TELEMETRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TELEMETRY_SECONDS")
		}
		cfg.TelemetryInterval = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "aquadash-session.json"
	}
	return filepath.Join(dir, "aquadash", "session.json")
}
