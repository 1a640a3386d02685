/*
Package configs is responsible for loading and parsing the application's
configuration settings.

All values come from environment variables, with a .env file loaded first in
development for convenience. The catalog source is chosen here: a Postgres
catalog when DATABASE_URL is set, otherwise a Plex server when PLEX_SERVER_URL
is set, otherwise the server starts unconfigured and tells clients so.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig contains all configuration parameters required for the server to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	RoomKeySecret  string

	// Connection rate limiting (per IP, upgrade endpoint).
	ConnRate  float64
	ConnBurst int

	// Plex Settings
	PlexServerURL      string
	PlexServerToken    string
	PlexSectionID      string
	RequirePlexTvLogin bool

	// Database Settings (optional; enables the Postgres catalog when set).
	DatabaseDSN string
}

// RequiresConfiguration reports whether no catalog source has been configured.
// Clients are told this in the initial config message so they can show setup UI.
func (c *AppConfig) RequiresConfiguration() bool {
	return c.PlexServerURL == "" && c.DatabaseDSN == ""
}

// LoadConfig reads and parses the application configuration from environment
// variables, applying defaults and validating each value.
func LoadConfig() (*AppConfig, error) {
	// Missing .env is fine; real environments set their variables directly.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	roomKeySecret := os.Getenv("ROOM_KEY_SECRET")
	if cfg.Environment == "development" {
		if roomKeySecret == "" {
			roomKeySecret = "insecure_development_room_key_secret"
		}
	} else {
		if roomKeySecret == "" {
			return nil, fmt.Errorf("ROOM_KEY_SECRET environment variable is required in %s environment", cfg.Environment)
		}
	}
	cfg.RoomKeySecret = roomKeySecret

	// --- Connection rate limiting ---
	cfg.ConnRate, err = floatEnv("CONN_RATE", 0.5)
	if err != nil {
		return nil, err
	}
	cfg.ConnBurst, err = intEnv("CONN_BURST", 5)
	if err != nil {
		return nil, err
	}

	// --- Plex Settings ---
	cfg.PlexServerURL = strings.TrimSuffix(os.Getenv("PLEX_SERVER_URL"), "/")
	cfg.PlexServerToken = os.Getenv("PLEX_SERVER_TOKEN")
	cfg.PlexSectionID = os.Getenv("PLEX_SECTION_ID")
	if cfg.PlexSectionID == "" {
		cfg.PlexSectionID = "1"
	}
	if cfg.PlexServerURL != "" && cfg.PlexServerToken == "" {
		return nil, fmt.Errorf("PLEX_SERVER_TOKEN environment variable is required when PLEX_SERVER_URL is set")
	}

	requireLoginStr := os.Getenv("REQUIRE_PLEX_LOGIN")
	if requireLoginStr != "" {
		requireLogin, err := strconv.ParseBool(requireLoginStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUIRE_PLEX_LOGIN environment variable: %w", err)
		}
		cfg.RequirePlexTvLogin = requireLogin
	}

	// --- Database Settings ---
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")

	return cfg, nil
}

// intEnv reads an integer environment variable with a default.
func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

// floatEnv reads a float environment variable with a default.
func floatEnv(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
