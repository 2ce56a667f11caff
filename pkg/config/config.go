// pkg/config/config.go
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// SquidexApp holds the client credentials for one Squidex app. URL is
// optional; an empty value falls back to Config.SquidexDefaultURL.
type SquidexApp struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	URL          string `json:"url,omitempty"`
}

type Config struct {
	Env      string
	HTTPAddr string
	BasePath string

	// Firebase
	FirebaseProjectID   string
	FirebaseCredentials string // optional service-account key file
	FirebaseWebAPIKey   string // Identity Toolkit REST key (login/refresh)

	// Google Analytics Measurement Protocol
	MeasurementID      string
	AnalyticsAPISecret string

	// Squidex
	SquidexDefaultURL string
	SquidexDefaultApp string
	SquidexApps       map[string]SquidexApp

	// Redis (optional; rate limiting falls back to in-process counters)
	RedisURL string
}

// fileConfig mirrors the optional JSON config file. File values take
// precedence over environment variables.
type fileConfig struct {
	FirebaseProjectID  string                `json:"FIREBASE_PROJECT_ID"`
	FirebaseWebAPIKey  string                `json:"FIREBASE_WEB_API_KEY"`
	MeasurementID      string                `json:"GAMES_MEASUREMENT_ID"`
	AnalyticsAPISecret string                `json:"ANALYTICS_SECRET_KEY"`
	SquidexDefaultURL  string                `json:"SQUIDEX_DEFAULT_URL"`
	SquidexDefaultApp  string                `json:"SQUIDEX_DEFAULT_APP"`
	SquidexApps        map[string]SquidexApp `json:"SQUIDEX_APPS"`
}

func Load() Config {
	_ = godotenv.Load()
	fc := loadConfigFile()
	cfg := Config{
		Env:                 env("APGATE_ENV", "dev"),
		HTTPAddr:            env("APGATE_HTTP_ADDR", ":8080"),
		BasePath:            env("BASE_PATH", "/"),
		FirebaseProjectID:   pick(fc.FirebaseProjectID, "FIREBASE_PROJECT_ID", ""),
		FirebaseCredentials: env("GOOGLE_APPLICATION_CREDENTIALS", ""),
		FirebaseWebAPIKey:   pick(fc.FirebaseWebAPIKey, "FIREBASE_WEB_API_KEY", ""),
		MeasurementID:       pick(fc.MeasurementID, "GAMES_MEASUREMENT_ID", ""),
		AnalyticsAPISecret:  pick(fc.AnalyticsAPISecret, "ANALYTICS_SECRET_KEY", ""),
		SquidexDefaultURL:   pick(fc.SquidexDefaultURL, "SQUIDEX_DEFAULT_URL", ""),
		SquidexDefaultApp:   pick(fc.SquidexDefaultApp, "SQUIDEX_DEFAULT_APP", ""),
		SquidexApps:         fc.SquidexApps,
		RedisURL:            env("REDIS_URL", ""),
	}
	if len(cfg.SquidexApps) == 0 {
		cfg.SquidexApps = parseSquidexApps()
	}
	if cfg.FirebaseWebAPIKey == "" {
		log.Println("[WARN] FIREBASE_WEB_API_KEY not set — /login and /refresh will be unavailable")
	}
	return cfg
}

// loadConfigFile reads the optional JSON config file pointed at by
// APGATE_CONFIG_PATH. Missing or malformed files are warned about and
// ignored; env vars alone are a valid configuration.
func loadConfigFile() fileConfig {
	var fc fileConfig
	path := os.Getenv("APGATE_CONFIG_PATH")
	if path == "" {
		return fc
	}
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[WARN] config file %s: %v", path, err)
		return fc
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		log.Printf("[WARN] config file %s: %v", path, err)
		return fileConfig{}
	}
	return fc
}

// parseSquidexApps reads the per-app credential map from the
// SQUIDEX_APPS env var, a JSON object keyed by app name.
func parseSquidexApps() map[string]SquidexApp {
	raw := os.Getenv("SQUIDEX_APPS")
	if raw == "" {
		return map[string]SquidexApp{}
	}
	var apps map[string]SquidexApp
	if err := json.Unmarshal([]byte(raw), &apps); err != nil {
		log.Printf("[WARN] SQUIDEX_APPS: %v", err)
		return map[string]SquidexApp{}
	}
	return apps
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// pick implements the file > env > default precedence.
func pick(fileVal, envKey, def string) string {
	if fileVal != "" {
		return fileVal
	}
	return env(envKey, def)
}
