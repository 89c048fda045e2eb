package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultBind                 = ":8087"
	DefaultStorageRoot          = "/srv/modelarium"
	DefaultMaxUploadBytes int64 = 50 * 1024 * 1024
	DefaultMaxPixels            = 50_000_000
	DefaultCivitaiBaseURL       = "https://civitai.com"
)

type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthAPIKey AuthMode = "apikey"
)

type Config struct {
	Bind               string
	DBDSN              string
	StorageRoot        string
	MaxUploadBytes     int64
	MaxPixels          int
	PublicMedia        bool
	AuthMode           AuthMode
	APIKeysFile        string
	CORSAllowedOrigins []string
	LogLevel           string
	CivitaiBaseURL     string
	CivitaiAPIKey      string
	SwaggerUIPath      string
	OpenAPIPath        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bind:               getenv("MODELARIUM_BIND", DefaultBind),
		StorageRoot:        getenv("MODELARIUM_STORAGE_ROOT", DefaultStorageRoot),
		MaxUploadBytes:     getInt64("MODELARIUM_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		MaxPixels:          getInt("MODELARIUM_MAX_PIXELS", DefaultMaxPixels),
		PublicMedia:        getBool("MODELARIUM_PUBLIC_MEDIA", true),
		AuthMode:           AuthMode(getenv("MODELARIUM_AUTH_MODE", string(AuthNone))),
		CORSAllowedOrigins: splitAndTrim(os.Getenv("MODELARIUM_CORS_ALLOWED_ORIGINS")),
		LogLevel:           os.Getenv("MODELARIUM_LOG_LEVEL"),
		CivitaiBaseURL:     getenv("MODELARIUM_CIVITAI_BASE_URL", DefaultCivitaiBaseURL),
		CivitaiAPIKey:      os.Getenv("MODELARIUM_CIVITAI_API_KEY"),
		SwaggerUIPath:      "/swagger",
		OpenAPIPath:        "/openapi.yaml",
	}

	cfg.DBDSN = os.Getenv("MODELARIUM_DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("MODELARIUM_DB_DSN is required")
	}

	switch cfg.AuthMode {
	case AuthNone, AuthAPIKey:
	default:
		return nil, fmt.Errorf("invalid MODELARIUM_AUTH_MODE: %s", cfg.AuthMode)
	}

	if cfg.AuthMode == AuthAPIKey {
		cfg.APIKeysFile = getenv("MODELARIUM_API_KEYS_FILE", "api-keys.yaml")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		return v == "1" || v == "true" || v == "yes" || v == "y"
	}
	return def
}

func splitAndTrim(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
