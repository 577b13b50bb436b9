// Package config reads service settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DB struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

// DSN is the lib/pq connection URL.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type Config struct {
	Port             string
	DB               DB
	JWTSecret        string
	CORSOrigins      []string
	AutosaveInterval time.Duration
	LogLevel         string
	TemplatesFile    string // optional catalog override
	PublicURL        string
	MaxBodyBytes     int64
	EnvFile          bool // settings came partly from .env
}

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	// A missing .env is normal in containers.
	fromFile := godotenv.Load() == nil

	cfg := Config{
		Port: getString("PORT", "8080"),
		DB: DB{
			User:     getString("DB_USER", "postgres"),
			Password: getString("DB_PASSWORD", ""),
			Host:     getString("DB_HOST", "localhost"),
			Port:     getString("DB_PORT", "5432"),
			Name:     getString("DB_NAME", "postgres"),
			SSLMode:  getString("DB_SSLMODE", "require"),
		},
		JWTSecret:        getString("JWT_SECRET", ""),
		CORSOrigins:      splitList(getString("CORS_ORIGINS", "*")),
		AutosaveInterval: time.Duration(getInt("AUTOSAVE_INTERVAL_SECONDS", 10)) * time.Second,
		LogLevel:         getString("LOG_LEVEL", "info"),
		TemplatesFile:    getString("TEMPLATES_FILE", ""),
		PublicURL:        getString("PUBLIC_URL", ""),
		MaxBodyBytes:     int64(getInt("MAX_BODY_BYTES", 2<<20)),
		EnvFile:          fromFile,
	}
	if cfg.AutosaveInterval <= 0 {
		return cfg, fmt.Errorf("AUTOSAVE_INTERVAL_SECONDS must be positive")
	}
	return cfg, nil
}

func splitList(csv string) []string {
	var out []string
	for _, v := range strings.Split(csv, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}
