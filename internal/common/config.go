package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oluwaseun-a/po-tracker/internal/failure"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Ingest   IngestConfig
	LLM      LLMConfig
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string
}

// IngestConfig holds document-ingestion configuration.
type IngestConfig struct {
	TempDir      string
	MaxUploadMB  int
	FeatureFlags []string
	PdftotextBin string
	MaxPDFPages  int
}

// LLMConfig holds model-collaborator configuration.
type LLMConfig struct {
	BaseURL         string
	Model           string
	APIKey          string
	Temperature     float32
	Timeout         time.Duration
	LenientOptional bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Ingest: IngestConfig{
			TempDir:      getEnv("SCRATCH_DIR", "./tmp"),
			MaxUploadMB:  getEnvAsInt("MAX_UPLOAD_MB", 20),
			FeatureFlags: getEnvAsList("FEATURE_FLAGS"),
			PdftotextBin: getEnv("PDFTOTEXT_BIN", "pdftotext"),
			MaxPDFPages:  getEnvAsInt("MAX_PDF_PAGES", 0),
		},
		LLM: LLMConfig{
			BaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			Temperature:     getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:         getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			LenientOptional: getEnvAsBool("OPENAI_LENIENT_OPTIONAL", true),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return failure.Configuration("DB_URL is required")
	}
	if c.Ingest.TempDir == "" {
		return failure.Configuration("SCRATCH_DIR is required")
	}
	deterministic := false
	for _, f := range c.Ingest.FeatureFlags {
		if f == "deterministic_structuring" {
			deterministic = true
		}
	}
	if c.LLM.APIKey == "" && !deterministic {
		return failure.Configuration("OPENAI_API_KEY is required unless deterministic_structuring is enabled")
	}
	if c.Server.Addr == "" {
		return failure.Configuration("HTTP_ADDR is required")
	}
	return nil
}
