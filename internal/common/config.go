package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Landing  LandingConfig
	OCR      OCRConfig
	Extract  ExtractConfig
	Worker   WorkerConfig
	LogLevel string
	// MetricsAddr is the listen address for /metrics; empty disables it.
	MetricsAddr string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver          string // "sqlite" or "pgx"
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// LandingConfig holds the raw upload storage settings
type LandingConfig struct {
	Dir       string
	IndexPath string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract         string
	TessdataDir       string
	DefaultLang       string
	PSM               int
	Timeout           time.Duration
	PDFRasterFallback bool
	PDFDPI            int
	PDFMaxPages       int
}

// ExtractConfig holds field extraction settings
type ExtractConfig struct {
	DefaultCurrency string
	AmountCeiling   float64
	RulesFile       string
}

// WorkerConfig sizes the parse worker pool
type WorkerConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			DSN:             getEnv("DB_URL", "receipts.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Landing: LandingConfig{
			Dir:       getEnv("LANDING_DIR", "./data/raw_receipts"),
			IndexPath: getEnv("LANDING_INDEX", "./data/landing.db"),
		},
		OCR: OCRConfig{
			Tesseract:         getEnv("TESSERACT", "tesseract"),
			TessdataDir:       getEnv("TESSDATA_PREFIX", ""),
			DefaultLang:       getEnv("OCR_DEFAULT_LANG", "eng"),
			PSM:               getEnvAsInt("OCR_PSM", 6),
			Timeout:           getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
			PDFRasterFallback: getEnvAsBool("PDF_RASTER_FALLBACK", true),
			PDFDPI:            getEnvAsInt("PDF_DPI", 300),
			PDFMaxPages:       getEnvAsInt("PDF_MAX_PAGES", 5),
		},
		Extract: ExtractConfig{
			DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
			AmountCeiling:   getEnvAsFloat64("AMOUNT_CEILING", 1_000_000),
			RulesFile:       getEnv("RULES_FILE", ""),
		},
		Worker: WorkerConfig{
			Workers:   getEnvAsInt("WORKERS", 4),
			QueueSize: getEnvAsInt("QUEUE_SIZE", 64),
			Timeout:   getEnvAsDuration("PARSE_TIMEOUT", 3*time.Minute),
		},
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or pgx", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if len(c.Extract.DefaultCurrency) != 3 {
		return NewAppError("CONFIG_ERROR", "DEFAULT_CURRENCY must be a 3-letter code", ErrInvalidInput)
	}
	if c.Extract.AmountCeiling <= 0 {
		return NewAppError("CONFIG_ERROR", "AMOUNT_CEILING must be positive", ErrInvalidInput)
	}
	if c.OCR.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_TIMEOUT must be positive", ErrInvalidInput)
	}
	return nil
}
