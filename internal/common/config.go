package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	OCR       OCRConfig
	LLM       LLMConfig
	Templates TemplateConfig
	Artifacts ArtifactConfig
	Geometry  GeometryConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr         string
	HTTPAddr         string
	CORSOrigins      []string
	AllowCredentials bool
}

// OCRConfig holds configuration for the LLMWhisperer OCR provider
type OCRConfig struct {
	BaseURL      string
	APIKey       string
	Mode         string
	PollInterval time.Duration
	MaxPolls     int
	Timeout      time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxAttempts int
}

type TemplateConfig struct {
	Dir     string
	Default string
}

// ArtifactConfig selects the best-effort artifact sinks.
type ArtifactConfig struct {
	Dir        string
	Sinks      []string
	SQLitePath string
	DBURL      string
}

// GeometryConfig carries the BoxMerger tolerances.
type GeometryConfig struct {
	MergeGapRatio      float64
	LineAlignmentRatio float64
}

type LogConfig struct {
	Level  string
	Format string
}

const defaultCORSOrigins = "http://localhost:8080,http://127.0.0.1:8080"

// LoadConfig loads configuration from environment variables, reading an optional .env file first.
func LoadConfig() *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			GRPCAddr:         getEnv("GRPC_ADDR", ":9090"),
			HTTPAddr:         getEnv("HTTP_ADDR", ":8000"),
			CORSOrigins:      splitList(getEnv("BACKEND_CORS_ORIGINS", defaultCORSOrigins)),
			AllowCredentials: getEnvAsBool("BACKEND_ALLOW_CREDENTIALS", false),
		},
		OCR: OCRConfig{
			BaseURL:      getEnv("LLMWHISPERER_BASE_URL", "https://llmwhisperer-api.us-central.unstract.com/api/v2"),
			APIKey:       getEnv("LLMWHISPERER_API_KEY", ""),
			Mode:         getEnv("LLMWHISPERER_MODE", "form"),
			PollInterval: getEnvAsDuration("LLMWHISPERER_POLL_INTERVAL", 2*time.Second),
			MaxPolls:     getEnvAsInt("LLMWHISPERER_MAX_POLLS", 90),
			Timeout:      getEnvAsDuration("LLMWHISPERER_TIMEOUT", 180*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("GROQ_API_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:      getEnv("GROQ_API_KEY", ""),
			Model:       getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			MaxAttempts: getEnvAsInt("LLM_MAX_ATTEMPTS", 2),
		},
		Templates: TemplateConfig{
			Dir:     getEnv("TEMPLATE_DIR", "./templates"),
			Default: getEnv("TEMPLATE_DEFAULT", "invoice"),
		},
		Artifacts: ArtifactConfig{
			Dir:        getEnv("ARTIFACT_DIR", "./artifacts"),
			Sinks:      splitList(getEnv("ARTIFACT_SINKS", "fs")),
			SQLitePath: getEnv("ARTIFACT_SQLITE_PATH", "./artifacts/artifacts.db"),
			DBURL:      getEnv("ARTIFACT_DB_URL", ""),
		},
		Geometry: GeometryConfig{
			MergeGapRatio:      getEnvAsFloat64("MERGE_GAP_RATIO", 0.5),
			LineAlignmentRatio: getEnvAsFloat64("LINE_ALIGNMENT_RATIO", 0.6),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("2s") and bare seconds ("2.5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.OCR.APIKey == "" {
		return NewAppError(CodeConfig, "LLMWHISPERER_API_KEY is required", ErrInvalidInput)
	}
	if c.OCR.MaxPolls <= 0 {
		return NewAppError(CodeConfig, "LLMWHISPERER_MAX_POLLS must be positive", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "at least one of GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Geometry.MergeGapRatio < 0 || c.Geometry.LineAlignmentRatio < 0 {
		return NewAppError(CodeConfig, "merge ratios must not be negative", ErrInvalidInput)
	}
	return nil
}

// EffectiveCORSOrigins collapses the list to ["*"] when a wildcard is present and reports
// whether credentials may be allowed alongside it.
func (s ServerConfig) EffectiveCORSOrigins() ([]string, bool) {
	origins := s.CORSOrigins
	if len(origins) == 0 {
		origins = splitList(defaultCORSOrigins)
	}
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}, false
		}
	}
	return origins, s.AllowCredentials
}
