package openai

import (
	"log/slog"
	"os"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Config for the OpenAI-compatible chat completions client. Groq is the default endpoint.
type Config struct {
	APIKey      string        // if empty, falls back to env GROQ_API_KEY
	BaseURL     string        // default https://api.groq.com/openai/v1
	Model       string        // e.g. "llama-3.3-70b-versatile"
	Temperature float32       // 0..2
	Timeout     time.Duration // per request
}

type Client struct {
	cfg    Config
	api    sdk.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger, opts ...option.RequestOption) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	// retries are owned by llm.WithRetry
	options := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	options = append(options, opts...)

	return &Client{
		cfg:    cfg,
		api:    sdk.NewClient(options...),
		logger: logger,
	}
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}
