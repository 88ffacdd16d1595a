// File: internal/services/diagnosis/config.go
package diagnosis

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Provider keys known to the default registry.
const (
	KeyFastInference = "fast-inference"
	KeyMultimodalA   = "multimodal-a"
	KeyMultimodalB   = "multimodal-b"
)

// DefaultEstimatedTokens is used by EstimateCost when the caller gives no estimate.
const DefaultEstimatedTokens = 2000

// ProviderConfig is the static, read-only configuration of one provider.
type ProviderConfig struct {
	Key    string `json:"key"`
	APIKey string `json:"-"`
	APIURL string `json:"api_url"`
	Model  string `json:"model"`

	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`

	CostPer1000Tokens       float64 `json:"cost_per_1000_tokens"`
	SupportsVision          bool    `json:"supports_vision"`
	SupportsFunctionCalling bool    `json:"supports_function_calling"`

	// RequestsPerMinute caps upstream attempts for this key across all requests; zero disables it.
	RequestsPerMinute int `json:"requests_per_minute"`

	// Model parameters
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float32 `json:"top_p"`
}

// Validate checks everything except the API key, which constructors report as InvalidAPIKey.
func (c *ProviderConfig) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("provider key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("%s: api url is required", c.Key)
	}
	if c.Model == "" {
		return fmt.Errorf("%s: model is required", c.Key)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%s: timeout must be positive", c.Key)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%s: max retries must be at least 1", c.Key)
	}
	if c.CostPer1000Tokens < 0 {
		return fmt.Errorf("%s: cost per 1000 tokens cannot be negative", c.Key)
	}
	return nil
}

// NewLimiter returns a limiter spacing attempts RequestsPerMinute apart, or nil when unthrottled.
func NewLimiter(c ProviderConfig) *rate.Limiter {
	if c.RequestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.RequestsPerMinute)), 1)
}

// TimeoutSeconds is the timeout rounded to whole seconds, as reported in Timeout errors.
func (c *ProviderConfig) TimeoutSeconds() int {
	return int(c.Timeout.Round(time.Second) / time.Second)
}

// Settings is the whole configuration surface of the diagnosis subsystem.
type Settings struct {
	DefaultProvider string
	FallbackOrder   []string
	Providers       map[string]ProviderConfig

	// Response cache
	CacheEnabled bool
	CacheTTL     time.Duration

	// Quality gate
	MinConfidence       int
	RequireDIYSteps     bool
	RequireCostEstimate bool
	MaxProcessingTime   time.Duration
}

func (s *Settings) Validate() error {
	if s.DefaultProvider == "" {
		return fmt.Errorf("default provider is required")
	}
	if _, ok := s.Providers[s.DefaultProvider]; !ok {
		return fmt.Errorf("default provider %q has no configuration", s.DefaultProvider)
	}
	for _, key := range s.FallbackOrder {
		if _, ok := s.Providers[key]; !ok {
			return fmt.Errorf("fallback provider %q has no configuration", key)
		}
	}
	if s.CacheEnabled && s.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive when caching is enabled")
	}
	if s.MinConfidence < MinConfidenceScore || s.MinConfidence > MaxConfidenceScore {
		return fmt.Errorf("min confidence must be between 0 and 100")
	}
	return nil
}

// DefaultProviderConfigs returns the built-in provider table without credentials.
func DefaultProviderConfigs() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		KeyFastInference: {
			Key:                     KeyFastInference,
			APIURL:                  "https://api.groq.com/openai/v1",
			Model:                   "llama-3.3-70b-versatile",
			Timeout:                 30 * time.Second,
			MaxRetries:              3,
			CostPer1000Tokens:       0.59,
			SupportsFunctionCalling: true,
			Temperature:             0.3,
			MaxTokens:               1500,
			TopP:                    1,
		},
		KeyMultimodalA: {
			Key:                     KeyMultimodalA,
			APIURL:                  "https://api.openai.com/v1",
			Model:                   "gpt-4o",
			Timeout:                 60 * time.Second,
			MaxRetries:              3,
			CostPer1000Tokens:       5.0,
			SupportsVision:          true,
			SupportsFunctionCalling: true,
			Temperature:             0.3,
			MaxTokens:               1500,
			TopP:                    1,
		},
		KeyMultimodalB: {
			Key:               KeyMultimodalB,
			APIURL:            "https://api.anthropic.com/v1",
			Model:             "claude-3-5-sonnet-latest",
			Timeout:           60 * time.Second,
			MaxRetries:        3,
			CostPer1000Tokens: 3.0,
			SupportsVision:    true,
			Temperature:       0.3,
			MaxTokens:         1500,
			TopP:              1,
		},
	}
}

// DefaultSettings mirrors the production defaults.
func DefaultSettings() *Settings {
	return &Settings{
		DefaultProvider:     KeyFastInference,
		FallbackOrder:       []string{KeyFastInference, KeyMultimodalA, KeyMultimodalB},
		Providers:           DefaultProviderConfigs(),
		CacheEnabled:        true,
		CacheTTL:            24 * time.Hour,
		MinConfidence:       60,
		RequireDIYSteps:     false,
		RequireCostEstimate: false,
		MaxProcessingTime:   30 * time.Second,
	}
}
