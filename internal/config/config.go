// File: internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iyunix/go-mechanic/internal/services/diagnosis"
)

// RateTier is the request budget of one caller class.
type RateTier struct {
	MaxRequests int
	Window      time.Duration
}

type Config struct {
	ServerPort   string
	Environment  string
	JWTSecretKey string
	DatabasePath string

	DefaultProvider string
	FallbackOrder   []string
	Providers       map[string]diagnosis.ProviderConfig

	GuestRate         RateTier
	AuthenticatedRate RateTier
	PremiumRate       RateTier

	CacheEnabled bool
	CacheTTL     time.Duration

	MinConfidence       int
	RequireDIYSteps     bool
	RequireCostEstimate bool
	MaxProcessingTime   time.Duration
}

// providerEnvPrefixes maps each provider key to the prefix of its variables.
var providerEnvPrefixes = map[string]string{
	diagnosis.KeyFastInference: "FAST_INFERENCE_",
	diagnosis.KeyMultimodalA:   "MULTIMODAL_A_",
	diagnosis.KeyMultimodalB:   "MULTIMODAL_B_",
}

// Load reads configuration from environment variables or .env file.
// Outside production a missing .env is fine; in production missing secrets are fatal.
func Load() *Config {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() (*Config, error) {
	env := getEnv("ENV", "development")
	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		Environment:  env,
		JWTSecretKey: getEnv("JWT_SECRET_KEY", ""),
		DatabasePath: getEnv("DATABASE_PATH", "mechanic.db"),

		DefaultProvider: getEnv("AI_DEFAULT_PROVIDER", diagnosis.KeyFastInference),
		FallbackOrder: getEnvAsList("AI_FALLBACK_ORDER",
			[]string{diagnosis.KeyFastInference, diagnosis.KeyMultimodalA, diagnosis.KeyMultimodalB}),
		Providers: loadProviders(),

		GuestRate:         loadTier("GUEST", 3, 24*time.Hour),
		AuthenticatedRate: loadTier("AUTHENTICATED", 10, 24*time.Hour),
		PremiumRate:       loadTier("PREMIUM", 100, 24*time.Hour),

		CacheEnabled: getEnvAsBool("AI_CACHE_ENABLED", true),
		CacheTTL:     getEnvAsDuration("AI_CACHE_TTL", 24*time.Hour),

		MinConfidence:       getEnvAsInt("AI_MIN_CONFIDENCE", 60),
		RequireDIYSteps:     getEnvAsBool("AI_REQUIRE_DIY_STEPS", false),
		RequireCostEstimate: getEnvAsBool("AI_REQUIRE_COST_ESTIMATE", false),
		MaxProcessingTime:   getEnvAsDuration("AI_MAX_PROCESSING_TIME", 30*time.Second),
	}

	if cfg.IsProduction() {
		missing := []string{}
		if cfg.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if cfg.Providers[cfg.DefaultProvider].APIKey == "" {
			missing = append(missing, providerEnvPrefixes[cfg.DefaultProvider]+"API_KEY")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("missing required production environment variables: %v", missing)
		}
	}

	if err := cfg.DiagnosisSettings().Validate(); err != nil {
		return nil, fmt.Errorf("diagnosis settings: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DiagnosisSettings converts the environment view into the core settings.
func (c *Config) DiagnosisSettings() *diagnosis.Settings {
	providers := make(map[string]diagnosis.ProviderConfig, len(c.Providers))
	for k, v := range c.Providers {
		providers[k] = v
	}
	return &diagnosis.Settings{
		DefaultProvider:     c.DefaultProvider,
		FallbackOrder:       append([]string(nil), c.FallbackOrder...),
		Providers:           providers,
		CacheEnabled:        c.CacheEnabled,
		CacheTTL:            c.CacheTTL,
		MinConfidence:       c.MinConfidence,
		RequireDIYSteps:     c.RequireDIYSteps,
		RequireCostEstimate: c.RequireCostEstimate,
		MaxProcessingTime:   c.MaxProcessingTime,
	}
}

// loadProviders starts from the built-in table and applies per-provider overrides.
func loadProviders() map[string]diagnosis.ProviderConfig {
	providers := diagnosis.DefaultProviderConfigs()
	for key, prefix := range providerEnvPrefixes {
		p := providers[key]
		p.APIKey = getEnv(prefix+"API_KEY", "")
		p.APIURL = getEnv(prefix+"API_URL", p.APIURL)
		p.Model = getEnv(prefix+"MODEL", p.Model)
		p.Timeout = getEnvAsDuration(prefix+"TIMEOUT", p.Timeout)
		p.MaxRetries = getEnvAsInt(prefix+"MAX_RETRIES", p.MaxRetries)
		p.CostPer1000Tokens = getEnvAsFloat(prefix+"COST_PER_1K_TOKENS", p.CostPer1000Tokens)
		p.RequestsPerMinute = getEnvAsInt(prefix+"RPM", p.RequestsPerMinute)
		providers[key] = p
	}
	return providers
}

func loadTier(name string, maxRequests int, window time.Duration) RateTier {
	return RateTier{
		MaxRequests: getEnvAsInt("RATE_LIMIT_"+name+"_MAX", maxRequests),
		Window:      getEnvAsDuration("RATE_LIMIT_"+name+"_WINDOW", window),
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as float. Using default value.", key)
		return defaultValue
	}
	return f
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as bool. Using default value.", key)
		return defaultValue
	}
	return b
}

// getEnvAsDuration accepts Go durations ("90s", "24h") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as duration. Using default value.", key)
		return defaultValue
	}
	return d
}

// getEnvAsList splits a comma-separated variable, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
