package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-mechanic/internal/services/diagnosis"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, diagnosis.KeyFastInference, cfg.DefaultProvider)
	assert.Equal(t, []string{"fast-inference", "multimodal-a", "multimodal-b"}, cfg.FallbackOrder)
	assert.Equal(t, RateTier{MaxRequests: 3, Window: 24 * time.Hour}, cfg.GuestRate)
	assert.Equal(t, 100, cfg.PremiumRate.MaxRequests)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 60, cfg.MinConfidence)

	fast := cfg.Providers[diagnosis.KeyFastInference]
	assert.Equal(t, "llama-3.3-70b-versatile", fast.Model)
	assert.Equal(t, 30*time.Second, fast.Timeout)
	assert.Equal(t, 3, fast.MaxRetries)
	assert.InDelta(t, 0.59, fast.CostPer1000Tokens, 1e-9)
}

func TestFromEnv_ProviderOverrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("FAST_INFERENCE_API_KEY", "gsk-test")
	t.Setenv("FAST_INFERENCE_MODEL", "llama-3.1-8b-instant")
	t.Setenv("FAST_INFERENCE_TIMEOUT", "45")
	t.Setenv("FAST_INFERENCE_MAX_RETRIES", "5")
	t.Setenv("FAST_INFERENCE_COST_PER_1K_TOKENS", "0.05")
	t.Setenv("FAST_INFERENCE_RPM", "30")
	t.Setenv("MULTIMODAL_A_TIMEOUT", "90s")
	t.Setenv("AI_FALLBACK_ORDER", " multimodal-b, ,fast-inference ")
	t.Setenv("RATE_LIMIT_GUEST_MAX", "5")
	t.Setenv("RATE_LIMIT_GUEST_WINDOW", "1h")
	t.Setenv("AI_CACHE_ENABLED", "false")
	t.Setenv("AI_REQUIRE_DIY_STEPS", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	fast := cfg.Providers[diagnosis.KeyFastInference]
	assert.Equal(t, "gsk-test", fast.APIKey)
	assert.Equal(t, "llama-3.1-8b-instant", fast.Model)
	assert.Equal(t, 45*time.Second, fast.Timeout)
	assert.Equal(t, 5, fast.MaxRetries)
	assert.InDelta(t, 0.05, fast.CostPer1000Tokens, 1e-9)
	assert.Equal(t, 30, fast.RequestsPerMinute)
	assert.Equal(t, 90*time.Second, cfg.Providers[diagnosis.KeyMultimodalA].Timeout)

	assert.Equal(t, []string{"multimodal-b", "fast-inference"}, cfg.FallbackOrder)
	assert.Equal(t, RateTier{MaxRequests: 5, Window: time.Hour}, cfg.GuestRate)
	assert.False(t, cfg.CacheEnabled)
	assert.True(t, cfg.RequireDIYSteps)
}

func TestFromEnv_MalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("FAST_INFERENCE_MAX_RETRIES", "many")
	t.Setenv("AI_CACHE_TTL", "tomorrow")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Providers[diagnosis.KeyFastInference].MaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestFromEnv_UnknownDefaultProvider(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("AI_DEFAULT_PROVIDER", "mystery")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnv_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("FAST_INFERENCE_API_KEY", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
	assert.Contains(t, err.Error(), "FAST_INFERENCE_API_KEY")

	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("FAST_INFERENCE_API_KEY", "gsk")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestDiagnosisSettings_IsACopy(t *testing.T) {
	t.Setenv("ENV", "development")
	cfg, err := FromEnv()
	require.NoError(t, err)

	s := cfg.DiagnosisSettings()
	s.FallbackOrder[0] = "changed"
	delete(s.Providers, diagnosis.KeyMultimodalB)

	assert.Equal(t, diagnosis.KeyFastInference, cfg.FallbackOrder[0])
	assert.Contains(t, cfg.Providers, diagnosis.KeyMultimodalB)
	assert.NoError(t, cfg.DiagnosisSettings().Validate())
}
