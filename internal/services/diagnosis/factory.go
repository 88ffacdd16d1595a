// File: internal/services/diagnosis/factory.go
package diagnosis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iyunix/go-mechanic/internal/domain"
)

// Registry maps provider keys to their constructors. It is built once at startup.
type Registry map[string]Constructor

// DefaultRegistry knows every provider shipped with the application.
func DefaultRegistry() Registry {
	return Registry{
		KeyFastInference: newFastInference,
		KeyMultimodalA:   newMultimodalA,
		KeyMultimodalB:   newMultimodalB,
	}
}

// Keys returns the registered provider keys in sorted order.
func (r Registry) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Factory resolves provider keys into live providers, falling back along the
// configured order when a provider is unavailable. The only state it carries between
// calls is one outbound limiter per throttled key.
type Factory struct {
	settings *Settings
	registry Registry
	limiters map[string]*rate.Limiter
	logger   Logger
}

func NewFactory(settings *Settings, registry Registry, logger Logger) (*Factory, error) {
	if settings == nil {
		return nil, NewInvalidConfigurationError("settings are required")
	}
	if err := settings.Validate(); err != nil {
		return nil, NewInvalidConfigurationError(err.Error())
	}
	if len(registry) == 0 {
		return nil, NewInvalidConfigurationError("provider registry is empty")
	}
	limiters := make(map[string]*rate.Limiter)
	for key, cfg := range settings.Providers {
		if l := NewLimiter(cfg); l != nil {
			limiters[key] = l
		}
	}
	return &Factory{settings: settings, registry: registry, limiters: limiters, logger: logger}, nil
}

// Has reports whether key is a registered provider.
func (f *Factory) Has(key string) bool {
	_, ok := f.registry[key]
	return ok
}

// DefaultProvider is the key used when Make is called with an empty key.
func (f *Factory) DefaultProvider() string {
	return f.settings.DefaultProvider
}

type candidateState int

const (
	candidateAvailable candidateState = iota
	candidateUnavailable
	candidateFailed
)

// candidate is the outcome of resolving and probing one provider key.
type candidate struct {
	key      string
	provider Provider
	state    candidateState
	err      error
}

// build constructs the provider for key without probing it.
func (f *Factory) build(key string) (Provider, error) {
	ctor, ok := f.registry[key]
	if !ok {
		return nil, NewInvalidConfigurationError(fmt.Sprintf("unknown provider: %s", key))
	}
	cfg, ok := f.settings.Providers[key]
	if !ok {
		return nil, NewInvalidConfigurationError(fmt.Sprintf("provider %s has no configuration", key))
	}
	if cfg.Key == "" {
		cfg.Key = key
	}
	return ctor(cfg, f.limiters[key], f.logger)
}

func (f *Factory) probe(ctx context.Context, key string) candidate {
	provider, err := f.build(key)
	if err != nil {
		return candidate{key: key, state: candidateFailed, err: err}
	}
	if !provider.IsAvailable(ctx) {
		return candidate{key: key, provider: provider, state: candidateUnavailable}
	}
	return candidate{key: key, provider: provider, state: candidateAvailable}
}

// Make resolves key (or the default provider when key is empty). Unknown keys fail with
// InvalidConfiguration and construction errors of the requested provider are returned
// as is. Only a provider that reports unavailable triggers Fallback.
func (f *Factory) Make(ctx context.Context, key string) (Provider, error) {
	if key == "" {
		key = f.settings.DefaultProvider
	}
	if _, ok := f.registry[key]; !ok {
		return nil, NewInvalidConfigurationError(fmt.Sprintf("unknown provider: %s", key))
	}

	c := f.probe(ctx, key)
	switch c.state {
	case candidateAvailable:
		return c.provider, nil
	case candidateFailed:
		f.logger.Error("provider could not be constructed", "provider", key, "error", c.err)
		return nil, c.err
	}
	f.logger.Warn("provider unavailable, falling back", "provider", key)
	return f.Fallback(ctx, key)
}

// Fallback walks the configured fallback order, skipping failedKey, and returns the
// first available provider. Per-candidate failures are logged and skipped.
func (f *Factory) Fallback(ctx context.Context, failedKey string) (Provider, error) {
	attempted := []string{failedKey}
	seen := map[string]bool{failedKey: true}

	for _, key := range f.settings.FallbackOrder {
		if seen[key] {
			continue
		}
		seen[key] = true
		attempted = append(attempted, key)

		c := f.probe(ctx, key)
		switch c.state {
		case candidateAvailable:
			f.logger.Info("using fallback provider", "failed", failedKey, "fallback", key)
			return c.provider, nil
		case candidateFailed:
			f.logger.Warn("fallback candidate failed", "provider", key, "error", c.err)
		default:
			f.logger.Warn("fallback candidate unavailable", "provider", key)
		}
	}

	return nil, NewInvalidConfigurationError(
		fmt.Sprintf("no AI providers available (attempted: %s)", strings.Join(attempted, ", ")))
}

// ProviderStatus describes one provider for operational introspection.
type ProviderStatus struct {
	Name      string          `json:"name,omitempty"`
	Available bool            `json:"available"`
	Config    *ProviderConfig `json:"config,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ListAvailableProviders reports every registered provider. It never fails.
func (f *Factory) ListAvailableProviders(ctx context.Context) map[string]ProviderStatus {
	out := make(map[string]ProviderStatus, len(f.registry))
	for _, key := range f.registry.Keys() {
		provider, err := f.build(key)
		if err != nil {
			out[key] = ProviderStatus{Available: false, Error: err.Error()}
			continue
		}
		cfg := provider.Config()
		out[key] = ProviderStatus{
			Name:      provider.Name(),
			Available: provider.IsAvailable(ctx),
			Config:    &cfg,
		}
	}
	return out
}

// TestReport is the outcome of TestProvider.
type TestReport struct {
	Success        bool    `json:"success"`
	Provider       string  `json:"provider,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds,omitempty"`
	Confidence     int     `json:"confidence,omitempty"`
	Issue          string  `json:"issue,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// CannedTestRequest is the fixed request TestProvider sends.
func CannedTestRequest() domain.DiagnosisRequest {
	year, mileage := 2015, 85000
	return domain.DiagnosisRequest{
		Category:     domain.CategoryEngine,
		Description:  "Engine makes a clicking noise on cold start that fades after a minute of idling.",
		VehicleMake:  "Toyota",
		VehicleModel: "Camry",
		VehicleYear:  &year,
		Mileage:      &mileage,
	}
}

// TestProvider runs a real diagnosis against key with a canned request.
func (f *Factory) TestProvider(ctx context.Context, key string) TestReport {
	provider, err := f.build(key)
	if err != nil {
		return TestReport{Success: false, Error: err.Error()}
	}

	start := time.Now()
	result, err := provider.Diagnose(ctx, CannedTestRequest())
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return TestReport{Success: false, Provider: provider.Name(), ElapsedSeconds: elapsed, Error: err.Error()}
	}
	return TestReport{
		Success:        true,
		Provider:       provider.Name(),
		ElapsedSeconds: elapsed,
		Confidence:     result.ConfidenceScore(),
		Issue:          result.IdentifiedIssue(),
	}
}

// EstimateCost prices a request of estimatedTokens (DefaultEstimatedTokens when <= 0).
// Unknown providers cost 0.
func (f *Factory) EstimateCost(key string, estimatedTokens int) float64 {
	if _, ok := f.registry[key]; !ok {
		return 0
	}
	cfg, ok := f.settings.Providers[key]
	if !ok {
		return 0
	}
	if estimatedTokens <= 0 {
		estimatedTokens = DefaultEstimatedTokens
	}
	return float64(estimatedTokens) / 1000 * cfg.CostPer1000Tokens
}
