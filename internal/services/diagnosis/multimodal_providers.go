// File: internal/services/diagnosis/multimodal_providers.go
package diagnosis

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/iyunix/go-mechanic/internal/domain"
)

// placeholderProvider backs vision-capable integrations that are registered but not built yet.
// It never reports itself available, so the fallback scan cannot pick it.
type placeholderProvider struct {
	config      ProviderConfig
	displayName string
	logger      Logger
}

func newPlaceholderProvider(cfg ProviderConfig, displayName string, logger Logger) (*placeholderProvider, error) {
	if cfg.APIKey == "" {
		return nil, NewInvalidAPIKeyError(cfg.Key)
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewInvalidConfigurationError(err.Error())
	}
	return &placeholderProvider{config: cfg, displayName: displayName, logger: logger}, nil
}

func newMultimodalA(cfg ProviderConfig, _ *rate.Limiter, logger Logger) (Provider, error) {
	return newPlaceholderProvider(cfg, "Multimodal-A", logger)
}

func newMultimodalB(cfg ProviderConfig, _ *rate.Limiter, logger Logger) (Provider, error) {
	return newPlaceholderProvider(cfg, "Multimodal-B", logger)
}

func (p *placeholderProvider) Diagnose(ctx context.Context, req domain.DiagnosisRequest) (*Result, error) {
	return nil, NewUnsupportedFeatureError(p.config.Key, "diagnosis (not yet available)")
}

func (p *placeholderProvider) AnalyzeImages(ctx context.Context, imagePaths []string) ([]ImageAnalysis, error) {
	return nil, NewUnsupportedFeatureError(p.config.Key, "image_analysis (not yet available)")
}

func (p *placeholderProvider) Name() string {
	return fmt.Sprintf("%s (%s)", p.displayName, p.config.Model)
}

func (p *placeholderProvider) IsAvailable(ctx context.Context) bool {
	p.logger.Debug("provider not implemented, reporting unavailable",
		"provider", p.config.Key, "credential_configured", p.config.APIKey != "")
	return false
}

func (p *placeholderProvider) Config() ProviderConfig {
	cfg := p.config
	cfg.APIKey = ""
	return cfg
}
