// File: internal/services/diagnosis/fast_inference_provider.go
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/iyunix/go-mechanic/internal/domain"
)

const (
	fastInferenceDisplayName = "FastInference"
	availabilityProbeTimeout = 5 * time.Second
)

// FastInferenceProvider talks to an OpenAI-compatible chat completion API.
type FastInferenceProvider struct {
	config ProviderConfig
	client *openai.Client
	retry  retryPolicy
	logger Logger
}

// FastInferenceOption customises a FastInferenceProvider.
type FastInferenceOption func(*fastInferenceOptions)

type fastInferenceOptions struct {
	httpClient *http.Client
	sleep      SleepFunc
	limiter    *rate.Limiter
}

// WithHTTPClient replaces the transport used for upstream calls.
func WithHTTPClient(c *http.Client) FastInferenceOption {
	return func(o *fastInferenceOptions) { o.httpClient = c }
}

// WithLimiter throttles upstream attempts through l, typically shared across providers.
func WithLimiter(l *rate.Limiter) FastInferenceOption {
	return func(o *fastInferenceOptions) { o.limiter = l }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep SleepFunc) FastInferenceOption {
	return func(o *fastInferenceOptions) { o.sleep = sleep }
}

func NewFastInferenceProvider(cfg ProviderConfig, logger Logger, opts ...FastInferenceOption) (*FastInferenceProvider, error) {
	if cfg.APIKey == "" {
		return nil, NewInvalidAPIKeyError(cfg.Key)
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewInvalidConfigurationError(err.Error())
	}

	options := fastInferenceOptions{sleep: sleepContext}
	for _, opt := range opts {
		opt(&options)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.APIURL
	if options.httpClient != nil {
		clientConfig.HTTPClient = options.httpClient
	}

	// a provider built on its own still honours RequestsPerMinute, but only for itself
	if options.limiter == nil {
		options.limiter = NewLimiter(cfg)
	}

	return &FastInferenceProvider{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
		retry: retryPolicy{
			provider:   cfg.Key,
			maxRetries: cfg.MaxRetries,
			timeout:    cfg.Timeout,
			limiter:    options.limiter,
			sleep:      options.sleep,
			logger:     logger,
		},
		logger: logger,
	}, nil
}

// newFastInference adapts NewFastInferenceProvider to the registry Constructor.
func newFastInference(cfg ProviderConfig, limiter *rate.Limiter, logger Logger) (Provider, error) {
	if limiter == nil {
		return NewFastInferenceProvider(cfg, logger)
	}
	return NewFastInferenceProvider(cfg, logger, WithLimiter(limiter))
}

func (p *FastInferenceProvider) Diagnose(ctx context.Context, req domain.DiagnosisRequest) (*Result, error) {
	start := time.Now()
	prompt := BuildDiagnosisPrompt(req)

	var content string
	err := p.retry.do(ctx, func(ctx context.Context) error {
		resp, err := p.client.CreateChatCompletion(ctx, p.chatRequest(prompt))
		if err != nil {
			return err
		}
		content, err = extractContent(p.config.Key, resp)
		return err
	})
	if err != nil {
		return nil, err
	}

	raw, err := ParseDiagnosisContent(p.config.Key, content)
	if err != nil {
		p.logger.Warn("unparseable diagnosis response", "provider", p.config.Key, "error", err)
		return nil, err
	}

	result, err := ResultFromMap(raw)
	if err == nil {
		elapsed := int(math.Round(time.Since(start).Seconds()))
		result, err = result.WithProvenance(p.Name(), elapsed)
	}
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			p.logger.Error("diagnosis response violates result contract",
				"provider", p.config.Key, "field", verr.Field, "raw", truncate(content, maxLoggedContent))
			return nil, NewInvalidResponseError(p.config.Key, fmt.Sprintf("invalid %s in response", verr.Field), err)
		}
		return nil, NewInvalidResponseError(p.config.Key, "could not build diagnosis result", err)
	}

	p.logger.Info("diagnosis completed",
		"provider", p.config.Key,
		"confidence", result.ConfidenceScore(),
		"urgency", string(result.UrgencyLevel()),
		"duration", time.Since(start).String())
	return result, nil
}

func (p *FastInferenceProvider) chatRequest(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
		TopP:        p.config.TopP,
		Stream:      false,
	}
}

// AnalyzeImages is not available: this provider is text-only.
func (p *FastInferenceProvider) AnalyzeImages(ctx context.Context, imagePaths []string) ([]ImageAnalysis, error) {
	return nil, NewUnsupportedFeatureError(p.config.Key, "image_analysis")
}

func (p *FastInferenceProvider) Name() string {
	return fmt.Sprintf("%s (%s)", fastInferenceDisplayName, p.config.Model)
}

// IsAvailable lists models with a short timeout; any failure means unavailable.
func (p *FastInferenceProvider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, availabilityProbeTimeout)
	defer cancel()

	if _, err := p.client.ListModels(probeCtx); err != nil {
		p.logger.Warn("availability probe failed", "provider", p.config.Key, "error", err)
		return false
	}
	return true
}

func (p *FastInferenceProvider) Config() ProviderConfig {
	cfg := p.config
	cfg.APIKey = ""
	return cfg
}
