// File: internal/services/diagnosis/interface.go
package diagnosis

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/iyunix/go-mechanic/internal/domain"
)

// Logger defines the logging interface used across diagnosis providers
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// ImageAnalysis is the per-image output of a vision-capable provider.
type ImageAnalysis struct {
	ImagePath   string   `json:"image_path"`
	Description string   `json:"description"`
	Findings    []string `json:"findings"`
	Confidence  int      `json:"confidence"`
}

// Provider is the capability contract every AI backend satisfies.
type Provider interface {
	// Diagnose fails only with *ProviderError.
	Diagnose(ctx context.Context, req domain.DiagnosisRequest) (*Result, error)
	AnalyzeImages(ctx context.Context, imagePaths []string) ([]ImageAnalysis, error)
	// Name is the display name, including the model identifier.
	Name() string
	// IsAvailable is a cheap liveness probe. It never fails; errors mean "unavailable".
	IsAvailable(ctx context.Context) bool
	Config() ProviderConfig
}

// Constructor builds a provider from its static configuration. limiter is shared by
// every provider built for the same key and is nil when the key is not throttled.
type Constructor func(cfg ProviderConfig, limiter *rate.Limiter, logger Logger) (Provider, error)
