// File: internal/services/diagnosis/errors.go
package diagnosis

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindConnectionFailed     ErrorKind = "CONNECTION_FAILED"
	KindInvalidResponse      ErrorKind = "INVALID_RESPONSE"
	KindRateLimited          ErrorKind = "RATE_LIMITED"
	KindInvalidConfiguration ErrorKind = "INVALID_CONFIGURATION"
	KindUnsupportedFeature   ErrorKind = "UNSUPPORTED_FEATURE"
	KindInvalidAPIKey        ErrorKind = "INVALID_API_KEY"
	KindTimeout              ErrorKind = "TIMEOUT"
)

// Sentinels for errors.Is matching on the kind of a *ProviderError.
var (
	ErrConnectionFailed     = errors.New("provider connection failed")
	ErrInvalidResponse      = errors.New("provider returned an invalid response")
	ErrRateLimited          = errors.New("provider rate limit exceeded")
	ErrInvalidConfiguration = errors.New("invalid provider configuration")
	ErrUnsupportedFeature   = errors.New("feature not supported by provider")
	ErrInvalidAPIKey        = errors.New("provider API key missing")
	ErrTimeout              = errors.New("provider request timed out")
)

var kindSentinels = map[ErrorKind]error{
	KindConnectionFailed:     ErrConnectionFailed,
	KindInvalidResponse:      ErrInvalidResponse,
	KindRateLimited:          ErrRateLimited,
	KindInvalidConfiguration: ErrInvalidConfiguration,
	KindUnsupportedFeature:   ErrUnsupportedFeature,
	KindInvalidAPIKey:        ErrInvalidAPIKey,
	KindTimeout:              ErrTimeout,
}

// ProviderError is the single error type surfaced by providers and the factory.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Feature  string
	Seconds  int
	Cause    error
}

func (e *ProviderError) Error() string {
	prefix := fmt.Sprintf("diagnosis %s error", e.Kind)
	if e.Provider != "" {
		prefix = fmt.Sprintf("diagnosis %s error from %s", e.Kind, e.Provider)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrRateLimited) and friends match on Kind.
func (e *ProviderError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// UserMessage is safe to show to end users: it never includes upstream text or credentials.
func (e *ProviderError) UserMessage() string {
	switch e.Kind {
	case KindRateLimited:
		return "The diagnosis service is busy right now. Please try again in a few minutes."
	case KindUnsupportedFeature:
		return "This kind of diagnosis is not available yet."
	default:
		return "We could not complete your diagnosis right now. Please try again later."
	}
}

// IsKind reports whether err is a *ProviderError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

func NewConnectionFailedError(provider, detail string, cause error) *ProviderError {
	return &ProviderError{Kind: KindConnectionFailed, Provider: provider, Message: detail, Cause: cause}
}

func NewInvalidResponseError(provider, detail string, cause error) *ProviderError {
	return &ProviderError{Kind: KindInvalidResponse, Provider: provider, Message: detail, Cause: cause}
}

func NewRateLimitedError(provider string, cause error) *ProviderError {
	return &ProviderError{
		Kind:     KindRateLimited,
		Provider: provider,
		Message:  "rate limit exceeded (HTTP 429)",
		Cause:    cause,
	}
}

// NewThrottledError reports that the local outbound budget for provider is spent.
func NewThrottledError(provider string, cause error) *ProviderError {
	return &ProviderError{
		Kind:     KindRateLimited,
		Provider: provider,
		Message:  "outbound request budget exhausted",
		Cause:    cause,
	}
}

func NewInvalidConfigurationError(detail string) *ProviderError {
	return &ProviderError{Kind: KindInvalidConfiguration, Message: detail}
}

func NewUnsupportedFeatureError(provider, feature string) *ProviderError {
	return &ProviderError{
		Kind:     KindUnsupportedFeature,
		Provider: provider,
		Feature:  feature,
		Message:  fmt.Sprintf("%s is not supported", feature),
	}
}

func NewInvalidAPIKeyError(provider string) *ProviderError {
	return &ProviderError{Kind: KindInvalidAPIKey, Provider: provider, Message: "API key is not configured"}
}

func NewTimeoutError(provider string, seconds int, cause error) *ProviderError {
	return &ProviderError{
		Kind:     KindTimeout,
		Provider: provider,
		Seconds:  seconds,
		Message:  fmt.Sprintf("request exceeded %ds timeout", seconds),
		Cause:    cause,
	}
}
