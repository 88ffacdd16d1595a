// File: internal/services/diagnosis/result.go
package diagnosis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UrgencyLevel is the closed severity classification of a diagnosis.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyCritical UrgencyLevel = "critical"
)

// Valid reports whether u is one of the three allowed levels.
func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyCritical:
		return true
	}
	return false
}

const (
	MinConfidenceScore = 0
	MaxConfidenceScore = 100

	defaultIdentifiedIssue = "Unknown issue"
)

// Sentinel errors wrapped by ValidationError.
var (
	ErrConfidenceOutOfRange   = errors.New("confidence score out of range")
	ErrInvalidUrgency         = errors.New("invalid urgency level")
	ErrCostRange              = errors.New("estimated cost minimum exceeds maximum")
	ErrNegativeProcessingTime = errors.New("processing time cannot be negative")
)

// ValidationError reports a field that violates a Result invariant.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

func newValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ResultFields is the input to NewResult. Optional values are pointers.
type ResultFields struct {
	IdentifiedIssue       string
	ConfidenceScore       int
	Explanation           string
	DIYSteps              []string
	SafetyWarnings        *string
	EstimatedCostMin      *float64
	EstimatedCostMax      *float64
	UrgencyLevel          UrgencyLevel
	SafeToDrive           bool
	SafeToDriveNotes      *string
	RelatedArticles       []string
	AIProvider            *string
	ProcessingTimeSeconds *int
}

// Result is a validated, immutable diagnosis outcome.
type Result struct {
	f ResultFields
}

// NewResult validates fields and returns a Result that owns copies of every slice and pointer.
func NewResult(fields ResultFields) (*Result, error) {
	if fields.ConfidenceScore < MinConfidenceScore || fields.ConfidenceScore > MaxConfidenceScore {
		return nil, newValidationError("confidence_score", strconv.Itoa(fields.ConfidenceScore), ErrConfidenceOutOfRange)
	}
	if !fields.UrgencyLevel.Valid() {
		return nil, newValidationError("urgency_level", string(fields.UrgencyLevel), ErrInvalidUrgency)
	}
	if fields.EstimatedCostMin != nil && fields.EstimatedCostMax != nil &&
		*fields.EstimatedCostMin > *fields.EstimatedCostMax {
		value := fmt.Sprintf("%.2f > %.2f", *fields.EstimatedCostMin, *fields.EstimatedCostMax)
		return nil, newValidationError("estimated_cost_min", value, ErrCostRange)
	}
	if fields.ProcessingTimeSeconds != nil && *fields.ProcessingTimeSeconds < 0 {
		return nil, newValidationError("processing_time_seconds", strconv.Itoa(*fields.ProcessingTimeSeconds), ErrNegativeProcessingTime)
	}
	return &Result{f: cloneFields(fields)}, nil
}

// ResultFromMap builds a Result from a loosely-typed upstream payload, substituting
// defaults for missing optional fields before validating.
func ResultFromMap(raw map[string]any) (*Result, error) {
	fields := ResultFields{
		IdentifiedIssue:  defaultIdentifiedIssue,
		UrgencyLevel:     UrgencyMedium,
		DIYSteps:         []string{},
		RelatedArticles:  []string{},
		SafetyWarnings:   optionalString(raw["safety_warnings"]),
		SafeToDriveNotes: optionalString(raw["safe_to_drive_notes"]),
		AIProvider:       optionalString(raw["ai_provider"]),
	}

	if s, ok := raw["identified_issue"].(string); ok && strings.TrimSpace(s) != "" {
		fields.IdentifiedIssue = s
	}
	if s, ok := raw["explanation"].(string); ok {
		fields.Explanation = s
	}
	if f, ok := toFloat(raw["confidence_score"]); ok {
		fields.ConfidenceScore = int(math.Round(f))
	}
	if s, ok := raw["urgency_level"].(string); ok && strings.TrimSpace(s) != "" {
		fields.UrgencyLevel = UrgencyLevel(strings.ToLower(strings.TrimSpace(s)))
	}
	if b, ok := toBool(raw["safe_to_drive"]); ok {
		fields.SafeToDrive = b
	}
	if steps := toStrings(raw["diy_steps"]); steps != nil {
		fields.DIYSteps = steps
	}
	if articles := toStrings(raw["related_articles"]); articles != nil {
		fields.RelatedArticles = articles
	}
	if f, ok := toFloat(raw["estimated_cost_min"]); ok {
		fields.EstimatedCostMin = &f
	}
	if f, ok := toFloat(raw["estimated_cost_max"]); ok {
		fields.EstimatedCostMax = &f
	}
	if f, ok := toFloat(raw["processing_time_seconds"]); ok {
		secs := int(math.Round(f))
		fields.ProcessingTimeSeconds = &secs
	}

	return NewResult(fields)
}

// WithProvenance returns a copy stamped with the producing provider and elapsed time.
func (r *Result) WithProvenance(provider string, processingSeconds int) (*Result, error) {
	fields := r.Fields()
	fields.AIProvider = &provider
	fields.ProcessingTimeSeconds = &processingSeconds
	return NewResult(fields)
}

// Fields returns a copy of the underlying values.
func (r *Result) Fields() ResultFields { return cloneFields(r.f) }

func (r *Result) IdentifiedIssue() string     { return r.f.IdentifiedIssue }
func (r *Result) ConfidenceScore() int        { return r.f.ConfidenceScore }
func (r *Result) Explanation() string         { return r.f.Explanation }
func (r *Result) DIYSteps() []string          { return append([]string{}, r.f.DIYSteps...) }
func (r *Result) UrgencyLevel() UrgencyLevel  { return r.f.UrgencyLevel }
func (r *Result) SafeToDrive() bool           { return r.f.SafeToDrive }
func (r *Result) RelatedArticles() []string   { return append([]string{}, r.f.RelatedArticles...) }
func (r *Result) SafetyWarnings() *string     { return copyPtr(r.f.SafetyWarnings) }
func (r *Result) SafeToDriveNotes() *string   { return copyPtr(r.f.SafeToDriveNotes) }
func (r *Result) EstimatedCostMin() *float64  { return copyPtr(r.f.EstimatedCostMin) }
func (r *Result) EstimatedCostMax() *float64  { return copyPtr(r.f.EstimatedCostMax) }
func (r *Result) AIProvider() *string         { return copyPtr(r.f.AIProvider) }
func (r *Result) ProcessingTimeSeconds() *int { return copyPtr(r.f.ProcessingTimeSeconds) }

// IsCritical reports whether the issue needs immediate attention.
func (r *Result) IsCritical() bool { return r.f.UrgencyLevel == UrgencyCritical }

// HasDIYSteps reports whether the driver was given any self-service steps.
func (r *Result) HasDIYSteps() bool { return len(r.f.DIYSteps) > 0 }

// FormattedCostEstimate renders "$min - $max"; ok is false when either bound is missing.
func (r *Result) FormattedCostEstimate() (string, bool) {
	if r.f.EstimatedCostMin == nil || r.f.EstimatedCostMax == nil {
		return "", false
	}
	return fmt.Sprintf("$%.2f - $%.2f", *r.f.EstimatedCostMin, *r.f.EstimatedCostMax), true
}

type resultJSON struct {
	IdentifiedIssue       string       `json:"identified_issue"`
	ConfidenceScore       int          `json:"confidence_score"`
	Explanation           string       `json:"explanation"`
	DIYSteps              []string     `json:"diy_steps"`
	SafetyWarnings        *string      `json:"safety_warnings"`
	EstimatedCostMin      *float64     `json:"estimated_cost_min"`
	EstimatedCostMax      *float64     `json:"estimated_cost_max"`
	UrgencyLevel          UrgencyLevel `json:"urgency_level"`
	SafeToDrive           bool         `json:"safe_to_drive"`
	SafeToDriveNotes      *string      `json:"safe_to_drive_notes"`
	RelatedArticles       []string     `json:"related_articles"`
	AIProvider            *string      `json:"ai_provider,omitempty"`
	ProcessingTimeSeconds *int         `json:"processing_time_seconds,omitempty"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		IdentifiedIssue:       r.f.IdentifiedIssue,
		ConfidenceScore:       r.f.ConfidenceScore,
		Explanation:           r.f.Explanation,
		DIYSteps:              nonNil(r.f.DIYSteps),
		SafetyWarnings:        r.f.SafetyWarnings,
		EstimatedCostMin:      r.f.EstimatedCostMin,
		EstimatedCostMax:      r.f.EstimatedCostMax,
		UrgencyLevel:          r.f.UrgencyLevel,
		SafeToDrive:           r.f.SafeToDrive,
		SafeToDriveNotes:      r.f.SafeToDriveNotes,
		RelatedArticles:       nonNil(r.f.RelatedArticles),
		AIProvider:            r.f.AIProvider,
		ProcessingTimeSeconds: r.f.ProcessingTimeSeconds,
	})
}

// UnmarshalJSON validates the decoded payload exactly like NewResult.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	built, err := NewResult(ResultFields{
		IdentifiedIssue:       in.IdentifiedIssue,
		ConfidenceScore:       in.ConfidenceScore,
		Explanation:           in.Explanation,
		DIYSteps:              nonNil(in.DIYSteps),
		SafetyWarnings:        in.SafetyWarnings,
		EstimatedCostMin:      in.EstimatedCostMin,
		EstimatedCostMax:      in.EstimatedCostMax,
		UrgencyLevel:          in.UrgencyLevel,
		SafeToDrive:           in.SafeToDrive,
		SafeToDriveNotes:      in.SafeToDriveNotes,
		RelatedArticles:       nonNil(in.RelatedArticles),
		AIProvider:            in.AIProvider,
		ProcessingTimeSeconds: in.ProcessingTimeSeconds,
	})
	if err != nil {
		return err
	}
	*r = *built
	return nil
}

func cloneFields(f ResultFields) ResultFields {
	out := f
	out.DIYSteps = nonNil(f.DIYSteps)
	out.RelatedArticles = nonNil(f.RelatedArticles)
	out.SafetyWarnings = copyPtr(f.SafetyWarnings)
	out.SafeToDriveNotes = copyPtr(f.SafeToDriveNotes)
	out.EstimatedCostMin = copyPtr(f.EstimatedCostMin)
	out.EstimatedCostMax = copyPtr(f.EstimatedCostMax)
	out.AIProvider = copyPtr(f.AIProvider)
	out.ProcessingTimeSeconds = copyPtr(f.ProcessingTimeSeconds)
	return out
}

func nonNil(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(n, "$")), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	return false, false
}

func toStrings(v any) []string {
	switch items := v.(type) {
	case []string:
		return nonNil(items)
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			switch s := item.(type) {
			case string:
				if strings.TrimSpace(s) != "" {
					out = append(out, s)
				}
			case nil:
			default:
				out = append(out, fmt.Sprint(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(items) == "" {
			return []string{}
		}
		return []string{items}
	}
	return nil
}
