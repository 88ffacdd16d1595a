// File: internal/dtos/diagnosis.go
package dtos

import (
	"strings"

	"github.com/iyunix/go-mechanic/internal/domain"
)

// CreateDiagnosisRequestDTO is the payload of POST /api/diagnoses.
// Vehicle make, model and year are all-or-nothing.
type CreateDiagnosisRequestDTO struct {
	Category     string   `json:"category" validate:"required,oneof=engine brakes electrical transmission tires other"`
	Description  string   `json:"description" validate:"required,min=10,max=2000"`
	Images       []string `json:"images,omitempty" validate:"omitempty,max=5,dive,required,max=512"`
	VehicleMake  string   `json:"vehicle_make,omitempty" validate:"required_with=VehicleModel VehicleYear,omitempty,max=64"`
	VehicleModel string   `json:"vehicle_model,omitempty" validate:"required_with=VehicleMake VehicleYear,omitempty,max=64"`
	VehicleYear  *int     `json:"vehicle_year,omitempty" validate:"required_with=VehicleMake VehicleModel,omitempty,min=1900,max=2100"`
	Mileage      *int     `json:"mileage,omitempty" validate:"omitempty,min=0,max=2000000"`
}

// ToDomain trims free text and converts to the service request.
func (d CreateDiagnosisRequestDTO) ToDomain() domain.DiagnosisRequest {
	return domain.DiagnosisRequest{
		Category:     domain.Category(strings.ToLower(strings.TrimSpace(d.Category))),
		Description:  strings.TrimSpace(d.Description),
		Images:       d.Images,
		VehicleMake:  strings.TrimSpace(d.VehicleMake),
		VehicleModel: strings.TrimSpace(d.VehicleModel),
		VehicleYear:  d.VehicleYear,
		Mileage:      d.Mileage,
	}
}

// DiagnosisResponseDTO is what clients receive for one diagnosis.
type DiagnosisResponseDTO struct {
	ID                    string   `json:"id,omitempty"`
	IdentifiedIssue       string   `json:"identified_issue"`
	ConfidenceScore       int      `json:"confidence_score"`
	Explanation           string   `json:"explanation"`
	ExplanationHTML       string   `json:"explanation_html"`
	DIYSteps              []string `json:"diy_steps"`
	SafetyWarnings        *string  `json:"safety_warnings"`
	EstimatedCostMin      *float64 `json:"estimated_cost_min"`
	EstimatedCostMax      *float64 `json:"estimated_cost_max"`
	CostEstimate          string   `json:"cost_estimate,omitempty"`
	UrgencyLevel          string   `json:"urgency_level"`
	IsCritical            bool     `json:"is_critical"`
	SafeToDrive           bool     `json:"safe_to_drive"`
	SafeToDriveNotes      *string  `json:"safe_to_drive_notes"`
	RelatedArticles       []string `json:"related_articles"`
	AIProvider            *string  `json:"ai_provider,omitempty"`
	ProcessingTimeSeconds *int     `json:"processing_time_seconds,omitempty"`
	ProviderKey           string   `json:"provider_key"`
	Cached                bool     `json:"cached"`
	FallbackFrom          string   `json:"fallback_from,omitempty"`
	QualityWarnings       []string `json:"quality_warnings,omitempty"`
	CreatedAt             string   `json:"created_at"`
}

// DiagnosisHistoryResponseDTO wraps GET /api/diagnoses.
type DiagnosisHistoryResponseDTO struct {
	Diagnoses []DiagnosisResponseDTO `json:"diagnoses"`
	Count     int                    `json:"count"`
}

// CostEstimateResponseDTO is the body of GET /api/providers/{key}/cost.
type CostEstimateResponseDTO struct {
	Provider        string  `json:"provider"`
	EstimatedTokens int     `json:"estimated_tokens"`
	EstimatedCost   float64 `json:"estimated_cost"`
}

// ErrorResponseDTO is the body of every error response.
type ErrorResponseDTO struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
