// File: internal/domain/diagnosis_record.go
package domain

import "time"

// DiagnosisRecord is one persisted diagnosis. ResultJSON holds the full result
// as served to the client; the scalar columns exist for listing and filtering.
type DiagnosisRecord struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	UserID          uint      `gorm:"index" json:"user_id"` // 0 for guests
	Category        Category  `gorm:"size:32;not null" json:"category"`
	Description     string    `gorm:"type:text;not null" json:"description"`
	VehicleMake     string    `gorm:"size:64" json:"vehicle_make,omitempty"`
	VehicleModel    string    `gorm:"size:64" json:"vehicle_model,omitempty"`
	VehicleYear     *int      `json:"vehicle_year,omitempty"`
	Mileage         *int      `json:"mileage,omitempty"`
	Provider        string    `gorm:"size:128" json:"provider"`
	IdentifiedIssue string    `gorm:"size:255" json:"identified_issue"`
	ConfidenceScore int       `json:"confidence_score"`
	UrgencyLevel    string    `gorm:"size:16;index" json:"urgency_level"`
	Cached          bool      `json:"cached"`
	ResultJSON      string    `gorm:"type:text;not null" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Request rebuilds the request the record was produced from.
func (r *DiagnosisRecord) Request() DiagnosisRequest {
	return DiagnosisRequest{
		Category:     r.Category,
		Description:  r.Description,
		VehicleMake:  r.VehicleMake,
		VehicleModel: r.VehicleModel,
		VehicleYear:  r.VehicleYear,
		Mileage:      r.Mileage,
	}
}
