// File: internal/domain/diagnosis.go
package domain

// Category groups the symptom a driver reports.
type Category string

const (
	CategoryEngine       Category = "engine"
	CategoryBrakes       Category = "brakes"
	CategoryElectrical   Category = "electrical"
	CategoryTransmission Category = "transmission"
	CategoryTires        Category = "tires"
	CategoryOther        Category = "other"
)

// Categories lists every recognised category in display order.
var Categories = []Category{
	CategoryEngine, CategoryBrakes, CategoryElectrical,
	CategoryTransmission, CategoryTires, CategoryOther,
}

// MaxDiagnosisImages caps the photos attached to one request.
const MaxDiagnosisImages = 5

// DiagnosisRequest is what a driver submits. Input is validated before it gets here.
type DiagnosisRequest struct {
	Category     Category `json:"category"`
	Description  string   `json:"description"`
	Images       []string `json:"images,omitempty"`
	VehicleMake  string   `json:"vehicle_make,omitempty"`
	VehicleModel string   `json:"vehicle_model,omitempty"`
	VehicleYear  *int     `json:"vehicle_year,omitempty"`
	Mileage      *int     `json:"mileage,omitempty"`
}

// HasImages reports whether the request needs a vision-capable provider.
func (r DiagnosisRequest) HasImages() bool {
	return len(r.Images) > 0
}
