package dtos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-mechanic/internal/domain"
)

func intPtr(i int) *int { return &i }

func validRequest() CreateDiagnosisRequestDTO {
	return CreateDiagnosisRequestDTO{
		Category:     "engine",
		Description:  "Clicking noise on cold start that fades after a minute",
		VehicleMake:  "Toyota",
		VehicleModel: "Camry",
		VehicleYear:  intPtr(2015),
		Mileage:      intPtr(85000),
	}
}

func TestValidate_AcceptsCompleteRequest(t *testing.T) {
	fields, err := Validate(validRequest())
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestValidate_AcceptsRequestWithoutVehicle(t *testing.T) {
	req := CreateDiagnosisRequestDTO{Category: "brakes", Description: "Grinding when braking hard"}
	fields, err := Validate(req)
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestValidate_RejectsBadFields(t *testing.T) {
	cases := map[string]struct {
		mutate func(*CreateDiagnosisRequestDTO)
		field  string
	}{
		"unknown category":    {func(r *CreateDiagnosisRequestDTO) { r.Category = "suspension" }, "category"},
		"missing description": {func(r *CreateDiagnosisRequestDTO) { r.Description = "" }, "description"},
		"short description":   {func(r *CreateDiagnosisRequestDTO) { r.Description = "noise" }, "description"},
		"too many images":     {func(r *CreateDiagnosisRequestDTO) { r.Images = make([]string, 6) }, "images"},
		"empty image path":    {func(r *CreateDiagnosisRequestDTO) { r.Images = []string{"a.jpg", ""} }, "images[1]"},
		"year without make":   {func(r *CreateDiagnosisRequestDTO) { r.VehicleMake = "" }, "vehicle_make"},
		"make without year":   {func(r *CreateDiagnosisRequestDTO) { r.VehicleYear = nil }, "vehicle_year"},
		"ancient year":        {func(r *CreateDiagnosisRequestDTO) { r.VehicleYear = intPtr(1850) }, "vehicle_year"},
		"negative mileage":    {func(r *CreateDiagnosisRequestDTO) { r.Mileage = intPtr(-1) }, "mileage"},
		"long make":           {func(r *CreateDiagnosisRequestDTO) { r.VehicleMake = strings.Repeat("x", 65) }, "vehicle_make"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			fields, err := Validate(req)
			require.NoError(t, err)
			assert.Contains(t, fields, tc.field, "got %v", fields)
		})
	}
}

func TestToDomain_Normalises(t *testing.T) {
	req := validRequest()
	req.Category = " Engine "
	req.Description = "  rattles at idle, worse when cold  "
	req.VehicleMake = " Toyota "

	d := req.ToDomain()
	assert.Equal(t, domain.CategoryEngine, d.Category)
	assert.Equal(t, "rattles at idle, worse when cold", d.Description)
	assert.Equal(t, "Toyota", d.VehicleMake)
	assert.Equal(t, 2015, *d.VehicleYear)
}
