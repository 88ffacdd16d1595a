// File: internal/services/diagnosis/prompt.go
package diagnosis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iyunix/go-mechanic/internal/domain"
)

const unknownVehicleField = "Unknown"

// systemPrompt is sent with every chat completion.
const systemPrompt = "You are an expert automotive diagnostic technician. " +
	"You always respond with a single valid JSON object and nothing else: " +
	"no markdown, no code fences, no commentary."

// BuildDiagnosisPrompt renders the user message for a diagnosis request.
func BuildDiagnosisPrompt(req domain.DiagnosisRequest) string {
	var b strings.Builder

	b.WriteString("Analyze the following vehicle problem and provide a diagnosis.\n\n")
	b.WriteString("VEHICLE INFORMATION:\n")
	fmt.Fprintf(&b, "- Make: %s\n", orUnknown(req.VehicleMake))
	fmt.Fprintf(&b, "- Model: %s\n", orUnknown(req.VehicleModel))
	fmt.Fprintf(&b, "- Year: %s\n", intOrUnknown(req.VehicleYear))
	mileage := intOrUnknown(req.Mileage)
	if req.Mileage != nil {
		mileage += " miles"
	}
	fmt.Fprintf(&b, "- Mileage: %s\n\n", mileage)

	fmt.Fprintf(&b, "ISSUE CATEGORY: %s\n\n", req.Category)
	b.WriteString("PROBLEM DESCRIPTION:\n")
	b.WriteString(strings.TrimSpace(req.Description))
	b.WriteString("\n\n")

	b.WriteString(`Respond ONLY with a JSON object with exactly these keys:
{
  "identified_issue": "Brief name of the most likely issue",
  "confidence_score": 85,
  "explanation": "Clear explanation of the issue and its likely cause, in plain language",
  "diy_steps": ["Step 1", "Step 2"],
  "safety_warnings": "Any safety concerns, or null",
  "estimated_cost_min": 100,
  "estimated_cost_max": 300,
  "urgency_level": "low",
  "safe_to_drive": true,
  "safe_to_drive_notes": "Conditions under which it is or is not safe to keep driving"
}

RULES:
- confidence_score is an integer from 0 to 100.
- urgency_level must be one of: low, medium, critical.
- diy_steps is an array of strings; use an empty array when the repair needs a professional.
- estimated costs are in US dollars and estimated_cost_min must not exceed estimated_cost_max.
- Be conservative about safety: when in doubt, set safe_to_drive to false and raise the urgency.
- Do not wrap the JSON in markdown code fences and do not add any text before or after it.`)

	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownVehicleField
	}
	return s
}

func intOrUnknown(v *int) string {
	if v == nil {
		return unknownVehicleField
	}
	return strconv.Itoa(*v)
}
