// File: internal/handlers/presenter.go
package handlers

import (
	"bytes"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/iyunix/go-mechanic/internal/dtos"
	"github.com/iyunix/go-mechanic/internal/services"
)

// markdown renders model explanations. Raw HTML in the source is dropped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderExplanation falls back to an empty string; the plain explanation is always sent too.
func renderExplanation(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func toDiagnosisResponse(d *services.Diagnosis) dtos.DiagnosisResponseDTO {
	r := d.Result
	resp := dtos.DiagnosisResponseDTO{
		ID:                    d.ID,
		IdentifiedIssue:       r.IdentifiedIssue(),
		ConfidenceScore:       r.ConfidenceScore(),
		Explanation:           r.Explanation(),
		ExplanationHTML:       renderExplanation(r.Explanation()),
		DIYSteps:              r.DIYSteps(),
		SafetyWarnings:        r.SafetyWarnings(),
		EstimatedCostMin:      r.EstimatedCostMin(),
		EstimatedCostMax:      r.EstimatedCostMax(),
		UrgencyLevel:          string(r.UrgencyLevel()),
		IsCritical:            r.IsCritical(),
		SafeToDrive:           r.SafeToDrive(),
		SafeToDriveNotes:      r.SafeToDriveNotes(),
		RelatedArticles:       r.RelatedArticles(),
		AIProvider:            r.AIProvider(),
		ProcessingTimeSeconds: r.ProcessingTimeSeconds(),
		ProviderKey:           d.ProviderKey,
		Cached:                d.Cached,
		FallbackFrom:          d.FallbackFrom,
		QualityWarnings:       d.QualityWarnings,
	}
	if cost, ok := r.FormattedCostEstimate(); ok {
		resp.CostEstimate = cost
	}
	if !d.CreatedAt.IsZero() {
		resp.CreatedAt = d.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
