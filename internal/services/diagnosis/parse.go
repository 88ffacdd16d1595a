// File: internal/services/diagnosis/parse.go
package diagnosis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

// RequiredResponseFields must be present in every upstream payload.
var RequiredResponseFields = []string{
	"identified_issue",
	"confidence_score",
	"explanation",
	"urgency_level",
	"safe_to_drive",
}

// maxLoggedContent bounds how much raw upstream text ends up in error context.
const maxLoggedContent = 500

// extractContent returns choices[0].message.content from a chat completion envelope.
func extractContent(provider string, resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", NewInvalidResponseError(provider, "response has no choices", nil)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", NewInvalidResponseError(provider, "response has no message content", nil)
	}
	return content, nil
}

// stripCodeFences removes a leading ```json / ``` marker and a trailing ``` marker.
func stripCodeFences(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseDiagnosisContent turns the model's text reply into a raw field map with
// required keys checked and list fields defaulted.
func ParseDiagnosisContent(provider, content string) (map[string]any, error) {
	cleaned := stripCodeFences(content)

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, NewInvalidResponseError(provider,
			fmt.Sprintf("response is not valid JSON: %q", truncate(cleaned, maxLoggedContent)), err)
	}
	if raw == nil {
		return nil, NewInvalidResponseError(provider, "response JSON is not an object", nil)
	}

	for _, field := range RequiredResponseFields {
		if _, ok := raw[field]; !ok {
			return nil, NewInvalidResponseError(provider, fmt.Sprintf("missing required field: %s", field), nil)
		}
	}

	if _, ok := raw["diy_steps"]; !ok {
		raw["diy_steps"] = []any{}
	}
	if _, ok := raw["related_articles"]; !ok {
		raw["related_articles"] = []any{}
	}
	return raw, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
