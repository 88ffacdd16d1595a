package diagnosis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/iyunix/go-mechanic/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}

// exampleContent is the JSON the prompt shows the model as its answer template.
const exampleContent = `{
  "identified_issue": "Brief name of the most likely issue",
  "confidence_score": 85,
  "explanation": "Clear explanation of the issue and its likely cause, in plain language",
  "diy_steps": ["Step 1", "Step 2"],
  "safety_warnings": null,
  "estimated_cost_min": 100,
  "estimated_cost_max": 300,
  "urgency_level": "low",
  "safe_to_drive": true,
  "safe_to_drive_notes": "Safe for short trips"
}`

func chatCompletionBody(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 10, "total_tokens": 20},
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// upstream is a scripted OpenAI-compatible server. Each chat completion call
// consumes the next response; the last one repeats.
type upstream struct {
	server    *httptest.Server
	mu        sync.Mutex
	responses []func(w http.ResponseWriter)
	calls     int32
	modelsOK  atomic.Bool
}

func newUpstream(t *testing.T, responses ...func(w http.ResponseWriter)) *upstream {
	t.Helper()
	u := &upstream{responses: responses}
	u.modelsOK.Store(true)
	u.server = httptest.NewServer(http.HandlerFunc(u.handle))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) handle(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/models":
		if !u.modelsOK.Load() {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{"error": map[string]any{"message": "down"}})
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]any{"object": "list", "data": []any{}})
	case "/chat/completions":
		n := int(atomic.AddInt32(&u.calls, 1))
		u.mu.Lock()
		idx := n - 1
		if idx >= len(u.responses) {
			idx = len(u.responses) - 1
		}
		respond := u.responses[idx]
		u.mu.Unlock()
		respond(w)
	default:
		http.NotFound(w, r)
	}
}

func (u *upstream) chatCalls() int { return int(atomic.LoadInt32(&u.calls)) }

func okContent(content string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) { writeJSONResponse(w, http.StatusOK, chatCompletionBody(content)) }
}

func statusError(status int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		writeJSONResponse(w, status, map[string]any{"error": map[string]any{"message": http.StatusText(status), "type": "server_error"}})
	}
}

// recordingSleep captures backoff durations without sleeping.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func testProviderConfig(url string) ProviderConfig {
	cfg := DefaultProviderConfigs()[KeyFastInference]
	cfg.APIKey = "test-key"
	cfg.APIURL = url
	cfg.Timeout = 2 * time.Second
	return cfg
}

func camryRequest() domain.DiagnosisRequest {
	year := 2015
	return domain.DiagnosisRequest{
		Category:     domain.CategoryEngine,
		Description:  "clicking noise on cold start",
		VehicleMake:  "Toyota",
		VehicleModel: "Camry",
		VehicleYear:  &year,
	}
}

// fakeProvider is a scripted Provider for factory tests.
type fakeProvider struct {
	cfg       ProviderConfig
	available bool
	result    *Result
	err       error
}

func (p *fakeProvider) Diagnose(ctx context.Context, req domain.DiagnosisRequest) (*Result, error) {
	return p.result, p.err
}

func (p *fakeProvider) AnalyzeImages(ctx context.Context, imagePaths []string) ([]ImageAnalysis, error) {
	return nil, NewUnsupportedFeatureError(p.cfg.Key, "image_analysis")
}

func (p *fakeProvider) Name() string                         { return "Fake (" + p.cfg.Key + ")" }
func (p *fakeProvider) IsAvailable(ctx context.Context) bool { return p.available }
func (p *fakeProvider) Config() ProviderConfig               { return p.cfg }

func fakeConstructor(available bool) Constructor {
	return func(cfg ProviderConfig, _ *rate.Limiter, logger Logger) (Provider, error) {
		return &fakeProvider{cfg: cfg, available: available}, nil
	}
}

func settingsFor(keys ...string) *Settings {
	providers := make(map[string]ProviderConfig, len(keys))
	for _, k := range keys {
		providers[k] = ProviderConfig{
			Key: k, APIKey: "k", APIURL: "http://localhost", Model: "m-" + k,
			Timeout: time.Second, MaxRetries: 1, CostPer1000Tokens: 1,
		}
	}
	return &Settings{DefaultProvider: keys[0], FallbackOrder: keys, Providers: providers}
}
