// File: internal/services/diagnosis_service.go
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/iyunix/go-mechanic/internal/domain"
	diagnosisrepo "github.com/iyunix/go-mechanic/internal/repository/diagnosis"
	"github.com/iyunix/go-mechanic/internal/services/diagnosis"
)

var (
	ErrHistoryUnavailable = errors.New("diagnosis history is not configured")
	ErrDiagnosisNotFound  = diagnosisrepo.ErrDiagnosisNotFound
)

const cacheCleanupInterval = 10 * time.Minute

// Diagnosis is one served diagnosis together with how it was produced.
type Diagnosis struct {
	ID              string            `json:"id,omitempty"`
	Result          *diagnosis.Result `json:"result"`
	ProviderKey     string            `json:"provider_key"`
	Cached          bool              `json:"cached"`
	FallbackFrom    string            `json:"fallback_from,omitempty"`
	QualityWarnings []string          `json:"quality_warnings,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

type cachedDiagnosis struct {
	result      *diagnosis.Result
	providerKey string
}

// DiagnosisService is the application entry point for vehicle diagnoses. It owns
// the response cache and the runtime fallback hop; provider resolution lives in
// the factory.
type DiagnosisService struct {
	factory  *diagnosis.Factory
	settings *diagnosis.Settings
	repo     diagnosisrepo.DiagnosisRepository
	cache    *cache.Cache
	metrics  *Metrics
	logger   Logger
	now      func() time.Time
}

// NewDiagnosisService wires the service. repo may be nil, in which case nothing is persisted.
func NewDiagnosisService(
	factory *diagnosis.Factory,
	settings *diagnosis.Settings,
	repo diagnosisrepo.DiagnosisRepository,
	metrics *Metrics,
	logger Logger,
) (*DiagnosisService, error) {
	if factory == nil {
		return nil, errors.New("diagnosis factory is required")
	}
	if settings == nil {
		return nil, errors.New("diagnosis settings are required")
	}
	if metrics == nil {
		return nil, errors.New("metrics are required")
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}

	s := &DiagnosisService{
		factory:  factory,
		settings: settings,
		repo:     repo,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
	if settings.CacheEnabled {
		s.cache = cache.New(settings.CacheTTL, cacheCleanupInterval)
	}
	return s, nil
}

// Diagnose runs an anonymous diagnosis and returns only the result.
func (s *DiagnosisService) Diagnose(ctx context.Context, req domain.DiagnosisRequest) (*diagnosis.Result, error) {
	d, err := s.Submit(ctx, 0, req)
	if err != nil {
		return nil, err
	}
	return d.Result, nil
}

// Submit diagnoses req on behalf of userID (0 for guests). Cached results are
// reused for text-only requests; a provider failure gets one fallback attempt.
func (s *DiagnosisService) Submit(ctx context.Context, userID uint, req domain.DiagnosisRequest) (*Diagnosis, error) {
	key := ""
	if s.cache != nil && !req.HasImages() {
		key = cacheKey(req)
		if v, ok := s.cache.Get(key); ok {
			entry := v.(cachedDiagnosis)
			s.metrics.CacheHits.Inc()
			s.logger.Debug("diagnosis served from cache", "provider", entry.providerKey, "user_id", userID)
			out := &Diagnosis{
				Result:      entry.result,
				ProviderKey: entry.providerKey,
				Cached:      true,
				CreatedAt:   s.now(),
			}
			s.persist(ctx, userID, req, out)
			return out, nil
		}
	}

	provider, err := s.factory.Make(ctx, "")
	if err != nil {
		s.logger.Error("no diagnosis provider could be resolved", "error", err)
		return nil, err
	}

	out, err := s.diagnoseWithFallback(ctx, provider, req)
	if err != nil {
		return nil, err
	}
	out.QualityWarnings = s.qualityWarnings(out.Result)
	for _, w := range out.QualityWarnings {
		s.logger.Warn("diagnosis quality gate", "provider", out.ProviderKey, "warning", w)
	}

	if key != "" {
		s.cache.Set(key, cachedDiagnosis{result: out.Result, providerKey: out.ProviderKey}, cache.DefaultExpiration)
	}
	s.persist(ctx, userID, req, out)
	return out, nil
}

func (s *DiagnosisService) diagnoseWithFallback(ctx context.Context, provider diagnosis.Provider, req domain.DiagnosisRequest) (*Diagnosis, error) {
	primary := provider.Config().Key
	result, err := s.run(ctx, provider, req)
	if err == nil {
		return &Diagnosis{Result: result, ProviderKey: primary, CreatedAt: s.now()}, nil
	}
	if !shouldFallBack(ctx, err) {
		return nil, err
	}

	s.metrics.Fallbacks.WithLabelValues(primary).Inc()
	next, ferr := s.factory.Fallback(ctx, primary)
	if ferr != nil {
		s.logger.Warn("no fallback provider after runtime failure", "provider", primary, "error", err, "fallback_error", ferr)
		return nil, err
	}

	nextKey := next.Config().Key
	s.logger.Info("retrying diagnosis on fallback provider", "failed", primary, "fallback", nextKey, "error", err)
	result, err = s.run(ctx, next, req)
	if err != nil {
		return nil, err
	}
	return &Diagnosis{Result: result, ProviderKey: nextKey, FallbackFrom: primary, CreatedAt: s.now()}, nil
}

func (s *DiagnosisService) run(ctx context.Context, provider diagnosis.Provider, req domain.DiagnosisRequest) (*diagnosis.Result, error) {
	key := provider.Config().Key
	start := time.Now()
	result, err := provider.Diagnose(ctx, req)
	s.metrics.Duration.WithLabelValues(key).Observe(time.Since(start).Seconds())
	s.metrics.Requests.WithLabelValues(key, outcomeLabel(err)).Inc()
	if err != nil {
		s.logger.Warn("provider diagnosis failed", "provider", key, "error", err)
	}
	return result, err
}

// shouldFallBack: another provider may succeed after transport, throttling,
// payload, or capability failures. Caller cancellation never falls back.
func shouldFallBack(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var pe *diagnosis.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Kind {
	case diagnosis.KindConnectionFailed, diagnosis.KindTimeout, diagnosis.KindRateLimited,
		diagnosis.KindInvalidResponse, diagnosis.KindUnsupportedFeature:
		return true
	}
	return false
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	var pe *diagnosis.ProviderError
	if errors.As(err, &pe) {
		return strings.ToLower(string(pe.Kind))
	}
	return "error"
}

// qualityWarnings never rejects a result; it only reports what falls short of the configured bar.
func (s *DiagnosisService) qualityWarnings(r *diagnosis.Result) []string {
	var warnings []string
	if r.ConfidenceScore() < s.settings.MinConfidence {
		warnings = append(warnings, fmt.Sprintf("confidence %d is below the minimum of %d", r.ConfidenceScore(), s.settings.MinConfidence))
	}
	if s.settings.RequireDIYSteps && !r.HasDIYSteps() {
		warnings = append(warnings, "no DIY steps were provided")
	}
	if _, ok := r.FormattedCostEstimate(); s.settings.RequireCostEstimate && !ok {
		warnings = append(warnings, "no cost estimate was provided")
	}
	if secs := r.ProcessingTimeSeconds(); secs != nil && s.settings.MaxProcessingTime > 0 &&
		time.Duration(*secs)*time.Second > s.settings.MaxProcessingTime {
		warnings = append(warnings, fmt.Sprintf("processing took %ds, above the %s limit", *secs, s.settings.MaxProcessingTime))
	}
	return warnings
}

func (s *DiagnosisService) persist(ctx context.Context, userID uint, req domain.DiagnosisRequest, d *Diagnosis) {
	if s.repo == nil {
		return
	}
	payload, err := json.Marshal(d.Result)
	if err != nil {
		s.logger.Error("could not encode diagnosis for storage", "error", err)
		return
	}

	record := &domain.DiagnosisRecord{
		UserID:          userID,
		Category:        req.Category,
		Description:     req.Description,
		VehicleMake:     req.VehicleMake,
		VehicleModel:    req.VehicleModel,
		VehicleYear:     req.VehicleYear,
		Mileage:         req.Mileage,
		Provider:        d.ProviderKey,
		IdentifiedIssue: d.Result.IdentifiedIssue(),
		ConfidenceScore: d.Result.ConfidenceScore(),
		UrgencyLevel:    string(d.Result.UrgencyLevel()),
		Cached:          d.Cached,
		ResultJSON:      string(payload),
	}
	stored, err := s.repo.Create(ctx, record)
	if err != nil {
		s.logger.Error("could not store diagnosis", "user_id", userID, "error", err)
		return
	}
	d.ID = stored.ID
	d.CreatedAt = stored.CreatedAt
}

// GetDiagnosis loads a stored diagnosis. Records owned by another user look missing;
// guest records are readable by anyone holding the id.
func (s *DiagnosisService) GetDiagnosis(ctx context.Context, id string, userID uint) (*Diagnosis, error) {
	if s.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.UserID != 0 && record.UserID != userID {
		return nil, ErrDiagnosisNotFound
	}
	return fromRecord(record)
}

// History lists a user's diagnoses, newest first.
func (s *DiagnosisService) History(ctx context.Context, userID uint, limit int) ([]Diagnosis, error) {
	if s.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	records, err := s.repo.FindByUserID(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Diagnosis, 0, len(records))
	for i := range records {
		d, err := fromRecord(&records[i])
		if err != nil {
			s.logger.Warn("skipping unreadable stored diagnosis", "id", records[i].ID, "error", err)
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func fromRecord(record *domain.DiagnosisRecord) (*Diagnosis, error) {
	var result diagnosis.Result
	if err := json.Unmarshal([]byte(record.ResultJSON), &result); err != nil {
		return nil, fmt.Errorf("decoding stored diagnosis %s: %w", record.ID, err)
	}
	return &Diagnosis{
		ID:          record.ID,
		Result:      &result,
		ProviderKey: record.Provider,
		Cached:      record.Cached,
		CreatedAt:   record.CreatedAt,
	}, nil
}

// cacheKey identifies requests that would get the same answer: case and
// surrounding whitespace are ignored.
func cacheKey(req domain.DiagnosisRequest) string {
	norm := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	intOrEmpty := func(v *int) string {
		if v == nil {
			return ""
		}
		return strconv.Itoa(*v)
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		string(req.Category),
		norm(req.Description),
		norm(req.VehicleMake),
		norm(req.VehicleModel),
		intOrEmpty(req.VehicleYear),
		intOrEmpty(req.Mileage),
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}
