// File: internal/repository/diagnosis/diagnosis_repository.go
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iyunix/go-mechanic/internal/domain"
)

var (
	ErrDiagnosisNotFound = errors.New("diagnosis not found")
	ErrInvalidRecord     = errors.New("invalid diagnosis record")
)

// MaxHistoryLimit bounds FindByUserID.
const MaxHistoryLimit = 100

type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

type gormDiagnosisRepository struct {
	db     *gorm.DB
	logger Logger
}

func NewDiagnosisRepository(db *gorm.DB, logger Logger) DiagnosisRepository {
	return &gormDiagnosisRepository{db: db, logger: logger}
}

func (r *gormDiagnosisRepository) Create(ctx context.Context, record *domain.DiagnosisRecord) (*domain.DiagnosisRecord, error) {
	if err := validateRecord(record); err != nil {
		return nil, err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		// description and result may contain user text, so only ids are logged
		r.logger.Error("database error creating diagnosis", "user_id", record.UserID, "error", err)
		return nil, fmt.Errorf("database error creating diagnosis: %w", err)
	}

	r.logger.Debug("diagnosis stored", "id", record.ID, "user_id", record.UserID, "provider", record.Provider)
	return record, nil
}

func (r *gormDiagnosisRepository) FindByID(ctx context.Context, id string) (*domain.DiagnosisRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrDiagnosisNotFound
	}

	var record domain.DiagnosisRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDiagnosisNotFound
	}
	if err != nil {
		r.logger.Error("database error finding diagnosis", "id", id, "error", err)
		return nil, fmt.Errorf("database error finding diagnosis: %w", err)
	}
	return &record, nil
}

func (r *gormDiagnosisRepository) FindByUserID(ctx context.Context, userID uint, limit int) ([]domain.DiagnosisRecord, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRecord)
	}
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var records []domain.DiagnosisRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.logger.Error("database error listing diagnoses", "user_id", userID, "error", err)
		return nil, fmt.Errorf("database error listing diagnoses: %w", err)
	}
	return records, nil
}

func validateRecord(record *domain.DiagnosisRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if strings.TrimSpace(record.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidRecord)
	}
	if record.ResultJSON == "" {
		return fmt.Errorf("%w: result is required", ErrInvalidRecord)
	}
	if record.ID != "" {
		if _, err := uuid.Parse(record.ID); err != nil {
			return fmt.Errorf("%w: id must be a uuid", ErrInvalidRecord)
		}
	}
	return nil
}
