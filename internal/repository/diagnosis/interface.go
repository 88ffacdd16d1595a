package diagnosis

import (
	"context"

	"github.com/iyunix/go-mechanic/internal/domain"
)

// DiagnosisRepository stores diagnosis history.
type DiagnosisRepository interface {
	Create(ctx context.Context, record *domain.DiagnosisRecord) (*domain.DiagnosisRecord, error)
	FindByID(ctx context.Context, id string) (*domain.DiagnosisRecord, error)
	// FindByUserID returns the newest records first.
	FindByUserID(ctx context.Context, userID uint, limit int) ([]domain.DiagnosisRecord, error)
}
