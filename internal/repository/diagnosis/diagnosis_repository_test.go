package diagnosis

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iyunix/go-mechanic/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}

func newTestRepo(t *testing.T) DiagnosisRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.DiagnosisRecord{}))
	return NewDiagnosisRepository(db, nopLogger{})
}

func record(userID uint, issue string) *domain.DiagnosisRecord {
	year := 2015
	return &domain.DiagnosisRecord{
		UserID:          userID,
		Category:        domain.CategoryEngine,
		Description:     "clicking noise on cold start",
		VehicleMake:     "Toyota",
		VehicleModel:    "Camry",
		VehicleYear:     &year,
		Provider:        "FastInference (llama-3.3-70b-versatile)",
		IdentifiedIssue: issue,
		ConfidenceScore: 85,
		UrgencyLevel:    "low",
		ResultJSON:      `{"identified_issue":"` + issue + `"}`,
	}
}

func TestDiagnosisRepository_CreateAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, record(7, "Valve lifter noise"))
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Valve lifter noise", found.IdentifiedIssue)
	assert.Equal(t, uint(7), found.UserID)
	require.NotNil(t, found.VehicleYear)
	assert.Equal(t, 2015, *found.VehicleYear)
	assert.Equal(t, domain.CategoryEngine, found.Request().Category)
}

func TestDiagnosisRepository_FindByIDMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrDiagnosisNotFound)

	_, err = repo.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrDiagnosisNotFound)
}

func TestDiagnosisRepository_FindByUserIDNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, issue := range []string{"first", "second", "third"} {
		r := record(7, issue)
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := repo.Create(ctx, r)
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, record(8, "other user"))
	require.NoError(t, err)

	records, err := repo.FindByUserID(ctx, 7, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "third", records[0].IdentifiedIssue)
	assert.Equal(t, "second", records[1].IdentifiedIssue)

	_, err = repo.FindByUserID(ctx, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestDiagnosisRepository_CreateValidates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	r := record(1, "x")
	r.ResultJSON = ""
	_, err = repo.Create(ctx, r)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	r = record(1, "x")
	r.ID = "42"
	_, err = repo.Create(ctx, r)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
