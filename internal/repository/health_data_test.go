package repository

import (
	"context"
	"testing"
	"time"

	"wearable-hub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupHealthDataRepo(t *testing.T) (sqlmock.Sqlmock, *HealthDataRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return mock, NewHealthDataRepository(db, zap.NewNop())
}

func TestInsertDataPoint(t *testing.T) {
	mock, repo := setupHealthDataRepo(t)

	mock.ExpectExec(`INSERT INTO health_data_points`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertDataPoint(context.Background(), &models.HealthDataPoint{
		Timestamp: time.Now(),
		DeviceID:  "hw-1",
		Type:      models.MetricHeartRate,
		Value:     72,
		Unit:      "bpm",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDataPoint_Validation(t *testing.T) {
	_, repo := setupHealthDataRepo(t)

	err := repo.InsertDataPoint(context.Background(), nil)
	assert.Error(t, err)

	err = repo.InsertDataPoint(context.Background(), &models.HealthDataPoint{Type: models.MetricHeartRate})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "device_id is required")

	err = repo.InsertDataPoint(context.Background(), &models.HealthDataPoint{DeviceID: "hw-1", Type: "mood"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid metric type")
}

func TestInsertDataPoint_ExecError(t *testing.T) {
	mock, repo := setupHealthDataRepo(t)

	mock.ExpectExec(`INSERT INTO health_data_points`).
		WillReturnError(assert.AnError)

	err := repo.InsertDataPoint(context.Background(), &models.HealthDataPoint{
		DeviceID: "hw-1",
		Type:     models.MetricHeartRate,
		Value:    72,
	})
	assert.ErrorIs(t, err, ErrPersistenceFailed)
}

func TestListDataPoints(t *testing.T) {
	mock, repo := setupHealthDataRepo(t)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows := sqlmock.NewRows([]string{"timestamp", "device_id", "type", "value", "unit", "metadata"}).
		AddRow(start.Add(time.Hour), "hw-1", "heart_rate", 70.0, "bpm", []byte(`{}`)).
		AddRow(start.Add(2*time.Hour), "hw-1", "heart_rate", 74.0, "bpm", nil)

	mock.ExpectQuery(`FROM health_data_points`).
		WithArgs("hw-1", "heart_rate", start, end).
		WillReturnRows(rows)

	points, err := repo.ListDataPoints(context.Background(), "hw-1", models.MetricHeartRate, start, end)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 70.0, points[0].Value)
	assert.Equal(t, models.MetricHeartRate, points[1].Type)
}

func TestListDataPoints_Validation(t *testing.T) {
	_, repo := setupHealthDataRepo(t)

	_, err := repo.ListDataPoints(context.Background(), "", models.MetricHeartRate, time.Time{}, time.Now())
	assert.Error(t, err)

	_, err = repo.ListDataPoints(context.Background(), "hw-1", "mood", time.Time{}, time.Now())
	assert.Error(t, err)
}
