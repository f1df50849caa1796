package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"wearable-hub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDeviceRepo(t *testing.T) (sqlmock.Sqlmock, *DeviceRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return mock, NewDeviceRepository(db, zap.NewNop())
}

func sampleDevice() *models.WearableDevice {
	battery := 87
	return &models.WearableDevice{
		ID:           "rec-1",
		DeviceID:     "AA:BB:CC:DD:EE:FF",
		UserID:       "user-1",
		Name:         "Pulse Watch",
		Type:         models.DeviceTypeSmartwatch,
		Manufacturer: "Acme",
		Model:        "PW-2",
		Status:       models.StatusConnected,
		LastSync:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		BatteryLevel: &battery,
	}
}

func TestUpsertDevice(t *testing.T) {
	mock, repo := setupDeviceRepo(t)

	mock.ExpectQuery(`INSERT INTO wearable_devices`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1"))

	stored, err := repo.UpsertDevice(context.Background(), sampleDevice())
	require.NoError(t, err)
	assert.Equal(t, "rec-1", stored.ID)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", stored.DeviceID)
	assert.JSONEq(t, "{}", string(stored.Metadata))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDevice_Validation(t *testing.T) {
	_, repo := setupDeviceRepo(t)

	_, err := repo.UpsertDevice(context.Background(), nil)
	assert.Error(t, err)

	_, err = repo.UpsertDevice(context.Background(), &models.WearableDevice{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "device_id is required")
}

func TestUpsertDevice_QueryError(t *testing.T) {
	mock, repo := setupDeviceRepo(t)

	mock.ExpectQuery(`INSERT INTO wearable_devices`).
		WillReturnError(assert.AnError)

	_, err := repo.UpsertDevice(context.Background(), sampleDevice())
	assert.ErrorIs(t, err, ErrPersistenceFailed)
}

func TestGetDeviceByHardwareID(t *testing.T) {
	mock, repo := setupDeviceRepo(t)

	rows := sqlmock.NewRows([]string{
		"id", "device_id", "user_id", "name", "type", "manufacturer", "model",
		"status", "last_sync", "battery_level", "metadata",
	}).AddRow(
		"rec-1", "AA:BB:CC:DD:EE:FF", "user-1", "Pulse Watch", "smartwatch", "Acme", "PW-2",
		"connected", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), int64(87), []byte(`{"fw":"1.2"}`),
	)
	mock.ExpectQuery(`FROM wearable_devices`).
		WithArgs("AA:BB:CC:DD:EE:FF").
		WillReturnRows(rows)

	device, err := repo.GetDeviceByHardwareID(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceTypeSmartwatch, device.Type)
	assert.Equal(t, models.StatusConnected, device.Status)
	require.NotNil(t, device.BatteryLevel)
	assert.Equal(t, 87, *device.BatteryLevel)
	assert.JSONEq(t, `{"fw":"1.2"}`, string(device.Metadata))
}

func TestGetDeviceByHardwareID_NotFound(t *testing.T) {
	mock, repo := setupDeviceRepo(t)

	mock.ExpectQuery(`FROM wearable_devices`).
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetDeviceByHardwareID(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDevicesByUser(t *testing.T) {
	mock, repo := setupDeviceRepo(t)

	rows := sqlmock.NewRows([]string{
		"id", "device_id", "user_id", "name", "type", "manufacturer", "model",
		"status", "last_sync", "battery_level", "metadata",
	}).AddRow(
		"rec-1", "hw-1", "user-1", "Watch", "smartwatch", "Acme", "PW-2",
		"connected", time.Now(), int64(90), []byte(`{}`),
	).AddRow(
		"rec-2", "hw-2", "user-1", "Band", "fitness_tracker", "Acme", "FB-1",
		"disconnected", time.Now().Add(-time.Hour), nil, nil,
	)
	mock.ExpectQuery(`FROM wearable_devices`).
		WithArgs("user-1").
		WillReturnRows(rows)

	devices, err := repo.ListDevicesByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Nil(t, devices[1].BatteryLevel)
	assert.JSONEq(t, "{}", string(devices[1].Metadata))
}

func TestListDevicesByUser_RequiresUserID(t *testing.T) {
	_, repo := setupDeviceRepo(t)

	_, err := repo.ListDevicesByUser(context.Background(), "")
	assert.Error(t, err)
}

func TestUpdateDeviceStatus(t *testing.T) {
	mock, repo := setupDeviceRepo(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE wearable_devices`).
		WithArgs("hw-1", "disconnected", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateDeviceStatus(context.Background(), "hw-1", models.StatusDisconnected, now)
	assert.NoError(t, err)
}

func TestUpdateDeviceStatus_UnknownDevice(t *testing.T) {
	mock, repo := setupDeviceRepo(t)

	mock.ExpectExec(`UPDATE wearable_devices`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDeviceStatus(context.Background(), "hw-missing", models.StatusDisconnected, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDeviceStatus_InvalidStatus(t *testing.T) {
	_, repo := setupDeviceRepo(t)

	err := repo.UpdateDeviceStatus(context.Background(), "hw-1", "sleeping", time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid device status")
}
