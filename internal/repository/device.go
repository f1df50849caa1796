package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wearable-hub/internal/models"

	"go.uber.org/zap"
)

// DeviceRepository persists wearable device records.
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository creates a device repository.
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertDevice inserts a device or updates the existing record keyed by the
// hardware address. Returns the stored record with its assigned id.
func (r *DeviceRepository) UpsertDevice(ctx context.Context, device *models.WearableDevice) (*models.WearableDevice, error) {
	if device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if device.DeviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		INSERT INTO wearable_devices (
			id, device_id, user_id, name, type, manufacturer, model,
			status, last_sync, battery_level, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (device_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			manufacturer = EXCLUDED.manufacturer,
			model = EXCLUDED.model,
			status = EXCLUDED.status,
			last_sync = EXCLUDED.last_sync,
			battery_level = EXCLUDED.battery_level,
			metadata = EXCLUDED.metadata
		RETURNING id
	`

	metadata := device.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	var id string
	err := r.db.QueryRowContext(ctx, query,
		device.ID,
		device.DeviceID,
		device.UserID,
		device.Name,
		string(device.Type),
		device.Manufacturer,
		device.Model,
		string(device.Status),
		device.LastSync,
		device.BatteryLevel,
		[]byte(metadata),
	).Scan(&id)

	if err != nil {
		return nil, fmt.Errorf("%w: failed to upsert device %s: %w", ErrPersistenceFailed, device.DeviceID, err)
	}

	stored := *device
	stored.ID = id
	stored.Metadata = metadata
	return &stored, nil
}

// GetDeviceByHardwareID fetches a device by its hardware address.
func (r *DeviceRepository) GetDeviceByHardwareID(ctx context.Context, deviceID string) (*models.WearableDevice, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		SELECT
			id, device_id, user_id, name, type, manufacturer, model,
			status, last_sync, battery_level, metadata
		FROM wearable_devices
		WHERE device_id = $1
	`

	return r.scanDevice(r.db.QueryRowContext(ctx, query, deviceID), deviceID)
}

// ListDevicesByUser returns all devices owned by a user, most recently synced
// first.
func (r *DeviceRepository) ListDevicesByUser(ctx context.Context, userID string) ([]models.WearableDevice, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT
			id, device_id, user_id, name, type, manufacturer, model,
			status, last_sync, battery_level, metadata
		FROM wearable_devices
		WHERE user_id = $1
		ORDER BY last_sync DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list devices for user %s: %w", ErrPersistenceFailed, userID, err)
	}
	defer rows.Close()

	var devices []models.WearableDevice
	for rows.Next() {
		var device models.WearableDevice
		var batteryLevel sql.NullInt64
		var metadata []byte

		if err := rows.Scan(
			&device.ID,
			&device.DeviceID,
			&device.UserID,
			&device.Name,
			&device.Type,
			&device.Manufacturer,
			&device.Model,
			&device.Status,
			&device.LastSync,
			&batteryLevel,
			&metadata,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan device row: %w", ErrPersistenceFailed, err)
		}

		if batteryLevel.Valid {
			level := int(batteryLevel.Int64)
			device.BatteryLevel = &level
		}
		if len(metadata) > 0 {
			device.Metadata = metadata
		} else {
			device.Metadata = json.RawMessage("{}")
		}

		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate devices: %w", ErrPersistenceFailed, err)
	}

	return devices, nil
}

// UpdateDeviceStatus sets the status and last_sync of a device.
func (r *DeviceRepository) UpdateDeviceStatus(ctx context.Context, deviceID string, status models.DeviceStatus, lastSync time.Time) error {
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if !status.IsValid() {
		return fmt.Errorf("invalid device status: %s", status)
	}

	query := `
		UPDATE wearable_devices
		SET status = $2, last_sync = $3
		WHERE device_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, deviceID, string(status), lastSync)
	if err != nil {
		return fmt.Errorf("%w: failed to update device status: %w", ErrPersistenceFailed, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
	}

	return nil
}

func (r *DeviceRepository) scanDevice(row *sql.Row, deviceID string) (*models.WearableDevice, error) {
	var device models.WearableDevice
	var batteryLevel sql.NullInt64
	var metadata []byte

	err := row.Scan(
		&device.ID,
		&device.DeviceID,
		&device.UserID,
		&device.Name,
		&device.Type,
		&device.Manufacturer,
		&device.Model,
		&device.Status,
		&device.LastSync,
		&batteryLevel,
		&metadata,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
		}
		return nil, fmt.Errorf("%w: failed to get device %s: %w", ErrPersistenceFailed, deviceID, err)
	}

	if batteryLevel.Valid {
		level := int(batteryLevel.Int64)
		device.BatteryLevel = &level
	}
	if len(metadata) > 0 {
		device.Metadata = metadata
	} else {
		device.Metadata = json.RawMessage("{}")
	}

	return &device, nil
}
