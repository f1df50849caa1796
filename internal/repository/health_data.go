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

// HealthDataRepository persists the append-only health data point history.
type HealthDataRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHealthDataRepository creates a health data repository.
func NewHealthDataRepository(db *sql.DB, logger *zap.Logger) *HealthDataRepository {
	return &HealthDataRepository{
		db:     db,
		logger: logger,
	}
}

// InsertDataPoint appends one reading to the history.
func (r *HealthDataRepository) InsertDataPoint(ctx context.Context, point *models.HealthDataPoint) error {
	if point == nil {
		return fmt.Errorf("point is required")
	}
	if point.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if !point.Type.IsValid() {
		return fmt.Errorf("invalid metric type: %s", point.Type)
	}

	query := `
		INSERT INTO health_data_points (
			timestamp, device_id, type, value, unit, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	metadata := point.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	_, err := r.db.ExecContext(ctx, query,
		point.Timestamp,
		point.DeviceID,
		string(point.Type),
		point.Value,
		point.Unit,
		[]byte(metadata),
	)

	if err != nil {
		return fmt.Errorf("%w: failed to insert data point for device %s: %w", ErrPersistenceFailed, point.DeviceID, err)
	}

	return nil
}

// ListDataPoints returns readings for a device and metric type within a time
// range, in arrival (timestamp) order.
func (r *HealthDataRepository) ListDataPoints(ctx context.Context, deviceID string, metricType models.MetricType, start, end time.Time) ([]models.HealthDataPoint, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	if !metricType.IsValid() {
		return nil, fmt.Errorf("invalid metric type: %s", metricType)
	}

	query := `
		SELECT timestamp, device_id, type, value, unit, metadata
		FROM health_data_points
		WHERE device_id = $1
		  AND type = $2
		  AND timestamp >= $3
		  AND timestamp <= $4
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, string(metricType), start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list data points for device %s: %w", ErrPersistenceFailed, deviceID, err)
	}
	defer rows.Close()

	var points []models.HealthDataPoint
	for rows.Next() {
		var point models.HealthDataPoint
		var metadata []byte

		if err := rows.Scan(
			&point.Timestamp,
			&point.DeviceID,
			&point.Type,
			&point.Value,
			&point.Unit,
			&metadata,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan data point row: %w", ErrPersistenceFailed, err)
		}

		if len(metadata) > 0 {
			point.Metadata = metadata
		}

		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate data points: %w", ErrPersistenceFailed, err)
	}

	return points, nil
}
