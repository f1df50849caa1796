package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wearable-hub/internal/models"

	"go.uber.org/zap"
)

// PredictionRepository persists generated health predictions.
type PredictionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPredictionRepository creates a prediction repository.
func NewPredictionRepository(db *sql.DB, logger *zap.Logger) *PredictionRepository {
	return &PredictionRepository{
		db:     db,
		logger: logger,
	}
}

// InsertPrediction stores one prediction. Predictions are immutable;
// corrections are new records.
func (r *PredictionRepository) InsertPrediction(ctx context.Context, prediction *models.HealthPrediction) error {
	if prediction == nil {
		return fmt.Errorf("prediction is required")
	}
	if prediction.ID == "" {
		return fmt.Errorf("id is required")
	}
	if prediction.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !prediction.Type.IsValid() {
		return fmt.Errorf("invalid prediction type: %s", prediction.Type)
	}

	query := `
		INSERT INTO health_predictions (
			id, user_id, device_id, type, prediction, confidence, timestamp, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	metadata := prediction.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	_, err := r.db.ExecContext(ctx, query,
		prediction.ID,
		prediction.UserID,
		prediction.DeviceID,
		string(prediction.Type),
		prediction.Prediction,
		prediction.Confidence,
		prediction.Timestamp,
		[]byte(metadata),
	)

	if err != nil {
		return fmt.Errorf("%w: failed to insert prediction %s: %w", ErrPersistenceFailed, prediction.ID, err)
	}

	return nil
}

// PredictionFilters narrows a prediction history query. Nil fields are
// ignored.
type PredictionFilters struct {
	Type      *models.PredictionType
	StartTime *time.Time
	EndTime   *time.Time
}

// ListPredictions returns a user's prediction history, newest first.
func (r *PredictionRepository) ListPredictions(ctx context.Context, userID string, filters PredictionFilters) ([]models.HealthPrediction, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	var conditions []string
	args := []interface{}{userID}
	argN := 2

	conditions = append(conditions, "user_id = $1")

	if filters.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argN))
		args = append(args, string(*filters.Type))
		argN++
	}
	if filters.StartTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argN))
		args = append(args, *filters.StartTime)
		argN++
	}
	if filters.EndTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argN))
		args = append(args, *filters.EndTime)
		argN++
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, device_id, type, prediction, confidence, timestamp, metadata
		FROM health_predictions
		WHERE %s
		ORDER BY timestamp DESC
	`, strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list predictions for user %s: %w", ErrPersistenceFailed, userID, err)
	}
	defer rows.Close()

	var predictions []models.HealthPrediction
	for rows.Next() {
		var prediction models.HealthPrediction
		var deviceID sql.NullString
		var metadata []byte

		if err := rows.Scan(
			&prediction.ID,
			&prediction.UserID,
			&deviceID,
			&prediction.Type,
			&prediction.Prediction,
			&prediction.Confidence,
			&prediction.Timestamp,
			&metadata,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan prediction row: %w", ErrPersistenceFailed, err)
		}

		if deviceID.Valid {
			prediction.DeviceID = deviceID.String
		}
		if len(metadata) > 0 {
			prediction.Metadata = metadata
		} else {
			prediction.Metadata = json.RawMessage("{}")
		}

		predictions = append(predictions, prediction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate predictions: %w", ErrPersistenceFailed, err)
	}

	return predictions, nil
}
