package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wearable-hub/internal/analyzer"
	"wearable-hub/internal/models"
	"wearable-hub/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Confidences are the per-type confidence constants. Health risk is weighted
// most confident since it gates the most consequential alerts. Tunable
// defaults, not algorithmic truths.
type Confidences struct {
	SleepQuality float64
	StressLevel  float64
	Activity     float64
	HealthRisk   float64
}

// DefaultConfidences returns the standard constants.
func DefaultConfidences() Confidences {
	return Confidences{
		SleepQuality: 0.85,
		StressLevel:  0.75,
		Activity:     0.80,
		HealthRisk:   0.90,
	}
}

// ChangePublisher publishes prediction change events to the event bus.
type ChangePublisher interface {
	PublishPredictionChange(ctx context.Context, op models.ChangeOp, prediction *models.HealthPrediction) error
}

// Engine turns a recent window of readings into confidence-scored
// predictions. Every prediction is persisted before it is handed onward, so
// predictions stay queryable even if dispatch fails.
type Engine struct {
	confidences Confidences
	trends      *analyzer.TrendAnalyzer
	repo        *repository.PredictionRepository
	publisher   ChangePublisher
	logger      *zap.Logger
}

// NewEngine creates a prediction engine. publisher may be nil.
func NewEngine(confidences Confidences, trends *analyzer.TrendAnalyzer, repo *repository.PredictionRepository, publisher ChangePublisher, logger *zap.Logger) *Engine {
	return &Engine{
		confidences: confidences,
		trends:      trends,
		repo:        repo,
		publisher:   publisher,
		logger:      logger,
	}
}

// Generate computes the trend and recent average over points and produces one
// persisted prediction per requested type.
func (e *Engine) Generate(ctx context.Context, userID, deviceID string, points []models.HealthDataPoint, types []models.PredictionType) ([]models.HealthPrediction, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	trend := e.trends.Classify(values)
	average := analyzer.Average(values)

	var predictions []models.HealthPrediction
	for _, predictionType := range types {
		if !predictionType.IsValid() {
			return predictions, fmt.Errorf("invalid prediction type: %s", predictionType)
		}

		prediction, err := e.build(userID, deviceID, predictionType, trend, average)
		if err != nil {
			return predictions, err
		}

		if err := e.repo.InsertPrediction(ctx, prediction); err != nil {
			e.logger.Error("Failed to persist prediction",
				zap.String("user_id", userID),
				zap.String("type", string(predictionType)),
				zap.Error(err),
			)
			return predictions, err
		}

		e.publishChange(ctx, prediction)
		predictions = append(predictions, *prediction)
	}

	return predictions, nil
}

type predictionMetadata struct {
	Trend   models.TrendDirection `json:"trend"`
	Average float64               `json:"average"`
	Risk    string                `json:"risk,omitempty"`
}

// build renders the deterministic template for one prediction type.
func (e *Engine) build(userID, deviceID string, predictionType models.PredictionType, trend models.TrendDirection, average float64) (*models.HealthPrediction, error) {
	meta := predictionMetadata{Trend: trend, Average: average}

	var text string
	var confidence float64

	switch predictionType {
	case models.PredictionSleepQuality:
		confidence = e.confidences.SleepQuality
		switch trend {
		case models.TrendImproving:
			text = "Your sleep quality is improving. Keep up your current bedtime routine."
		case models.TrendDeclining:
			text = "Your sleep quality is declining. Consider a more consistent sleep schedule."
		default:
			text = "Your sleep quality is stable. Maintaining your routine should keep it that way."
		}

	case models.PredictionStressLevel:
		confidence = e.confidences.StressLevel
		switch trend {
		case models.TrendImproving:
			text = "Your recent readings suggest rising stress levels. Short breathing exercises may help."
		case models.TrendDeclining:
			text = "Your stress indicators are easing. Recovery looks good."
		default:
			text = fmt.Sprintf("Your stress indicators are steady around %.0f. No action needed.", average)
		}

	case models.PredictionActivityRecommendation:
		confidence = e.confidences.Activity
		switch trend {
		case models.TrendDeclining:
			text = "Your activity level has dropped recently. A short daily walk would help get back on track."
		case models.TrendImproving:
			text = "Your activity level is trending up. Consider adding light strength training."
		default:
			text = "Your activity level is consistent. Keep your current routine."
		}

	case models.PredictionHealthRisk:
		confidence = e.confidences.HealthRisk
		risk := "low"
		if trend == models.TrendDeclining {
			risk = "moderate"
		}
		meta.Risk = risk
		text = fmt.Sprintf("Based on recent readings (average %.1f), your current risk level is %s.", average, risk)

	default:
		return nil, fmt.Errorf("invalid prediction type: %s", predictionType)
	}

	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction metadata: %w", err)
	}

	return &models.HealthPrediction{
		ID:         uuid.New().String(),
		UserID:     userID,
		DeviceID:   deviceID,
		Type:       predictionType,
		Prediction: text,
		Confidence: confidence,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}, nil
}

// publishChange emits a prediction change event. Failures are logged and
// swallowed; the bus is a side channel.
func (e *Engine) publishChange(ctx context.Context, prediction *models.HealthPrediction) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishPredictionChange(ctx, models.ChangeInsert, prediction); err != nil {
		e.logger.Warn("Failed to publish prediction change event",
			zap.String("prediction_id", prediction.ID),
			zap.Error(err),
		)
	}
}
