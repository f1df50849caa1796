package models

import (
	"encoding/json"
	"time"
)

// PredictionType is the health dimension a prediction speaks to.
type PredictionType string

const (
	PredictionSleepQuality           PredictionType = "sleep_quality"
	PredictionStressLevel            PredictionType = "stress_level"
	PredictionActivityRecommendation PredictionType = "activity_recommendation"
	PredictionHealthRisk             PredictionType = "health_risk"
)

// AllPredictionTypes lists every supported prediction type.
var AllPredictionTypes = []PredictionType{
	PredictionSleepQuality,
	PredictionStressLevel,
	PredictionActivityRecommendation,
	PredictionHealthRisk,
}

// IsValid reports whether t is a known prediction type.
func (t PredictionType) IsValid() bool {
	switch t {
	case PredictionSleepQuality, PredictionStressLevel, PredictionActivityRecommendation, PredictionHealthRisk:
		return true
	}
	return false
}

// HealthPrediction is a generated, confidence-scored interpretation of recent
// trend and average data. Immutable after creation; corrections are new
// records.
type HealthPrediction struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	DeviceID   string          `json:"device_id"`
	Type       PredictionType  `json:"type"`
	Prediction string          `json:"prediction"`
	Confidence float64         `json:"confidence"` // [0,1]
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}
