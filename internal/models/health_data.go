package models

import (
	"encoding/json"
	"time"
)

// MetricType is the kind of physiological reading a device streams.
type MetricType string

const (
	MetricHeartRate     MetricType = "heart_rate"
	MetricSteps         MetricType = "steps"
	MetricSleep         MetricType = "sleep"
	MetricBloodPressure MetricType = "blood_pressure"
	MetricBloodOxygen   MetricType = "blood_oxygen"
)

// AllMetricTypes lists every supported metric type.
var AllMetricTypes = []MetricType{
	MetricHeartRate,
	MetricSteps,
	MetricSleep,
	MetricBloodPressure,
	MetricBloodOxygen,
}

// IsValid reports whether t is a known metric type.
func (t MetricType) IsValid() bool {
	switch t {
	case MetricHeartRate, MetricSteps, MetricSleep, MetricBloodPressure, MetricBloodOxygen:
		return true
	}
	return false
}

// HealthDataPoint is one timestamped physiological measurement. Immutable
// once created; history is append-only per device+type.
type HealthDataPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	DeviceID  string          `json:"device_id"`
	Type      MetricType      `json:"type"`
	Value     float64         `json:"value"`
	Unit      string          `json:"unit"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}
