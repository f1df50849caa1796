package models

import "time"

// TrendDirection classifies a rolling window of same-type readings.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// HealthTrend is a transient trend computation over a recent window. It is
// recomputed per invocation and never persisted.
type HealthTrend struct {
	Type      MetricType     `json:"type"`
	Trend     TrendDirection `json:"trend"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Data      []float64      `json:"data"`
}
