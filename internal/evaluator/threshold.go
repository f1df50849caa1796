package evaluator

import "wearable-hub/internal/models"

// Range is an inclusive safe band for a metric. Values inside the band are
// normal; values outside are critical.
type Range struct {
	Min float64
	Max float64
}

// DefaultBounds are the fixed safe ranges per metric type. Steps and sleep
// carry no bound and are never flagged critical; that is deliberate
// default-safe policy, not a missing case.
func DefaultBounds() map[models.MetricType]Range {
	return map[models.MetricType]Range{
		models.MetricHeartRate:     {Min: 40, Max: 150},
		models.MetricBloodOxygen:   {Min: 90, Max: 100},
		models.MetricBloodPressure: {Min: 90, Max: 140},
	}
}

// ThresholdEvaluator classifies single readings as normal or critical. It is
// stateless; the bounds are fixed at construction.
type ThresholdEvaluator struct {
	bounds map[models.MetricType]Range
}

// NewThresholdEvaluator creates an evaluator. bounds may be nil to use the
// defaults.
func NewThresholdEvaluator(bounds map[models.MetricType]Range) *ThresholdEvaluator {
	if bounds == nil {
		bounds = DefaultBounds()
	}
	return &ThresholdEvaluator{bounds: bounds}
}

// IsCritical reports whether a reading falls outside its safe range.
// Boundary values are inclusive on the safe side. Metric types without a
// bound always return false.
func (e *ThresholdEvaluator) IsCritical(point models.HealthDataPoint) bool {
	switch point.Type {
	case models.MetricHeartRate, models.MetricBloodOxygen, models.MetricBloodPressure:
		bound, ok := e.bounds[point.Type]
		if !ok {
			return false
		}
		return point.Value < bound.Min || point.Value > bound.Max
	case models.MetricSteps, models.MetricSleep:
		return false
	}
	return false
}
