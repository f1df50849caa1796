package models

// TactileIntensity is the strength of haptic feedback for an alert.
type TactileIntensity string

const (
	IntensityHeavy  TactileIntensity = "heavy"
	IntensityMedium TactileIntensity = "medium"
	IntensityLight  TactileIntensity = "light"
	IntensityNone   TactileIntensity = "none"
)

// AlertSeverity ranks an alert event.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityNormal AlertSeverity = "normal"
)

// AlertEvent is a transient dispatch request. It exists only for the duration
// of dispatch and is never persisted by this service.
type AlertEvent struct {
	Severity  AlertSeverity     `json:"severity"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Sound     string            `json:"sound"`
	Intensity TactileIntensity  `json:"intensity"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
