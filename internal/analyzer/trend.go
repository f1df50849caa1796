package analyzer

import (
	"sync"
	"time"

	"wearable-hub/internal/models"
)

// averageSpan caps how many trailing points feed the average.
const averageSpan = 10

// Config tunes the trend analysis. The deviation band filters noise: small
// fluctuations must not flip the classification.
type Config struct {
	WindowSize    int     // rolling window length, minimum 2
	ImproveFactor float64 // second-half mean above first*factor => improving
	DeclineFactor float64 // second-half mean below first*factor => declining
}

// DefaultConfig returns the standard window and ±10% band.
func DefaultConfig() Config {
	return Config{
		WindowSize:    10,
		ImproveFactor: 1.1,
		DeclineFactor: 0.9,
	}
}

type sample struct {
	value float64
	at    time.Time
}

type windowKey struct {
	deviceID string
	metric   models.MetricType
}

// TrendAnalyzer keeps a rolling window of recent samples per device+type.
// Each window is only mutated by its owning device's ingestion task; the lock
// exists for readers on other goroutines.
type TrendAnalyzer struct {
	config Config

	mu      sync.RWMutex
	windows map[windowKey][]sample
	counts  map[windowKey]int
}

// NewTrendAnalyzer creates an analyzer.
func NewTrendAnalyzer(cfg Config) *TrendAnalyzer {
	if cfg.WindowSize < 2 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.ImproveFactor <= 0 {
		cfg.ImproveFactor = DefaultConfig().ImproveFactor
	}
	if cfg.DeclineFactor <= 0 {
		cfg.DeclineFactor = DefaultConfig().DeclineFactor
	}
	return &TrendAnalyzer{
		config:  cfg,
		windows: make(map[windowKey][]sample),
		counts:  make(map[windowKey]int),
	}
}

// Append adds a point to its device+type window, evicting the oldest sample
// once the window is full. Returns true each time a full window worth of new
// points has accumulated, which is the prediction trigger.
func (a *TrendAnalyzer) Append(point models.HealthDataPoint) bool {
	key := windowKey{deviceID: point.DeviceID, metric: point.Type}

	a.mu.Lock()
	defer a.mu.Unlock()

	window := append(a.windows[key], sample{value: point.Value, at: point.Timestamp})
	if len(window) > a.config.WindowSize {
		window = window[len(window)-a.config.WindowSize:]
	}
	a.windows[key] = window

	a.counts[key]++
	return a.counts[key]%a.config.WindowSize == 0
}

// Window returns the current trend for a device+type window.
func (a *TrendAnalyzer) Window(deviceID string, metric models.MetricType) models.HealthTrend {
	key := windowKey{deviceID: deviceID, metric: metric}

	a.mu.RLock()
	window := a.windows[key]
	data := make([]float64, len(window))
	for i, s := range window {
		data[i] = s.value
	}
	var start, end time.Time
	if len(window) > 0 {
		start = window[0].at
		end = window[len(window)-1].at
	}
	a.mu.RUnlock()

	return models.HealthTrend{
		Type:      metric,
		Trend:     a.Classify(data),
		StartDate: start,
		EndDate:   end,
		Data:      data,
	}
}

// Reset drops all windows. Used by service cleanup.
func (a *TrendAnalyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.windows = make(map[windowKey][]sample)
	a.counts = make(map[windowKey]int)
}

// Classify splits the window into first and second half by index (an odd
// middle sample belongs to neither) and compares the half means against the
// deviation band. Windows shorter than 2 points are always stable.
func (a *TrendAnalyzer) Classify(data []float64) models.TrendDirection {
	if len(data) < 2 {
		return models.TrendStable
	}

	half := len(data) / 2
	firstMean := mean(data[:half])
	secondMean := mean(data[len(data)-half:])

	switch {
	case secondMean > firstMean*a.config.ImproveFactor:
		return models.TrendImproving
	case secondMean < firstMean*a.config.DeclineFactor:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

// Average returns the mean of the most recent 10 values, or fewer if the
// series is shorter.
func Average(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	if len(data) > averageSpan {
		data = data[len(data)-averageSpan:]
	}
	return mean(data)
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}
