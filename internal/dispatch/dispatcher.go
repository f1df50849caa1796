package dispatch

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"wearable-hub/internal/models"

	"go.uber.org/zap"
)

// Sound profiles understood by the notification gateway.
const (
	SoundAlert   = "alert"
	SoundDefault = "default"
)

// Notifier is the external notification/feedback collaborator. Both calls are
// best-effort with no delivery confirmation.
type Notifier interface {
	TactileFeedback(intensity models.TactileIntensity) error
	ScheduleNotification(title, body, sound string, metadata map[string]string) error
}

// Dispatcher turns critical readings, important predictions and device state
// changes into tactile/notification side effects. Side effects run on a
// bounded worker pool: a slow or failing notifier can never stall the
// evaluation path, and notification failures are logged, not retried.
type Dispatcher struct {
	notifier Notifier
	logger   *zap.Logger

	jobs    chan func()
	wg      sync.WaitGroup
	dropped int64

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher with the given pool size and queue
// bound, and starts its workers.
func NewDispatcher(notifier Notifier, workers, queueSize int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 128
	}

	d := &Dispatcher{
		notifier: notifier,
		logger:   logger,
		jobs:     make(chan func(), queueSize),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				job()
			}
		}()
	}

	return d
}

// Stop drains the queue and stops the workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

// Dropped returns how many dispatch jobs were discarded on queue overflow.
func (d *Dispatcher) Dropped() int64 {
	return atomic.LoadInt64(&d.dropped)
}

// CriticalReading dispatches a high-severity alert for a reading outside its
// safe range. Always fires, heavy tactile, alert sound.
func (d *Dispatcher) CriticalReading(device *models.WearableDevice, point models.HealthDataPoint) {
	deviceName := point.DeviceID
	if device != nil && device.Name != "" {
		deviceName = device.Name
	}

	value := strconv.FormatFloat(point.Value, 'f', -1, 64)
	event := models.AlertEvent{
		Severity:  models.SeverityHigh,
		Title:     "Critical Health Reading",
		Body:      fmt.Sprintf("Abnormal %s reading from %s: %s%s", point.Type, deviceName, value, point.Unit),
		Sound:     SoundAlert,
		Intensity: models.IntensityHeavy,
		Metadata: map[string]string{
			"device_id": point.DeviceID,
			"type":      string(point.Type),
		},
	}

	d.deliver(event)
}

// DispatchPrediction dispatches an importance-gated prediction alert.
// Unimportant predictions are silently skipped.
func (d *Dispatcher) DispatchPrediction(prediction models.HealthPrediction) {
	if !ShouldDispatch(prediction) {
		return
	}

	title, body := predictionMessage(prediction)
	event := models.AlertEvent{
		Severity:  models.SeverityNormal,
		Title:     title,
		Body:      body,
		Sound:     SoundDefault,
		Intensity: IntensityForConfidence(prediction.Confidence),
		Metadata: map[string]string{
			"prediction_id": prediction.ID,
			"type":          string(prediction.Type),
		},
	}
	if prediction.Type == models.PredictionHealthRisk {
		event.Severity = models.SeverityHigh
		event.Sound = SoundAlert
	}

	d.deliver(event)
}

// DeviceChanged emits light tactile feedback for any device record change and
// additionally schedules a notification when the device dropped to
// disconnected or error.
func (d *Dispatcher) DeviceChanged(device models.WearableDevice) {
	d.enqueue(func() {
		if err := d.notifier.TactileFeedback(models.IntensityLight); err != nil {
			d.logger.Warn("Failed to send tactile feedback",
				zap.String("device_id", device.DeviceID),
				zap.Error(err),
			)
		}
	})

	if device.Status != models.StatusDisconnected && device.Status != models.StatusError {
		return
	}

	event := models.AlertEvent{
		Severity:  models.SeverityNormal,
		Title:     "Device Update",
		Body:      fmt.Sprintf("%s is %s", device.Name, device.Status),
		Sound:     SoundDefault,
		Intensity: models.IntensityNone,
		Metadata: map[string]string{
			"device_id": device.DeviceID,
			"status":    string(device.Status),
		},
	}

	d.deliver(event)
}

// ShouldDispatch is the importance gate for predictions: health risks always
// dispatch; stress and sleep predictions only above their confidence bars.
func ShouldDispatch(prediction models.HealthPrediction) bool {
	switch prediction.Type {
	case models.PredictionHealthRisk:
		return true
	case models.PredictionStressLevel:
		return prediction.Confidence > 0.8
	case models.PredictionSleepQuality:
		return prediction.Confidence > 0.9
	case models.PredictionActivityRecommendation:
		return false
	}
	return false
}

// IntensityForConfidence scales tactile feedback with prediction confidence.
func IntensityForConfidence(confidence float64) models.TactileIntensity {
	switch {
	case confidence > 0.8:
		return models.IntensityHeavy
	case confidence > 0.5:
		return models.IntensityMedium
	default:
		return models.IntensityNone
	}
}

func predictionMessage(prediction models.HealthPrediction) (string, string) {
	switch prediction.Type {
	case models.PredictionHealthRisk:
		percent := int(math.Round(prediction.Confidence * 100))
		return "⚠️ Health Risk Alert", fmt.Sprintf("%s (%d%% confidence)", prediction.Prediction, percent)
	case models.PredictionStressLevel:
		return "🧘 Stress Check", prediction.Prediction
	case models.PredictionSleepQuality:
		return "😴 Sleep Insight", prediction.Prediction
	case models.PredictionActivityRecommendation:
		return "🏃 Activity Tip", prediction.Prediction
	}
	return "Health Update", prediction.Prediction
}

// deliver queues the tactile and notification side effects for an alert.
func (d *Dispatcher) deliver(event models.AlertEvent) {
	d.enqueue(func() {
		if event.Intensity != models.IntensityNone {
			if err := d.notifier.TactileFeedback(event.Intensity); err != nil {
				d.logger.Warn("Failed to send tactile feedback",
					zap.String("title", event.Title),
					zap.Error(err),
				)
			}
		}
		if err := d.notifier.ScheduleNotification(event.Title, event.Body, event.Sound, event.Metadata); err != nil {
			d.logger.Warn("Failed to schedule notification",
				zap.String("title", event.Title),
				zap.Error(err),
			)
		}
	})
}

// enqueue submits a job without ever blocking the caller. On overflow the job
// is dropped and counted.
func (d *Dispatcher) enqueue(job func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	select {
	case d.jobs <- job:
	default:
		atomic.AddInt64(&d.dropped, 1)
		d.logger.Warn("Dispatch queue full, dropping alert job")
	}
	d.mu.Unlock()
}
