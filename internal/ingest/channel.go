package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"wearable-hub/internal/analyzer"
	"wearable-hub/internal/dispatch"
	"wearable-hub/internal/evaluator"
	"wearable-hub/internal/models"
	"wearable-hub/internal/prediction"
	"wearable-hub/internal/repository"

	"go.uber.org/zap"
)

// ErrChannelClosed is returned for pushes after the channel is closed. Points
// arriving after disconnect are rejected, not buffered.
var ErrChannelClosed = errors.New("ingestion channel closed")

// DefaultBufferSize bounds the unconsumed backlog per device+type. On
// overflow the oldest unconsumed point of that type is dropped.
const DefaultBufferSize = 256

// Channel is the per-device ingestion pipe. The hardware layer pushes points
// in; a single worker evaluates and buffers them in arrival order, so
// ordering holds within each device+type stream. Push never blocks the
// hardware callback path.
type Channel struct {
	device          models.WearableDevice
	bufferSize      int
	predictionTypes []models.PredictionType

	thresholds *evaluator.ThresholdEvaluator
	trends     *analyzer.TrendAnalyzer
	engine     *prediction.Engine
	dispatcher *dispatch.Dispatcher
	dataRepo   *repository.HealthDataRepository
	logger     *zap.Logger

	mu         sync.Mutex
	queue      []models.HealthDataPoint
	perType    map[models.MetricType]int
	closed     bool
	notify     chan struct{}
	dropped    int64
	persistErr int64

	wg        sync.WaitGroup
	persistWG sync.WaitGroup
}

// Options configure a channel. Zero values take defaults; PredictionTypes
// controls which predictions the window-close trigger generates.
type Options struct {
	BufferSize      int
	PredictionTypes []models.PredictionType
}

// NewChannel creates and starts an ingestion channel for a connected device.
func NewChannel(
	ctx context.Context,
	device models.WearableDevice,
	opts Options,
	thresholds *evaluator.ThresholdEvaluator,
	trends *analyzer.TrendAnalyzer,
	engine *prediction.Engine,
	dispatcher *dispatch.Dispatcher,
	dataRepo *repository.HealthDataRepository,
	logger *zap.Logger,
) *Channel {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	c := &Channel{
		device:          device,
		bufferSize:      opts.BufferSize,
		predictionTypes: opts.PredictionTypes,
		thresholds:      thresholds,
		trends:          trends,
		engine:          engine,
		dispatcher:      dispatcher,
		dataRepo:        dataRepo,
		logger:          logger,
		perType:         make(map[models.MetricType]int),
		notify:          make(chan struct{}, 1),
	}

	c.wg.Add(1)
	go c.run(ctx)

	return c
}

// Push accepts one push-delivered point. It only enqueues: evaluation and
// persistence happen on the worker, so this is safe to call from the hardware
// callback. Overflow drops the oldest unconsumed point of the same type.
func (c *Channel) Push(point models.HealthDataPoint) error {
	if !point.Type.IsValid() {
		return fmt.Errorf("invalid metric type: %s", point.Type)
	}
	if point.DeviceID == "" {
		point.DeviceID = c.device.DeviceID
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}

	if c.perType[point.Type] >= c.bufferSize {
		c.dropOldestLocked(point.Type)
		atomic.AddInt64(&c.dropped, 1)
		c.logger.Warn("Ingestion buffer overflow, dropped oldest point",
			zap.String("device_id", c.device.DeviceID),
			zap.String("type", string(point.Type)),
			zap.Int64("total_dropped", atomic.LoadInt64(&c.dropped)),
		)
	}

	c.queue = append(c.queue, point)
	c.perType[point.Type]++
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

// Attach pumps a hardware session's point stream into the channel until the
// session or channel closes.
func (c *Channel) Attach(points <-chan models.HealthDataPoint) {
	go func() {
		for point := range points {
			if err := c.Push(point); err != nil {
				if !errors.Is(err, ErrChannelClosed) {
					c.logger.Warn("Failed to push point",
						zap.String("device_id", c.device.DeviceID),
						zap.Error(err),
					)
					continue
				}
				return
			}
		}
	}()
}

// Close stops intake, drains the remaining backlog and waits for in-flight
// persistence. Safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.closed = true
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}

	c.wg.Wait()
	c.persistWG.Wait()
}

// Dropped returns the overflow drop counter.
func (c *Channel) Dropped() int64 {
	return atomic.LoadInt64(&c.dropped)
}

// PersistFailures returns how many fire-and-forget writes failed.
func (c *Channel) PersistFailures() int64 {
	return atomic.LoadInt64(&c.persistErr)
}

func (c *Channel) dropOldestLocked(metricType models.MetricType) {
	for i, queued := range c.queue {
		if queued.Type == metricType {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			c.perType[metricType]--
			return
		}
	}
}

// run is the single consumer; it preserves arrival order per device+type.
func (c *Channel) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		point, ok, done := c.next()
		if done {
			return
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-c.notify:
			}
			continue
		}

		c.process(ctx, point)
	}
}

// next pops the head of the queue. done is true once the channel is closed
// and the backlog fully drained.
func (c *Channel) next() (models.HealthDataPoint, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return models.HealthDataPoint{}, false, c.closed
	}

	point := c.queue[0]
	c.queue = c.queue[1:]
	c.perType[point.Type]--
	return point, true, false
}

// process runs the fast path for one point: threshold check (critical
// readings dispatch before anything is buffered), trend window append, and a
// fire-and-forget persistence write.
func (c *Channel) process(ctx context.Context, point models.HealthDataPoint) {
	if c.thresholds.IsCritical(point) {
		c.dispatcher.CriticalReading(&c.device, point)
	}

	windowClosed := c.trends.Append(point)

	c.persistWG.Add(1)
	go func() {
		defer c.persistWG.Done()
		if err := c.dataRepo.InsertDataPoint(context.Background(), &point); err != nil {
			atomic.AddInt64(&c.persistErr, 1)
			c.logger.Error("Failed to persist data point",
				zap.String("device_id", point.DeviceID),
				zap.String("type", string(point.Type)),
				zap.Error(err),
			)
		}
	}()

	if windowClosed && c.engine != nil && len(c.predictionTypes) > 0 {
		c.generatePredictions(ctx, point.Type)
	}
}

// generatePredictions runs the slow path on window close: compute the trend
// window and hand every generated prediction to the dispatcher.
func (c *Channel) generatePredictions(ctx context.Context, metricType models.MetricType) {
	trend := c.trends.Window(c.device.DeviceID, metricType)

	points := make([]models.HealthDataPoint, len(trend.Data))
	for i, value := range trend.Data {
		points[i] = models.HealthDataPoint{
			DeviceID: c.device.DeviceID,
			Type:     metricType,
			Value:    value,
		}
	}

	predictions, err := c.engine.Generate(ctx, c.device.UserID, c.device.DeviceID, points, c.predictionTypes)
	if err != nil {
		c.logger.Error("Failed to generate predictions",
			zap.String("device_id", c.device.DeviceID),
			zap.String("type", string(metricType)),
			zap.Error(err),
		)
	}
	for _, p := range predictions {
		c.dispatcher.DispatchPrediction(p)
	}
}
