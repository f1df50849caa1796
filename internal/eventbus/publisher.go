package eventbus

import (
	"context"
	"fmt"

	"wearable-hub/internal/models"
	redisx "wearable-hub/pkg/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Publisher emits store change events onto the Redis Streams bus.
type Publisher struct {
	client           *redis.Client
	deviceStream     string
	predictionStream string
	logger           *zap.Logger
}

// NewPublisher creates a change event publisher.
func NewPublisher(client *redis.Client, deviceStream, predictionStream string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:           client,
		deviceStream:     deviceStream,
		predictionStream: predictionStream,
		logger:           logger,
	}
}

// PublishDeviceChange publishes a device record change.
func (p *Publisher) PublishDeviceChange(ctx context.Context, op models.ChangeOp, device *models.WearableDevice) error {
	return p.publish(ctx, p.deviceStream, models.TableDevices, op, device)
}

// PublishPredictionChange publishes a prediction record change.
func (p *Publisher) PublishPredictionChange(ctx context.Context, op models.ChangeOp, prediction *models.HealthPrediction) error {
	return p.publish(ctx, p.predictionStream, models.TablePredictions, op, prediction)
}

func (p *Publisher) publish(ctx context.Context, stream, table string, op models.ChangeOp, record interface{}) error {
	event, err := models.NewChangeEvent(table, op, record)
	if err != nil {
		return fmt.Errorf("failed to build change event: %w", err)
	}

	id, err := redisx.PublishJSONToStream(ctx, p.client, stream, event)
	if err != nil {
		return fmt.Errorf("failed to publish change event to %s: %w", stream, err)
	}

	p.logger.Debug("Change event published",
		zap.String("stream", stream),
		zap.String("table", table),
		zap.String("op", string(op)),
		zap.String("stream_id", id),
	)
	return nil
}
