package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wearable-hub/internal/models"
	redisx "wearable-hub/pkg/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Subscription is a cancellable consumer-group subscription to one change
// stream. Delivery is at-least-once: an event is acked only after it has been
// handed to the consumer, so consumers must tolerate duplicates.
type Subscription struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	batch    int64
	logger   *zap.Logger

	events chan models.ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe creates the consumer group if needed and starts the read loop.
// The subscription lives until Cancel or the parent context ends.
func Subscribe(ctx context.Context, client *redis.Client, stream, group, consumer string, batch int64, logger *zap.Logger) (*Subscription, error) {
	if err := redisx.CreateConsumerGroup(ctx, client, stream, group); err != nil {
		return nil, fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		batch:    batch,
		logger:   logger,
		events:   make(chan models.ChangeEvent, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go s.run(runCtx)

	return s, nil
}

// Events yields the typed change events. The channel closes when the
// subscription ends.
func (s *Subscription) Events() <-chan models.ChangeEvent {
	return s.events
}

// Cancel stops the read loop and waits for it to exit.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	s.logger.Info("Change subscription started",
		zap.String("stream", s.stream),
		zap.String("group", s.group),
		zap.String("consumer", s.consumer),
	)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("Failed to consume change stream",
				zap.String("stream", s.stream),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff
	}
}

func (s *Subscription) consumeOnce(ctx context.Context) error {
	messages, err := redisx.ReadFromStream(ctx, s.client, s.stream, s.group, s.consumer, s.batch)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		event, err := decodeEvent(msg)
		if err != nil {
			// Malformed entries are acked and skipped so they cannot wedge
			// the group.
			s.logger.Warn("Skipping malformed change event",
				zap.String("stream", s.stream),
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			s.ack(ctx, msg.ID)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.events <- *event:
			s.ack(ctx, msg.ID)
		}
	}

	return nil
}

func (s *Subscription) ack(ctx context.Context, messageID string) {
	if err := redisx.AckMessage(ctx, s.client, s.stream, s.group, messageID); err != nil {
		s.logger.Warn("Failed to ack change event",
			zap.String("stream", s.stream),
			zap.String("stream_id", messageID),
			zap.Error(err),
		)
	}
}

func decodeEvent(msg redisx.StreamMessage) (*models.ChangeEvent, error) {
	raw, ok := msg.Values["data"]
	if !ok {
		return nil, fmt.Errorf("missing data field")
	}
	data, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("invalid data field type")
	}

	var event models.ChangeEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal change event: %w", err)
	}
	return &event, nil
}
