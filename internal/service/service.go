package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"wearable-hub/internal/analyzer"
	"wearable-hub/internal/config"
	"wearable-hub/internal/dispatch"
	"wearable-hub/internal/eventbus"
	"wearable-hub/internal/evaluator"
	"wearable-hub/internal/hardware"
	"wearable-hub/internal/ingest"
	"wearable-hub/internal/models"
	"wearable-hub/internal/notify"
	"wearable-hub/internal/platform"
	"wearable-hub/internal/prediction"
	"wearable-hub/internal/registry"
	"wearable-hub/internal/repository"
	"wearable-hub/pkg/database"
	mqttx "wearable-hub/pkg/mqtt"
	redisx "wearable-hub/pkg/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrNotInitialized is returned by every public method before Initialize or
// after Cleanup. Calling in that window is a programmer error; fail fast.
var ErrNotInitialized = errors.New("service not initialized")

// Hardware is the scanning/connection collaborator. Assumed unreliable; all
// calls may fail and are surfaced as recoverable errors.
type Hardware interface {
	Scan(ctx context.Context, filters hardware.ScanFilters, timeout time.Duration) ([]hardware.Handle, error)
	Connect(ctx context.Context, handle hardware.Handle) (hardware.Session, error)
	Disconnect(deviceID string) error
}

// MetadataResolver looks up vendor platform metadata for a device during
// pairing. Best-effort enrichment; lookup failures never fail the pairing.
type MetadataResolver interface {
	DeviceMetadata(ctx context.Context, deviceID, model string) (json.RawMessage, error)
}

type connectedDevice struct {
	session hardware.Session
	channel *ingest.Channel
}

// HealthDeviceService is the wearable telemetry pipeline: device lifecycle,
// per-device ingestion, threshold alerting, trend prediction and alert
// dispatch. One instance is constructed at startup and threaded through
// callers; Initialize and Cleanup bracket its working lifetime.
type HealthDeviceService struct {
	config *config.Config
	logger *zap.Logger

	mu          sync.Mutex
	initialized bool
	runCtx      context.Context
	runCancel   context.CancelFunc
	connected   map[string]*connectedDevice // keyed by hardware device_id
	pending     map[string]struct{}         // pairing attempts in flight

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttx.Client
	ownsInfra   bool

	gateway  Hardware
	notifier dispatch.Notifier
	platform MetadataResolver

	deviceRepo     *repository.DeviceRepository
	dataRepo       *repository.HealthDataRepository
	predictionRepo *repository.PredictionRepository

	registry   *registry.DeviceRegistry
	thresholds *evaluator.ThresholdEvaluator
	trends     *analyzer.TrendAnalyzer
	engine     *prediction.Engine
	dispatcher *dispatch.Dispatcher
	publisher  *eventbus.Publisher

	deviceSub     *eventbus.Subscription
	predictionSub *eventbus.Subscription
	consumerWG    sync.WaitGroup

	metrics *Metrics
}

// Option overrides a collaborator, used by tests to swap in fakes.
type Option func(*HealthDeviceService)

// WithHardware injects the hardware collaborator.
func WithHardware(h Hardware) Option {
	return func(s *HealthDeviceService) { s.gateway = h }
}

// WithNotifier injects the notification collaborator.
func WithNotifier(n dispatch.Notifier) Option {
	return func(s *HealthDeviceService) { s.notifier = n }
}

// WithDB injects an open database handle.
func WithDB(db *sql.DB) Option {
	return func(s *HealthDeviceService) { s.db = db }
}

// WithRedis injects an open Redis client.
func WithRedis(client *redis.Client) Option {
	return func(s *HealthDeviceService) { s.redisClient = client }
}

// WithPlatform injects the platform metadata resolver.
func WithPlatform(p MetadataResolver) Option {
	return func(s *HealthDeviceService) { s.platform = p }
}

// NewHealthDeviceService creates the service. Nothing is connected until
// Initialize.
func NewHealthDeviceService(cfg *config.Config, logger *zap.Logger, opts ...Option) *HealthDeviceService {
	s := &HealthDeviceService{
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize connects the infrastructure, wires the pipeline and starts the
// change subscriptions. Calling it twice without Cleanup is an error.
func (s *HealthDeviceService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return fmt.Errorf("service already initialized")
	}

	if s.db == nil || s.redisClient == nil {
		if err := s.connectInfra(ctx); err != nil {
			return err
		}
	}

	if s.gateway == nil || s.notifier == nil {
		if err := s.connectGateway(); err != nil {
			return err
		}
	}

	if s.platform == nil && s.config.Hub.Platform.BaseURL != "" {
		s.platform = platform.NewClient(platform.Config{
			BaseURL: s.config.Hub.Platform.BaseURL,
			APIKey:  s.config.Hub.Platform.APIKey,
			Timeout: s.config.Hub.Platform.Timeout,
		}, s.logger)
	}

	s.deviceRepo = repository.NewDeviceRepository(s.db, s.logger)
	s.dataRepo = repository.NewHealthDataRepository(s.db, s.logger)
	s.predictionRepo = repository.NewPredictionRepository(s.db, s.logger)

	s.publisher = eventbus.NewPublisher(
		s.redisClient,
		s.config.Hub.Streams.DeviceChanges,
		s.config.Hub.Streams.PredictionChanges,
		s.logger,
	)
	s.registry = registry.NewDeviceRegistry(s.deviceRepo, s.publisher, s.logger)
	s.thresholds = evaluator.NewThresholdEvaluator(nil)
	s.trends = analyzer.NewTrendAnalyzer(analyzer.Config{
		WindowSize:    s.config.Hub.Trend.WindowSize,
		ImproveFactor: s.config.Hub.Trend.ImproveFactor,
		DeclineFactor: s.config.Hub.Trend.DeclineFactor,
	})
	s.engine = prediction.NewEngine(
		prediction.Confidences{
			SleepQuality: s.config.Hub.Prediction.SleepQualityConfidence,
			StressLevel:  s.config.Hub.Prediction.StressLevelConfidence,
			Activity:     s.config.Hub.Prediction.ActivityConfidence,
			HealthRisk:   s.config.Hub.Prediction.HealthRiskConfidence,
		},
		s.trends,
		s.predictionRepo,
		s.publisher,
		s.logger,
	)
	s.dispatcher = dispatch.NewDispatcher(
		s.notifier,
		s.config.Hub.Notify.Workers,
		s.config.Hub.Notify.QueueSize,
		s.logger,
	)
	s.connected = make(map[string]*connectedDevice)
	s.pending = make(map[string]struct{})

	runCtx, cancel := context.WithCancel(context.Background())
	s.runCtx = runCtx
	s.runCancel = cancel

	if err := s.startSubscriptions(runCtx); err != nil {
		cancel()
		s.dispatcher.Stop()
		return err
	}

	s.initialized = true
	s.logger.Info("Health device service initialized")
	return nil
}

func (s *HealthDeviceService) connectInfra(ctx context.Context) error {
	db, err := database.NewPostgresDB(&s.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	redisClient := redisx.NewRedisClient(&s.config.Redis)
	if err := redisx.Ping(ctx, redisClient); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	s.db = db
	s.redisClient = redisClient
	s.ownsInfra = true
	return nil
}

func (s *HealthDeviceService) connectGateway() error {
	mqttClient, err := mqttx.NewClient(&s.config.MQTT, s.logger)
	if err != nil {
		return fmt.Errorf("failed to connect MQTT broker: %w", err)
	}
	s.mqttClient = mqttClient

	if s.gateway == nil {
		s.gateway = hardware.NewGateway(mqttClient, hardware.GatewayConfig{
			ScanRequestTopic: s.config.Hub.Scan.RequestTopic,
			ScanResultTopic:  s.config.Hub.Scan.ResultTopic,
			ScanTimeout:      s.config.Hub.Scan.Timeout,
			ConnectTimeout:   s.config.Hub.Connect.Timeout,
			QoS:              s.config.MQTT.QoS,
		}, s.logger)
	}
	if s.notifier == nil {
		s.notifier = notify.NewMQTTNotifier(mqttClient, notify.Config{
			TactileTopic: s.config.Hub.Notify.TactileTopic,
			PushTopic:    s.config.Hub.Notify.PushTopic,
			QoS:          s.config.MQTT.QoS,
		}, s.logger)
	}
	return nil
}

// startSubscriptions opens the device and prediction change subscriptions
// and starts one consumer task per subscription.
func (s *HealthDeviceService) startSubscriptions(ctx context.Context) error {
	streams := s.config.Hub.Streams

	deviceSub, err := eventbus.Subscribe(ctx, s.redisClient,
		streams.DeviceChanges, streams.ConsumerGroup, streams.ConsumerName,
		streams.BatchSize, s.logger)
	if err != nil {
		return fmt.Errorf("failed to subscribe to device changes: %w", err)
	}

	predictionSub, err := eventbus.Subscribe(ctx, s.redisClient,
		streams.PredictionChanges, streams.ConsumerGroup, streams.ConsumerName,
		streams.BatchSize, s.logger)
	if err != nil {
		deviceSub.Cancel()
		return fmt.Errorf("failed to subscribe to prediction changes: %w", err)
	}

	s.deviceSub = deviceSub
	s.predictionSub = predictionSub

	s.consumerWG.Add(2)
	go s.consumeDeviceChanges(ctx)
	go s.consumePredictionChanges(ctx)

	return nil
}

// consumeDeviceChanges reacts to device record changes from the store:
// tactile feedback scaled to transition importance, plus a notification when
// the device dropped out.
func (s *HealthDeviceService) consumeDeviceChanges(ctx context.Context) {
	defer s.consumerWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.deviceSub.Events():
			if !ok {
				return
			}
			s.metrics.IncrementDeviceEvents()

			var device models.WearableDevice
			if err := event.DecodePayload(&device); err != nil {
				s.logger.Warn("Failed to decode device change event", zap.Error(err))
				continue
			}
			s.dispatcher.DeviceChanged(device)
		}
	}
}

// consumePredictionChanges re-runs the importance-gated dispatch whenever a
// prediction record lands in the store.
func (s *HealthDeviceService) consumePredictionChanges(ctx context.Context) {
	defer s.consumerWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.predictionSub.Events():
			if !ok {
				return
			}
			s.metrics.IncrementPredictionEvents()

			if event.Op != models.ChangeInsert {
				continue
			}
			var pred models.HealthPrediction
			if err := event.DecodePayload(&pred); err != nil {
				s.logger.Warn("Failed to decode prediction change event", zap.Error(err))
				continue
			}
			s.dispatcher.DispatchPrediction(pred)
		}
	}
}

// Cleanup cancels the subscriptions, drains and closes every ingestion
// channel, stops the dispatcher and clears all in-memory state. Afterwards
// every public method fails with ErrNotInitialized until Initialize runs
// again.
func (s *HealthDeviceService) Cleanup() error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.initialized = false
	connected := s.connected
	s.connected = nil
	s.pending = nil
	s.mu.Unlock()

	// Stop intake first so channels can drain.
	for deviceID, entry := range connected {
		entry.session.Close()
		entry.channel.Close()
		if err := s.gateway.Disconnect(deviceID); err != nil {
			s.logger.Warn("Failed to disconnect device during cleanup",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
		}
	}

	if s.deviceSub != nil {
		s.deviceSub.Cancel()
	}
	if s.predictionSub != nil {
		s.predictionSub.Cancel()
	}
	s.runCancel()
	s.consumerWG.Wait()

	s.dispatcher.Stop()
	s.registry.Clear()
	s.trends.Reset()

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
		s.mqttClient = nil
	}
	if s.ownsInfra {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
		s.db = nil
		s.redisClient = nil
		s.ownsInfra = false
	}

	s.logger.Info("Health device service cleaned up")
	return nil
}

// Metrics returns a snapshot of the processing counters.
func (s *HealthDeviceService) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

func (s *HealthDeviceService) ensureInitialized() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}
