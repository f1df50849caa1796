package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"wearable-hub/internal/models"
	"wearable-hub/pkg/mqtt"

	"go.uber.org/zap"
)

// sessionBuffer decouples the MQTT callback from the consumer. The ingestion
// layer applies the real backpressure policy; this buffer only absorbs bursts.
const sessionBuffer = 64

// Transport is the MQTT surface the gateway needs. Satisfied by
// pkg/mqtt.Client.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// GatewayConfig holds the MQTT topics and timeouts for the wearable gateway.
type GatewayConfig struct {
	ScanRequestTopic string
	ScanResultTopic  string
	ScanTimeout      time.Duration
	ConnectTimeout   time.Duration
	QoS              byte
}

// Gateway talks to wearable hardware through the MQTT gateway. Every call can
// fail; failures surface as ErrConnectionFailed and are never retried here.
type Gateway struct {
	client Transport
	config GatewayConfig
	logger *zap.Logger

	// scans share one result topic; only one may hold its subscription
	scanMu sync.Mutex

	mu       sync.Mutex
	sessions map[string]*mqttSession
}

// NewGateway creates a hardware gateway over an established MQTT client.
func NewGateway(client Transport, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	return &Gateway{
		client:   client,
		config:   cfg,
		logger:   logger,
		sessions: make(map[string]*mqttSession),
	}
}

// statusMessage is the gateway's handshake/status payload.
type statusMessage struct {
	DeviceID     string `json:"device_id"`
	Status       string `json:"status"`
	BatteryLevel *int   `json:"battery_level,omitempty"`
}

// Scan runs one bounded discovery scan and returns the handles announced
// within the scan window. Each call issues a fresh scan; concurrent calls are
// serialized.
func (g *Gateway) Scan(ctx context.Context, filters ScanFilters, timeout time.Duration) ([]Handle, error) {
	g.scanMu.Lock()
	defer g.scanMu.Unlock()

	if timeout <= 0 {
		timeout = g.config.ScanTimeout
	}

	results := make(chan Handle, 32)
	handler := func(topic string, payload []byte) error {
		var handle Handle
		if err := json.Unmarshal(payload, &handle); err != nil {
			return fmt.Errorf("failed to unmarshal scan result: %w", err)
		}
		select {
		case results <- handle:
		default:
			// scan result burst beyond buffer, drop
		}
		return nil
	}

	if err := g.client.Subscribe(g.config.ScanResultTopic, g.config.QoS, handler); err != nil {
		return nil, fmt.Errorf("%w: scan subscribe: %w", ErrConnectionFailed, err)
	}
	defer func() {
		if err := g.client.Unsubscribe(g.config.ScanResultTopic); err != nil {
			g.logger.Warn("Failed to unsubscribe scan result topic", zap.Error(err))
		}
	}()

	request, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal scan request: %w", ErrConnectionFailed, err)
	}
	if err := g.client.Publish(g.config.ScanRequestTopic, g.config.QoS, false, request); err != nil {
		return nil, fmt.Errorf("%w: scan request: %w", ErrConnectionFailed, err)
	}

	var handles []Handle
	seen := make(map[string]bool)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return handles, ctx.Err()
		case <-deadline.C:
			return handles, nil
		case handle := <-results:
			if seen[handle.DeviceID] || !filters.Matches(handle) {
				continue
			}
			seen[handle.DeviceID] = true
			handles = append(handles, handle)
		}
	}
}

// Connect performs the hardware handshake for a discovered handle and opens a
// streaming session. The handshake is bounded by the connect timeout.
func (g *Gateway) Connect(ctx context.Context, handle Handle) (Session, error) {
	deviceID := handle.DeviceID
	if deviceID == "" {
		return nil, fmt.Errorf("%w: handle has no device id", ErrConnectionFailed)
	}

	statusTopic := fmt.Sprintf("wearables/%s/status", deviceID)
	dataTopic := fmt.Sprintf("wearables/%s/data", deviceID)
	commandTopic := fmt.Sprintf("wearables/%s/cmd", deviceID)

	ack := make(chan statusMessage, 1)
	if err := g.client.Subscribe(statusTopic, g.config.QoS, func(topic string, payload []byte) error {
		var msg statusMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("failed to unmarshal status message: %w", err)
		}
		select {
		case ack <- msg:
		default:
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: status subscribe for %s: %w", ErrConnectionFailed, deviceID, err)
	}

	session := &mqttSession{
		gateway:  g,
		deviceID: deviceID,
		topics:   []string{statusTopic, dataTopic},
		points:   make(chan models.HealthDataPoint, sessionBuffer),
	}

	if err := g.client.Subscribe(dataTopic, g.config.QoS, session.handleData); err != nil {
		g.teardownTopics(statusTopic)
		return nil, fmt.Errorf("%w: data subscribe for %s: %w", ErrConnectionFailed, deviceID, err)
	}

	if err := g.client.Publish(commandTopic, g.config.QoS, false, []byte(`{"command":"connect"}`)); err != nil {
		g.teardownTopics(statusTopic, dataTopic)
		return nil, fmt.Errorf("%w: connect command for %s: %w", ErrConnectionFailed, deviceID, err)
	}

	deadline := time.NewTimer(g.config.ConnectTimeout)
	defer deadline.Stop()

	select {
	case <-ctx.Done():
		g.teardownTopics(statusTopic, dataTopic)
		return nil, fmt.Errorf("%w: connect to %s: %w", ErrConnectionFailed, deviceID, ctx.Err())
	case <-deadline.C:
		g.teardownTopics(statusTopic, dataTopic)
		return nil, fmt.Errorf("%w: handshake timeout for %s", ErrConnectionFailed, deviceID)
	case msg := <-ack:
		if msg.Status != "connected" {
			g.teardownTopics(statusTopic, dataTopic)
			return nil, fmt.Errorf("%w: device %s reported status %q", ErrConnectionFailed, deviceID, msg.Status)
		}
		session.battery = msg.BatteryLevel
	}

	g.mu.Lock()
	g.sessions[deviceID] = session
	g.mu.Unlock()

	g.logger.Info("Device session opened",
		zap.String("device_id", deviceID),
		zap.String("name", handle.Name),
	)

	return session, nil
}

// Disconnect sends the disconnect command and closes the session for a
// device.
func (g *Gateway) Disconnect(deviceID string) error {
	commandTopic := fmt.Sprintf("wearables/%s/cmd", deviceID)
	if err := g.client.Publish(commandTopic, g.config.QoS, false, []byte(`{"command":"disconnect"}`)); err != nil {
		return fmt.Errorf("%w: disconnect command for %s: %w", ErrConnectionFailed, deviceID, err)
	}

	g.mu.Lock()
	session, ok := g.sessions[deviceID]
	delete(g.sessions, deviceID)
	g.mu.Unlock()

	if ok {
		return session.Close()
	}
	return nil
}

func (g *Gateway) teardownTopics(topics ...string) {
	if err := g.client.Unsubscribe(topics...); err != nil {
		g.logger.Warn("Failed to unsubscribe device topics", zap.Error(err))
	}
}

// mqttSession streams push-delivered data points for one device.
type mqttSession struct {
	gateway  *Gateway
	deviceID string
	topics   []string
	battery  *int

	mu     sync.Mutex
	closed bool
	points chan models.HealthDataPoint
}

func (s *mqttSession) DeviceID() string { return s.deviceID }

func (s *mqttSession) BatteryLevel() *int { return s.battery }

func (s *mqttSession) Points() <-chan models.HealthDataPoint { return s.points }

// handleData runs on the MQTT callback path and must never block.
func (s *mqttSession) handleData(topic string, payload []byte) error {
	var point models.HealthDataPoint
	if err := json.Unmarshal(payload, &point); err != nil {
		return fmt.Errorf("failed to unmarshal data point: %w", err)
	}
	if point.DeviceID == "" {
		point.DeviceID = s.deviceID
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.points <- point:
	default:
		s.gateway.logger.Warn("Session buffer full, dropping point",
			zap.String("device_id", s.deviceID),
			zap.String("type", string(point.Type)),
		)
	}
	return nil
}

// Close tears down the device subscriptions and closes the point stream.
func (s *mqttSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.points)
	s.mu.Unlock()

	s.gateway.teardownTopics(s.topics...)
	return nil
}
