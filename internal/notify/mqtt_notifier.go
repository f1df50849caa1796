package notify

import (
	"encoding/json"
	"fmt"

	"wearable-hub/internal/models"
	"wearable-hub/pkg/mqtt"

	"go.uber.org/zap"
)

// Config holds the gateway notification topics.
type Config struct {
	TactileTopic string
	PushTopic    string
	QoS          byte
}

// MQTTNotifier sends tactile feedback and local notifications through the
// notification gateway. Best-effort: no delivery confirmation is expected.
type MQTTNotifier struct {
	client *mqtt.Client
	config Config
	logger *zap.Logger
}

// NewMQTTNotifier creates a notifier over an established MQTT client.
func NewMQTTNotifier(client *mqtt.Client, cfg Config, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		client: client,
		config: cfg,
		logger: logger,
	}
}

type tactileCommand struct {
	Intensity models.TactileIntensity `json:"intensity"`
}

type pushCommand struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Sound    string            `json:"sound"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TactileFeedback publishes a haptic command.
func (n *MQTTNotifier) TactileFeedback(intensity models.TactileIntensity) error {
	payload, err := json.Marshal(tactileCommand{Intensity: intensity})
	if err != nil {
		return fmt.Errorf("failed to marshal tactile command: %w", err)
	}
	return n.client.Publish(n.config.TactileTopic, n.config.QoS, false, payload)
}

// ScheduleNotification publishes a local notification request.
func (n *MQTTNotifier) ScheduleNotification(title, body, sound string, metadata map[string]string) error {
	payload, err := json.Marshal(pushCommand{
		Title:    title,
		Body:     body,
		Sound:    sound,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return n.client.Publish(n.config.PushTopic, n.config.QoS, false, payload)
}
