package config

import (
	"os"
	"strconv"
	"time"

	"wearable-hub/pkg/database"
	"wearable-hub/pkg/mqtt"
	"wearable-hub/pkg/redis"
)

// Config is the wearable hub service configuration.
type Config struct {
	Database database.Config
	Redis    redis.Config
	MQTT     mqtt.Config

	Hub struct {
		// Hardware scanning
		Scan struct {
			Timeout      time.Duration // scan window, default 5s
			RequestTopic string        // gateway scan trigger topic
			ResultTopic  string        // discovery announcement topic
		}

		// Hardware connect handshake
		Connect struct {
			Timeout time.Duration // handshake ack wait, default 10s
		}

		// Ingestion channel
		Ingest struct {
			BufferSize int // bounded buffer per device+type, default 256
		}

		// Trend analysis
		Trend struct {
			WindowSize    int     // rolling window length, default 10
			ImproveFactor float64 // second-half mean above first*factor => improving
			DeclineFactor float64 // second-half mean below first*factor => declining
		}

		// Prediction confidence constants. Tunable defaults, not algorithmic
		// truths.
		Prediction struct {
			SleepQualityConfidence float64
			StressLevelConfidence  float64
			ActivityConfidence     float64
			HealthRiskConfidence   float64
		}

		// Vendor platform metadata API. Disabled when BaseURL is empty.
		Platform struct {
			BaseURL string
			APIKey  string
			Timeout time.Duration
		}

		// Event bus streams
		Streams struct {
			DeviceChanges     string
			PredictionChanges string
			ConsumerGroup     string
			ConsumerName      string
			BatchSize         int64
		}

		// Notification gateway topics
		Notify struct {
			TactileTopic string
			PushTopic    string
			Workers      int // dispatch worker pool size
			QueueSize    int // dispatch queue bound
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load builds the configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "wearhub")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wearable-hub")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Hub.Scan.Timeout = getEnvDuration("SCAN_TIMEOUT", 5*time.Second)
	cfg.Hub.Scan.RequestTopic = getEnv("SCAN_REQUEST_TOPIC", "wearables/scan/start")
	cfg.Hub.Scan.ResultTopic = getEnv("SCAN_RESULT_TOPIC", "wearables/scan/result")

	cfg.Hub.Connect.Timeout = getEnvDuration("CONNECT_TIMEOUT", 10*time.Second)

	cfg.Hub.Ingest.BufferSize = getEnvInt("INGEST_BUFFER_SIZE", 256)

	cfg.Hub.Trend.WindowSize = getEnvInt("TREND_WINDOW_SIZE", 10)
	cfg.Hub.Trend.ImproveFactor = getEnvFloat("TREND_IMPROVE_FACTOR", 1.1)
	cfg.Hub.Trend.DeclineFactor = getEnvFloat("TREND_DECLINE_FACTOR", 0.9)

	cfg.Hub.Prediction.SleepQualityConfidence = getEnvFloat("PREDICTION_SLEEP_CONFIDENCE", 0.85)
	cfg.Hub.Prediction.StressLevelConfidence = getEnvFloat("PREDICTION_STRESS_CONFIDENCE", 0.75)
	cfg.Hub.Prediction.ActivityConfidence = getEnvFloat("PREDICTION_ACTIVITY_CONFIDENCE", 0.80)
	cfg.Hub.Prediction.HealthRiskConfidence = getEnvFloat("PREDICTION_RISK_CONFIDENCE", 0.90)

	cfg.Hub.Platform.BaseURL = getEnv("PLATFORM_API_URL", "")
	cfg.Hub.Platform.APIKey = getEnv("PLATFORM_API_KEY", "")
	cfg.Hub.Platform.Timeout = getEnvDuration("PLATFORM_TIMEOUT", 10*time.Second)

	cfg.Hub.Streams.DeviceChanges = getEnv("STREAM_DEVICE_CHANGES", "wearhub:changes:devices")
	cfg.Hub.Streams.PredictionChanges = getEnv("STREAM_PREDICTION_CHANGES", "wearhub:changes:predictions")
	cfg.Hub.Streams.ConsumerGroup = getEnv("STREAM_CONSUMER_GROUP", "wearable-hub")
	cfg.Hub.Streams.ConsumerName = getEnv("STREAM_CONSUMER_NAME", "wearable-hub-1")
	cfg.Hub.Streams.BatchSize = int64(getEnvInt("STREAM_BATCH_SIZE", 10))

	cfg.Hub.Notify.TactileTopic = getEnv("NOTIFY_TACTILE_TOPIC", "notify/tactile")
	cfg.Hub.Notify.PushTopic = getEnv("NOTIFY_PUSH_TOPIC", "notify/push")
	cfg.Hub.Notify.Workers = getEnvInt("NOTIFY_WORKERS", 4)
	cfg.Hub.Notify.QueueSize = getEnvInt("NOTIFY_QUEUE_SIZE", 128)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
