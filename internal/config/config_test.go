package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "wearhub", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "wearable-hub", cfg.MQTT.ClientID)

	assert.Equal(t, 5*time.Second, cfg.Hub.Scan.Timeout)
	assert.Equal(t, "wearables/scan/start", cfg.Hub.Scan.RequestTopic)
	assert.Equal(t, 10*time.Second, cfg.Hub.Connect.Timeout)
	assert.Equal(t, 256, cfg.Hub.Ingest.BufferSize)

	assert.Equal(t, 10, cfg.Hub.Trend.WindowSize)
	assert.Equal(t, 1.1, cfg.Hub.Trend.ImproveFactor)
	assert.Equal(t, 0.9, cfg.Hub.Trend.DeclineFactor)

	assert.Equal(t, 0.85, cfg.Hub.Prediction.SleepQualityConfidence)
	assert.Equal(t, 0.75, cfg.Hub.Prediction.StressLevelConfidence)
	assert.Equal(t, 0.80, cfg.Hub.Prediction.ActivityConfidence)
	assert.Equal(t, 0.90, cfg.Hub.Prediction.HealthRiskConfidence)

	assert.Equal(t, "wearhub:changes:devices", cfg.Hub.Streams.DeviceChanges)
	assert.Equal(t, "wearhub:changes:predictions", cfg.Hub.Streams.PredictionChanges)
	assert.Equal(t, "wearable-hub", cfg.Hub.Streams.ConsumerGroup)

	assert.Equal(t, "notify/tactile", cfg.Hub.Notify.TactileTopic)
	assert.Equal(t, "notify/push", cfg.Hub.Notify.PushTopic)
	assert.Equal(t, 4, cfg.Hub.Notify.Workers)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_PORT", "5433")
	os.Setenv("REDIS_ADDR", "redis-test:6379")
	os.Setenv("MQTT_BROKER", "tcp://broker:1883")
	os.Setenv("SCAN_TIMEOUT", "2s")
	os.Setenv("INGEST_BUFFER_SIZE", "64")
	os.Setenv("TREND_WINDOW_SIZE", "20")
	os.Setenv("PREDICTION_RISK_CONFIDENCE", "0.95")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "redis-test:6379", cfg.Redis.Addr)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, 2*time.Second, cfg.Hub.Scan.Timeout)
	assert.Equal(t, 64, cfg.Hub.Ingest.BufferSize)
	assert.Equal(t, 20, cfg.Hub.Trend.WindowSize)
	assert.Equal(t, 0.95, cfg.Hub.Prediction.HealthRiskConfidence)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PORT", "not-a-number")
	os.Setenv("TREND_IMPROVE_FACTOR", "abc")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 1.1, cfg.Hub.Trend.ImproveFactor)
}
