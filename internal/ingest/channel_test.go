package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"wearable-hub/internal/analyzer"
	"wearable-hub/internal/dispatch"
	"wearable-hub/internal/evaluator"
	"wearable-hub/internal/models"
	"wearable-hub/internal/prediction"
	"wearable-hub/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureNotifier struct {
	mu            sync.Mutex
	notifications []string
}

func (n *captureNotifier) TactileFeedback(intensity models.TactileIntensity) error {
	return nil
}

func (n *captureNotifier) ScheduleNotification(title, body, sound string, metadata map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, title)
	return nil
}

func (n *captureNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notifications...)
}

type channelFixture struct {
	mock     sqlmock.Sqlmock
	notifier *captureNotifier
	trends   *analyzer.TrendAnalyzer
	engine   *prediction.Engine
}

func setupFixture(t *testing.T, windowSize int) *channelFixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	logger := zap.NewNop()
	trends := analyzer.NewTrendAnalyzer(analyzer.Config{
		WindowSize:    windowSize,
		ImproveFactor: 1.1,
		DeclineFactor: 0.9,
	})

	return &channelFixture{
		mock:     mock,
		notifier: &captureNotifier{},
		trends:   trends,
		engine: prediction.NewEngine(
			prediction.DefaultConfidences(),
			trends,
			repository.NewPredictionRepository(db, logger),
			nil,
			logger,
		),
	}
}

func (f *channelFixture) newChannel(t *testing.T, ctx context.Context, opts Options) *Channel {
	t.Helper()

	logger := zap.NewNop()
	dispatcher := dispatch.NewDispatcher(f.notifier, 2, 32, logger)
	t.Cleanup(dispatcher.Stop)

	dataDB, dataMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { dataDB.Close() })
	dataMock.MatchExpectationsInOrder(false)
	// enough write expectations for any scenario below
	for i := 0; i < 16; i++ {
		dataMock.ExpectExec(`INSERT INTO health_data_points`).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	device := models.WearableDevice{
		DeviceID: "hw-1",
		UserID:   "user-1",
		Name:     "Pulse Watch",
	}

	return NewChannel(ctx, device, opts,
		evaluator.NewThresholdEvaluator(nil),
		f.trends,
		f.engine,
		dispatcher,
		repository.NewHealthDataRepository(dataDB, logger),
		logger,
	)
}

func point(metricType models.MetricType, value float64) models.HealthDataPoint {
	return models.HealthDataPoint{
		Timestamp: time.Now(),
		DeviceID:  "hw-1",
		Type:      metricType,
		Value:     value,
		Unit:      "bpm",
	}
}

func TestPush_InvalidType(t *testing.T) {
	f := setupFixture(t, 10)
	c := f.newChannel(t, context.Background(), Options{})
	defer c.Close()

	err := c.Push(models.HealthDataPoint{Type: "mood"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid metric type")
}

func TestPush_AfterClose(t *testing.T) {
	f := setupFixture(t, 10)
	c := f.newChannel(t, context.Background(), Options{})

	c.Close()

	err := c.Push(point(models.MetricHeartRate, 70))
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestPush_CriticalReadingDispatches(t *testing.T) {
	f := setupFixture(t, 10)
	c := f.newChannel(t, context.Background(), Options{})
	defer c.Close()

	require.NoError(t, c.Push(point(models.MetricHeartRate, 39)))

	require.Eventually(t, func() bool {
		for _, title := range f.notifier.titles() {
			if title == "Critical Health Reading" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestPush_NormalReadingDoesNotDispatch(t *testing.T) {
	f := setupFixture(t, 10)
	c := f.newChannel(t, context.Background(), Options{})

	require.NoError(t, c.Push(point(models.MetricHeartRate, 72)))
	c.Close()

	assert.Empty(t, f.notifier.titles())
}

func TestPush_OverflowDropsOldest(t *testing.T) {
	f := setupFixture(t, 10)

	// a dead worker keeps the queue unconsumed, making overflow deterministic
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := f.newChannel(t, ctx, Options{BufferSize: 2})
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Push(point(models.MetricHeartRate, float64(70+i))))
	}

	assert.Equal(t, int64(3), c.Dropped())
	c.Close()
}

func TestPush_OverflowBoundIsPerType(t *testing.T) {
	f := setupFixture(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := f.newChannel(t, ctx, Options{BufferSize: 2})
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, c.Push(point(models.MetricHeartRate, 70)))
	require.NoError(t, c.Push(point(models.MetricHeartRate, 71)))
	require.NoError(t, c.Push(point(models.MetricSteps, 9000)))
	require.NoError(t, c.Push(point(models.MetricSteps, 9100)))

	// each type holds its full bound independently
	assert.Equal(t, int64(0), c.Dropped())

	require.NoError(t, c.Push(point(models.MetricSteps, 9200)))
	assert.Equal(t, int64(1), c.Dropped())
	c.Close()
}

func TestWindowClose_GeneratesAndDispatchesPredictions(t *testing.T) {
	f := setupFixture(t, 3)

	f.mock.ExpectExec(`INSERT INTO health_predictions`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c := f.newChannel(t, context.Background(), Options{
		PredictionTypes: []models.PredictionType{models.PredictionHealthRisk},
	})
	defer c.Close()

	for _, v := range []float64{70, 71, 72} {
		require.NoError(t, c.Push(point(models.MetricHeartRate, v)))
	}

	// health risk predictions always dispatch
	require.Eventually(t, func() bool {
		for _, title := range f.notifier.titles() {
			if title == "⚠️ Health Risk Alert" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestClose_Idempotent(t *testing.T) {
	f := setupFixture(t, 10)
	c := f.newChannel(t, context.Background(), Options{})

	c.Close()
	c.Close()
}
