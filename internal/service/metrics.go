package service

import (
	"sync"
	"time"
)

// MetricsSnapshot is a point-in-time copy of the processing counters. Plain
// value, safe to pass around.
type MetricsSnapshot struct {
	ScansStarted      int64
	DevicesConnected  int64
	ConnectFailures   int64
	DevicesDropped    int64 // disconnects
	PredictionsMade   int64
	DeviceEvents      int64 // bus events consumed
	PredictionEvents  int64
	StartTime         time.Time
	LastConnectedTime time.Time
}

// Metrics tracks service-level processing counters. Counters are only read
// through Snapshot.
type Metrics struct {
	mu sync.RWMutex

	scansStarted      int64
	devicesConnected  int64
	connectFailures   int64
	devicesDropped    int64
	predictionsMade   int64
	deviceEvents      int64
	predictionEvents  int64
	startTime         time.Time
	lastConnectedTime time.Time
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		ScansStarted:      m.scansStarted,
		DevicesConnected:  m.devicesConnected,
		ConnectFailures:   m.connectFailures,
		DevicesDropped:    m.devicesDropped,
		PredictionsMade:   m.predictionsMade,
		DeviceEvents:      m.deviceEvents,
		PredictionEvents:  m.predictionEvents,
		StartTime:         m.startTime,
		LastConnectedTime: m.lastConnectedTime,
	}
}

// IncrementScans records a scan.
func (m *Metrics) IncrementScans() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scansStarted++
}

// IncrementConnected records a successful device connection.
func (m *Metrics) IncrementConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devicesConnected++
	m.lastConnectedTime = time.Now()
}

// IncrementConnectFailures records a failed pairing attempt.
func (m *Metrics) IncrementConnectFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectFailures++
}

// IncrementDisconnected records a device disconnect.
func (m *Metrics) IncrementDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devicesDropped++
}

// AddPredictions records generated predictions.
func (m *Metrics) AddPredictions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionsMade += int64(n)
}

// IncrementDeviceEvents records a consumed device change event.
func (m *Metrics) IncrementDeviceEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceEvents++
}

// IncrementPredictionEvents records a consumed prediction change event.
func (m *Metrics) IncrementPredictionEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionEvents++
}
