package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    DeviceStatus
		to      DeviceStatus
		allowed bool
	}{
		{StatusDisconnected, StatusPairing, true},
		{StatusDisconnected, StatusConnected, false},
		{StatusDisconnected, StatusError, false},

		{StatusPairing, StatusConnected, true},
		{StatusPairing, StatusError, true},
		{StatusPairing, StatusDisconnected, true},

		{StatusConnected, StatusDisconnected, true},
		{StatusConnected, StatusError, true},
		{StatusConnected, StatusPairing, false},

		{StatusError, StatusPairing, true},
		{StatusError, StatusDisconnected, true},
		{StatusError, StatusConnected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestDeviceStatusIsValid(t *testing.T) {
	for _, status := range []DeviceStatus{StatusDisconnected, StatusPairing, StatusConnected, StatusError} {
		assert.True(t, status.IsValid())
	}
	assert.False(t, DeviceStatus("sleeping").IsValid())
}

func TestDeviceTypeIsValid(t *testing.T) {
	for _, dt := range []DeviceType{DeviceTypeSmartwatch, DeviceTypeFitnessTracker, DeviceTypeMedicalDevice} {
		assert.True(t, dt.IsValid())
	}
	assert.False(t, DeviceType("toaster").IsValid())
}

func TestMetricTypeIsValid(t *testing.T) {
	for _, mt := range AllMetricTypes {
		assert.True(t, mt.IsValid())
	}
	assert.False(t, MetricType("mood").IsValid())
}

func TestPredictionTypeIsValid(t *testing.T) {
	for _, pt := range AllPredictionTypes {
		assert.True(t, pt.IsValid())
	}
	assert.False(t, PredictionType("mood").IsValid())
}
