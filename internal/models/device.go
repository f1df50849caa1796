package models

import (
	"encoding/json"
	"time"
)

// DeviceType classifies a wearable device.
type DeviceType string

const (
	DeviceTypeSmartwatch     DeviceType = "smartwatch"
	DeviceTypeFitnessTracker DeviceType = "fitness_tracker"
	DeviceTypeMedicalDevice  DeviceType = "medical_device"
)

// IsValid reports whether t is a known device type.
func (t DeviceType) IsValid() bool {
	switch t {
	case DeviceTypeSmartwatch, DeviceTypeFitnessTracker, DeviceTypeMedicalDevice:
		return true
	}
	return false
}

// DeviceStatus is the connection lifecycle state of a device.
type DeviceStatus string

const (
	StatusDisconnected DeviceStatus = "disconnected"
	StatusPairing      DeviceStatus = "pairing"
	StatusConnected    DeviceStatus = "connected"
	StatusError        DeviceStatus = "error"
)

// IsValid reports whether s is a known status.
func (s DeviceStatus) IsValid() bool {
	switch s {
	case StatusDisconnected, StatusPairing, StatusConnected, StatusError:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Lifecycle: disconnected → pairing → connected → {disconnected, error}.
// A device in error must go through a fresh pairing attempt.
func (s DeviceStatus) CanTransition(next DeviceStatus) bool {
	switch s {
	case StatusDisconnected:
		return next == StatusPairing
	case StatusPairing:
		return next == StatusConnected || next == StatusError || next == StatusDisconnected
	case StatusConnected:
		return next == StatusDisconnected || next == StatusError
	case StatusError:
		return next == StatusPairing || next == StatusDisconnected
	}
	return false
}

// WearableDevice is a registered wearable unit. Devices are never hard
// deleted, only marked disconnected.
type WearableDevice struct {
	ID           string          `json:"id"`
	DeviceID     string          `json:"device_id"` // hardware address
	UserID       string          `json:"user_id"`
	Name         string          `json:"name"`
	Type         DeviceType      `json:"type"`
	Manufacturer string          `json:"manufacturer"`
	Model        string          `json:"model"`
	Status       DeviceStatus    `json:"status"`
	LastSync     time.Time       `json:"last_sync"`
	BatteryLevel *int            `json:"battery_level,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}
