package hardware

import (
	"errors"

	"wearable-hub/internal/models"
)

// ErrConnectionFailed marks hardware scan/connect/disconnect failures. The
// gateway is assumed unreliable; callers decide whether to retry.
var ErrConnectionFailed = errors.New("connection failed")

// Handle identifies a discoverable wearable before pairing.
type Handle struct {
	DeviceID     string            `json:"device_id"`
	Name         string            `json:"name"`
	Type         models.DeviceType `json:"type"`
	Manufacturer string            `json:"manufacturer"`
	Model        string            `json:"model"`
	RSSI         int               `json:"rssi"`
}

// ScanFilters narrows a discovery scan. Empty filters match everything.
type ScanFilters struct {
	Types []models.DeviceType `json:"types,omitempty"`
}

// Matches reports whether a handle passes the filters.
func (f ScanFilters) Matches(handle Handle) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if handle.Type == t {
			return true
		}
	}
	return false
}

// Session is an open streaming link to a connected wearable. Points are
// push-delivered by the gateway; the channel is closed when the session ends.
type Session interface {
	DeviceID() string
	BatteryLevel() *int
	Points() <-chan models.HealthDataPoint
	Close() error
}
