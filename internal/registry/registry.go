package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wearable-hub/internal/models"
	"wearable-hub/internal/repository"

	"go.uber.org/zap"
)

// ChangePublisher publishes device change events to the event bus.
type ChangePublisher interface {
	PublishDeviceChange(ctx context.Context, op models.ChangeOp, device *models.WearableDevice) error
}

// DeviceRegistry is the exclusive owner of the in-memory device map. All
// mutation of device state goes through it; other components only read
// through its accessors. Writes to a given device id are serialized by the
// registry lock.
type DeviceRegistry struct {
	mu        sync.RWMutex
	devices   map[string]*models.WearableDevice // keyed by hardware device_id
	repo      *repository.DeviceRepository
	publisher ChangePublisher
	logger    *zap.Logger
}

// NewDeviceRegistry creates a registry backed by the device repository.
// publisher may be nil, in which case change events are not emitted.
func NewDeviceRegistry(repo *repository.DeviceRepository, publisher ChangePublisher, logger *zap.Logger) *DeviceRegistry {
	return &DeviceRegistry{
		devices:   make(map[string]*models.WearableDevice),
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Register upserts a device record, stores it in the registry and publishes a
// change event. Returns the stored record with its assigned id.
func (r *DeviceRegistry) Register(ctx context.Context, device *models.WearableDevice) (*models.WearableDevice, error) {
	if device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if !device.Status.IsValid() {
		return nil, fmt.Errorf("invalid device status: %s", device.Status)
	}

	stored, err := r.repo.UpsertDevice(ctx, device)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	copied := *stored
	r.devices[stored.DeviceID] = &copied
	r.mu.Unlock()

	r.publishChange(ctx, models.ChangeInsert, stored)

	return stored, nil
}

// Get returns a copy of a registered device.
func (r *DeviceRegistry) Get(deviceID string) (*models.WearableDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return nil, false
	}
	copied := *device
	return &copied, true
}

// List returns copies of all registered devices.
func (r *DeviceRegistry) List() []models.WearableDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]models.WearableDevice, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, *device)
	}
	return devices
}

// SetStatus transitions a device through its lifecycle, persists the new
// status and publishes a change event. Invalid transitions are rejected.
func (r *DeviceRegistry) SetStatus(ctx context.Context, deviceID string, status models.DeviceStatus) (*models.WearableDevice, error) {
	r.mu.Lock()
	device, ok := r.devices[deviceID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("device not registered: %s", deviceID)
	}
	if !device.Status.CanTransition(status) {
		current := device.Status
		r.mu.Unlock()
		return nil, fmt.Errorf("invalid status transition for device %s: %s -> %s", deviceID, current, status)
	}

	device.Status = status
	device.LastSync = time.Now()
	copied := *device
	r.mu.Unlock()

	if err := r.repo.UpdateDeviceStatus(ctx, deviceID, copied.Status, copied.LastSync); err != nil {
		r.logger.Error("Failed to persist device status",
			zap.String("device_id", deviceID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return nil, err
	}

	r.publishChange(ctx, models.ChangeUpdate, &copied)

	return &copied, nil
}

// Track places a device in the registry without persisting, used while a
// pairing attempt is in flight and no store record exists yet.
func (r *DeviceRegistry) Track(device *models.WearableDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *device
	r.devices[device.DeviceID] = &copied
}

// Clear empties the registry. Used by service cleanup.
func (r *DeviceRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]*models.WearableDevice)
}

// publishChange emits a change event. Publication failures are logged and
// swallowed; the bus is a side channel and must not fail the mutation.
func (r *DeviceRegistry) publishChange(ctx context.Context, op models.ChangeOp, device *models.WearableDevice) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishDeviceChange(ctx, op, device); err != nil {
		r.logger.Warn("Failed to publish device change event",
			zap.String("device_id", device.DeviceID),
			zap.String("op", string(op)),
			zap.Error(err),
		)
	}
}
