package service

import (
	"context"
	"fmt"
	"time"

	"wearable-hub/internal/hardware"
	"wearable-hub/internal/ingest"
	"wearable-hub/internal/models"
	"wearable-hub/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScanForDevices runs one bounded discovery scan against the hardware
// gateway. Each call issues a fresh scan; callers retry on failure.
func (s *HealthDeviceService) ScanForDevices(ctx context.Context) ([]hardware.Handle, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	s.metrics.IncrementScans()

	handles, err := s.gateway.Scan(ctx, hardware.ScanFilters{}, s.config.Hub.Scan.Timeout)
	if err != nil {
		s.logger.Error("Device scan failed", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Device scan finished", zap.Int("discovered", len(handles)))
	return handles, nil
}

// ConnectDevice pairs a discovered handle, registers the device and opens its
// ingestion channel. On hardware failure the device is left in error state
// and the error surfaces to the caller; there is no automatic retry here,
// backoff policy belongs to the caller.
func (s *HealthDeviceService) ConnectDevice(ctx context.Context, userID string, handle hardware.Handle) (*models.WearableDevice, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if !handle.Type.IsValid() {
		return nil, fmt.Errorf("invalid device type: %s", handle.Type)
	}

	// Reserve the device id under the lock so concurrent connects for the
	// same handle cannot both pass the check and leak a session.
	s.mu.Lock()
	if _, ok := s.connected[handle.DeviceID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("device already connected: %s", handle.DeviceID)
	}
	if _, ok := s.pending[handle.DeviceID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("connect already in progress: %s", handle.DeviceID)
	}
	s.pending[handle.DeviceID] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, handle.DeviceID)
		s.mu.Unlock()
	}()

	pairing := models.WearableDevice{
		DeviceID:     handle.DeviceID,
		UserID:       userID,
		Name:         handle.Name,
		Type:         handle.Type,
		Manufacturer: handle.Manufacturer,
		Model:        handle.Model,
		Status:       models.StatusPairing,
		LastSync:     time.Now(),
	}
	s.registry.Track(&pairing)

	session, err := s.gateway.Connect(ctx, handle)
	if err != nil {
		pairing.Status = models.StatusError
		s.registry.Track(&pairing)
		s.metrics.IncrementConnectFailures()
		s.logger.Error("Device connect failed",
			zap.String("device_id", handle.DeviceID),
			zap.Error(err),
		)
		return nil, err
	}

	device := pairing
	device.ID = uuid.New().String()
	device.Status = models.StatusConnected
	device.LastSync = time.Now()
	device.BatteryLevel = session.BatteryLevel()

	if s.platform != nil {
		metadata, err := s.platform.DeviceMetadata(ctx, handle.DeviceID, handle.Model)
		if err != nil {
			s.logger.Warn("Failed to fetch platform metadata",
				zap.String("device_id", handle.DeviceID),
				zap.Error(err),
			)
		} else {
			device.Metadata = metadata
		}
	}

	stored, err := s.registry.Register(ctx, &device)
	if err != nil {
		session.Close()
		if derr := s.gateway.Disconnect(handle.DeviceID); derr != nil {
			s.logger.Warn("Failed to disconnect after registration failure",
				zap.String("device_id", handle.DeviceID),
				zap.Error(derr),
			)
		}
		return nil, err
	}

	channel := ingest.NewChannel(
		s.runCtx,
		*stored,
		ingest.Options{
			BufferSize:      s.config.Hub.Ingest.BufferSize,
			PredictionTypes: models.AllPredictionTypes,
		},
		s.thresholds,
		s.trends,
		s.engine,
		s.dispatcher,
		s.dataRepo,
		s.logger,
	)
	channel.Attach(session.Points())

	s.mu.Lock()
	if s.connected == nil {
		// cleanup raced the connect; tear the session back down
		s.mu.Unlock()
		session.Close()
		channel.Close()
		return nil, ErrNotInitialized
	}
	s.connected[stored.DeviceID] = &connectedDevice{session: session, channel: channel}
	s.mu.Unlock()

	s.metrics.IncrementConnected()
	s.logger.Info("Device connected",
		zap.String("device_id", stored.DeviceID),
		zap.String("name", stored.Name),
		zap.String("type", string(stored.Type)),
	)
	return stored, nil
}

// DisconnectDevice closes a device's ingestion channel, draining buffered
// points first, and marks it disconnected. Points pushed after this returns
// are rejected, not buffered.
func (s *HealthDeviceService) DisconnectDevice(ctx context.Context, deviceID string) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}

	s.mu.Lock()
	entry, ok := s.connected[deviceID]
	if ok {
		delete(s.connected, deviceID)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("device not connected: %s", deviceID)
	}

	entry.session.Close()
	entry.channel.Close()

	hwErr := s.gateway.Disconnect(deviceID)
	if hwErr != nil {
		s.logger.Error("Hardware disconnect failed",
			zap.String("device_id", deviceID),
			zap.Error(hwErr),
		)
	}

	if _, err := s.registry.SetStatus(ctx, deviceID, models.StatusDisconnected); err != nil {
		return err
	}

	s.metrics.IncrementDisconnected()
	s.logger.Info("Device disconnected",
		zap.String("device_id", deviceID),
		zap.Int64("points_dropped", entry.channel.Dropped()),
	)
	return hwErr
}

// GetDevices returns all devices registered to a user.
func (s *HealthDeviceService) GetDevices(ctx context.Context, userID string) ([]models.WearableDevice, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	return s.deviceRepo.ListDevicesByUser(ctx, userID)
}

// GetHealthData returns a device's readings of one type inside a time range,
// in arrival order.
func (s *HealthDeviceService) GetHealthData(ctx context.Context, deviceID string, metricType models.MetricType, start, end time.Time) ([]models.HealthDataPoint, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	return s.dataRepo.ListDataPoints(ctx, deviceID, metricType, start, end)
}

// GeneratePredictions computes predictions of the requested types over the
// given points, persists them and dispatches the important ones.
func (s *HealthDeviceService) GeneratePredictions(ctx context.Context, userID string, points []models.HealthDataPoint, types []models.PredictionType) ([]models.HealthPrediction, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}

	deviceID := ""
	if len(points) > 0 {
		deviceID = points[0].DeviceID
	}

	predictions, err := s.engine.Generate(ctx, userID, deviceID, points, types)
	if err != nil {
		return predictions, err
	}

	for _, p := range predictions {
		s.dispatcher.DispatchPrediction(p)
	}
	s.metrics.AddPredictions(len(predictions))

	return predictions, nil
}

// GetPredictionHistory returns a user's stored predictions, optionally
// narrowed by type and time range.
func (s *HealthDeviceService) GetPredictionHistory(ctx context.Context, userID string, predictionType *models.PredictionType, start, end *time.Time) ([]models.HealthPrediction, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	return s.predictionRepo.ListPredictions(ctx, userID, repository.PredictionFilters{
		Type:      predictionType,
		StartTime: start,
		EndTime:   end,
	})
}
