package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config holds the vendor platform API parameters.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client queries the vendor platform for device-side metadata (firmware,
// hardware revision, registration info). Read-only enrichment source; this
// service never writes to the platform.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	logger     *zap.Logger
}

// NewClient creates a platform API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

// metadataRequest is the platform API request envelope.
type metadataRequest struct {
	APIKey string         `json:"api_key"`
	Data   map[string]any `json:"data"`
}

// apiResponse is the platform API response envelope. Status 0 is success.
type apiResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// DeviceMetadata fetches platform metadata for a device, returned as raw JSON
// to merge into the device record.
func (c *Client) DeviceMetadata(ctx context.Context, deviceID, model string) (json.RawMessage, error) {
	request := metadataRequest{
		APIKey: c.apiKey,
		Data: map[string]any{
			"device_id": deviceID,
			"model":     model,
		},
	}

	var response apiResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/devices/metadata")

	if err != nil {
		return nil, fmt.Errorf("failed to call platform API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("platform API returned HTTP %d", resp.StatusCode())
	}
	if response.Status != 0 {
		return nil, fmt.Errorf("platform API error: %s (status: %d)", response.Msg, response.Status)
	}

	c.logger.Debug("Device metadata fetched",
		zap.String("device_id", deviceID),
		zap.String("model", model),
	)

	return response.Data, nil
}
