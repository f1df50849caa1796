package models

import (
	"encoding/json"
	"time"
)

// ChangeOp is the kind of store mutation a change event describes.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
)

// Change event tables.
const (
	TableDevices     = "wearable_devices"
	TablePredictions = "health_predictions"
)

// ChangeEvent is one store change delivered over the event bus. Delivery is
// at-least-once; consumers must tolerate duplicates.
type ChangeEvent struct {
	Table     string          `json:"table"`
	Op        ChangeOp        `json:"op"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// DecodePayload unmarshals the event payload into dest.
func (e *ChangeEvent) DecodePayload(dest interface{}) error {
	return json.Unmarshal(e.Payload, dest)
}

// NewChangeEvent builds a change event for a record.
func NewChangeEvent(table string, op ChangeOp, record interface{}) (*ChangeEvent, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return &ChangeEvent{
		Table:     table,
		Op:        op,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	}, nil
}
