// Package message defines the wire envelope of records published to Kafka.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/orderfill-indexer/internal/types"
)

const (
	TypeOrderFilled    = "order_filled"
	VersionOrderFilled = 1
)

// ErrUnexpectedType is returned when an envelope does not carry the requested payload.
var ErrUnexpectedType = errors.New("unexpected envelope type")

type Envelope struct {
	Type    string          `json:"type"`
	Version int             `json:"version"`
	ID      string          `json:"id,omitempty"`
	TS      string          `json:"ts,omitempty"` // RFC 3339
	Data    json.RawMessage `json:"data"`
}

func Open(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &env, nil
}

func New(msgType string, version int, id string, ts string, data json.RawMessage) *Envelope {
	return &Envelope{
		Type:    msgType,
		Version: version,
		ID:      id,
		TS:      ts,
		Data:    data,
	}
}

// NewOrderFilled wraps o. The envelope ID is the tx hash, TS the ingestion time.
func NewOrderFilled(o *types.OrderFilled) (*Envelope, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order %s: %w", o.TxHash, err)
	}
	return New(TypeOrderFilled, VersionOrderFilled, o.TxHash, o.IngestionTimestamp.UTC().Format(time.RFC3339Nano), data), nil
}

// OrderFilled decodes the payload of an order_filled envelope.
func (e *Envelope) OrderFilled() (*types.OrderFilled, error) {
	if e.Type != TypeOrderFilled {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedType, e.Type)
	}
	if e.Version != VersionOrderFilled {
		return nil, fmt.Errorf("%w: %s version %d", ErrUnexpectedType, e.Type, e.Version)
	}
	var o types.OrderFilled
	if err := json.Unmarshal(e.Data, &o); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	if o.TxHash == "" {
		return nil, fmt.Errorf("%w: order without tx_hash", types.ErrMalformedEvent)
	}
	return &o, nil
}

func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
