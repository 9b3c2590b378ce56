// Package transport carries metrics computations between a caller and a
// worker process. Every transport speaks the same message pair: a
// compute_metrics request answered by metrics_done or metrics_error, with
// optional metrics_progress checkpoints in between and a cancel_metrics
// message to abort a running computation.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
)

// MessageType names a protocol message
type MessageType string

const (
	MsgComputeMetrics  MessageType = "compute_metrics"
	MsgMetricsDone     MessageType = "metrics_done"
	MsgMetricsProgress MessageType = "metrics_progress"
	MsgMetricsError    MessageType = "metrics_error"
	MsgCancelMetrics   MessageType = "cancel_metrics"
)

var (
	// ErrRemote is returned when the worker answers with metrics_error
	ErrRemote = errors.New("remote computation failed")
	// ErrClosed is returned by a client or server used after Close
	ErrClosed = errors.New("transport closed")
	// ErrUnexpectedMessage is returned when a reply does not fit the protocol
	ErrUnexpectedMessage = errors.New("unexpected message")
	// ErrMalformed is returned when a frame cannot be decoded
	ErrMalformed = errors.New("malformed message")
)

// ErrRemoteCanceled is returned when the worker reports the computation was
// cancelled before it finished
var ErrRemoteCanceled = fmt.Errorf("%w: canceled", ErrRemote)

// Envelope is the wire form of every message
type Envelope struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is the data of a metrics_error message
type ErrorPayload struct {
	Message  string `json:"message"`
	Canceled bool   `json:"canceled,omitempty"`
}

// NewEnvelope builds a message with data encoded as JSON. A nil data leaves
// the payload empty.
func NewEnvelope(msgType MessageType, id string, data any) (*Envelope, error) {
	env := &Envelope{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		env.Data = raw
	}
	return env, nil
}

// Decode decodes the payload into v
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrMalformed, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, e.Type, err)
	}
	return nil
}

// DecodeRequest decodes a compute_metrics payload, applying request defaults
// to omitted fields
func (e *Envelope) DecodeRequest() (engine.Request, error) {
	req := engine.NewRequest()
	err := e.Decode(&req)
	return req, err
}

// Err converts a metrics_error message into an error wrapping ErrRemote
func (e *Envelope) Err() error {
	var payload ErrorPayload
	if err := e.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %s", ErrRemote, e.ID)
	}
	if payload.Canceled {
		return fmt.Errorf("%w: %s", ErrRemoteCanceled, payload.Message)
	}
	return fmt.Errorf("%w: %s", ErrRemote, payload.Message)
}

// Marshal encodes the envelope as plain JSON
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes a plain JSON envelope
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return &env, nil
}

// EncodeFrame encodes the envelope for socket transports: snappy-compressed JSON
func EncodeFrame(e *Envelope) ([]byte, error) {
	raw, err := e.Marshal()
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// DecodeFrame reverses EncodeFrame
func DecodeFrame(frame []byte) (*Envelope, error) {
	raw, err := snappy.Decode(nil, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Unmarshal(raw)
}

// errorEnvelope builds a metrics_error reply for err
func errorEnvelope(id string, err error, canceled bool) *Envelope {
	raw, _ := json.Marshal(ErrorPayload{Message: err.Error(), Canceled: canceled})
	return &Envelope{
		Type:      MsgMetricsError,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}
}
