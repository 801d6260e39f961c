package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Envelope is one serialized event queued for delivery. Payload holds the
// JSON encoding of the event exactly as built; size enforcement happens once
// in the delivery worker before the first attempt.
type Envelope struct {
	EventID string
	Level   string
	Payload []byte
}

// NewEnvelope wraps an already encoded event.
func NewEnvelope(eventID, level string, payload []byte) *Envelope {
	return &Envelope{EventID: eventID, Level: level, Payload: payload}
}

// Identifier returns a human-readable identifier used in log messages.
func (e *Envelope) Identifier() string {
	if e == nil {
		return "empty envelope"
	}
	if e.Level == "" {
		return fmt.Sprintf("event [%s]", e.EventID)
	}
	return fmt.Sprintf("%s event [%s]", e.Level, e.EventID)
}

// Gzip compresses body with the default compression level.
func Gzip(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(body); err != nil {
		_ = gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Gunzip reverses Gzip.
func Gunzip(body []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
