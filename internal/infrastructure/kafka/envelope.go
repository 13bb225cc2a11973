package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrMalformedEnvelope = errors.New("malformed event envelope")

// Envelope wraps every event published to the topic
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope encodes data and stamps it with a fresh id
func NewEnvelope(key, eventType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Key:       key,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// DecodeEnvelope parses a message value
func DecodeEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, errors.Join(ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMalformedEnvelope
	}
	if _, err := uuid.Parse(env.ID); err != nil {
		return Envelope{}, errors.Join(ErrMalformedEnvelope, err)
	}
	return env, nil
}
