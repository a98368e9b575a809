package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InvalidationMessage tells every instance that cached event windows for the
// listed sources are stale. An empty Sources list means all sources.
type InvalidationMessage struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason"`
	Sources   []string  `json:"sources,omitempty"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvalidationMessage stamps a message with a fresh id and the current time.
func NewInvalidationMessage(reason string, sources []string, origin string) *InvalidationMessage {
	return &InvalidationMessage{
		ID:        uuid.NewString(),
		Reason:    reason,
		Sources:   sources,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON decodes a message body.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
