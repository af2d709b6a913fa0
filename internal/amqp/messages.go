package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Invalidation operations.
const (
	OpInsert  = "insert"
	OpDelete  = "delete"
	OpRefresh = "refresh"
)

// InvalidationMessage tells every dashboard process that a collection changed.
// Receivers drop their cached snapshot; the message carries no record data.
type InvalidationMessage struct {
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	ID         string    `json:"id,omitempty"`
	Origin     string    `json:"origin"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewInvalidationMessage creates a message stamped with the current time.
func NewInvalidationMessage(collection, op, id, origin string) *InvalidationMessage {
	return &InvalidationMessage{
		Collection: collection,
		Op:         op,
		ID:         id,
		Origin:     origin,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON decodes a message and rejects ones without a collection.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Collection == "" {
		return nil, errors.New("invalidation message without collection")
	}
	return &msg, nil
}
