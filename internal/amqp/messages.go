package amqp

import (
	"encoding/json"
	"time"
)

// Change operations carried on the bus.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// TransactionChangeMessage is a lightweight change event. It carries only
// identifiers; consumers that need the record fetch it from the store, so a
// late delivery can never resurrect stale field values.
type TransactionChangeMessage struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionChangeMessage creates a change event for the given operation.
func NewTransactionChangeMessage(id, ownerID, op string) *TransactionChangeMessage {
	return &TransactionChangeMessage{
		ID:        id,
		OwnerID:   ownerID,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionChangeMessageFromJSON creates a message from JSON bytes
func TransactionChangeMessageFromJSON(data []byte) (*TransactionChangeMessage, error) {
	var msg TransactionChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
