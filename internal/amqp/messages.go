package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names what happened to a transaction.
type EventKind string

const (
	KindUpserted EventKind = "transaction.upserted"
	KindDeleted  EventKind = "transaction.deleted"
)

// TransactionEvent is the message published after a transaction changes.
// It carries identifiers only; consumers reload the transaction from the store.
type TransactionEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      EventKind `json:"kind"`
	Version   int64     `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEvent creates an event stamped with the current time.
func NewTransactionEvent(kind EventKind, id, userID string) *TransactionEvent {
	return &TransactionEvent{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and validates an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("event without id")
	}
	switch msg.Kind {
	case KindUpserted, KindDeleted:
	default:
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	return &msg, nil
}
