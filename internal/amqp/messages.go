package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Op is the kind of change a TransactionEvent announces.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// TransactionEvent announces that a stored transaction changed.
// It carries only the ID; consumers read the row themselves.
type TransactionEvent struct {
	MessageID string    `json:"messageId"`
	ID        int64     `json:"id"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEvent creates an event with a fresh message ID.
func NewTransactionEvent(id int64, op Op) *TransactionEvent {
	return &TransactionEvent{
		MessageID: uuid.NewString(),
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event and rejects unknown operations.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Op {
	case OpUpsert, OpDelete:
	default:
		return nil, fmt.Errorf("unknown op %q", e.Op)
	}
	if e.ID == 0 {
		return nil, fmt.Errorf("missing transaction id")
	}
	return &e, nil
}
