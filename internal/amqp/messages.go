package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEvent notifies the worker that the transaction collection changed.
// It carries only the action and the transaction id; the worker reads the
// current collection from storage itself.
type LedgerEvent struct {
	Action    string    `json:"action"` // created, updated, deleted
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(action, id string) *LedgerEvent {
	return &LedgerEvent{Action: action, ID: id, Timestamp: time.Now()}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
