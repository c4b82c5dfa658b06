package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expenses/internal/core"
)

// EventType names a change applied to the expenses table.
type EventType string

const (
	EventCreated EventType = "expense.created"
	EventUpdated EventType = "expense.updated"
	EventDeleted EventType = "expense.deleted"
)

// ExpensePayload is the public shape of an expense carried by events.
type ExpensePayload struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
}

// ExpenseEvent is published after a mutation has been committed.
// Expense is nil for deletions.
type ExpenseEvent struct {
	Type      EventType       `json:"type"`
	ID        int64           `json:"id"`
	Expense   *ExpensePayload `json:"expense,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewExpenseEvent(t EventType, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Type: t,
		ID:   e.ID,
		Expense: &ExpensePayload{
			Amount:      e.Amount,
			Description: e.Description,
			Date:        e.Date.String(),
			Category:    e.Category.String(),
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewDeleteEvent(id int64) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      EventDeleted,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes an event and rejects unknown types.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Type {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return &ev, nil
}
