package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// NetWorthRefreshMessage asks a worker to recompute and store the net worth
// point for Date. It carries no amounts; the worker reads the ledger itself.
type NetWorthRefreshMessage struct {
	MessageID string    `json:"message_id"`
	Date      core.Date `json:"date"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNetWorthRefreshMessage(date core.Date, reason string) *NetWorthRefreshMessage {
	return &NetWorthRefreshMessage{
		MessageID: uuid.NewString(),
		Date:      date,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *NetWorthRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NetWorthRefreshMessageFromJSON decodes a message and rejects one without a date.
func NetWorthRefreshMessageFromJSON(data []byte) (*NetWorthRefreshMessage, error) {
	var msg NetWorthRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Date.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
