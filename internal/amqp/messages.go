package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// ActivityChangedMessage announces a change to one activity. It carries no
// record data; the worker reads the current record from the store.
type ActivityChangedMessage struct {
	ID int64 `json:"id"`
	// Version orders changes to the same id. It is the change time in unix
	// nanoseconds.
	Version   int64     `json:"version"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewActivityChangedMessage stamps a change made at now.
func NewActivityChangedMessage(id int64, action Action, now time.Time) *ActivityChangedMessage {
	return &ActivityChangedMessage{
		ID:        id,
		Version:   now.UnixNano(),
		Action:    action,
		Timestamp: now.UTC(),
	}
}

func (m *ActivityChangedMessage) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("invalid activity id %d", m.ID)
	}
	if !m.Action.IsValid() {
		return fmt.Errorf("invalid action %q", m.Action)
	}
	return nil
}

func (m *ActivityChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityChangedMessageFromJSON decodes and validates a message body.
func ActivityChangedMessageFromJSON(data []byte) (*ActivityChangedMessage, error) {
	var msg ActivityChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ErrDiscard marks a handler error that must not be retried. Messages
// failing with it are rejected without requeue.
var ErrDiscard = errors.New("discard message")
