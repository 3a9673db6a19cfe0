package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandPayload is an assistant command as it travels on the queue.
type CommandPayload struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

// CommandMessage wraps one command with an id for tracing and idempotent logs.
type CommandMessage struct {
	ID        uuid.UUID      `json:"id"`
	Command   CommandPayload `json:"command"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewCommandMessage(kind string, params json.RawMessage) *CommandMessage {
	return &CommandMessage{
		ID:        uuid.New(),
		Command:   CommandPayload{Kind: kind, Params: params},
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CommandMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CommandMessageFromJSON decodes a message and rejects ones without a kind.
func CommandMessageFromJSON(data []byte) (*CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.Command.Kind) == "" {
		return nil, errors.New("command kind is required")
	}
	if msg.ID == uuid.Nil {
		return nil, errors.New("message id is required")
	}
	return &msg, nil
}

// ErrPermanent marks handler failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so the consumer acknowledges and drops the message.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Action is what the consumer does with a delivery.
type Action int

const (
	ActionAck Action = iota
	ActionRequeue
	ActionDrop
)

func (a Action) String() string {
	switch a {
	case ActionAck:
		return "ack"
	case ActionRequeue:
		return "requeue"
	default:
		return "drop"
	}
}

// Decide maps a handler result to an Action. Transient failures are retried
// once: a redelivered message that fails again is dropped.
func Decide(err error, redelivered bool) Action {
	switch {
	case err == nil:
		return ActionAck
	case errors.Is(err, ErrPermanent):
		return ActionAck
	case redelivered:
		return ActionDrop
	default:
		return ActionRequeue
	}
}
