package worker

import (
	"context"
	"errors"
	"fmt"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/services"
)

// Dispatcher runs one assistant command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd services.Command) (services.Reply, error)
}

// CommandWorker applies queued commands to the ledger.
type CommandWorker struct {
	dispatcher Dispatcher
	logger     *log.Logger
}

func NewCommandWorker(d Dispatcher, logger *log.Logger) *CommandWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &CommandWorker{dispatcher: d, logger: logger.WithComponent(log.ComponentWorker)}
}

// invalidInput lists failures caused by the message itself; redelivering it
// would fail the same way.
var invalidInput = []error{
	services.ErrInvalidParams,
	core.ErrUnknownCommand,
	core.ErrInvalidAmount,
	core.ErrEmptyItem,
	core.ErrItemTooLong,
	core.ErrInvalidTimestamp,
	core.ErrInvalidRange,
	core.ErrMissingRangeBounds,
	core.ErrInvalidMonth,
	core.ErrInvalidCategory,
}

// HandleMessage dispatches msg. Input errors are marked permanent so the
// consumer acknowledges them instead of requeueing.
func (w *CommandWorker) HandleMessage(ctx context.Context, msg *amqp.CommandMessage) error {
	cmd := services.Command{Kind: services.CommandKind(msg.Command.Kind), Params: msg.Command.Params}

	reply, err := w.dispatcher.Dispatch(ctx, cmd)
	if err != nil {
		for _, target := range invalidInput {
			if errors.Is(err, target) {
				return amqp.Permanent(err)
			}
		}
		return fmt.Errorf("dispatch %s: %w", msg.Command.Kind, err)
	}

	w.logger.InfoContext(ctx, "Command applied",
		log.FieldMessageID, msg.ID.String(),
		log.FieldCommand, msg.Command.Kind,
		"reply_kind", string(reply.Kind),
		"reply", reply.Content)
	return nil
}
