package ingest

import (
	"context"

	"monitoring/internal/command"
)

// CommandSink receives parsed commands from ingest interfaces.
// Params: command and, for blocking submits, a context bounding the wait.
// Returns: queueing error.
type CommandSink interface {
	Submit(ctx context.Context, cmd command.Command) error
	TrySubmit(cmd command.Command) error
}

// Router splits commands between the check-result queue and the engine command queue.
// Params: engine command queue and check-result queue.
// Returns: CommandSink implementation.
type Router struct {
	commands     *command.Queue
	checkResults *command.Queue
}

// NewRouter creates command router.
// Params: queue for engine commands and queue for passive check results.
// Returns: router.
func NewRouter(commands, checkResults *command.Queue) *Router {
	return &Router{commands: commands, checkResults: checkResults}
}

// Submit enqueues command, waiting while its target queue is full.
func (r *Router) Submit(ctx context.Context, cmd command.Command) error {
	return r.queueFor(cmd).Push(ctx, cmd)
}

// TrySubmit enqueues command or fails fast with command.ErrQueueFull.
func (r *Router) TrySubmit(cmd command.Command) error {
	return r.queueFor(cmd).TryPush(cmd)
}

func (r *Router) queueFor(cmd command.Command) *command.Queue {
	if cmd.Class() == command.ClassCheckResult {
		return r.checkResults
	}
	return r.commands
}
