package world

import (
	"context"
	"sync"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	"github.com/WOW112/jingdianwow2/internal/telemetry"
	"github.com/WOW112/jingdianwow2/logging"
	"github.com/WOW112/jingdianwow2/logging/ops"
)

// Command is one administrative instruction awaiting the end-of-cycle
// executor. Respond, when set, is invoked on the world goroutine with the
// executor's output.
type Command struct {
	ID      string
	Line    string
	Issuer  string
	Respond func(output string, err error)
}

// CommandExecutor interprets a single command line. It runs on the world
// goroutine and may mutate world state directly.
type CommandExecutor interface {
	Execute(w *World, cmd Command) (string, error)
}

// commandQueue stages administrative commands from operator-facing
// goroutines. Bounded: a flooded admin surface must not grow without limit.
type commandQueue struct {
	mu       sync.Mutex
	pending  *queue.Queue
	capacity int
	metrics  telemetry.Metrics
}

func newCommandQueue(capacity int, metrics telemetry.Metrics) *commandQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &commandQueue{
		pending:  queue.New(),
		capacity: capacity,
		metrics:  metrics,
	}
}

// Push stages a command, returning false when the queue is full.
func (q *commandQueue) Push(cmd Command) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	if q.pending.Length() >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.pending.Add(cmd)
	depth := q.pending.Length()
	q.mu.Unlock()
	if q.metrics != nil {
		q.metrics.Add(metricCommandTotal, 1)
		q.metrics.Store(metricCommandDepth, uint64(depth))
	}
	return true
}

// Drain returns staged commands in FIFO order and clears the queue.
func (q *commandQueue) Drain() []Command {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	n := q.pending.Length()
	if n == 0 {
		q.mu.Unlock()
		return nil
	}
	commands := make([]Command, 0, n)
	for q.pending.Length() > 0 {
		commands = append(commands, q.pending.Remove().(Command))
	}
	q.mu.Unlock()
	if q.metrics != nil {
		q.metrics.Store(metricCommandDepth, 0)
	}
	return commands
}

// Len reports the number of staged commands.
func (q *commandQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Length()
}

// QueueCommand stages an administrative command for the end of the current
// cycle. It returns the assigned command id and false when the queue is
// saturated. Safe to call from any goroutine.
func (w *World) QueueCommand(line, issuer string, respond func(output string, err error)) (string, bool) {
	cmd := Command{
		ID:      uuid.NewString(),
		Line:    line,
		Issuer:  issuer,
		Respond: respond,
	}
	if !w.commands.Push(cmd) {
		return "", false
	}
	return cmd.ID, true
}

// processCommands runs every staged command through the executor. Commands
// execute strictly after all other cycle steps so they observe a settled
// world.
func (w *World) processCommands() {
	staged := w.commands.Drain()
	if len(staged) == 0 {
		return
	}
	for _, cmd := range staged {
		var output string
		var err error
		if w.deps.Console != nil {
			output, err = w.deps.Console.Execute(w, cmd)
		}
		payload := ops.CommandPayload{Line: cmd.Line}
		if err != nil {
			w.deps.Logger.Printf("[world] command %q failed: %v", cmd.Line, err)
			payload.Error = err.Error()
		}
		ops.CommandExecuted(context.Background(), w.deps.Publisher, w.tick, logging.ConsoleRef(cmd.Issuer), cmd.ID, payload)
		if cmd.Respond != nil {
			cmd.Respond(output, err)
		}
	}
}
