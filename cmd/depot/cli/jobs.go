package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/depot/jobs"
)

// Enqueuer submits maintenance jobs.
type Enqueuer interface {
	EnqueueStockReconcile(ctx context.Context, payload jobs.StockReconcilePayload) (*asynq.TaskInfo, error)
	EnqueueIdempotencyCleanup(ctx context.Context, payload jobs.IdempotencyCleanupPayload) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	enqueuer  Enqueuer
	inspector jobs.QueueInspector
	out       io.Writer
}

// NewJobsCLI builds the helper around an enqueuer and inspector. Output goes to out.
func NewJobsCLI(enqueuer Enqueuer, inspector jobs.QueueInspector, out io.Writer) *JobsCLI {
	if out == nil {
		out = io.Discard
	}
	return &JobsCLI{enqueuer: enqueuer, inspector: inspector, out: out}
}

// ErrUsage is returned for unknown subcommands or malformed flags.
var ErrUsage = errors.New("usage: depot jobs trigger (stock:reconcile [-warehouse N] | idempotency:cleanup [-retention D]) | depot jobs stats")

// Run dispatches "trigger" and "stats".
func (c *JobsCLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return ErrUsage
		}
		info, err := c.Trigger(ctx, args[1], args[2:])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return ErrUsage
	}
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, args []string) (*asynq.TaskInfo, error) {
	if c == nil || c.enqueuer == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	switch name {
	case jobs.TaskStockReconcile:
		warehouseID := fs.Int64("warehouse", 0, "limit the check to one warehouse")
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		if *warehouseID < 0 {
			return nil, fmt.Errorf("jobs cli: warehouse must not be negative")
		}
		return c.enqueuer.EnqueueStockReconcile(ctx, jobs.StockReconcilePayload{WarehouseID: *warehouseID})
	case jobs.TaskIdempotencyCleanup:
		retention := fs.Duration("retention", 0, "drop keys older than this")
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		if *retention < 0 {
			return nil, fmt.Errorf("jobs cli: retention must not be negative")
		}
		return c.enqueuer.EnqueueIdempotencyCleanup(ctx, jobs.IdempotencyCleanupPayload{Retention: *retention})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the default queue. A queue nothing was ever enqueued
// on reads as empty.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// DefaultTimeout bounds a single CLI invocation.
const DefaultTimeout = 10 * time.Second
