package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/depot/jobs"
)

type fakeEnqueuer struct {
	reconcile []jobs.StockReconcilePayload
	cleanup   []jobs.IdempotencyCleanupPayload
}

func (f *fakeEnqueuer) EnqueueStockReconcile(ctx context.Context, payload jobs.StockReconcilePayload) (*asynq.TaskInfo, error) {
	f.reconcile = append(f.reconcile, payload)
	return &asynq.TaskInfo{ID: "r1", Type: jobs.TaskStockReconcile, Queue: jobs.QueueDefault}, nil
}

func (f *fakeEnqueuer) EnqueueIdempotencyCleanup(ctx context.Context, payload jobs.IdempotencyCleanupPayload) (*asynq.TaskInfo, error) {
	f.cleanup = append(f.cleanup, payload)
	return &asynq.TaskInfo{ID: "c1", Type: jobs.TaskIdempotencyCleanup, Queue: jobs.QueueDefault}, nil
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestTriggerStockReconcileWithWarehouse(t *testing.T) {
	enq := &fakeEnqueuer{}
	var out bytes.Buffer
	c := NewJobsCLI(enq, nil, &out)

	err := c.Run(context.Background(), []string{"trigger", jobs.TaskStockReconcile, "-warehouse", "3"})
	require.NoError(t, err)
	require.Len(t, enq.reconcile, 1)
	assert.Equal(t, int64(3), enq.reconcile[0].WarehouseID)
	assert.Contains(t, out.String(), "enqueued stock:reconcile id=r1")
}

func TestTriggerIdempotencyCleanupRetention(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := NewJobsCLI(enq, nil, nil)

	_, err := c.Trigger(context.Background(), jobs.TaskIdempotencyCleanup, []string{"-retention", "48h"})
	require.NoError(t, err)
	require.Len(t, enq.cleanup, 1)
	assert.Equal(t, 48*time.Hour, enq.cleanup[0].Retention)
}

func TestTriggerRejectsBadInput(t *testing.T) {
	c := NewJobsCLI(&fakeEnqueuer{}, nil, nil)
	ctx := context.Background()

	_, err := c.Trigger(ctx, "report:build", nil)
	assert.ErrorContains(t, err, "unsupported job")

	_, err = c.Trigger(ctx, jobs.TaskStockReconcile, []string{"-warehouse", "abc"})
	assert.ErrorIs(t, err, ErrUsage)

	_, err = c.Trigger(ctx, jobs.TaskStockReconcile, []string{"-warehouse", "-2"})
	assert.Error(t, err)

	assert.ErrorIs(t, c.Run(ctx, nil), ErrUsage)
	assert.ErrorIs(t, c.Run(ctx, []string{"trigger"}), ErrUsage)
}

func TestStatsReportsQueue(t *testing.T) {
	var out bytes.Buffer
	c := NewJobsCLI(nil, fakeInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Retry: 1}}, &out)

	require.NoError(t, c.Run(context.Background(), []string{"stats"}))
	assert.Equal(t, "queue=default pending=2 active=0 scheduled=0 retry=1\n", out.String())
}

func TestStatsTreatsMissingQueueAsEmpty(t *testing.T) {
	c := NewJobsCLI(nil, fakeInspector{err: asynq.ErrQueueNotFound}, nil)

	stats, err := c.InspectQueue()
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault}, stats)
}
