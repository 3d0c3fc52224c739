package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/depot/internal/jobs"
)

type fakeSource struct {
	checked int
	found   []Discrepancy
	err     error
	gotWH   int64
}

func (f *fakeSource) Discrepancies(_ context.Context, warehouseID int64) (int, []Discrepancy, error) {
	f.gotWH = warehouseID
	return f.checked, f.found, f.err
}

type fakePurger struct {
	removed   int64
	retention time.Duration
}

func (f *fakePurger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.retention = olderThan
	return f.removed, nil
}

func TestStockReconcileReportsDiscrepancies(t *testing.T) {
	src := &fakeSource{checked: 4, found: []Discrepancy{
		{ProductID: 1, WarehouseID: 2, Stock: 5, History: 7},
		{ProductID: 3, WarehouseID: 2, Stock: -1, History: -1},
	}}
	job := NewStockReconcileJob(src, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewStockReconcileTask(StockReconcilePayload{WarehouseID: 2})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, int64(2), src.gotWH)

	found, err := job.Run(context.Background(), StockReconcilePayload{})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "drift", found[0].Kind())
	assert.Equal(t, "negative", found[1].Kind())
}

func TestStockReconcilePropagatesSourceError(t *testing.T) {
	job := NewStockReconcileJob(&fakeSource{err: errors.New("db down")}, nil, nil)
	_, err := job.Run(context.Background(), StockReconcilePayload{})
	require.EqualError(t, err, "db down")

	var nilJob *StockReconcileJob
	require.Error(t, nilJob.Handle(context.Background(), asynq.NewTask(TaskStockReconcile, nil)))
}

func TestStockReconcileSkipsRetryOnBadPayload(t *testing.T) {
	job := NewStockReconcileJob(&fakeSource{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskStockReconcile, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanupUsesRetention(t *testing.T) {
	store := &fakePurger{removed: 3}
	job := NewIdempotencyCleanupJob(store, 0, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 24*time.Hour, store.retention)

	task, err = NewIdempotencyCleanupTask(IdempotencyCleanupPayload{Retention: time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, time.Hour, store.retention)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
	assert.Zero(t, body.Pending)
}

func TestTaskConstructors(t *testing.T) {
	task, err := NewStockReconcileTask(StockReconcilePayload{WarehouseID: 9})
	require.NoError(t, err)
	assert.Equal(t, TaskStockReconcile, task.Type())
	assert.JSONEq(t, `{"warehouse_id":9}`, string(task.Payload()))

	task, err = NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, err)
	assert.Equal(t, TaskIdempotencyCleanup, task.Type())
	assert.JSONEq(t, `{}`, string(task.Payload()))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func serveHealth(t *testing.T, inspector QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, nil).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return rr
}

func TestHealthReportsQueueCounts(t *testing.T) {
	rr := serveHealth(t, fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Scheduled: 1, Retry: 2, Archived: 1}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"scheduled":1,"failed":3}`, rr.Body.String())
}

func TestHealthTreatsMissingQueueAsEmpty(t *testing.T) {
	rr := serveHealth(t, fakeInspector{err: asynq.ErrQueueNotFound})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"failed":0}`, rr.Body.String())
}

func TestHealthUnavailableOnRedisError(t *testing.T) {
	rr := serveHealth(t, fakeInspector{err: errors.New("dial tcp: refused")})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestNewWorkerRejectsIncompleteHandler(t *testing.T) {
	_, err := NewWorker(WorkerConfig{Handlers: []TaskHandler{{Type: TaskStockReconcile}}})
	assert.Error(t, err)
}
