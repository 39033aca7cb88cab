package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/salon-inventory/internal/catalog"
	jobmetrics "github.com/odyssey-erp/salon-inventory/internal/jobs"
	"github.com/odyssey-erp/salon-inventory/internal/reorder"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubProducts map[int64]catalog.Product

func (s stubProducts) GetProduct(_ context.Context, businessID, id int64) (catalog.Product, error) {
	p, ok := s[id]
	if !ok || p.BusinessID != businessID {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func lowStockTask(t *testing.T, businessID, productID int64) *asynq.Task {
	t.Helper()
	task, err := NewLowStockAlertTask(LowStockAlertPayload{BusinessID: businessID, ProductID: productID})
	require.NoError(t, err)
	return task
}

func TestLowStockAlertJob(t *testing.T) {
	products := stubProducts{
		1: {ID: 1, BusinessID: 1, SKU: "SH-1", CurrentStock: decimal.Zero, MinimumStock: decimal.NewFromInt(2), IsActive: true, TrackStock: true},
		2: {ID: 2, BusinessID: 1, SKU: "SH-2", CurrentStock: decimal.NewFromInt(9), MinimumStock: decimal.NewFromInt(2), IsActive: true, TrackStock: true},
	}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewLowStockAlertJob(products, 6, discardLogger(), metrics)

	require.NoError(t, job.Handle(context.Background(), lowStockTask(t, 1, 1)))
	require.NoError(t, job.Handle(context.Background(), lowStockTask(t, 1, 2)))
	require.NoError(t, job.Handle(context.Background(), lowStockTask(t, 1, 99)))

	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockAlert, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewLowStockAlertTaskRequiresIDs(t *testing.T) {
	_, err := NewLowStockAlertTask(LowStockAlertPayload{BusinessID: 1})
	require.Error(t, err)
}

type stubBusinesses struct {
	ids []int64
	err error
}

func (s stubBusinesses) ActiveBusinesses(context.Context) ([]int64, error) {
	return s.ids, s.err
}

type recordingAdvisor struct {
	calls []int64
	def   decimal.Decimal
	fail  int64
}

func (a *recordingAdvisor) SuggestReorders(_ context.Context, businessID int64, def decimal.Decimal) ([]reorder.Suggestion, error) {
	a.calls = append(a.calls, businessID)
	a.def = def
	if businessID == a.fail {
		return nil, errors.New("boom")
	}
	return []reorder.Suggestion{{ProductID: 1, Urgency: reorder.UrgencyCritical}}, nil
}

func TestReorderScanJob(t *testing.T) {
	advisor := &recordingAdvisor{}
	job := NewReorderScanJob(stubBusinesses{ids: []int64{1, 2}}, advisor, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewReorderScanTask(12)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{1, 2}, advisor.calls)
	require.Equal(t, "12", advisor.def.String())

	advisor = &recordingAdvisor{fail: 1}
	job.Advisor = advisor
	require.Error(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{1}, advisor.calls)

	job.Businesses = stubBusinesses{err: errors.New("db down")}
	require.Error(t, job.Handle(context.Background(), task))
}

type stubCleaner struct {
	olderThan time.Duration
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return 3, nil
}

func TestIdempotencyCleanupJobDefaultsRetention(t *testing.T) {
	store := &stubCleaner{}
	job := NewIdempotencyCleanupJob(store, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, defaultIdempotencyRetention, store.olderThan)

	task, err = NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, store.olderThan)
}

func TestClientSuppressesDuplicateAlerts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	payload := LowStockAlertPayload{BusinessID: 1, ProductID: 5}
	require.NoError(t, client.EnqueueLowStockAlert(context.Background(), payload))
	require.NoError(t, client.EnqueueLowStockAlert(context.Background(), payload))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })
	tasks, err := inspector.ListPendingTasks(QueueAlerts)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	var got LowStockAlertPayload
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &got))
	require.Equal(t, payload, got)

	var nilClient *Client
	require.NoError(t, nilClient.EnqueueLowStockAlert(context.Background(), payload))
}

func TestHealthWithoutInspectorReportsEmptyQueues(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, discardLogger()).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Queues []QueueStats `json:"queues"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Queues, 2)
	require.Equal(t, QueueAlerts, body.Queues[0].Queue)
	require.Equal(t, QueueDefault, body.Queues[1].Queue)
	require.Zero(t, body.Queues[0].Pending)
}

func TestNewWorkerRejectsIncompleteRegistrations(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    discardLogger(),
		Handlers:  []TaskHandler{{Type: TaskReorderScan}},
	})
	require.Error(t, err)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    discardLogger(),
		Cron:      []CronRegistration{{Spec: "0 6 * * *"}},
	})
	require.Error(t, err)
}
