package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"hanapbahay/internal/config"
	"hanapbahay/internal/database"
	"hanapbahay/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func samplePayment(id int64) *models.RentPayment {
	return &models.RentPayment{
		ID:        id,
		BookingID: 1,
		TenantID:  20,
		OwnerID:   10,
		Period:    "2025-03",
		DueDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:    800000,
		Status:    models.PaymentPending,
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{}
	worker := NewLedgerSyncWorker(db, ledger, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, 1, samplePayment(1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != database.SyncCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if ledger.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", ledger.upsertCalls)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{err: errors.New("boom")}
	worker := NewLedgerSyncWorker(db, ledger, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, 2, samplePayment(2)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != database.SyncRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFailGoesToDeadLetter(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ledger := &fakeLedger{err: errors.New("fatal")}
	worker := NewLedgerSyncWorker(db, ledger, rdb, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, 3, samplePayment(3)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis queue")
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != database.SyncFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}

	dead, err := mr.List("ledger:deadletter")
	if err != nil || len(dead) != 1 {
		t.Fatalf("expected one dead letter, got %v (%v)", dead, err)
	}
	var deadTask models.SyncTask
	if err := json.Unmarshal([]byte(dead[0]), &deadTask); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if deadTask.PaymentID != 3 {
		t.Fatalf("expected payment 3 in dead letter, got %d", deadTask.PaymentID)
	}
}

func TestDrainPendingPicksUpPersistedTasks(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{}
	worker := NewLedgerSyncWorker(db, ledger, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	// Tasks dropped from the memory queue are still in the store.
	for i := int64(1); i <= 3; i++ {
		if err := worker.EnqueueTask(ctx, TaskUpsert, i, samplePayment(i)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		worker.tryLocalQueue()
	}

	if n := worker.drainPending(ctx); n != 3 {
		t.Fatalf("expected 3 drained tasks, got %d", n)
	}
	if ledger.upsertCalls != 3 {
		t.Fatalf("expected 3 upserts, got %d", ledger.upsertCalls)
	}
	if n := worker.drainPending(ctx); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	ledger := &fakeLedger{}
	worker := NewLedgerSyncWorker(db, ledger, nil, RetryPolicy{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	if err := worker.EnqueueTask(ctx, TaskUpdateStatus, 9, &models.RentPayment{ID: 9, Status: models.PaymentOverdue}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for ledger.statusCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
	if ledger.statusCount() != 1 {
		t.Fatalf("expected status update, got %d", ledger.statusCount())
	}
}

func TestLedgerSyncWorker_HandleLedgerTask(t *testing.T) {
	ledger := &fakeLedger{}
	worker := NewLedgerSyncWorker(nil, ledger, nil, RetryPolicy{MaxRetries: 3}, nil)
	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		if err := worker.handleLedgerTask(ctx, TaskUpsert, ledgerTaskPayload{Payment: samplePayment(1)}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if ledger.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", ledger.upsertCalls)
		}
	})

	t.Run("UpsertWithoutPayment", func(t *testing.T) {
		if err := worker.handleLedgerTask(ctx, TaskUpsert, ledgerTaskPayload{PaymentID: 1}); err == nil {
			t.Fatalf("expected error for missing payment")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := worker.handleLedgerTask(ctx, TaskDelete, ledgerTaskPayload{PaymentID: 123}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if ledger.deleteCalls != 1 {
			t.Fatalf("expected 1 delete call, got %d", ledger.deleteCalls)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		if err := worker.handleLedgerTask(ctx, TaskUpdateStatus, ledgerTaskPayload{PaymentID: 123, Status: "paid"}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if ledger.statusCount() != 1 {
			t.Fatalf("expected 1 status call, got %d", ledger.statusCount())
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := worker.handleLedgerTask(ctx, "resync", ledgerTaskPayload{PaymentID: 1}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestRetryPolicy(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 4, InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	for attempt, want := range map[int]time.Duration{
		0: time.Second,
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
		5: 5 * time.Second,
	} {
		if got := policy.Delay(attempt); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
	if policy.Exhausted(3) || !policy.Exhausted(4) {
		t.Fatalf("expected retries to run out at attempt 4")
	}

	defaults := RetryPolicyFromConfig(config.LedgerSyncConfig{})
	if defaults.MaxRetries != 5 || defaults.InitialDelay != 2*time.Second || defaults.MaxDelay != time.Minute {
		t.Fatalf("unexpected defaults: %+v", defaults)
	}
}

func TestLedgerSyncWorker_EnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewLedgerSyncWorker(db, &fakeLedger{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, 1, samplePayment(1)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("IDFromPayment", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, 0, samplePayment(4)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", 1, samplePayment(1)); err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("InvalidPaymentID", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, 0, nil); err == nil {
			t.Fatalf("expected error for missing payment id")
		}
	})
}

func TestDecodePayload(t *testing.T) {
	decoded, err := decodePayload(`{"payment_id":123,"status":"paid"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.PaymentID != 123 || decoded.Status != "paid" {
		t.Fatalf("unexpected decoded payload: %+v", decoded)
	}

	if _, err := decodePayload(`invalid json`); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

// Helpers

type fakeLedger struct {
	err         error
	upsertCalls int
	deleteCalls int
	statuses    atomic.Int32
}

func (f *fakeLedger) UpsertPayment(ctx context.Context, p *models.RentPayment) error {
	f.upsertCalls++
	return f.err
}

func (f *fakeLedger) DeletePayment(ctx context.Context, id int64) error {
	f.deleteCalls++
	return f.err
}

func (f *fakeLedger) UpdatePaymentStatus(ctx context.Context, id int64, status string) error {
	f.statuses.Add(1)
	return f.err
}

func (f *fakeLedger) statusCount() int {
	return int(f.statuses.Load())
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
