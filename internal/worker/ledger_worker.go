package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hanapbahay/internal/database"
	"hanapbahay/internal/domain"
	"hanapbahay/internal/metrics"
	"hanapbahay/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert       = "upsert"
	TaskDelete       = "delete"
	TaskUpdateStatus = "update_status"
)

// ledgerTaskPayload is persisted in SyncTask.Payload as JSON.
type ledgerTaskPayload struct {
	PaymentID int64               `json:"payment_id"`
	Payment   *models.RentPayment `json:"payment,omitempty"`
	Status    string              `json:"status,omitempty"`
}

// TaskStore persists queued sync tasks.
type TaskStore interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	DueSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// LedgerSyncWorker consumes sync_queue tasks and applies them to the ledger sheet.
type LedgerSyncWorker struct {
	store         TaskStore
	ledger        domain.LedgerWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewLedgerSyncWorker(store TaskStore, ledger domain.LedgerWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *LedgerSyncWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &LedgerSyncWorker{
		store:         store,
		ledger:        ledger,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.SyncTask, 128),
		redisQueueKey: "ledger:queue",
		deadLetterKey: "ledger:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueTask persists the task and schedules it via redis or the in-memory queue.
// For TaskUpdateStatus the status is taken from payment.
func (w *LedgerSyncWorker) EnqueueTask(ctx context.Context, taskType string, paymentID int64, payment *models.RentPayment) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if paymentID == 0 && payment != nil {
		paymentID = payment.ID
	}
	if paymentID == 0 {
		return errors.New("payment id is required")
	}

	payload := ledgerTaskPayload{PaymentID: paymentID, Payment: payment}
	if payment != nil {
		payload.Status = payment.Status
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:  taskType,
		PaymentID: paymentID,
		Payload:   string(payloadBytes),
		Status:    database.SyncPending,
		CreatedAt: time.Now(),
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, using memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left for polling")
	}
	return nil
}

// Start runs the worker loop until ctx is done.
func (w *LedgerSyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("ledger sync worker started")
	defer w.logger.Info().Msg("ledger sync worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}
		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.drainPending(ctx); n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// drainPending processes due tasks from the store and returns how many ran.
func (w *LedgerSyncWorker) drainPending(ctx context.Context) int {
	tasks, err := w.store.DueSyncTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending sync tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *LedgerSyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *LedgerSyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Error().Err(err).Msg("redis BRPOP error")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *LedgerSyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleLedgerTask(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncSyncTask(task.TaskType, metrics.SyncCompleted)
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, database.SyncCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task completed")
	}
}

func (w *LedgerSyncWorker) handleLedgerTask(ctx context.Context, taskType string, payload ledgerTaskPayload) error {
	switch taskType {
	case TaskUpsert:
		if payload.Payment == nil {
			return errors.New("payment payload missing")
		}
		return w.ledger.UpsertPayment(ctx, payload.Payment)
	case TaskDelete:
		if payload.PaymentID == 0 {
			return errors.New("payment id missing")
		}
		return w.ledger.DeletePayment(ctx, payload.PaymentID)
	case TaskUpdateStatus:
		if payload.PaymentID == 0 || payload.Status == "" {
			return errors.New("payment id or status missing")
		}
		return w.ledger.UpdatePaymentStatus(ctx, payload.PaymentID, payload.Status)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *LedgerSyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncSyncTask(task.TaskType, metrics.SyncRetried)
	next := time.Now().Add(w.retryPolicy.Delay(attempt))
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", next).Msg("ledger sync retry")
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, database.SyncRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task retry")
	}
}

func (w *LedgerSyncWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncSyncTask(task.TaskType, metrics.SyncFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Int64("payment_id", task.PaymentID).Msg("ledger sync failed")
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, database.SyncFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task failed")
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
		}
	}
}

func decodePayload(raw string) (ledgerTaskPayload, error) {
	var payload ledgerTaskPayload
	err := json.Unmarshal([]byte(raw), &payload)
	return payload, err
}

func (w *LedgerSyncWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
