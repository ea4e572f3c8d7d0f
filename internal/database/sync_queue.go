package database

import (
	"context"
	"fmt"
	"time"

	"hanapbahay/internal/models"
)

// Sync task statuses.
const (
	SyncPending   = "pending"
	SyncRetry     = "retry"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
)

const syncTaskColumns = `id, task_type, payment_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

// CreateSyncTask queues a ledger write. An empty status means pending.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.TaskType == "" {
		return fmt.Errorf("failed to create sync task: empty task type")
	}
	if task.Status == "" {
		task.Status = SyncPending
	}
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO sync_queue (task_type, payment_id, payload, status, retry_count, last_error, created_at, next_retry_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.PaymentID, task.Payload, task.Status,
		task.RetryCount, task.LastError, now, task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}
	if task.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.CreatedAt = now
	return nil
}

// DueSyncTasks returns pending tasks and retries whose backoff has passed,
// oldest first.
func (db *DB) DueSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue
         WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY created_at ASC, id ASC LIMIT ?`,
		SyncPending, SyncRetry, time.Now(), limit)
}

// ListSyncTasks returns the newest tasks in status.
func (db *DB) ListSyncTasks(ctx context.Context, status string, limit int) ([]models.SyncTask, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.querySyncTasks(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue
         WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`, status, limit)
}

// UpdateSyncTaskStatus records an attempt. A retry bumps retry_count; a
// final status stamps processed_at.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	set := `status = ?, last_error = ?, next_retry_at = ?`
	args := []interface{}{status, errMsg, nextRetryAt}
	switch status {
	case SyncRetry:
		set += `, retry_count = retry_count + 1`
	case SyncCompleted, SyncFailed:
		set += `, processed_at = ?`
		args = append(args, time.Now())
	}
	args = append(args, id)

	if _, err := db.ExecContext(ctx, `UPDATE sync_queue SET `+set+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

// SyncQueueCounts returns the number of tasks per status.
func (db *DB) SyncQueueCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count sync tasks: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan sync count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// RequeueFailedSyncTasks gives dead tasks a fresh set of retries.
func (db *DB) RequeueFailedSyncTasks(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, retry_count = 0, next_retry_at = NULL, processed_at = NULL WHERE status = ?`,
		SyncPending, SyncFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue sync tasks: %w", err)
	}
	return result.RowsAffected()
}

// PurgeCompletedSyncTasks deletes tasks completed before cutoff.
func (db *DB) PurgeCompletedSyncTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = ? AND processed_at < ?`, SyncCompleted, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sync tasks: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) querySyncTasks(ctx context.Context, query string, args ...interface{}) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(&t.ID, &t.TaskType, &t.PaymentID, &t.Payload, &t.Status,
			&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
