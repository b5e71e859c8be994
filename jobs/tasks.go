// Package jobs holds the background task surface: nightly stock
// reconciliation and idempotency key retention.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/arka-retail/arka/internal/inventory"
	"github.com/arka-retail/arka/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockSync reconciles a tenant's product counters against batches.
	TaskStockSync = "inventory:stock_sync"
	// TaskStockSyncSweep fans a sync task out to every tenant.
	TaskStockSyncSweep = "inventory:stock_sync_sweep"
	// TaskIdempotencyCleanup prunes processed idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// stockSyncLockTTL bounds how long a crashed worker can hold a tenant lock.
const stockSyncLockTTL = 15 * time.Minute

// idempotencyRetention is how long processed keys are kept for dedup.
const idempotencyRetention = 7 * 24 * time.Hour

// StockSyncPayload names the tenant to reconcile.
type StockSyncPayload struct {
	OwnerID int64 `json:"owner_id"`
}

// NewStockSyncTask constructs a per-tenant reconciliation task.
func NewStockSyncTask(ownerID int64) (*asynq.Task, error) {
	data, err := json.Marshal(StockSyncPayload{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockSync, data), nil
}

// NewStockSyncSweepTask constructs the all-tenants fan-out task.
func NewStockSyncSweepTask() *asynq.Task {
	return asynq.NewTask(TaskStockSyncSweep, nil)
}

// NewIdempotencyCleanupTask constructs the retention task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// StockSyncer runs a tenant reconciliation.
type StockSyncer interface {
	ReconcileStock(ctx context.Context, scope shared.Scope, ownerID, actorID int64) (inventory.SyncReport, error)
}

// OwnerSource lists the tenants to sweep.
type OwnerSource interface {
	OwnerIDs(ctx context.Context) ([]int64, error)
}

// Enqueuer submits tasks, satisfied by both Client and asynq.Client wrappers.
type Enqueuer interface {
	EnqueueStockSync(ctx context.Context, ownerID int64) error
}

// NewStockSyncHandler builds the per-tenant reconciliation handler. A Redis
// lock keyed by tenant keeps concurrent runs from double-correcting.
func NewStockSyncHandler(syncer StockSyncer, locker *redis.Client, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload StockSyncPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.OwnerID <= 0 {
			return asynq.SkipRetry
		}

		lockKey := shared.StockSyncLockKey(payload.OwnerID)
		ok, err := locker.SetNX(ctx, lockKey, "1", stockSyncLockTTL).Result()
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("stock sync already running", slog.Int64("owner_id", payload.OwnerID))
			return nil
		}
		defer func() {
			if err := locker.Del(context.WithoutCancel(ctx), lockKey).Err(); err != nil {
				logger.Warn("release stock sync lock", slog.Any("error", err))
			}
		}()

		report, err := syncer.ReconcileStock(ctx, shared.AllTenants(), payload.OwnerID, 0)
		if err != nil {
			return err
		}
		logger.Info("stock sync finished",
			slog.Int64("owner_id", payload.OwnerID),
			slog.Int("products", report.Products),
			slog.Int("corrected", report.Corrected()))
		return nil
	}
}

// NewStockSyncSweepHandler builds the fan-out handler that enqueues one sync
// task per tenant.
func NewStockSyncSweepHandler(owners OwnerSource, enqueuer Enqueuer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		ids, err := owners.OwnerIDs(ctx)
		if err != nil {
			return err
		}
		var failed int
		for _, id := range ids {
			if err := enqueuer.EnqueueStockSync(ctx, id); err != nil {
				logger.Warn("enqueue stock sync", slog.Int64("owner_id", id), slog.Any("error", err))
				failed++
			}
		}
		if failed == len(ids) && len(ids) > 0 {
			return errors.New("stock sync sweep: every enqueue failed")
		}
		logger.Info("stock sync sweep enqueued", slog.Int("tenants", len(ids)-failed))
		return nil
	}
}

// KeyCleaner prunes old idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupHandler builds the retention handler.
func NewIdempotencyCleanupHandler(cleaner KeyCleaner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := cleaner.Cleanup(ctx, idempotencyRetention); err != nil {
			return err
		}
		logger.Info("idempotency keys pruned")
		return nil
	}
}
