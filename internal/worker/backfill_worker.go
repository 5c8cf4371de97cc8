package worker

// backfill_worker.go
// Processes history backfill jobs from QueueBackfill: pulls the aggregator
// price series for a product group and merges it behind stored history.
// Retries with exponential backoff; exhausted jobs land in the DLQ.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const maxBackfillAttempts = 3

// BackfillJobPayload is the job envelope sent to QueueBackfill.
type BackfillJobPayload struct {
	GroupID string `json:"group_id"`
}

// BackfillWorker processes backfill jobs against the aggregator.
type BackfillWorker struct {
	svc service.BackfillService
	rdb *redis.Client
}

func NewBackfillWorker(svc service.BackfillService, rdb *redis.Client) *BackfillWorker {
	return &BackfillWorker{svc: svc, rdb: rdb}
}

// Process handles a single backfill job:
//  1. Parse BackfillJobPayload from the job envelope
//  2. Run the backfill with exponential backoff (max 3 attempts)
//  3. On exhaustion, move the job to the DLQ for manual inspection
func (w *BackfillWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload BackfillJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("backfill_worker: invalid payload")
		return
	}

	groupID, err := uuid.Parse(payload.GroupID)
	if err != nil {
		log.Error().Str("group_id", payload.GroupID).Msg("backfill_worker: invalid group_id")
		return
	}

	var inserted int
	runErr := withRetry(ctx, maxBackfillAttempts, func(attempt int) error {
		n, err := w.svc.BackfillGroup(ctx, groupID)
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("group_id", payload.GroupID).
				Msg("backfill_worker: attempt failed, retrying")
			return err
		}
		inserted = n
		return nil
	})

	if runErr != nil {
		log.Error().Err(runErr).Str("group_id", payload.GroupID).Msg("backfill_worker: failed after all retries")
		SendToDLQ(ctx, w.rdb, QueueBackfill, "backfill", raw, runErr.Error(), maxBackfillAttempts)
		return
	}

	log.Info().Str("group_id", payload.GroupID).Int("inserted", inserted).Msg("backfill_worker: done")
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
