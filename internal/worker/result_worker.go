package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mocksh/mocksh-backend/internal/config"
	"github.com/mocksh/mocksh-backend/internal/model"
	"github.com/mocksh/mocksh-backend/internal/repository"
	"github.com/mocksh/mocksh-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker drains the persistence queue and writes finished attempts to
// Postgres in batches, so a submit never waits on the database.
type ResultWorker struct {
	results *repository.ResultRepository
	rdb     *redis.Client
	log     zerolog.Logger
}

func NewResultWorker(results *repository.ResultRepository, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		results: results,
		rdb:     rdb,
		log:     log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*model.TestResult, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res model.TestResult
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &res)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert wrapper with per-row fallback
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.TestResult) {
	if len(batch) == 0 {
		return
	}

	if err := w.results.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk result insert failed, using fallback")

		for _, res := range batch {
			if err := w.results.Insert(ctx, res); err != nil {
				w.log.Error().Err(err).Str("user_id", res.UserID).Msg("single insert failed — requeueing")
				raw, _ := json.Marshal(res)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
				w.markStatus(ctx, res.UserID, service.SaveStatusFailed)
				continue
			}
			w.markStatus(ctx, res.UserID, service.SaveStatusSaved)
		}
		return
	}

	// Mark every attempt saved and drop the stale leaderboard cache so the
	// next read sees the new results.
	pipe := w.rdb.Pipeline()
	for _, res := range batch {
		pipe.Set(ctx, config.CacheKey.ResultStatusKey(res.UserID), service.SaveStatusSaved, 24*time.Hour)
	}
	pipe.Del(ctx, config.CacheKey.LeaderboardKey())
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("post-flush cache update failed")
	}

	w.log.Info().Int("count", len(batch)).Msg("Results persisted")
}

func (w *ResultWorker) markStatus(ctx context.Context, userID, status string) {
	if err := w.rdb.Set(ctx, config.CacheKey.ResultStatusKey(userID), status, 24*time.Hour).Err(); err != nil {
		w.log.Warn().Err(err).Str("user_id", userID).Msg("set result status failed")
	}
}
