package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mocksh/mocksh-backend/internal/config"
	"github.com/mocksh/mocksh-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LeaderboardWorker periodically recomputes the global leaderboard into Redis
// so reads stay cheap no matter how many results accumulate.
type LeaderboardWorker struct {
	cfg     *config.Config
	results *repository.ResultRepository
	rdb     *redis.Client
	log     zerolog.Logger
}

func NewLeaderboardWorker(cfg *config.Config, results *repository.ResultRepository, rdb *redis.Client, log zerolog.Logger) *LeaderboardWorker {
	return &LeaderboardWorker{
		cfg:     cfg,
		results: results,
		rdb:     rdb,
		log:     log.With().Str("component", "leaderboard_worker").Logger(),
	}
}

func (w *LeaderboardWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.cfg.LeaderboardRefresh).Msg("LeaderboardWorker started")

	// Warm the cache immediately so the first request after boot hits it.
	w.refresh(ctx)

	ticker := time.NewTicker(w.cfg.LeaderboardRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("LeaderboardWorker stopped")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *LeaderboardWorker) refresh(ctx context.Context) {
	entries, err := w.results.Leaderboard(ctx, w.cfg.LeaderboardLimit)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("leaderboard query failed")
		}
		return
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		w.log.Error().Err(err).Msg("leaderboard marshal failed")
		return
	}

	ttl := 2 * w.cfg.LeaderboardRefresh
	if err := w.rdb.Set(ctx, config.CacheKey.LeaderboardKey(), raw, ttl).Err(); err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("leaderboard cache write failed")
		}
	}
}
