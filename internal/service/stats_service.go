package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/mocksh/mocksh-backend/internal/config"
	"github.com/mocksh/mocksh-backend/internal/model"
	"github.com/mocksh/mocksh-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StatsService serves aggregate statistics, attempt history, the leaderboard,
// and per-user preferences.
type StatsService struct {
	cfg     *config.Config
	rdb     *redis.Client
	results *repository.ResultRepository
	log     zerolog.Logger
}

// NewStatsService creates a new StatsService.
func NewStatsService(cfg *config.Config, rdb *redis.Client, results *repository.ResultRepository, log zerolog.Logger) *StatsService {
	return &StatsService{
		cfg:     cfg,
		rdb:     rdb,
		results: results,
		log:     log.With().Str("component", "stats_service").Logger(),
	}
}

// Stats returns the aggregate over a user's stored attempts.
func (s *StatsService) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	return s.results.Stats(ctx, userID)
}

// History returns a user's stored attempts, newest first.
func (s *StatsService) History(ctx context.Context, userID string, limit int) ([]model.TestResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.results.ListByUser(ctx, userID, limit)
}

// Leaderboard returns the ranked best attempts. It reads the cache the
// background worker maintains; on a miss it queries Postgres directly and
// repopulates the cache so a cold start still answers.
func (s *StatsService) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	cached, err := s.rdb.Get(ctx, config.CacheKey.LeaderboardKey()).Result()
	if err == nil {
		var entries []model.LeaderboardEntry
		if err := json.Unmarshal([]byte(cached), &entries); err == nil {
			return entries, nil
		}
		s.log.Warn().Msg("leaderboard cache held invalid JSON, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("leaderboard cache read failed")
	}

	entries, err := s.results.Leaderboard(ctx, s.cfg.LeaderboardLimit)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(entries); err == nil {
		if err := s.rdb.Set(ctx, config.CacheKey.LeaderboardKey(), raw, 2*s.cfg.LeaderboardRefresh).Err(); err != nil {
			s.log.Warn().Err(err).Msg("leaderboard cache write failed")
		}
	}
	return entries, nil
}

// Preferences returns the user's persisted UI settings. Missing fields
// default to zero values.
func (s *StatsService) Preferences(ctx context.Context, userID string) (*model.Preferences, error) {
	vals, err := s.rdb.HGetAll(ctx, config.CacheKey.UserPrefsKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	prefs := &model.Preferences{}
	if v, ok := vals["dark_mode"]; ok {
		prefs.DarkMode, _ = strconv.ParseBool(v)
	}
	return prefs, nil
}

// SetPreferences persists the user's UI settings.
func (s *StatsService) SetPreferences(ctx context.Context, userID string, prefs *model.Preferences) error {
	key := config.CacheKey.UserPrefsKey(userID)
	return s.rdb.HSet(ctx, key, "dark_mode", strconv.FormatBool(prefs.DarkMode)).Err()
}
