package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session (JTI).
func (r *CacheKeyStruct) UserSessionKey(userID string) string {
	return fmt.Sprintf("login:%s", userID)
}

// ResultStatusKey returns the cache key for a user's last result save status
// ("saving", "saved" or "save_failed").
func (r *CacheKeyStruct) ResultStatusKey(userID string) string {
	return fmt.Sprintf("user:%s:result_status", userID)
}

// UserPrefsKey returns the cache key for a user's display preferences hash.
func (r *CacheKeyStruct) UserPrefsKey(userID string) string {
	return fmt.Sprintf("user:%s:prefs", userID)
}

// LeaderboardKey returns the cache key for the precomputed global leaderboard.
func (r *CacheKeyStruct) LeaderboardKey() string {
	return "leaderboard:global"
}

var CacheKey = NewCacheKeyStruct()
