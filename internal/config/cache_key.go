package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's active login session
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// AttemptAnswersKey returns the hash key buffering autosaved answers for one section
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string, section int) string {
	return fmt.Sprintf("attempt:%s:section:%d:answers", attemptID, section)
}

// TestDefinitionKey returns the cache key for a test definition
func (r *CacheKeyStruct) TestDefinitionKey(testID string) string {
	return fmt.Sprintf("test:%s:definition", testID)
}

// TestAnswerKey returns the cache key for a test's answer key
func (r *CacheKeyStruct) TestAnswerKey(testID string) string {
	return fmt.Sprintf("test:%s:key", testID)
}

// TestPaperKey returns the cache key for the student-facing paper of one section
func (r *CacheKeyStruct) TestPaperKey(testID string, section int) string {
	return fmt.Sprintf("test:%s:section:%d:paper", testID, section)
}

// LeaderboardKey returns the cache key for a test's ranked top-N list
func (r *CacheKeyStruct) LeaderboardKey(testID string) string {
	return fmt.Sprintf("test:%s:leaderboard", testID)
}

var CacheKey = NewCacheKeyStruct()
