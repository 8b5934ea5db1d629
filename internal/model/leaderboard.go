package model

import "github.com/google/uuid"

// LeaderboardEntry is derived on demand from completed attempts and never stored on its own.
type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	AttemptID      uuid.UUID `json:"attempt_id"`
	UserName       string    `json:"user_name"`
	TotalScore     int       `json:"total_score"`
	TotalTimeTaken int64     `json:"total_time_taken"`
}
