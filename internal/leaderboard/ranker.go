// Package leaderboard ranks completed attempts of a test.
package leaderboard

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
)

// DefaultTopN is the number of entries exposed when no size is configured.
const DefaultTopN = 10

// Candidate is a completed attempt reduced to what ranking needs.
type Candidate struct {
	AttemptID      uuid.UUID
	UserName       string
	TotalScore     int
	TotalTimeTaken int64
	CreatedAt      int64
}

// FromAttempts keeps only completed attempts and pairs them with display names.
func FromAttempts(attempts []model.Attempt, names map[int]string) []Candidate {
	out := make([]Candidate, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		if !a.IsCompleted {
			continue
		}
		out = append(out, Candidate{
			AttemptID:      a.ID,
			UserName:       names[a.UserID],
			TotalScore:     a.TotalScore,
			TotalTimeTaken: a.TotalTimeTaken,
			CreatedAt:      a.CreatedAt,
		})
	}
	return out
}

// compare orders by score descending, then time taken ascending, then creation order, then
// attempt ID, which makes the order total.
func compare(a, b Candidate) int {
	if c := cmp.Compare(b.TotalScore, a.TotalScore); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TotalTimeTaken, b.TotalTimeTaken); c != 0 {
		return c
	}
	if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.AttemptID.String(), b.AttemptID.String())
}

// Rank sorts candidates and assigns sequential 1-based ranks, returning at most topN entries.
// Equal (score, time) pairs still receive distinct ranks. The input slice is not modified.
func Rank(candidates []Candidate, topN int) []model.LeaderboardEntry {
	if topN <= 0 {
		topN = DefaultTopN
	}

	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, compare)

	n := min(len(sorted), topN)
	entries := make([]model.LeaderboardEntry, 0, n)
	for i := 0; i < n; i++ {
		c := sorted[i]
		entries = append(entries, model.LeaderboardEntry{
			Rank:           i + 1,
			AttemptID:      c.AttemptID,
			UserName:       c.UserName,
			TotalScore:     c.TotalScore,
			TotalTimeTaken: c.TotalTimeTaken,
		})
	}
	return entries
}
