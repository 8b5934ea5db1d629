package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/apperror"
	"github.com/stemsi/tryout-backend/internal/leaderboard"
	"github.com/stemsi/tryout-backend/internal/model"
)

// LeaderboardService ranks completed attempts per test. Rankings are derived, never stored;
// the Redis copy is only a short-lived cache that the refresh worker rebuilds.
type LeaderboardService struct {
	attempts AttemptStore
	tests    *TestService
	cache    LeaderboardCache
	topN     int
	log      zerolog.Logger
}

// NewLeaderboardService creates a new LeaderboardService. topN <= 0 falls back to leaderboard.DefaultTopN.
func NewLeaderboardService(attempts AttemptStore, tests *TestService, cache LeaderboardCache, topN int, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		attempts: attempts,
		tests:    tests,
		cache:    cache,
		topN:     topN,
		log:      log.With().Str("component", "leaderboard_service").Logger(),
	}
}

// Get returns the leaderboard of a test.
func (s *LeaderboardService) Get(ctx context.Context, testID uuid.UUID) ([]model.LeaderboardEntry, error) {
	if _, err := s.tests.GetDefinition(ctx, testID); err != nil {
		return nil, err
	}

	if entries, err := s.cache.Get(ctx, testID); err == nil {
		return entries, nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Leaderboard cache read failed")
	}

	return s.compute(ctx, testID)
}

// Refresh recomputes and caches the leaderboards of the given tests.
func (s *LeaderboardService) Refresh(ctx context.Context, testIDs ...uuid.UUID) error {
	var errs []error
	for _, id := range testIDs {
		if _, err := s.compute(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *LeaderboardService) compute(ctx context.Context, testID uuid.UUID) ([]model.LeaderboardEntry, error) {
	candidates, err := s.attempts.ListCompletedByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	entries := leaderboard.Rank(candidates, s.topN)

	if err := s.cache.Set(ctx, testID, entries); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Leaderboard cache write failed")
	}
	return entries, nil
}
