package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardService_RanksCompletedAttempts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindChapterWise, 2)
	lb := NewLeaderboardService(h.attempts, h.testSvc, h.boards, 10, zerolog.Nop())

	run := func(userID int, took time.Duration, picks ...int) uuid.UUID {
		actor := Actor{UserID: userID, Role: model.RoleStudent}
		h.attempts.names[userID] = "user"
		a, err := h.svc.Start(ctx, actor, def.ID)
		require.NoError(t, err)
		h.clock.Advance(took)
		_, err = h.svc.SubmitSection(ctx, actor, a.ID, 1, answersFor(def, 1, picks...))
		require.NoError(t, err)
		return a.ID
	}

	slow := run(10, 20*time.Minute, 0, 0)
	fast := run(11, 10*time.Minute, 0, 0)
	low := run(12, 5*time.Minute, 0, 1)

	// an attempt still in progress is not ranked
	_, err := h.svc.Start(ctx, Actor{UserID: 13, Role: model.RoleStudent}, def.ID)
	require.NoError(t, err)

	entries, err := lb.Get(ctx, def.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []uuid.UUID{fast, slow, low}, []uuid.UUID{entries[0].AttemptID, entries[1].AttemptID, entries[2].AttemptID})
	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})

	cached, err := h.boards.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, entries, cached)
}

func TestLeaderboardService_UnknownTest(t *testing.T) {
	h := newHarness()
	lb := NewLeaderboardService(h.attempts, h.testSvc, h.boards, 10, zerolog.Nop())

	_, err := lb.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestLeaderboardService_RefreshOverwritesCache(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindChapterWise, 1)
	lb := NewLeaderboardService(h.attempts, h.testSvc, h.boards, 10, zerolog.Nop())

	require.NoError(t, h.boards.Set(ctx, def.ID, []model.LeaderboardEntry{{Rank: 1, UserName: "stale"}}))
	require.NoError(t, lb.Refresh(ctx, def.ID))

	entries, err := lb.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
