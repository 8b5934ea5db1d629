package leaderboard

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func secs(n int) int64 { return int64(time.Duration(n) * time.Second) }

func TestRank_FasterWinsTie(t *testing.T) {
	slow := Candidate{AttemptID: uuid.New(), UserName: "slow", TotalScore: 50, TotalTimeTaken: secs(600), CreatedAt: 1}
	fast := Candidate{AttemptID: uuid.New(), UserName: "fast", TotalScore: 50, TotalTimeTaken: secs(500), CreatedAt: 2}

	got := Rank([]Candidate{slow, fast}, 10)

	require.Len(t, got, 2)
	assert.Equal(t, "fast", got[0].UserName)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "slow", got[1].UserName)
	assert.Equal(t, 2, got[1].Rank)
}

func TestRank_ScoreBeatsTime(t *testing.T) {
	got := Rank([]Candidate{
		{AttemptID: uuid.New(), UserName: "quick", TotalScore: 40, TotalTimeTaken: secs(100)},
		{AttemptID: uuid.New(), UserName: "high", TotalScore: 60, TotalTimeTaken: secs(900)},
	}, 10)

	assert.Equal(t, "high", got[0].UserName)
}

func TestRank_FullTiesGetDistinctRanksByCreationOrder(t *testing.T) {
	first := Candidate{AttemptID: uuid.New(), UserName: "first", TotalScore: 10, TotalTimeTaken: secs(60), CreatedAt: 100}
	second := Candidate{AttemptID: uuid.New(), UserName: "second", TotalScore: 10, TotalTimeTaken: secs(60), CreatedAt: 200}

	got := Rank([]Candidate{second, first}, 10)

	assert.Equal(t, []int{1, 2}, []int{got[0].Rank, got[1].Rank})
	assert.Equal(t, "first", got[0].UserName)
}

func TestRank_TruncatesToTopN(t *testing.T) {
	var cands []Candidate
	for i := 0; i < 25; i++ {
		cands = append(cands, Candidate{AttemptID: uuid.New(), TotalScore: i, TotalTimeTaken: secs(i), CreatedAt: int64(i)})
	}

	assert.Len(t, Rank(cands, 10), 10)
	assert.Len(t, Rank(cands, 0), DefaultTopN)
	assert.Len(t, Rank(cands[:3], 10), 3)
	assert.Empty(t, Rank(nil, 10))
	assert.Equal(t, 24, Rank(cands, 1)[0].TotalScore)
}

func TestRank_TotalOrderAndDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var cands []Candidate
	for i := 0; i < 200; i++ {
		cands = append(cands, Candidate{
			AttemptID:      uuid.New(),
			TotalScore:     rng.Intn(5) * 10,
			TotalTimeTaken: secs(rng.Intn(4) * 100),
			CreatedAt:      int64(rng.Intn(3)),
		})
	}

	baseline := Rank(cands, len(cands))

	for i := 1; i < len(baseline); i++ {
		a, b := baseline[i-1], baseline[i]
		ok := a.TotalScore > b.TotalScore || (a.TotalScore == b.TotalScore && a.TotalTimeTaken <= b.TotalTimeTaken)
		assert.Truef(t, ok, "entry %d out of order: %+v before %+v", i, a, b)
		assert.Equal(t, i, a.Rank)
	}

	for run := 0; run < 5; run++ {
		shuffled := append([]Candidate(nil), cands...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, baseline, Rank(shuffled, len(cands)))
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	cands := []Candidate{
		{AttemptID: uuid.New(), TotalScore: 1},
		{AttemptID: uuid.New(), TotalScore: 2},
	}
	before := append([]Candidate(nil), cands...)
	Rank(cands, 10)
	assert.Equal(t, before, cands)
}

func TestFromAttempts_SkipsIncomplete(t *testing.T) {
	attempts := []model.Attempt{
		{ID: uuid.New(), UserID: 1, IsCompleted: true, TotalScore: 8, TotalTimeTaken: secs(30)},
		{ID: uuid.New(), UserID: 2, IsCompleted: false, TotalScore: 99},
	}

	got := FromAttempts(attempts, map[int]string{1: "Ana", 2: "Budi"})

	require.Len(t, got, 1)
	assert.Equal(t, "Ana", got[0].UserName)
	assert.Equal(t, 8, got[0].TotalScore)
}
