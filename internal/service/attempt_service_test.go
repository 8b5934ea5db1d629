package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/apperror"
	"github.com/stemsi/tryout-backend/internal/attempt"
	"github.com/stemsi/tryout-backend/internal/event"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	student = Actor{UserID: 7, Role: model.RoleStudent}
	other   = Actor{UserID: 8, Role: model.RoleStudent}
	admin   = Actor{UserID: 1, Role: model.RoleAdmin}
)

func answersFor(def *model.TestDefinition, n int, picks ...int) []model.Answer {
	sec, _ := def.Section(n)
	out := make([]model.Answer, 0, len(picks))
	for i, p := range picks {
		out = append(out, model.Answer{QuestionID: sec.QuestionIDs[i], SelectedIndex: p})
	}
	return out
}

func TestAttemptService_FullSyllabusFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindFullSyllabus, 2, 3)

	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)
	assert.Equal(t, "Section1Active", a.State().String())

	h.clock.Advance(10 * time.Minute)
	res, err := h.svc.SubmitSection(ctx, student, a.ID, 1, answersFor(def, 1, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Score)
	assert.Equal(t, 1, res.CorrectAnswers)
	assert.False(t, res.Completed)
	assert.Equal(t, model.TriggerManual, res.Trigger)

	h.clock.Advance(5 * time.Minute)
	a, err = h.svc.StartSection(ctx, student, a.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "Section2Active", a.State().String())

	h.clock.Advance(20 * time.Minute)
	res, err = h.svc.SubmitSection(ctx, student, a.ID, 2, answersFor(def, 2, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 12, res.Score)
	assert.True(t, res.Completed)
	assert.Equal(t, 16, res.TotalScore)

	stored, err := h.svc.GetAttempt(ctx, student, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
	assert.Equal(t, int64(30*time.Minute), stored.TotalTimeTaken)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, t0+int64(35*time.Minute), *stored.CompletedAt)

	assert.Equal(t, []string{
		event.TypeAttemptStarted,
		event.TypeSectionSubmitted,
		event.TypeSectionSubmitted,
		event.TypeAttemptCompleted,
	}, h.events.types())
	assert.Equal(t, []uuid.UUID{def.ID}, h.boards.refreshes)
}

func TestAttemptService_ChapterWiseCompletesOnFirstSubmit(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindChapterWise, 2)

	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	res, err := h.svc.SubmitSection(ctx, student, a.ID, 1, answersFor(def, 1, 0))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 4, res.TotalScore)

	_, err = h.svc.StartSection(ctx, student, a.ID, 2)
	assert.ErrorIs(t, err, attempt.ErrAttemptCompleted)
}

func TestAttemptService_StartRejectsInactiveTest(t *testing.T) {
	h := newHarness()
	def := h.seedTest(model.TestKindChapterWise, 1)
	def.IsActive = false

	_, err := h.svc.Start(context.Background(), student, def.ID)
	assert.ErrorIs(t, err, attempt.ErrTestInactive)
	assert.Empty(t, h.attempts.byID)
}

func TestAttemptService_StartRetriesTransientFailure(t *testing.T) {
	h := newHarness()
	def := h.seedTest(model.TestKindChapterWise, 1)
	h.attempts.failNext = []error{apperror.Unavailable(errors.New("connection reset"))}

	a, err := h.svc.Start(context.Background(), student, def.ID)
	require.NoError(t, err)
	assert.Contains(t, h.attempts.byID, a.ID)
}

func TestAttemptService_GuardViolations(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindFullSyllabus, 1, 1)
	sec1, _ := def.Section(1)
	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "section 2 before section 1 is submitted",
			run: func() error {
				_, err := h.svc.StartSection(ctx, student, a.ID, 2)
				return err
			},
			want: attempt.ErrSectionOutOfOrder,
		},
		{
			name: "section 1 cannot be restarted",
			run: func() error {
				_, err := h.svc.StartSection(ctx, student, a.ID, 1)
				return err
			},
			want: attempt.ErrInvalidSection,
		},
		{
			name: "submit a section that was never started",
			run: func() error {
				_, err := h.svc.SubmitSection(ctx, student, a.ID, 2, nil)
				return err
			},
			want: attempt.ErrSectionNotStarted,
		},
		{
			name: "submit an unknown section",
			run: func() error {
				_, err := h.svc.SubmitSection(ctx, student, a.ID, 3, nil)
				return err
			},
			want: attempt.ErrInvalidSection,
		},
		{
			name: "other student is told the attempt does not exist",
			run: func() error {
				_, err := h.svc.SubmitSection(ctx, other, a.ID, 1, nil)
				return err
			},
			want: ErrAttemptNotFound,
		},
		{
			name: "admin cannot submit on behalf of a student",
			run: func() error {
				_, err := h.svc.SubmitSection(ctx, admin, a.ID, 1, answersFor(def, 1, 0))
				return err
			},
			want: ErrAttemptNotFound,
		},
		{
			name: "admin cannot autosave on behalf of a student",
			run: func() error {
				_, err := h.svc.Autosave(ctx, admin, a.ID, sec1.QuestionIDs[0], 0)
				return err
			},
			want: ErrAttemptNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}

	answers, err := h.svc.BufferedAnswers(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, answers)

	_, err = h.svc.GetAttempt(ctx, admin, a.ID)
	assert.NoError(t, err)

	stored, err := h.attempts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Section1Active", stored.State().String())
}

func TestAttemptService_SecondStartSectionKeepsTimer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindFullSyllabus, 1, 1)
	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)
	_, err = h.svc.SubmitSection(ctx, student, a.ID, 1, nil)
	require.NoError(t, err)

	first, err := h.svc.StartSection(ctx, student, a.ID, 2)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	_, err = h.svc.StartSection(ctx, student, a.ID, 2)
	assert.ErrorIs(t, err, attempt.ErrSectionAlreadyStarted)

	stored, err := h.attempts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.Section(2).StartedAt, *stored.Section(2).StartedAt)
}

func TestAttemptService_ConcurrentSubmitsSucceedOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindChapterWise, 2)
	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(pick int) {
			defer wg.Done()
			_, err := h.svc.SubmitSection(ctx, student, a.ID, 1, answersFor(def, 1, pick%2))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, attempt.ErrSectionAlreadySubmitted), errors.Is(err, attempt.ErrAttemptCompleted):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, rejected)
	assert.Len(t, h.boards.refreshes, 1)
}

func TestAttemptService_AutoSubmitUsesBufferedAnswers(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindChapterWise, 3)
	sec, _ := def.Section(1)

	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)

	_, err = h.svc.Autosave(ctx, student, a.ID, sec.QuestionIDs[0], 0)
	require.NoError(t, err)
	_, err = h.svc.Autosave(ctx, student, a.ID, sec.QuestionIDs[1], 3)
	require.NoError(t, err)

	_, err = h.svc.AutoSubmit(ctx, a.ID, 1)
	assert.ErrorIs(t, err, ErrSectionNotExpired)

	h.clock.Advance(61 * time.Minute)
	res, err := h.svc.AutoSubmit(ctx, a.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, model.TriggerExpiry, res.Trigger)
	assert.Equal(t, 4, res.Score)
	assert.Equal(t, 2, res.Stats.Attempted)
	assert.True(t, res.Completed)

	again, err := h.svc.AutoSubmit(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestAttemptService_ExpiryAndManualScoreAlike(t *testing.T) {
	ctx := context.Background()
	run := func(expire bool) *model.Attempt {
		h := newHarness()
		def := h.seedTest(model.TestKindChapterWise, 3)
		sec, _ := def.Section(1)
		a, err := h.svc.Start(ctx, student, def.ID)
		require.NoError(t, err)

		picks := []int{0, 1, 0}
		if expire {
			for i, p := range picks {
				_, err := h.svc.Autosave(ctx, student, a.ID, sec.QuestionIDs[i], p)
				require.NoError(t, err)
			}
			h.clock.Advance(60 * time.Minute)
			_, err = h.svc.AutoSubmit(ctx, a.ID, 1)
		} else {
			h.clock.Advance(30 * time.Minute)
			_, err = h.svc.SubmitSection(ctx, student, a.ID, 1, answersFor(def, 1, picks...))
		}
		require.NoError(t, err)
		stored, err := h.attempts.GetByID(ctx, a.ID)
		require.NoError(t, err)
		return stored
	}

	manual, expired := run(false), run(true)
	assert.Equal(t, manual.TotalScore, expired.TotalScore)
	assert.Equal(t, *manual.Section(1).Stats, *expired.Section(1).Stats)
	assert.Equal(t, int64(30*time.Minute), manual.TotalTimeTaken)
	assert.Equal(t, int64(60*time.Minute), expired.TotalTimeTaken)
}

func TestAttemptService_LateManualSubmitUsesAutosavedAnswers(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindChapterWise, 3)
	sec, _ := def.Section(1)
	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)

	h.clock.Advance(20 * time.Minute)
	_, err = h.svc.Autosave(ctx, student, a.ID, sec.QuestionIDs[0], 0)
	require.NoError(t, err)

	h.clock.Advance(3 * time.Hour)
	res, err := h.svc.SubmitSection(ctx, student, a.ID, 1, answersFor(def, 1, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, model.TriggerExpiry, res.Trigger)
	assert.Equal(t, 4, res.Score)
	assert.Equal(t, 1, res.Stats.Attempted)
	assert.True(t, res.Completed)

	stored, err := h.attempts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Answer{{QuestionID: sec.QuestionIDs[0], SelectedIndex: 0}}, stored.Section(1).Answers)

	_, err = h.svc.SubmitSection(ctx, student, a.ID, 1, answersFor(def, 1, 0, 0, 0))
	assert.ErrorIs(t, err, attempt.ErrAttemptCompleted)
}

func TestAttemptService_ExpiredSubmissionStampedAtDeadline(t *testing.T) {
	tests := []struct {
		name   string
		submit func(h *harness, id uuid.UUID) error
	}{
		{
			name: "auto-submit",
			submit: func(h *harness, id uuid.UUID) error {
				_, err := h.svc.AutoSubmit(context.Background(), id, 1)
				return err
			},
		},
		{
			name: "resume",
			submit: func(h *harness, id uuid.UUID) error {
				_, err := h.svc.GetState(context.Background(), student, id)
				return err
			},
		},
		{
			name: "sweep",
			submit: func(h *harness, _ uuid.UUID) error {
				_, err := h.svc.SweepExpired(context.Background(), 10)
				return err
			},
		},
		{
			name: "late manual submit",
			submit: func(h *harness, id uuid.UUID) error {
				_, err := h.svc.SubmitSection(context.Background(), student, id, 1, nil)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			ctx := context.Background()
			def := h.seedTest(model.TestKindChapterWise, 1)
			a, err := h.svc.Start(ctx, student, def.ID)
			require.NoError(t, err)

			h.clock.Advance(60*time.Minute + 3*time.Hour)
			require.NoError(t, tt.submit(h, a.ID))

			stored, err := h.attempts.GetByID(ctx, a.ID)
			require.NoError(t, err)
			require.True(t, stored.IsCompleted)
			assert.Equal(t, int64(60*time.Minute), stored.TotalTimeTaken)
			assert.Equal(t, t0+int64(60*time.Minute), *stored.Section(1).SubmittedAt)
			assert.Equal(t, t0+int64(60*time.Minute), *stored.CompletedAt)
		})
	}
}

func TestAttemptService_AutoSubmitBeforeDeadline(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindChapterWise, 1)
	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)

	h.clock.Advance(59 * time.Minute)
	_, err = h.svc.AutoSubmit(ctx, a.ID, 1)
	assert.ErrorIs(t, err, ErrSectionNotExpired)
}

func TestAttemptService_Autosave(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects questions outside the running section", func(t *testing.T) {
		h := newHarness()
		def := h.seedTest(model.TestKindFullSyllabus, 1, 1)
		sec2, _ := def.Section(2)
		a, err := h.svc.Start(ctx, student, def.ID)
		require.NoError(t, err)

		_, err = h.svc.Autosave(ctx, student, a.ID, sec2.QuestionIDs[0], 0)
		assert.ErrorIs(t, err, ErrQuestionNotInTest)
	})

	t.Run("rejects saves after the deadline", func(t *testing.T) {
		h := newHarness()
		def := h.seedTest(model.TestKindChapterWise, 1)
		sec, _ := def.Section(1)
		a, err := h.svc.Start(ctx, student, def.ID)
		require.NoError(t, err)

		h.clock.Advance(2 * time.Hour)
		_, err = h.svc.Autosave(ctx, student, a.ID, sec.QuestionIDs[0], 0)
		assert.ErrorIs(t, err, ErrSectionTimeOver)
	})

	t.Run("falls back to drafts when the buffer is down", func(t *testing.T) {
		h := newHarness()
		def := h.seedTest(model.TestKindChapterWise, 1)
		sec, _ := def.Section(1)
		a, err := h.svc.Start(ctx, student, def.ID)
		require.NoError(t, err)

		h.buffer.fail = apperror.Unavailable(errors.New("redis down"))
		n, err := h.svc.Autosave(ctx, student, a.ID, sec.QuestionIDs[0], 2)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		answers, err := h.svc.BufferedAnswers(ctx, a.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, []model.Answer{{QuestionID: sec.QuestionIDs[0], SelectedIndex: 2}}, answers)
	})

	t.Run("buffered selection wins over an older draft", func(t *testing.T) {
		h := newHarness()
		def := h.seedTest(model.TestKindChapterWise, 1)
		sec, _ := def.Section(1)
		a, err := h.svc.Start(ctx, student, def.ID)
		require.NoError(t, err)

		require.NoError(t, h.attempts.SaveDrafts(ctx, []model.DraftAnswer{
			{AttemptID: a.ID, SectionNumber: 1, QuestionID: sec.QuestionIDs[0], SelectedIndex: 1},
		}))
		_, err = h.svc.Autosave(ctx, student, a.ID, sec.QuestionIDs[0], 3)
		require.NoError(t, err)

		answers, err := h.svc.BufferedAnswers(ctx, a.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, []model.Answer{{QuestionID: sec.QuestionIDs[0], SelectedIndex: 3}}, answers)
	})
}

func TestAttemptService_GetStateAutoSubmitsExpiredSection(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindFullSyllabus, 1, 1)
	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)

	h.clock.Advance(30 * time.Minute)
	view, err := h.svc.GetState(ctx, student, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Section1Active", view.Label)
	assert.True(t, view.Timer.Running)
	assert.Equal(t, int64(30*time.Minute/time.Millisecond), view.Timer.RemainingMs)
	assert.Nil(t, view.AutoSubmitted)

	h.clock.Advance(45 * time.Minute)
	view, err = h.svc.GetState(ctx, student, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Section1Submitted", view.Label)
	assert.False(t, view.Timer.Running)
	require.NotNil(t, view.AutoSubmitted)
	assert.Equal(t, model.TriggerExpiry, view.AutoSubmitted.Trigger)
}

func TestAttemptService_GetResultHidesUnsubmittedSections(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindFullSyllabus, 2, 2)
	a, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)
	_, err = h.svc.SubmitSection(ctx, student, a.ID, 1, answersFor(def, 1, 0, 1))
	require.NoError(t, err)

	res, err := h.svc.GetResult(ctx, student, a.ID)
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, 1, res.Sections[0].Number)
	assert.Equal(t, 4, res.TotalScore)
	assert.Equal(t, 16, res.MaxScore)
	assert.InDelta(t, 25.0, res.Percentage, 0.001)
	assert.Equal(t, "CORRECT", res.Sections[0].Questions[0].Outcome)
	assert.Equal(t, "INCORRECT", res.Sections[0].Questions[1].Outcome)

	_, err = h.svc.GetResult(ctx, other, a.ID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = h.svc.GetResult(ctx, admin, a.ID)
	assert.NoError(t, err)
}

func TestAttemptService_SweepExpired(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindChapterWise, 1)

	for i := 0; i < 3; i++ {
		_, err := h.svc.Start(ctx, Actor{UserID: 100 + i, Role: model.RoleStudent}, def.ID)
		require.NoError(t, err)
	}

	n, err := h.svc.SweepExpired(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(time.Hour)
	n, err = h.svc.SweepExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = h.svc.SweepExpired(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAttemptService_ListMine(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := h.seedTest(model.TestKindChapterWise, 1)

	_, err := h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)
	_, err = h.svc.Start(ctx, student, def.ID)
	require.NoError(t, err)
	_, err = h.svc.Start(ctx, other, def.ID)
	require.NoError(t, err)

	mine, err := h.svc.ListMine(ctx, student, nil)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
