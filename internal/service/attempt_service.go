package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/apperror"
	"github.com/stemsi/tryout-backend/internal/attempt"
	"github.com/stemsi/tryout-backend/internal/event"
	"github.com/stemsi/tryout-backend/internal/metrics"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/repository"
	"github.com/stemsi/tryout-backend/internal/retry"
	"github.com/stemsi/tryout-backend/internal/scoring"
	"github.com/stemsi/tryout-backend/internal/timer"
)

// Attempt errors raised above the state machine.
var (
	ErrAttemptNotFound   = repository.ErrAttemptNotFound
	ErrNoActiveSection   = apperror.Guard("SECTION_NOT_STARTED", "no section is running")
	ErrSectionNotExpired = apperror.Guard("SECTION_NOT_EXPIRED", "section still has time left")
	ErrSectionTimeOver   = apperror.Guard("SECTION_TIME_OVER", "section time is over")
	ErrQuestionNotInTest = apperror.Invalid("INVALID_PAYLOAD", "question is not part of the running section")

	errDeadlinePassed = errors.New("section deadline passed")
)

// AttemptDeps groups the collaborators of an AttemptService.
type AttemptDeps struct {
	Attempts    AttemptStore
	Tests       *TestService
	Buffer      AnswerBuffer
	Leaderboard LeaderboardCache
	Events      event.Publisher
	Metrics     *metrics.Metrics
	Clock       timer.Clock
	Retry       retry.Policy
	Log         zerolog.Logger
}

// AttemptService drives attempts through the state machine against the store. The store's row
// lock serializes mutations of one attempt; timestamps always come from the server clock.
type AttemptService struct {
	attempts AttemptStore
	tests    *TestService
	buffer   AnswerBuffer
	boards   LeaderboardCache
	events   event.Publisher
	metrics  *metrics.Metrics
	clock    timer.Clock
	retry    retry.Policy
	newID    func() uuid.UUID
	log      zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(d AttemptDeps) *AttemptService {
	if d.Clock == nil {
		d.Clock = timer.SystemClock
	}
	if d.Events == nil {
		d.Events = event.Noop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &AttemptService{
		attempts: d.Attempts,
		tests:    d.Tests,
		buffer:   d.Buffer,
		boards:   d.Leaderboard,
		events:   d.Events,
		metrics:  d.Metrics,
		clock:    d.Clock,
		retry:    d.Retry,
		newID:    uuid.New,
		log:      d.Log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start creates an attempt for actor and starts its first section.
func (s *AttemptService) Start(ctx context.Context, actor Actor, testID uuid.UUID) (*model.Attempt, error) {
	def, err := s.tests.GetDefinition(ctx, testID)
	if err != nil {
		return nil, err
	}

	a, err := attempt.New(def, s.newID(), actor.UserID, s.clock())
	if err != nil {
		s.guardFailed(err, uuid.Nil, testID, actor.UserID, 1)
		return nil, err
	}

	if err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.attempts.Create(ctx, a)
	}); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.metrics.AttemptsStarted.Inc()
	s.logFor(a).Info().Str("state", a.State().String()).Msg("Attempt started")
	s.publish(ctx, event.TypeAttemptStarted, event.AttemptStarted{
		AttemptID: a.ID, TestID: a.TestID, UserID: a.UserID, CreatedAt: a.CreatedAt,
	})
	return a, nil
}

// StartSection starts section n of an owned attempt. Only later sections can be started this
// way, once, after the previous one was submitted.
func (s *AttemptService) StartSection(ctx context.Context, actor Actor, attemptID uuid.UUID, n int) (*model.Attempt, error) {
	var updated *model.Attempt
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		a, err := s.attempts.Update(ctx, attemptID, func(a *model.Attempt) error {
			if !owns(actor, a) {
				return ErrAttemptNotFound
			}
			return attempt.StartSection(a, n, s.clock())
		})
		updated = a
		return err
	})
	if err != nil {
		s.guardFailed(err, attemptID, uuid.Nil, actor.UserID, n)
		return nil, err
	}

	s.logFor(updated).Info().Int("section", n).Str("state", updated.State().String()).Msg("Section started")
	return updated, nil
}

// SubmitSection grades and stores section n of the actor's own attempt with the supplied
// answers. Once the section deadline has passed the supplied answers are ignored and the section
// is auto-submitted with what was autosaved in time.
func (s *AttemptService) SubmitSection(
	ctx context.Context,
	actor Actor,
	attemptID uuid.UUID,
	n int,
	answers []model.Answer,
) (*model.SubmitResult, error) {
	a, err := s.mine(ctx, actor, attemptID)
	if err != nil {
		return nil, err
	}
	res, err := s.submit(ctx, a, n, answers, model.TriggerManual)
	if errors.Is(err, errDeadlinePassed) {
		s.logFor(a).Info().Int("section", n).Msg("Late submission, using autosaved answers")
		return s.submitExpired(ctx, a, n)
	}
	return res, err
}

// AutoSubmit submits an expired section with whatever was autosaved. It goes through the same
// path as a manual submission. A section that is already submitted is a no-op (nil result).
func (s *AttemptService) AutoSubmit(ctx context.Context, attemptID uuid.UUID, n int) (*model.SubmitResult, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	res, err := s.submitExpired(ctx, a, n)
	if alreadySubmitted(err) {
		s.log.Debug().Str("attempt_id", attemptID.String()).Int("section", n).Msg("Expired section already submitted")
		return nil, nil
	}
	return res, err
}

func (s *AttemptService) submitExpired(ctx context.Context, a *model.Attempt, n int) (*model.SubmitResult, error) {
	answers, err := s.BufferedAnswers(ctx, a.ID, n)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, a, n, answers, model.TriggerExpiry)
}

func (s *AttemptService) submit(
	ctx context.Context,
	a *model.Attempt,
	n int,
	answers []model.Answer,
	trigger model.SubmitTrigger,
) (*model.SubmitResult, error) {
	def, err := s.tests.GetDefinition(ctx, a.TestID)
	if err != nil {
		return nil, err
	}
	key, err := s.tests.AnswerKey(ctx, def)
	if err != nil {
		return nil, err
	}

	var (
		updated *model.Attempt
		graded  scoring.SectionScore
	)
	err = retry.Do(ctx, s.retry, func(ctx context.Context) error {
		u, err := s.attempts.Update(ctx, a.ID, func(cur *model.Attempt) error {
			now := s.clock()
			if err := attempt.CheckSubmitSection(cur, n); err != nil {
				return err
			}
			sec, _ := def.Section(n)
			expired := timer.Expired(cur.Section(n).StartedAt, sec.Duration(), now)
			switch {
			case trigger == model.TriggerExpiry && !expired:
				return ErrSectionNotExpired
			case trigger == model.TriggerManual && expired:
				return errDeadlinePassed
			}
			res, err := attempt.SubmitSection(cur, def, key, n, answers, now)
			graded = res
			return err
		})
		updated = u
		return err
	})
	if err != nil {
		if errors.Is(err, errDeadlinePassed) {
			return nil, err
		}
		if trigger == model.TriggerManual || !alreadySubmitted(err) {
			s.guardFailed(err, a.ID, a.TestID, a.UserID, n)
		}
		return nil, err
	}

	if err := s.buffer.Clear(ctx, updated.ID, n); err != nil {
		s.logFor(updated).Warn().Err(err).Int("section", n).Msg("Clear answer buffer failed")
	}

	result := &model.SubmitResult{
		AttemptID:      updated.ID,
		SectionNumber:  n,
		Score:          graded.Score,
		CorrectAnswers: graded.Stats.Correct,
		Stats:          graded.Stats,
		Completed:      updated.IsCompleted,
		TotalScore:     updated.TotalScore,
		Trigger:        trigger,
	}

	s.metrics.SectionsSubmitted.WithLabelValues(string(trigger)).Inc()
	s.logFor(updated).Info().
		Int("section", n).
		Int("score", graded.Score).
		Str("trigger", string(trigger)).
		Str("state", updated.State().String()).
		Msg("Section submitted")
	s.publish(ctx, event.TypeSectionSubmitted, event.SectionSubmitted{
		AttemptID: updated.ID, TestID: updated.TestID, UserID: updated.UserID,
		Section: n, Score: graded.Score, Stats: graded.Stats, Trigger: trigger,
	})

	if updated.IsCompleted {
		s.completed(ctx, updated)
	}
	return result, nil
}

func (s *AttemptService) completed(ctx context.Context, a *model.Attempt) {
	s.metrics.AttemptsCompleted.Inc()
	s.logFor(a).Info().
		Int("total_score", a.TotalScore).
		Int64("total_time_taken", a.TotalTimeTaken).
		Msg("Attempt completed")

	var completedAt int64
	if a.CompletedAt != nil {
		completedAt = *a.CompletedAt
	}
	s.publish(ctx, event.TypeAttemptCompleted, event.AttemptCompleted{
		AttemptID: a.ID, TestID: a.TestID, UserID: a.UserID,
		TotalScore: a.TotalScore, TotalTimeTaken: a.TotalTimeTaken, CompletedAt: completedAt,
	})

	if s.boards != nil {
		if err := s.boards.EnqueueRefresh(ctx, a.TestID); err != nil {
			s.logFor(a).Warn().Err(err).Msg("Leaderboard refresh enqueue failed")
		}
	}
}

// GetAttempt returns an attempt to its owner (or an admin). Anyone else gets not-found.
func (s *AttemptService) GetAttempt(ctx context.Context, actor Actor, attemptID uuid.UUID) (*model.Attempt, error) {
	return s.owned(ctx, actor, attemptID)
}

// GetState returns the resumable view of an attempt. If the running section has already
// expired it is auto-submitted first, so a reconnecting client always sees the truth.
func (s *AttemptService) GetState(ctx context.Context, actor Actor, attemptID uuid.UUID) (*model.AttemptStateView, error) {
	a, err := s.owned(ctx, actor, attemptID)
	if err != nil {
		return nil, err
	}
	def, err := s.tests.GetDefinition(ctx, a.TestID)
	if err != nil {
		return nil, err
	}

	var auto *model.SubmitResult
	if sec := a.ActiveSection(); sec != nil {
		spec, _ := def.Section(sec.Number)
		if timer.Expired(sec.StartedAt, spec.Duration(), s.clock()) {
			if auto, err = s.AutoSubmit(ctx, a.ID, sec.Number); err != nil {
				return nil, err
			}
			if a, err = s.attempts.GetByID(ctx, a.ID); err != nil {
				return nil, err
			}
		}
	}

	now := s.clock()
	view := &model.AttemptStateView{
		AttemptID:     a.ID,
		TestID:        a.TestID,
		State:         a.State(),
		Label:         a.State().String(),
		Answers:       []model.Answer{},
		IsCompleted:   a.IsCompleted,
		ServerTime:    now,
		AutoSubmitted: auto,
	}
	if sec := a.ActiveSection(); sec != nil {
		spec, _ := def.Section(sec.Number)
		r := timer.Read(sec.StartedAt, spec.Duration(), now)
		view.ActiveSection = sec.Number
		view.Timer = model.SectionTimer{Running: r.Running, RemainingMs: r.RemainingMs, Deadline: r.Deadline}
		if answers, err := s.BufferedAnswers(ctx, a.ID, sec.Number); err == nil {
			view.Answers = answers
		}
	}
	return view, nil
}

// SectionStatus is the timer probe used by live connections: it re-reads the stored
// timestamps of section n on every call.
func (s *AttemptService) SectionStatus(ctx context.Context, attemptID uuid.UUID, n int) (timer.Status, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return timer.Status{}, err
	}
	def, err := s.tests.GetDefinition(ctx, a.TestID)
	if err != nil {
		return timer.Status{}, err
	}
	sec := a.Section(n)
	spec, ok := def.Section(n)
	if sec == nil || !ok {
		return timer.Status{}, attempt.ErrInvalidSection
	}
	return timer.Status{StartedAt: sec.StartedAt, Submitted: sec.Submitted(), Duration: spec.Duration()}, nil
}

// GetResult grades the submitted sections of an owned attempt for review.
func (s *AttemptService) GetResult(ctx context.Context, actor Actor, attemptID uuid.UUID) (*model.AttemptResult, error) {
	a, err := s.owned(ctx, actor, attemptID)
	if err != nil {
		return nil, err
	}
	def, err := s.tests.GetDefinition(ctx, a.TestID)
	if err != nil {
		return nil, err
	}
	questions, err := s.tests.Questions(ctx, def)
	if err != nil {
		return nil, err
	}
	return BuildResult(a, def, questions), nil
}

// BuildResult re-scores the stored answers of every submitted section. Correct indices and
// explanations of unsubmitted sections are never included.
func BuildResult(a *model.Attempt, def *model.TestDefinition, questions map[uuid.UUID]model.Question) *model.AttemptResult {
	key := make(scoring.Key, len(questions))
	for id, q := range questions {
		key[id] = q.CorrectIndex
	}

	res := &model.AttemptResult{
		AttemptID:      a.ID,
		TestID:         a.TestID,
		TestTitle:      def.Title,
		IsCompleted:    a.IsCompleted,
		CompletedAt:    a.CompletedAt,
		TotalTimeTaken: a.TotalTimeTaken,
		MaxScore:       def.MaxScore(),
		Sections:       []model.SectionResult{},
	}

	var graded []scoring.SectionScore
	for i := range a.Sections {
		sec := &a.Sections[i]
		spec, ok := def.Section(sec.Number)
		if !ok || !sec.Submitted() {
			continue
		}
		score := scoring.ScoreTestSection(def, sec.Number, key, sec.Answers)
		graded = append(graded, score)

		sr := model.SectionResult{
			Number:    sec.Number,
			Name:      spec.Name,
			Score:     score.Score,
			MaxScore:  score.MaxScore,
			Stats:     score.Stats,
			TimeTaken: sec.Elapsed(),
			Questions: make([]model.QuestionReview, 0, len(score.Questions)),
		}
		for j, qr := range score.Questions {
			q := questions[qr.QuestionID]
			sr.Questions = append(sr.Questions, model.QuestionReview{
				QuestionID:    qr.QuestionID,
				OrderNum:      j + 1,
				Text:          q.Text,
				ImageURL:      q.ImageURL,
				Options:       q.Options,
				SelectedIndex: qr.SelectedIndex,
				CorrectIndex:  q.CorrectIndex,
				Outcome:       string(qr.Outcome),
				Marks:         qr.Marks,
				Explanation:   q.Explanation,
			})
		}
		res.Sections = append(res.Sections, sr)
	}

	summary := scoring.Summarize(graded...)
	res.TotalScore = summary.TotalScore
	res.Stats = summary.Stats
	res.Percentage = scoring.Percentage(summary.TotalScore, res.MaxScore)
	return res
}

// ListMine lists the actor's attempts, optionally for one test.
func (s *AttemptService) ListMine(ctx context.Context, actor Actor, testID *uuid.UUID) ([]model.AttemptSummary, error) {
	return s.attempts.ListByUser(ctx, actor.UserID, testID)
}

// Autosave buffers one selection for the running section of the actor's own attempt. It returns
// the section number.
func (s *AttemptService) Autosave(ctx context.Context, actor Actor, attemptID, questionID uuid.UUID, idx int) (int, error) {
	a, err := s.mine(ctx, actor, attemptID)
	if err != nil {
		return 0, err
	}
	if a.IsCompleted {
		return 0, attempt.ErrAttemptCompleted
	}
	sec := a.ActiveSection()
	if sec == nil {
		return 0, ErrNoActiveSection
	}

	def, err := s.tests.GetDefinition(ctx, a.TestID)
	if err != nil {
		return 0, err
	}
	spec, _ := def.Section(sec.Number)
	if timer.Expired(sec.StartedAt, spec.Duration(), s.clock()) {
		return 0, ErrSectionTimeOver
	}
	if !contains(spec.QuestionIDs, questionID) {
		return 0, ErrQuestionNotInTest
	}

	draft := model.DraftAnswer{AttemptID: a.ID, SectionNumber: sec.Number, QuestionID: questionID, SelectedIndex: idx}
	if err := s.buffer.Save(ctx, draft); err != nil {
		if !apperror.IsRetryable(err) {
			return 0, err
		}
		s.logFor(a).Warn().Err(err).Msg("Answer buffer unavailable, writing draft directly")
		if err := s.attempts.SaveDrafts(ctx, []model.DraftAnswer{draft}); err != nil {
			return 0, err
		}
	}
	s.metrics.AutosavedAnswers.Inc()
	return sec.Number, nil
}

// BufferedAnswers merges persisted drafts with the Redis buffer; buffered selections win.
func (s *AttemptService) BufferedAnswers(ctx context.Context, attemptID uuid.UUID, n int) ([]model.Answer, error) {
	drafts, err := s.attempts.DraftAnswers(ctx, attemptID, n)
	if err != nil {
		return nil, err
	}
	buffered, err := s.buffer.Load(ctx, attemptID, n)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Answer buffer unavailable, using drafts")
		return attempt.NormalizeAnswers(drafts), nil
	}
	return attempt.NormalizeAnswers(append(drafts, buffered...)), nil
}

// SweepExpired auto-submits up to limit sections whose time ran out. Returns how many were
// submitted by this sweep.
func (s *AttemptService) SweepExpired(ctx context.Context, limit int) (int, error) {
	open, err := s.attempts.ListExpiredSections(ctx, s.clock(), limit)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, o := range open {
		res, err := s.AutoSubmit(ctx, o.AttemptID, o.SectionNumber)
		if err != nil {
			s.log.Error().Err(err).
				Str("attempt_id", o.AttemptID.String()).
				Int("section", o.SectionNumber).
				Msg("Auto-submit failed")
			continue
		}
		if res != nil {
			submitted++
		}
	}
	return submitted, nil
}

func (s *AttemptService) owned(ctx context.Context, actor Actor, attemptID uuid.UUID) (*model.Attempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !owns(actor, a) && actor.Role != model.RoleAdmin {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// mine loads an attempt for a write. Admins can read any attempt but only its owner can change
// it.
func (s *AttemptService) mine(ctx context.Context, actor Actor, attemptID uuid.UUID) (*model.Attempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !owns(actor, a) {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

func alreadySubmitted(err error) bool {
	return errors.Is(err, attempt.ErrSectionAlreadySubmitted) || errors.Is(err, attempt.ErrAttemptCompleted)
}

func owns(actor Actor, a *model.Attempt) bool {
	return a.UserID == actor.UserID
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *AttemptService) guardFailed(err error, attemptID, testID uuid.UUID, userID, section int) {
	if !errors.Is(err, apperror.ErrGuardViolation) {
		return
	}
	code := apperror.CodeOf(err)
	s.metrics.GuardViolations.WithLabelValues(code).Inc()
	s.log.Warn().
		Str("code", code).
		Str("attempt_id", attemptID.String()).
		Str("test_id", testID.String()).
		Int("user_id", userID).
		Int("section", section).
		Msg("Attempt transition rejected")
}

func (s *AttemptService) logFor(a *model.Attempt) *zerolog.Logger {
	l := s.log.With().
		Str("attempt_id", a.ID.String()).
		Str("test_id", a.TestID.String()).
		Int("user_id", a.UserID).
		Logger()
	return &l
}

func (s *AttemptService) publish(ctx context.Context, eventType string, payload any) {
	if err := s.events.Publish(ctx, event.New(eventType, payload)); err != nil {
		s.log.Warn().Err(err).Str("type", eventType).Msg("Event publish failed")
	}
}
