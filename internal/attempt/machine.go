// Package attempt owns the lifecycle of a test attempt.
//
// Full-syllabus attempts move NotStarted -> Section1Active -> Section1Submitted ->
// Section2Active -> Completed; chapter-wise attempts move NotStarted -> SectionActive ->
// Completed. The state is never stored on its own: it is derived from the write-once section
// timestamps (see model.Attempt.State), so the same rules hold for both test shapes.
package attempt

import (
	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/scoring"
)

// New creates an attempt for def and starts its first section at now.
func New(def *model.TestDefinition, id uuid.UUID, userID int, now int64) (*model.Attempt, error) {
	if !def.IsActive {
		return nil, ErrTestInactive
	}
	count := def.Kind.SectionCount()
	if count == 0 || count != def.SectionCount() {
		return nil, ErrShapeMismatch
	}

	a := &model.Attempt{
		ID:        id,
		TestID:    def.ID,
		UserID:    userID,
		CreatedAt: now,
		Sections:  make([]model.SectionAttempt, count),
	}
	for i := range a.Sections {
		a.Sections[i] = model.SectionAttempt{Number: i + 1, Answers: []model.Answer{}}
	}

	started := now
	a.Sections[0].StartedAt = &started
	return a, nil
}

// CheckStartSection reports whether section n may be started. Only a later section can be
// started explicitly, and only after the one before it has been submitted.
func CheckStartSection(a *model.Attempt, n int) error {
	if a.IsCompleted {
		return ErrAttemptCompleted
	}
	if n < 2 || n > len(a.Sections) {
		return ErrInvalidSection
	}
	sec := a.Section(n)
	if sec.Started() {
		return ErrSectionAlreadyStarted
	}
	if !a.Section(n - 1).Submitted() {
		return ErrSectionOutOfOrder
	}
	return nil
}

// StartSection records the start timestamp of section n. Calling it twice fails instead of
// resetting the timer.
func StartSection(a *model.Attempt, n int, now int64) error {
	if err := CheckStartSection(a, n); err != nil {
		return err
	}
	started := now
	a.Section(n).StartedAt = &started
	return nil
}

// CheckSubmitSection reports whether section n is the active, unsubmitted section.
func CheckSubmitSection(a *model.Attempt, n int) error {
	if a.IsCompleted {
		return ErrAttemptCompleted
	}
	sec := a.Section(n)
	if sec == nil {
		return ErrInvalidSection
	}
	if sec.Submitted() {
		return ErrSectionAlreadySubmitted
	}
	if !sec.Started() {
		return ErrSectionNotStarted
	}
	return nil
}

// SubmitSection grades answers for section n, records the write-once submission timestamp and,
// for the final section, completes the attempt. Manual and expiry submissions share this path.
// A submission that lands after the section deadline is stamped at the deadline.
func SubmitSection(
	a *model.Attempt,
	def *model.TestDefinition,
	key scoring.Key,
	n int,
	answers []model.Answer,
	now int64,
) (scoring.SectionScore, error) {
	if err := CheckSubmitSection(a, n); err != nil {
		return scoring.SectionScore{}, err
	}
	if def.ID != a.TestID || def.SectionCount() != len(a.Sections) {
		return scoring.SectionScore{}, ErrShapeMismatch
	}

	normalized := NormalizeAnswers(answers)
	res := scoring.ScoreTestSection(def, n, key, normalized)

	sec := a.Section(n)
	submitted := now
	if spec, ok := def.Section(n); ok {
		if deadline := *sec.StartedAt + int64(spec.Duration()); submitted > deadline {
			submitted = deadline
		}
	}
	sec.SubmittedAt = &submitted
	sec.Answers = normalized
	sec.Score = res.Score
	stats := res.Stats
	sec.Stats = &stats

	if n == len(a.Sections) {
		complete(a, submitted)
	}
	return res, nil
}

func complete(a *model.Attempt, now int64) {
	total, elapsed := 0, int64(0)
	for i := range a.Sections {
		total += a.Sections[i].Score
		elapsed += a.Sections[i].Elapsed()
	}
	completedAt := now
	a.CompletedAt = &completedAt
	a.TotalScore = total
	a.TotalTimeTaken = elapsed
	a.IsCompleted = true
}

// NormalizeAnswers keeps one entry per question: the last selection, at the position of the
// question's first appearance.
func NormalizeAnswers(answers []model.Answer) []model.Answer {
	pos := make(map[uuid.UUID]int, len(answers))
	out := make([]model.Answer, 0, len(answers))
	for _, a := range answers {
		if i, ok := pos[a.QuestionID]; ok {
			out[i].SelectedIndex = a.SelectedIndex
			continue
		}
		pos[a.QuestionID] = len(out)
		out = append(out, a)
	}
	return out
}
