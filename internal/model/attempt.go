package model

import (
	"strconv"

	"github.com/google/uuid"
)

// Answer is a student's selection. Absence of an Answer for a question means "unanswered".
type Answer struct {
	QuestionID    uuid.UUID `json:"question_id"`
	SelectedIndex int       `json:"selected_index"`
}

// SectionStats are derived per section by the scoring engine.
type SectionStats struct {
	TotalQuestions int `json:"total_questions"`
	Attempted      int `json:"attempted"`
	Correct        int `json:"correct"`
	Incorrect      int `json:"incorrect"`
	Unanswered     int `json:"unanswered"`
}

// Add accumulates another section's stats.
func (s SectionStats) Add(o SectionStats) SectionStats {
	return SectionStats{
		TotalQuestions: s.TotalQuestions + o.TotalQuestions,
		Attempted:      s.Attempted + o.Attempted,
		Correct:        s.Correct + o.Correct,
		Incorrect:      s.Incorrect + o.Incorrect,
		Unanswered:     s.Unanswered + o.Unanswered,
	}
}

// SectionAttempt holds the lifecycle and result of one section within an attempt.
// Timestamps are nanoseconds since the Unix epoch, assigned by the server clock.
type SectionAttempt struct {
	Number      int           `json:"number"`
	StartedAt   *int64        `json:"started_at,omitempty"`
	SubmittedAt *int64        `json:"submitted_at,omitempty"`
	Answers     []Answer      `json:"answers"`
	Score       int           `json:"score"`
	Stats       *SectionStats `json:"stats,omitempty"`
}

// Started reports whether the section has a start timestamp.
func (s *SectionAttempt) Started() bool { return s.StartedAt != nil }

// Submitted reports whether the section has a submission timestamp.
func (s *SectionAttempt) Submitted() bool { return s.SubmittedAt != nil }

// Elapsed is the time spent in the section in nanoseconds, or 0 if it is not finished.
func (s *SectionAttempt) Elapsed() int64 {
	if s.StartedAt == nil || s.SubmittedAt == nil {
		return 0
	}
	if d := *s.SubmittedAt - *s.StartedAt; d > 0 {
		return d
	}
	return 0
}

// Attempt is one student's run through a test.
type Attempt struct {
	ID             uuid.UUID        `json:"id"`
	TestID         uuid.UUID        `json:"test_id"`
	UserID         int              `json:"user_id"`
	CreatedAt      int64            `json:"created_at"`
	Sections       []SectionAttempt `json:"sections"`
	CompletedAt    *int64           `json:"completed_at,omitempty"`
	TotalScore     int              `json:"total_score"`
	TotalTimeTaken int64            `json:"total_time_taken"`
	IsCompleted    bool             `json:"is_completed"`
}

// Section returns a pointer to 1-based section n, or nil when out of range.
func (a *Attempt) Section(n int) *SectionAttempt {
	if n < 1 || n > len(a.Sections) {
		return nil
	}
	return &a.Sections[n-1]
}

// Phase names the lifecycle states of an attempt.
type Phase string

const (
	PhaseNotStarted       Phase = "NOT_STARTED"
	PhaseSectionActive    Phase = "SECTION_ACTIVE"
	PhaseSectionSubmitted Phase = "SECTION_SUBMITTED"
	PhaseCompleted        Phase = "COMPLETED"
)

// State is the phase plus the section it refers to (0 for NotStarted/Completed).
type State struct {
	Phase   Phase `json:"phase"`
	Section int   `json:"section"`
}

// String renders states as Section1Active, Section1Submitted, ... for logs.
func (s State) String() string {
	switch s.Phase {
	case PhaseSectionActive:
		return "Section" + strconv.Itoa(s.Section) + "Active"
	case PhaseSectionSubmitted:
		return "Section" + strconv.Itoa(s.Section) + "Submitted"
	case PhaseCompleted:
		return "Completed"
	default:
		return "NotStarted"
	}
}

// State derives the current lifecycle state from the stored timestamps.
func (a *Attempt) State() State {
	if a.IsCompleted {
		return State{Phase: PhaseCompleted}
	}
	for i := len(a.Sections) - 1; i >= 0; i-- {
		s := &a.Sections[i]
		switch {
		case s.Submitted():
			if i == len(a.Sections)-1 {
				return State{Phase: PhaseCompleted}
			}
			return State{Phase: PhaseSectionSubmitted, Section: s.Number}
		case s.Started():
			return State{Phase: PhaseSectionActive, Section: s.Number}
		}
	}
	return State{Phase: PhaseNotStarted}
}

// ActiveSection returns the section currently running, or nil.
func (a *Attempt) ActiveSection() *SectionAttempt {
	st := a.State()
	if st.Phase != PhaseSectionActive {
		return nil
	}
	return a.Section(st.Section)
}

// OpenSection is a started, unsubmitted section as seen by the expiry sweep.
type OpenSection struct {
	AttemptID       uuid.UUID `json:"attempt_id"`
	TestID          uuid.UUID `json:"test_id"`
	UserID          int       `json:"user_id"`
	SectionNumber   int       `json:"section_number"`
	StartedAt       int64     `json:"started_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// SubmitSectionRequest is the payload for submitting a section.
type SubmitSectionRequest struct {
	Answers []AnswerRequest `json:"answers" binding:"omitempty,max=1000,dive"`
}

// AnswerRequest is one answer in a SubmitSectionRequest.
type AnswerRequest struct {
	QuestionID    uuid.UUID `json:"question_id" binding:"required"`
	SelectedIndex *int      `json:"selected_index" binding:"required"`
}

// ToAnswers converts the request to domain answers.
func (r SubmitSectionRequest) ToAnswers() []Answer {
	answers := make([]Answer, 0, len(r.Answers))
	for _, a := range r.Answers {
		answers = append(answers, Answer{QuestionID: a.QuestionID, SelectedIndex: *a.SelectedIndex})
	}
	return answers
}

// SubmitTrigger records why a section was submitted.
type SubmitTrigger string

const (
	TriggerManual SubmitTrigger = "manual"
	TriggerExpiry SubmitTrigger = "expiry"
)

// SubmitResult is returned from a section submission.
type SubmitResult struct {
	AttemptID      uuid.UUID     `json:"attempt_id"`
	SectionNumber  int           `json:"section_number"`
	Score          int           `json:"score"`
	CorrectAnswers int           `json:"correct_answers"`
	Stats          SectionStats  `json:"stats"`
	Completed      bool          `json:"completed"`
	TotalScore     int           `json:"total_score"`
	Trigger        SubmitTrigger `json:"trigger"`
}

// DraftAnswer is an autosaved, not yet submitted selection.
type DraftAnswer struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	SectionNumber int       `json:"section_number"`
	QuestionID    uuid.UUID `json:"question_id"`
	SelectedIndex int       `json:"selected_index"`
}

// AttemptSummary is a compact row for listing a user's attempts.
type AttemptSummary struct {
	ID             uuid.UUID `json:"id"`
	TestID         uuid.UUID `json:"test_id"`
	TestTitle      string    `json:"test_title"`
	CreatedAt      int64     `json:"created_at"`
	CompletedAt    *int64    `json:"completed_at,omitempty"`
	TotalScore     int       `json:"total_score"`
	TotalTimeTaken int64     `json:"total_time_taken"`
	IsCompleted    bool      `json:"is_completed"`
}

// AutosaveRequest records one selection for the running section.
type AutosaveRequest struct {
	QuestionID    uuid.UUID `json:"question_id" binding:"required,nonzero_uuid"`
	SelectedIndex *int      `json:"selected_index" binding:"required,min=0"`
}

// ListAttemptsQuery filters the caller's attempts.
type ListAttemptsQuery struct {
	TestID string `form:"test_id" binding:"omitempty,uuid"`
}
