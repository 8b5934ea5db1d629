package model

import (
	"time"

	"github.com/google/uuid"
)

// TestKind discriminates the two test shapes. The section count follows from it.
type TestKind string

const (
	TestKindFullSyllabus TestKind = "FULL_SYLLABUS"
	TestKindChapterWise  TestKind = "CHAPTER_WISE"
)

// SectionCount returns how many sections a test of this kind must have, or 0 for an unknown kind.
func (k TestKind) SectionCount() int {
	switch k {
	case TestKindFullSyllabus:
		return 2
	case TestKindChapterWise:
		return 1
	default:
		return 0
	}
}

// Section is one timed, independently submitted part of a test.
type Section struct {
	Number           int         `json:"number"`
	Name             string      `json:"name"`
	DurationMinutes  int         `json:"duration_minutes"`
	QuestionIDs      []uuid.UUID `json:"question_ids"`
	MarksPerQuestion int         `json:"marks_per_question"`
}

// Duration returns the section length as a time.Duration.
func (s Section) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// MaxScore is the score awarded when every question in the section is answered correctly.
func (s Section) MaxScore() int {
	return len(s.QuestionIDs) * s.MarksPerQuestion
}

// TestDefinition is immutable once created except for IsActive.
type TestDefinition struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Kind      TestKind  `json:"kind"`
	Subject   string    `json:"subject,omitempty"`
	Chapter   string    `json:"chapter,omitempty"`
	IsActive  bool      `json:"is_active"`
	Sections  []Section `json:"sections"`
	CreatedAt time.Time `json:"created_at"`
}

// SectionCount is the discriminant shared by the attempt logic.
func (t *TestDefinition) SectionCount() int {
	return len(t.Sections)
}

// Section returns the 1-based section n, or false when n is out of range.
func (t *TestDefinition) Section(n int) (Section, bool) {
	if n < 1 || n > len(t.Sections) {
		return Section{}, false
	}
	return t.Sections[n-1], true
}

// MaxScore sums questionCount * marksPerQuestion over every section.
func (t *TestDefinition) MaxScore() int {
	total := 0
	for _, s := range t.Sections {
		total += s.MaxScore()
	}
	return total
}

// QuestionIDs returns every question referenced by the test in section order.
func (t *TestDefinition) QuestionIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, s := range t.Sections {
		ids = append(ids, s.QuestionIDs...)
	}
	return ids
}

// CreateSectionRequest is one section of a CreateTestRequest.
type CreateSectionRequest struct {
	Name             string      `json:"name" binding:"required,min=1,max=100"`
	DurationMinutes  int         `json:"duration_minutes" binding:"required,min=1,max=480"`
	QuestionIDs      []uuid.UUID `json:"question_ids" binding:"required,min=1"`
	MarksPerQuestion int         `json:"marks_per_question" binding:"min=0,max=100"`
}

// CreateTestRequest is the payload for creating a test definition.
type CreateTestRequest struct {
	Title    string                 `json:"title" binding:"required,min=3,max=255"`
	Kind     TestKind               `json:"kind" binding:"required,oneof=FULL_SYLLABUS CHAPTER_WISE"`
	Subject  string                 `json:"subject" binding:"omitempty,max=100"`
	Chapter  string                 `json:"chapter" binding:"omitempty,max=100"`
	IsActive bool                   `json:"is_active"`
	Sections []CreateSectionRequest `json:"sections" binding:"required,min=1,max=2,dive"`
}

// SetTestActiveRequest toggles the only mutable field of a test.
type SetTestActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// TestPaper is the Redis-cached, student-facing view of one section (no correct answers).
type TestPaper struct {
	TestID           uuid.UUID            `json:"test_id"`
	Title            string               `json:"title"`
	SectionNumber    int                  `json:"section_number"`
	SectionName      string               `json:"section_name"`
	DurationMinutes  int                  `json:"duration_minutes"`
	MarksPerQuestion int                  `json:"marks_per_question"`
	Questions        []QuestionForStudent `json:"questions"`
}
