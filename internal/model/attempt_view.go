package model

import "github.com/google/uuid"

// SectionTimer is the derived timer of one section as shown to the client.
type SectionTimer struct {
	Running     bool  `json:"running"`
	RemainingMs int64 `json:"remaining_ms"`
	Deadline    int64 `json:"deadline,omitempty"`
}

// AttemptStateView is what a (re)connecting client needs to resume an attempt.
type AttemptStateView struct {
	AttemptID     uuid.UUID    `json:"attempt_id"`
	TestID        uuid.UUID    `json:"test_id"`
	State         State        `json:"state"`
	Label         string       `json:"label"`
	ActiveSection int          `json:"active_section,omitempty"`
	Timer         SectionTimer `json:"timer"`
	Answers       []Answer     `json:"answers"`
	IsCompleted   bool         `json:"is_completed"`
	ServerTime    int64        `json:"server_time"`
	// AutoSubmitted is set when this read found the section expired and submitted it.
	AutoSubmitted *SubmitResult `json:"auto_submitted,omitempty"`
}

// QuestionReview is one question of a submitted section with the key revealed.
type QuestionReview struct {
	QuestionID    uuid.UUID `json:"question_id"`
	OrderNum      int       `json:"order_num"`
	Text          *string   `json:"text,omitempty"`
	ImageURL      *string   `json:"image_url,omitempty"`
	Options       []Option  `json:"options"`
	SelectedIndex *int      `json:"selected_index"`
	CorrectIndex  int       `json:"correct_index"`
	Outcome       string    `json:"outcome"`
	Marks         int       `json:"marks"`
	Explanation   *string   `json:"explanation,omitempty"`
}

// SectionResult is the graded view of one submitted section.
type SectionResult struct {
	Number    int              `json:"number"`
	Name      string           `json:"name"`
	Score     int              `json:"score"`
	MaxScore  int              `json:"max_score"`
	Stats     SectionStats     `json:"stats"`
	TimeTaken int64            `json:"time_taken"`
	Questions []QuestionReview `json:"questions"`
}

// AttemptResult is the graded view of an attempt. Only submitted sections are included.
type AttemptResult struct {
	AttemptID      uuid.UUID       `json:"attempt_id"`
	TestID         uuid.UUID       `json:"test_id"`
	TestTitle      string          `json:"test_title"`
	IsCompleted    bool            `json:"is_completed"`
	CompletedAt    *int64          `json:"completed_at,omitempty"`
	TotalScore     int             `json:"total_score"`
	MaxScore       int             `json:"max_score"`
	Percentage     float64         `json:"percentage"`
	TotalTimeTaken int64           `json:"total_time_taken"`
	Stats          SectionStats    `json:"stats"`
	Sections       []SectionResult `json:"sections"`
}
