package model

import (
	"time"

	"github.com/google/uuid"
)

// Option is one choice of a multiple-choice question. Either field may be empty.
type Option struct {
	Text     *string `json:"text,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

// Question is a single multiple-choice question.
type Question struct {
	ID           uuid.UUID `json:"id"`
	Subject      string    `json:"subject"`
	ClassLevel   string    `json:"class_level"`
	Text         *string   `json:"text,omitempty"`
	ImageURL     *string   `json:"image_url,omitempty"`
	Options      []Option  `json:"options"`
	CorrectIndex int       `json:"correct_index"`
	Explanation  *string   `json:"explanation,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasValidKey reports whether CorrectIndex points into Options.
func (q *Question) HasValidKey() bool {
	return q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options)
}

// ForStudent strips the correct answer and explanation.
func (q *Question) ForStudent(order int) QuestionForStudent {
	return QuestionForStudent{
		ID:       q.ID,
		Text:     q.Text,
		ImageURL: q.ImageURL,
		Options:  q.Options,
		OrderNum: order,
	}
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID       uuid.UUID `json:"id"`
	Text     *string   `json:"text,omitempty"`
	ImageURL *string   `json:"image_url,omitempty"`
	Options  []Option  `json:"options"`
	OrderNum int       `json:"order_num"`
}

// CreateQuestionRequest is the payload for adding one question.
type CreateQuestionRequest struct {
	Subject      string   `json:"subject" binding:"required,max=100"`
	ClassLevel   string   `json:"class_level" binding:"required,max=20"`
	Text         *string  `json:"text" binding:"omitempty,max=4000"`
	ImageURL     *string  `json:"image_url" binding:"omitempty,max=1024"`
	Options      []Option `json:"options" binding:"required,min=2,max=10"`
	CorrectIndex int      `json:"correct_index" binding:"min=0"`
	Explanation  *string  `json:"explanation" binding:"omitempty,max=4000"`
}

// CreateQuestionsRequest is the payload for bulk question creation.
type CreateQuestionsRequest struct {
	Questions []CreateQuestionRequest `json:"questions" binding:"required,min=1,max=500,dive"`
}
