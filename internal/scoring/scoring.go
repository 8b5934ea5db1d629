// Package scoring grades multiple-choice sections. Every function is pure: the same
// questions, key and answers always yield the same result, so a stored attempt can be
// re-scored for export or leaderboard recomputation at any time.
package scoring

import (
	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
)

// Outcome classifies a single question.
type Outcome string

const (
	OutcomeCorrect    Outcome = "CORRECT"
	OutcomeIncorrect  Outcome = "INCORRECT"
	OutcomeUnanswered Outcome = "UNANSWERED"
)

// Key maps a question ID to its zero-based correct option index.
type Key map[uuid.UUID]int

// KeyFromQuestions builds a Key from stored questions.
func KeyFromQuestions(questions []model.Question) Key {
	key := make(Key, len(questions))
	for i := range questions {
		key[questions[i].ID] = questions[i].CorrectIndex
	}
	return key
}

// QuestionResult is the graded outcome of one question.
type QuestionResult struct {
	QuestionID    uuid.UUID `json:"question_id"`
	Outcome       Outcome   `json:"outcome"`
	SelectedIndex *int      `json:"selected_index,omitempty"`
	Marks         int       `json:"marks"`
}

// SectionScore is the result of grading one section.
type SectionScore struct {
	Questions []QuestionResult   `json:"questions"`
	Score     int                `json:"score"`
	MaxScore  int                `json:"max_score"`
	Stats     model.SectionStats `json:"stats"`
}

// ScoreSection grades answers against the ordered questionIDs of a section.
//
// An answer whose question is not in questionIDs is ignored. When several answers name the
// same question the last one counts. A selected index that differs from the key, including
// one out of range, is incorrect. A question missing from key can never be answered correctly.
func ScoreSection(questionIDs []uuid.UUID, key Key, answers []model.Answer, marksPerQuestion int) SectionScore {
	selected := make(map[uuid.UUID]int, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedIndex
	}

	res := SectionScore{
		Questions: make([]QuestionResult, 0, len(questionIDs)),
		MaxScore:  len(questionIDs) * marksPerQuestion,
	}
	res.Stats.TotalQuestions = len(questionIDs)

	for _, qid := range questionIDs {
		qr := QuestionResult{QuestionID: qid, Outcome: OutcomeUnanswered}

		idx, answered := selected[qid]
		if answered {
			qr.SelectedIndex = &idx
			res.Stats.Attempted++

			if correct, ok := key[qid]; ok && correct == idx {
				qr.Outcome = OutcomeCorrect
				qr.Marks = marksPerQuestion
				res.Stats.Correct++
			} else {
				qr.Outcome = OutcomeIncorrect
			}
		}

		res.Score += qr.Marks
		res.Questions = append(res.Questions, qr)
	}

	res.Stats.Incorrect = res.Stats.Attempted - res.Stats.Correct
	res.Stats.Unanswered = res.Stats.TotalQuestions - res.Stats.Attempted
	return res
}

// ScoreTestSection grades section n of a test definition.
func ScoreTestSection(def *model.TestDefinition, n int, key Key, answers []model.Answer) SectionScore {
	sec, ok := def.Section(n)
	if !ok {
		return SectionScore{Questions: []QuestionResult{}}
	}
	return ScoreSection(sec.QuestionIDs, key, answers, sec.MarksPerQuestion)
}

// Summary aggregates the section scores of a whole attempt.
type Summary struct {
	TotalScore int                `json:"total_score"`
	MaxScore   int                `json:"max_score"`
	Percentage float64            `json:"percentage"`
	Stats      model.SectionStats `json:"stats"`
}

// Summarize adds section scores together.
func Summarize(sections ...SectionScore) Summary {
	var s Summary
	for _, sec := range sections {
		s.TotalScore += sec.Score
		s.MaxScore += sec.MaxScore
		s.Stats = s.Stats.Add(sec.Stats)
	}
	s.Percentage = Percentage(s.TotalScore, s.MaxScore)
	return s
}

// Percentage returns score/max*100 clamped to [0, 100]; it is 0 when max is 0.
func Percentage(score, max int) float64 {
	if max <= 0 {
		return 0
	}
	p := float64(score) / float64(max) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
