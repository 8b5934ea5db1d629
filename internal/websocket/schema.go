package websocket

import "github.com/stemsi/tryout-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave     Action = "autosave"
	ActionSubmit       Action = "submit"
	ActionStartSection Action = "start_section"
	ActionPing         Action = "ping"
)

// Request is every client message. Which fields matter depends on Action.
type Request struct {
	Action  Action         `json:"action"`
	QID     string         `json:"q_id,omitempty"`
	Idx     *int           `json:"idx,omitempty"`
	Section int            `json:"section,omitempty"`
	Answers []model.Answer `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState          Event = "state"
	EventTick           Event = "tick"
	EventSaved          Event = "saved"
	EventSectionStarted Event = "section_started"
	EventSubmitted      Event = "submitted"
	EventExpired        Event = "expired"
	EventPong           Event = "pong"
	EventError          Event = "error"
)

// StateResponse is sent once on connect so a reconnecting client can resume.
type StateResponse struct {
	Event Event                   `json:"event"`
	State *model.AttemptStateView `json:"state"`
}

type TickResponse struct {
	Event       Event `json:"event"`
	Section     int   `json:"section"`
	RemainingMs int64 `json:"remaining_ms"`
	Deadline    int64 `json:"deadline"`
}

type SavedResponse struct {
	Event      Event  `json:"event"`
	Section    int    `json:"section"`
	QuestionID string `json:"q_id"`
}

type SectionStartedResponse struct {
	Event   Event `json:"event"`
	Section int   `json:"section"`
}

type SubmittedResponse struct {
	Event          Event               `json:"event"`
	Section        int                 `json:"section"`
	Score          int                 `json:"score"`
	CorrectAnswers int                 `json:"correct_answers"`
	Stats          model.SectionStats  `json:"stats"`
	Completed      bool                `json:"completed"`
	TotalScore     int                 `json:"total_score"`
	Trigger        model.SubmitTrigger `json:"trigger"`
}

// NewSubmitted converts a submit result into its event.
func NewSubmitted(r *model.SubmitResult) SubmittedResponse {
	return SubmittedResponse{
		Event:          EventSubmitted,
		Section:        r.SectionNumber,
		Score:          r.Score,
		CorrectAnswers: r.CorrectAnswers,
		Stats:          r.Stats,
		Completed:      r.Completed,
		TotalScore:     r.TotalScore,
		Trigger:        r.Trigger,
	}
}

type ExpiredResponse struct {
	Event   Event `json:"event"`
	Section int   `json:"section"`
}

type PongResponse struct {
	Event      Event `json:"event"`
	ServerTime int64 `json:"server_time"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}
