package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/apperror"
	"github.com/stemsi/tryout-backend/internal/middleware"
	"github.com/stemsi/tryout-backend/internal/service"
	"github.com/stemsi/tryout-backend/internal/timer"
	ws "github.com/stemsi/tryout-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live attempt: timer ticks, autosave and submission.
type WSHandler struct {
	attempts AttemptService
	tick     time.Duration
	clock    timer.Clock
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. tick is the interval of timer events.
func NewWSHandler(attempts AttemptService, tick time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	if tick <= 0 {
		tick = time.Second
	}
	return &WSHandler{
		attempts: attempts,
		tick:     tick,
		clock:    timer.SystemClock,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream?token=
// Ownership is checked before the upgrade so strangers get a plain 404.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}
	actor := middleware.GetActor(c)

	if _, err := h.attempts.GetAttempt(c.Request.Context(), actor, id); err != nil {
		fail(c, h.log, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	s := &stream{
		h:         h,
		conn:      conn,
		actor:     actor,
		attemptID: id,
		log: h.log.With().
			Int("user_id", actor.UserID).
			Str("attempt_id", id.String()).
			Logger(),
	}
	s.log.Info().Msg("Student connected")

	if view, err := h.attempts.GetState(ctx, actor, id); err == nil {
		_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: view})
	} else {
		s.writeErr(err)
	}

	go s.runTimers(ctx)
	s.readLoop(ctx)
}

type stream struct {
	h         *WSHandler
	conn      *ws.Conn
	actor     service.Actor
	attemptID uuid.UUID
	log       zerolog.Logger
}

func (s *stream) readLoop(ctx context.Context) {
	for {
		var msg ws.Request
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			s.handleAutosave(ctx, &msg)
		case ws.ActionSubmit:
			s.handleSubmit(ctx, &msg)
		case ws.ActionStartSection:
			s.handleStartSection(ctx, &msg)
		case ws.ActionPing:
			_ = s.conn.WriteTyped(ws.PongResponse{Event: ws.EventPong, ServerTime: s.h.clock()})
		default:
			s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = s.conn.WriteError("INVALID_PAYLOAD", "unknown action: "+string(msg.Action))
		}
	}
}

func (s *stream) handleAutosave(ctx context.Context, msg *ws.Request) {
	if msg.QID == "" || msg.Idx == nil || *msg.Idx < 0 {
		_ = s.conn.WriteError("INVALID_PAYLOAD", "q_id and a non-negative idx are required")
		return
	}
	qid, err := uuid.Parse(msg.QID)
	if err != nil {
		_ = s.conn.WriteError("INVALID_PAYLOAD", "invalid q_id format")
		return
	}

	n, err := s.h.attempts.Autosave(ctx, s.actor, s.attemptID, qid, *msg.Idx)
	if err != nil {
		s.writeErr(err)
		return
	}
	_ = s.conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, Section: n, QuestionID: qid.String()})
}

// handleSubmit submits the given answers, or the autosaved ones when the client sends none.
func (s *stream) handleSubmit(ctx context.Context, msg *ws.Request) {
	if msg.Section < 1 {
		_ = s.conn.WriteError("INVALID_SECTION", "section is required")
		return
	}

	answers := msg.Answers
	if answers == nil {
		saved, err := s.h.attempts.BufferedAnswers(ctx, s.attemptID, msg.Section)
		if err != nil {
			s.writeErr(err)
			return
		}
		answers = saved
	}

	res, err := s.h.attempts.SubmitSection(ctx, s.actor, s.attemptID, msg.Section, answers)
	if err != nil {
		s.writeErr(err)
		return
	}
	_ = s.conn.WriteTyped(ws.NewSubmitted(res))
}

func (s *stream) handleStartSection(ctx context.Context, msg *ws.Request) {
	if _, err := s.h.attempts.StartSection(ctx, s.actor, s.attemptID, msg.Section); err != nil {
		s.writeErr(err)
		return
	}
	_ = s.conn.WriteTyped(ws.SectionStartedResponse{Event: ws.EventSectionStarted, Section: msg.Section})
}

// runTimers watches whichever section is running. A section started over HTTP is picked up on
// the next tick. Each watcher auto-submits at most once and stops after submission.
func (s *stream) runTimers(ctx context.Context) {
	ticker := time.NewTicker(s.h.tick)
	defer ticker.Stop()

	for {
		a, err := s.h.attempts.GetAttempt(ctx, s.actor, s.attemptID)
		switch {
		case err == nil && a.IsCompleted:
			return
		case err == nil:
			if sec := a.ActiveSection(); sec != nil {
				s.watch(ctx, sec.Number)
			}
		case ctx.Err() != nil:
			return
		default:
			s.log.Warn().Err(err).Msg("Attempt reload failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *stream) watch(ctx context.Context, n int) {
	w := timer.Watcher{
		Interval: s.h.tick,
		Now:      s.h.clock,
		Log:      s.log,
		OnTick: func(r timer.Reading) {
			_ = s.conn.WriteTyped(ws.TickResponse{
				Event: ws.EventTick, Section: n, RemainingMs: r.RemainingMs, Deadline: r.Deadline,
			})
		},
		OnExpire: func(ctx context.Context) error {
			_ = s.conn.WriteTyped(ws.ExpiredResponse{Event: ws.EventExpired, Section: n})
			res, err := s.h.attempts.AutoSubmit(ctx, s.attemptID, n)
			if err != nil {
				return err
			}
			if res != nil {
				_ = s.conn.WriteTyped(ws.NewSubmitted(res))
			}
			return nil
		},
	}

	err := w.Run(ctx, func(ctx context.Context) (timer.Status, error) {
		return s.h.attempts.SectionStatus(ctx, s.attemptID, n)
	})
	if err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Int("section", n).Msg("Auto-submit failed")
		s.writeErr(err)
	}
}

func (s *stream) writeErr(err error) {
	code := apperror.CodeOf(err)
	if code == "" || apperror.KindOf(err) == apperror.KindUnknown {
		s.log.Error().Err(err).Msg("Stream request failed")
		_ = s.conn.WriteError("INTERNAL_ERROR", "request failed")
		return
	}
	_ = s.conn.WriteError(code, err.Error())
}
