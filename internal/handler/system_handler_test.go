package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedQueue struct {
	n   int64
	err error
}

func (q fixedQueue) Len(context.Context) (int64, error) { return q.n, q.err }

func TestSystemHandler_Ready(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]Check{"postgres": ok, "redis": ok},
			wantStatus: http.StatusOK,
		},
		{
			name:       "redis down",
			checks:     map[string]Check{"postgres": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "ok", "redis": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler(tt.checks, nil, zerolog.Nop())
			r := gin.New()
			r.GET("/ready", h.Ready)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantChecks != nil {
				var body readiness
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "unavailable", body.Status)
				assert.Equal(t, tt.wantChecks, body.Checks)
			}
		})
	}
}

func TestSystemHandler_CollectQueues(t *testing.T) {
	h := NewSystemHandler(nil, map[string]QueueProbe{
		"persist_answers_queue":     fixedQueue{n: 42},
		"leaderboard_refresh_queue": fixedQueue{err: errors.New("timeout")},
	}, zerolog.Nop())

	m := h.collect(context.Background())

	require.Len(t, m.Queues, 2)
	assert.Equal(t, queueDepth{Name: "leaderboard_refresh_queue", Depth: -1}, m.Queues[0])
	assert.Equal(t, queueDepth{Name: "persist_answers_queue", Depth: 42}, m.Queues[1])
	assert.Positive(t, m.Goroutines)
}
