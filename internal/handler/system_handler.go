package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/response"
)

const (
	metricsInterval = 7 * time.Second
	checkTimeout    = 2 * time.Second
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// QueueProbe reports the depth of a worker queue.
type QueueProbe interface {
	Len(ctx context.Context) (int64, error)
}

// SystemHandler serves readiness and streams queue depths and Go runtime stats via SSE.
type SystemHandler struct {
	checks    map[string]Check
	queues    map[string]QueueProbe
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(checks map[string]Check, queues map[string]QueueProbe, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		checks:    checks,
		queues:    queues,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready godoc
// GET /ready
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	out := readiness{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
			out.Status = "unavailable"
			out.Checks[name] = err.Error()
			continue
		}
		out.Checks[name] = "ok"
	}

	if out.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, out)
		return
	}
	response.Success(c, http.StatusOK, out)
}

type queueDepth struct {
	Name  string `json:"name"`
	Depth int64  `json:"depth"`
}

type systemMetrics struct {
	Timestamp  int64        `json:"timestamp"`
	Uptime     string       `json:"uptime"`
	Goroutines int          `json:"goroutines"`
	HeapAlloc  uint64       `json:"heap_alloc"`
	HeapSys    uint64       `json:"heap_sys"`
	NumGC      uint32       `json:"num_gc"`
	GoVersion  string       `json:"go_version"`
	NumCPU     int          `json:"num_cpu"`
	Queues     []queueDepth `json:"queues"`
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Admin connected to system metrics SSE")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick
	h.writeMetrics(c)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(c)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context) {
	data, err := json.Marshal(h.collect(c.Request.Context()))
	if err != nil {
		return
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := systemMetrics{
		Timestamp:  time.Now().Unix(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		NumGC:      ms.NumGC,
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		Queues:     make([]queueDepth, 0, len(h.queues)),
	}

	for name, q := range h.queues {
		n, err := q.Len(ctx)
		if err != nil {
			// -1 marks an unreadable queue
			n = -1
		}
		m.Queues = append(m.Queues, queueDepth{Name: name, Depth: n})
	}
	sort.Slice(m.Queues, func(i, j int) bool { return m.Queues[i].Name < m.Queues[j].Name })
	return m
}
