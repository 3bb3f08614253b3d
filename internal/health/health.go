// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
)

// Status represents a health check result.
type Status struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Checker defines a named health check function.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler provides the probe endpoints.
type Handler struct {
	mu       sync.RWMutex
	ready    bool
	checkers []Checker
	timeout  time.Duration
	clock    clock.Clock
}

// NewHandler creates a new health handler with the given checkers.
func NewHandler(clk clock.Clock, checkers ...Checker) *Handler {
	return &Handler{checkers: checkers, timeout: 5 * time.Second, clock: clk}
}

// SetReady marks the service as ready to receive traffic.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Register mounts /healthz and /readyz on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
}

// Liveness answers 200 while the process runs.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, Status{Status: "ok", Timestamp: h.timestamp()})
}

// Readiness answers 200 once SetReady(true) was called and every checker
// passes.
func (h *Handler) Readiness(c *gin.Context) {
	h.mu.RLock()
	ready := h.ready
	h.mu.RUnlock()

	if !ready {
		c.JSON(http.StatusServiceUnavailable, Status{Status: "not_ready", Timestamp: h.timestamp()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.checkers))
	allOK := true
	for _, chk := range h.checkers {
		if err := chk.Check(ctx); err != nil {
			checks[chk.Name] = err.Error()
			allOK = false
		} else {
			checks[chk.Name] = "ok"
		}
	}

	status, code := "ready", http.StatusOK
	if !allOK {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, Status{Status: status, Checks: checks, Timestamp: h.timestamp()})
}

func (h *Handler) timestamp() string {
	return h.clock.Now().UTC().Format(time.RFC3339)
}
