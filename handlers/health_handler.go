package handlers

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"

	"poselink/services"
)

// HealthHandler serves process health and relay metrics
type HealthHandler struct {
	registry *services.SessionRegistry
	hub      *services.ConnectionHub
	metrics  *services.ConnectionMetrics
	started  time.Time
}

func NewHealthHandler(registry *services.SessionRegistry, hub *services.ConnectionHub, metrics *services.ConnectionMetrics) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		hub:      hub,
		metrics:  metrics,
		started:  time.Now(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	total, active := h.registry.Counts()
	return c.JSON(fiber.Map{
		"status":          "ok",
		"service":         "poselink",
		"uptime_seconds":  int64(time.Since(h.started).Seconds()),
		"alloc_bytes":     mem.Alloc,
		"goroutines":      runtime.NumGoroutine(),
		"connections":     h.hub.Count(),
		"sessions_total":  total,
		"sessions_active": active,
	})
}

// Metrics handles GET /metrics
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"counters": h.metrics.Snapshot(),
		"sessions": h.registry.Snapshot(),
	})
}
