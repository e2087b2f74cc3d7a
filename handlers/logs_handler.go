package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"poselink/models"
	"poselink/services"
)

// LogsHandler serves the LogIngestionBuffer query and clear endpoints that
// back the log dashboard.
type LogsHandler struct {
	logs *services.LogIngestionBuffer
}

func NewLogsHandler(logs *services.LogIngestionBuffer) *LogsHandler {
	return &LogsHandler{logs: logs}
}

// Query handles GET /api/logs with optional filter query params
func (h *LogsHandler) Query(c *fiber.Ctx) error {
	filter := models.LogFilter{
		SessionCode: c.Query("session_code"),
		UserType:    c.Query("user_type"),
		Category:    c.Query("category"),
		Level:       c.Query("level"),
	}

	entries := h.logs.Query(filter)
	return c.JSON(fiber.Map{
		"logs":    entries,
		"summary": h.logs.Summary(),
	})
}

// Clear handles DELETE /api/logs
func (h *LogsHandler) Clear(c *fiber.Ctx) error {
	cleared := h.logs.Clear()
	slog.Info("Log buffer cleared", "count", cleared)
	return c.JSON(fiber.Map{
		"cleared": cleared,
	})
}
