package handlers

import (
	"github.com/gofiber/fiber/v2"

	"poselink/services"
)

// TokenHandler delegates credential issuance to the external video provider
type TokenHandler struct {
	client *services.TokenClient
}

func NewTokenHandler(client *services.TokenClient) *TokenHandler {
	return &TokenHandler{client: client}
}

type tokenIssueRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// Issue handles POST /token-issue. Provider failures are reported as a
// generic error without infrastructure detail.
func (h *TokenHandler) Issue(c *fiber.Ctx) error {
	var req tokenIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Identity == "" || req.Room == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "identity and room are required",
		})
	}

	token, err := h.client.Issue(c.Context(), req.Identity, req.Room)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "token service unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
	})
}
