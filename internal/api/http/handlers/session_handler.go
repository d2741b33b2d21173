package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/board-api/internal/api/dto"
	"github.com/spec-kit/board-api/internal/auth"
)

// SessionHandler reports the outcome of request authentication.
type SessionHandler struct{}

// NewSessionHandler constructs handler.
func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Status handles GET /api/session. Anonymous callers get authenticated=false.
func (h *SessionHandler) Status(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return c.JSON(fiber.Map{"data": dto.SessionStatusResponse{}})
	}
	return c.JSON(fiber.Map{"data": dto.SessionStatusResponse{
		Authenticated: true,
		SubjectID:     principal.SubjectID,
	}})
}
