package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/board-api/internal/api/dto"
	"github.com/spec-kit/board-api/internal/auth"
	"github.com/spec-kit/board-api/internal/domain"
	"github.com/spec-kit/board-api/internal/service"
	apperrors "github.com/spec-kit/board-api/pkg/util/errorutil"
)

// AuthHandler exposes login, logout and session endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	cookies *auth.CookieJar
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies *auth.CookieJar) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return err
	}

	user, session, err := h.auth.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			return apperrors.NewConflict("username already taken", nil)
		case errors.Is(err, auth.ErrPasswordTooLong):
			return apperrors.NewValidationError("password too long", map[string]any{"max_bytes": 72})
		}
		return sessionFailure(err)
	}

	h.cookies.SetSession(c, session)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionBody(user, session)})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return err
	}

	user, session, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return sessionFailure(err)
	}

	h.cookies.SetSession(c, session)
	return c.JSON(fiber.Map{"data": sessionBody(user, session)})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.auth.Logout(c.UserContext(), principal.SubjectID, h.cookies.DeviceID(c)); err != nil {
		return sessionFailure(err)
	}
	h.cookies.Clear(c)
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := h.auth.GetUser(c.UserContext(), principal.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserResponse{ID: user.ID, Username: user.Username}})
}

// sessionFailure answers a session cache outage the same way the guard does.
func sessionFailure(err error) error {
	if errors.Is(err, auth.ErrInfrastructure) {
		return auth.StoreUnavailable(err)
	}
	return err
}

func parseCredentials(c *fiber.Ctx) (dto.CredentialsRequest, error) {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return req, apperrors.NewValidationError("username and password required", nil)
	}
	return req, nil
}

func sessionBody(user *domain.User, session domain.Session) fiber.Map {
	return fiber.Map{
		"user": dto.UserResponse{ID: user.ID, Username: user.Username},
		"session": dto.SessionResponse{
			AccessExpiresAt:  session.Tokens.AccessExpiresAt,
			RefreshExpiresAt: session.Tokens.RefreshExpiresAt,
		},
	}
}
