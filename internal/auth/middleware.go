package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/board-api/internal/domain"
	apperrors "github.com/spec-kit/board-api/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// SessionVerifier is the part of the token service the guard drives.
type SessionVerifier interface {
	VerifyAccess(ctx context.Context, token, deviceID string) (string, error)
	Rotate(ctx context.Context, expiredAccess, refreshToken, deviceID string) (domain.TokenPair, string, error)
	RevokeClaimed(ctx context.Context, token, deviceID string) error
}

// AuthMiddleware authenticates every request from its session cookies.
// Requests without a device id or without tokens pass through anonymously.
type AuthMiddleware struct {
	sessions    SessionVerifier
	cookies     *CookieJar
	tokenPrefix string
	logger      *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(sessions SessionVerifier, cookies *CookieJar, tokenPrefix string, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{sessions: sessions, cookies: cookies, tokenPrefix: tokenPrefix, logger: logger}
}

// Handle establishes the request principal or rejects the request.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	access, refresh, deviceID := m.cookies.Read(c)
	if deviceID == "" {
		return c.Next()
	}

	ctx := c.UserContext()

	switch {
	case access == "" && refresh == "":
		return c.Next()
	case access == "" || refresh == "":
		present := access
		if present == "" {
			present = refresh
		}
		return m.reject(c, m.sessions.RevokeClaimed(ctx, present, deviceID))
	}

	if !strings.HasPrefix(access, m.tokenPrefix) || !strings.HasPrefix(refresh, m.tokenPrefix) {
		m.logger.Warn("session cookie without token prefix", zap.String("device_id", deviceID))
		return m.reject(c, ErrInvalidPrefix)
	}

	subjectID, err := m.sessions.VerifyAccess(ctx, access, deviceID)
	if KindOf(err) == KindExpired {
		var pair domain.TokenPair
		pair, subjectID, err = m.sessions.Rotate(ctx, access, refresh, deviceID)
		if err == nil {
			m.cookies.SetPair(c, pair)
		}
	}
	if err != nil {
		return m.reject(c, err)
	}

	c.Locals(principalKey, &domain.Principal{SubjectID: subjectID})
	return c.Next()
}

// reject clears cookies for every credential failure and maps the error
// for the HTTP layer. Cache outages leave cookies untouched.
func (m *AuthMiddleware) reject(c *fiber.Ctx, err error) error {
	kind := KindOf(err)
	if kind != KindInfrastructure {
		m.cookies.Clear(c)
	}
	return toDomainError(kind, err)
}

func toDomainError(kind Kind, err error) error {
	switch kind {
	case KindExpired:
		return apperrors.NewDomainError("SESSION_EXPIRED", "session expired", http.StatusUnauthorized, nil)
	case KindInvalidPrefix:
		return apperrors.NewDomainError("INVALID_TOKEN_PREFIX", "invalid token prefix", http.StatusUnauthorized, nil)
	case KindTheft:
		return apperrors.NewDomainError("SESSION_THEFT_DETECTED", "session revoked", http.StatusUnauthorized, nil)
	case KindInvalid:
		return apperrors.NewDomainError("INVALID_TOKEN", "invalid token", http.StatusUnauthorized, nil)
	default:
		return StoreUnavailable(err)
	}
}

// StoreUnavailable is the response for a session cache failure, shared by
// the guard and the handlers that issue or revoke sessions.
func StoreUnavailable(err error) *apperrors.DomainError {
	return &apperrors.DomainError{
		Code:       "SESSION_STORE_UNAVAILABLE",
		Message:    "session store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}
