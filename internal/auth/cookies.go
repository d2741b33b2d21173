package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/board-api/internal/config"
	"github.com/spec-kit/board-api/internal/domain"
)

// CookieJar reads and writes the three session cookies.
type CookieJar struct {
	accessName  string
	refreshName string
	deviceName  string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	deviceTTL   time.Duration
}

// NewCookieJar builds a jar from the auth config.
func NewCookieJar(cfg config.AuthConfig) *CookieJar {
	return &CookieJar{
		accessName:  cfg.AccessCookieName,
		refreshName: cfg.RefreshCookieName,
		deviceName:  cfg.DeviceCookieName,
		accessTTL:   cfg.AccessTokenTTL,
		refreshTTL:  cfg.RefreshTokenTTL,
		deviceTTL:   cfg.DeviceIDTTL,
	}
}

// Read returns the raw access token, refresh token and device id.
func (j *CookieJar) Read(c *fiber.Ctx) (access, refresh, deviceID string) {
	return c.Cookies(j.accessName), c.Cookies(j.refreshName), c.Cookies(j.deviceName)
}

// DeviceID returns the device cookie value.
func (j *CookieJar) DeviceID(c *fiber.Ctx) string {
	return c.Cookies(j.deviceName)
}

// SetSession writes all three cookies after a login.
func (j *CookieJar) SetSession(c *fiber.Ctx, session domain.Session) {
	j.SetPair(c, session.Tokens)
	c.Cookie(j.cookie(j.deviceName, session.DeviceID, j.deviceTTL))
}

// SetPair overwrites the two token cookies after a rotation.
func (j *CookieJar) SetPair(c *fiber.Ctx, pair domain.TokenPair) {
	c.Cookie(j.cookie(j.accessName, pair.AccessToken, j.accessTTL))
	c.Cookie(j.cookie(j.refreshName, pair.RefreshToken, j.refreshTTL))
}

// Clear expires all three cookies on the client.
func (j *CookieJar) Clear(c *fiber.Ctx) {
	for _, name := range []string{j.accessName, j.refreshName, j.deviceName} {
		cookie := j.cookie(name, "", 0)
		cookie.Expires = time.Unix(0, 0)
		c.Cookie(cookie)
	}
}

func (j *CookieJar) cookie(name, value string, ttl time.Duration) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
	if ttl > 0 {
		cookie.MaxAge = int(ttl / time.Second)
		cookie.Expires = time.Now().Add(ttl)
	}
	return cookie
}
