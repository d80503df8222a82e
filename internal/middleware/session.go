package middleware

import (
	"errors"
	"net/url"
	"time"

	"tasker/internal/models"
	"tasker/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	// SessionCookie carries the signed session token.
	SessionCookie = "session"

	identityKey = "identity"
)

// CookieOptions controls the attributes of the session cookie.
type CookieOptions struct {
	Secure bool
}

// LoadIdentity resolves the session cookie to a user on every request and
// stores it for CurrentUser. Missing or invalid sessions leave the request
// anonymous; invalid cookies are cleared.
func LoadIdentity(authService *services.AuthService, opts CookieOptions, log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		if token == "" {
			return c.Next()
		}

		user, err := authService.ResolveSession(token)
		switch {
		case err == nil:
			c.Locals(identityKey, user)
		case errors.Is(err, services.ErrInvalidSession):
			ClearSessionCookie(c, opts)
		default:
			log.WithError(err).Error("failed to resolve session")
			return err
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for an anonymous request.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(identityKey).(*models.User)
	return user
}

// IdentityHandler is a handler that runs only for authenticated users.
type IdentityHandler func(c *fiber.Ctx, user *models.User) error

// RequireUser adapts h into a fiber handler that redirects anonymous requests
// to the login page, remembering where they were headed.
func RequireUser(h IdentityHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return c.Redirect("/login?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
		}
		return h(c, user)
	}
}

// SetSessionCookie stores token in the session cookie.
func SetSessionCookie(c *fiber.Ctx, token string, expires time.Time, opts CookieOptions) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   opts.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie in the browser.
func ClearSessionCookie(c *fiber.Ctx, opts CookieOptions) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   opts.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// SafeRedirect returns next when it is a local path and fallback otherwise.
func SafeRedirect(next, fallback string) string {
	if len(next) == 0 || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return fallback
	}
	return next
}

// CSRFContextKey is where the csrf middleware leaves the token for views.
const CSRFContextKey = "csrf"

// CSRFToken returns the token views must echo back in the csrf_token field.
func CSRFToken(c *fiber.Ctx) string {
	token, _ := c.Locals(CSRFContextKey).(string)
	return token
}
