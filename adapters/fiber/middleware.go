package fiber

import (
	"github.com/gofiber/fiber/v3"

	"github.com/lborres/pasok"
)

const sessionLocalsKey = "session"

// RequireSession creates a Fiber middleware that validates the session token
// and stores the projected session in the context for downstream handlers.
func (a *Adapter) RequireSession(auth pasok.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := a.extractToken(c)
		if token == "" {
			return handleAuthError(c, pasok.ErrMissingAuthHeader)
		}

		view, err := auth.GetSession(token)
		if err != nil {
			return handleAuthError(c, err)
		}

		c.Locals(sessionLocalsKey, view)

		return c.Next()
	}
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(c fiber.Ctx) (*pasok.SessionView, bool) {
	view, ok := c.Locals(sessionLocalsKey).(*pasok.SessionView)
	return view, ok && view != nil
}
