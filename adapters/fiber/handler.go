package fiber

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/pasok"
)

// federatedInput is the body of the federated sign-in endpoint. The
// credential is verified server side; profile claims are never taken from
// the client.
type federatedInput struct {
	Provider   string `json:"provider"`
	Credential string `json:"credential"`
}

// handleSignUp returns a handler for the sign-up endpoint
func (a *Adapter) handleSignUp(auth pasok.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input pasok.SignUpRequest
		if err := c.Bind().Body(&input); err != nil {
			return handleAuthError(c, pasok.ErrInvalidRequest)
		}

		result, err := auth.SignUp(c.Context(), input)
		if err != nil {
			return handleAuthError(c, err)
		}

		a.setSessionCookie(c, result)
		return c.Status(http.StatusCreated).JSON(result)
	}
}

// handleSignIn returns a handler for the sign-in endpoint
func (a *Adapter) handleSignIn(auth pasok.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input pasok.SignInRequest
		if err := c.Bind().Body(&input); err != nil {
			return handleAuthError(c, pasok.ErrInvalidRequest)
		}

		result, err := auth.SignIn(c.Context(), input)
		if err != nil {
			return handleAuthError(c, err)
		}

		a.setSessionCookie(c, result)
		return c.Status(http.StatusOK).JSON(result)
	}
}

// handleFederatedSignIn verifies a provider credential and reconciles it.
func (a *Adapter) handleFederatedSignIn(auth pasok.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		if a.verifier == nil {
			return handleAuthError(c, pasok.ErrUnsupportedProvider)
		}

		var input federatedInput
		if err := c.Bind().Body(&input); err != nil || input.Credential == "" {
			return handleAuthError(c, pasok.ErrInvalidRequest)
		}

		req, err := a.verifier.VerifyAssertion(c.Context(), input.Provider, input.Credential)
		if err != nil {
			return handleAuthError(c, err)
		}

		result, err := auth.FederatedSignIn(c.Context(), *req)
		if err != nil {
			return handleAuthError(c, err)
		}

		a.setSessionCookie(c, result)
		return c.Status(http.StatusOK).JSON(result)
	}
}

// handleSignOut clears the session cookie. Tokens are stateless, so there is
// nothing to revoke server side.
func (a *Adapter) handleSignOut() fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Cookie(&fiber.Cookie{
			Name:     a.cookie.name,
			Value:    "",
			Path:     "/",
			HTTPOnly: true,
			Secure:   a.cookie.secure,
			SameSite: fiber.CookieSameSiteLaxMode,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
		})
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"message": "signed out successfully",
		})
	}
}

// handleGetSession returns the view stored by RequireSession.
func (a *Adapter) handleGetSession() fiber.Handler {
	return func(c fiber.Ctx) error {
		view, ok := SessionFrom(c)
		if !ok {
			return handleAuthError(c, pasok.ErrMissingAuthHeader)
		}
		return c.Status(http.StatusOK).JSON(view)
	}
}

// handleRefreshSession re-signs the caller's token with a profile patch.
func (a *Adapter) handleRefreshSession(auth pasok.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		var patch pasok.ProfilePatch
		if len(c.Body()) > 0 {
			if err := c.Bind().Body(&patch); err != nil {
				return handleAuthError(c, pasok.ErrInvalidRequest)
			}
		}

		result, err := auth.RefreshSession(a.extractToken(c), patch)
		if err != nil {
			return handleAuthError(c, err)
		}

		a.setSessionCookie(c, result)
		return c.Status(http.StatusOK).JSON(result)
	}
}

func (a *Adapter) setSessionCookie(c fiber.Ctx, result *pasok.Result) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cookie.name,
		Value:    result.Token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   a.cookie.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  result.Session.Expires,
		MaxAge:   int(a.cookie.maxAge.Seconds()),
	})
}

// extractToken extracts the authentication token from the request.
// Checks Authorization header (Bearer token) first, then falls back to cookie.
func (a *Adapter) extractToken(c fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}

	return c.Cookies(a.cookie.name)
}

// handleAuthError maps authentication errors to appropriate HTTP responses
func handleAuthError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)
	return c.Status(status).JSON(errorResponse(err, status))
}

func errorResponse(err error, status int) pasok.ErrorResponse {
	if failure, ok := pasok.AsFailure(err); ok {
		resp := pasok.ErrorResponse{
			Error:     string(failure.Reason),
			Message:   failure.Error(),
			Providers: failure.Providers,
			Code:      status,
		}
		if failure.Reason == pasok.ReasonStoreUnavailable {
			// Never leak driver errors.
			resp.Message = pasok.ErrStoreUnavailable.Error()
		}
		return resp
	}
	return pasok.ErrorResponse{Error: err.Error(), Code: status}
}

// mapErrorToStatus maps pasok error types to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, pasok.ErrAlreadyExists),
		errors.Is(err, pasok.ErrLinkConflict):
		return http.StatusConflict

	case errors.Is(err, pasok.ErrNoAccount),
		errors.Is(err, pasok.ErrNoPasswordSet),
		errors.Is(err, pasok.ErrWrongPassword),
		errors.Is(err, pasok.ErrMissingAuthHeader),
		errors.Is(err, pasok.ErrInvalidToken),
		errors.Is(err, pasok.ErrSessionExpired),
		errors.Is(err, pasok.ErrInvalidAssertion),
		errors.Is(err, pasok.ErrEmailNotVerified):
		return http.StatusUnauthorized

	case errors.Is(err, pasok.ErrStoreUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, pasok.ErrInvalidRequest),
		errors.Is(err, pasok.ErrEmailRequired),
		errors.Is(err, pasok.ErrInvalidEmail),
		errors.Is(err, pasok.ErrPasswordRequired),
		errors.Is(err, pasok.ErrPasswordTooShort),
		errors.Is(err, pasok.ErrPasswordTooLong),
		errors.Is(err, pasok.ErrProviderRequired),
		errors.Is(err, pasok.ErrSubjectRequired),
		errors.Is(err, pasok.ErrUnsupportedProvider):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
