package fiber

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/pasok"
)

const defaultCookieName = "pasok_session"

type Adapter struct {
	app      *fiber.App
	verifier pasok.AssertionVerifier
	cookie   cookieConfig
}

type cookieConfig struct {
	name   string
	secure bool
	maxAge time.Duration
}

var _ pasok.HTTPAdapter = (*Adapter)(nil)

// Option configures the adapter.
type Option func(*Adapter)

// WithAssertionVerifier enables the federated sign-in endpoint.
func WithAssertionVerifier(v pasok.AssertionVerifier) Option {
	return func(a *Adapter) {
		a.verifier = v
	}
}

// WithCookie overrides the session cookie name and Secure flag.
func WithCookie(name string, secure bool) Option {
	return func(a *Adapter) {
		a.cookie.name = name
		a.cookie.secure = secure
	}
}

func New(app *fiber.App, opts ...Option) *Adapter {
	a := &Adapter{
		app:    app,
		cookie: cookieConfig{name: defaultCookieName, secure: true},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes binds every endpoint in the registry under basePath.
// Protected endpoints run behind the session middleware.
func (a *Adapter) RegisterRoutes(auth pasok.AuthHandler, basePath string, ttl time.Duration) error {
	a.cookie.maxAge = ttl

	handlers := map[string]fiber.Handler{
		"signUpWithEmailAndPassword": a.handleSignUp(auth),
		"signInWithEmailAndPassword": a.handleSignIn(auth),
		"signInWithProvider":         a.handleFederatedSignIn(auth),
		"signOut":                    a.handleSignOut(),
		"getSession":                 a.handleGetSession(),
		"refreshSession":             a.handleRefreshSession(auth),
	}

	api := a.app.Group(basePath)
	for _, ep := range pasok.NewEndpointRegistry().Endpoints() {
		h, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no fiber handler for endpoint %s %s", ep.Method, ep.Path)
		}

		methods := []string{ep.Method}
		if ep.Metadata.Protected {
			api.Add(methods, ep.Path, a.RequireSession(auth), h)
		} else {
			api.Add(methods, ep.Path, h)
		}
	}

	return nil
}
