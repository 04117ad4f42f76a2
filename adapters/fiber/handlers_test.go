package fiber

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/pasok"
)

// mockAuthHandler is a test fake implementing pasok.AuthHandler
type mockAuthHandler struct {
	result *pasok.Result
	err    error

	signUpInput    pasok.SignUpRequest
	signInInput    pasok.SignInRequest
	federatedInput pasok.FederatedSignInRequest

	view       *pasok.SessionView
	sessionErr error

	sessionToken string
	refreshToken string
	refreshPatch pasok.ProfilePatch
	calls        []string
}

func (m *mockAuthHandler) SignUp(_ context.Context, req pasok.SignUpRequest) (*pasok.Result, error) {
	m.calls = append(m.calls, "SignUp")
	m.signUpInput = req
	return m.result, m.err
}

func (m *mockAuthHandler) SignIn(_ context.Context, req pasok.SignInRequest) (*pasok.Result, error) {
	m.calls = append(m.calls, "SignIn")
	m.signInInput = req
	return m.result, m.err
}

func (m *mockAuthHandler) FederatedSignIn(_ context.Context, req pasok.FederatedSignInRequest) (*pasok.Result, error) {
	m.calls = append(m.calls, "FederatedSignIn")
	m.federatedInput = req
	return m.result, m.err
}

func (m *mockAuthHandler) GetSession(token string) (*pasok.SessionView, error) {
	m.calls = append(m.calls, "GetSession")
	m.sessionToken = token
	return m.view, m.sessionErr
}

func (m *mockAuthHandler) RefreshSession(token string, patch pasok.ProfilePatch) (*pasok.Result, error) {
	m.calls = append(m.calls, "RefreshSession")
	m.refreshToken = token
	m.refreshPatch = patch
	return m.result, m.err
}

type mockVerifier struct {
	req *pasok.FederatedSignInRequest
	err error

	provider   string
	credential string
}

func (v *mockVerifier) VerifyAssertion(_ context.Context, provider, credential string) (*pasok.FederatedSignInRequest, error) {
	v.provider = provider
	v.credential = credential
	return v.req, v.err
}

func testResult() *pasok.Result {
	name := "Ana"
	return &pasok.Result{
		Token: "signed.jwt.token",
		Session: pasok.SessionView{
			User:    pasok.SessionUser{ID: "acc_1", Email: "a@x.com", Name: &name},
			Expires: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		},
	}
}

func newTestApp(t *testing.T, auth pasok.AuthHandler, opts ...Option) *fiber.App {
	t.Helper()
	app := fiber.New()
	adapter := New(app, opts...)
	if err := adapter.RegisterRoutes(auth, "/api/auth", time.Hour); err != nil {
		t.Fatalf("RegisterRoutes() error = %v", err)
	}
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, header map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == defaultCookieName {
			return c
		}
	}
	return nil
}

// Requirement: successful flows return the token and session and set the cookie
func TestHandlers_SuccessfulFlows(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCall   string
	}{
		{
			name:       "sign up returns 201",
			path:       "/api/auth/sign-up",
			body:       `{"email":"a@x.com","password":"password1","displayName":"Ana"}`,
			wantStatus: http.StatusCreated,
			wantCall:   "SignUp",
		},
		{
			name:       "sign in returns 200",
			path:       "/api/auth/sign-in",
			body:       `{"email":"a@x.com","password":"password1"}`,
			wantStatus: http.StatusOK,
			wantCall:   "SignIn",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			mock := &mockAuthHandler{result: testResult()}
			app := newTestApp(t, mock)

			// Act
			resp := do(t, app, http.MethodPost, test.path, test.body, nil)

			// Assert
			if resp.StatusCode != test.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, test.wantStatus)
			}
			if len(mock.calls) != 1 || mock.calls[0] != test.wantCall {
				t.Errorf("calls = %v, want [%s]", mock.calls, test.wantCall)
			}
			cookie := sessionCookie(resp)
			if cookie == nil || cookie.Value != "signed.jwt.token" || !cookie.HttpOnly {
				t.Errorf("session cookie = %+v", cookie)
			}
			body := decode[map[string]any](t, resp)
			if body["token"] != "signed.jwt.token" {
				t.Errorf("token = %v", body["token"])
			}
			if _, ok := body["session"]; !ok {
				t.Error("response has no session")
			}
		})
	}
}

// Requirement: request bodies reach the orchestrator unchanged
func TestHandleSignUp_BindsBody(t *testing.T) {
	// Arrange
	mock := &mockAuthHandler{result: testResult()}
	app := newTestApp(t, mock)

	// Act
	resp := do(t, app, http.MethodPost, "/api/auth/sign-up",
		`{"email":"a@x.com","password":"password1","displayName":"Ana"}`, nil)
	resp.Body.Close()

	// Assert
	if mock.signUpInput.Email != "a@x.com" || mock.signUpInput.Password != "password1" {
		t.Errorf("SignUp input = %+v", mock.signUpInput)
	}
	if mock.signUpInput.DisplayName == nil || *mock.signUpInput.DisplayName != "Ana" {
		t.Errorf("DisplayName = %v, want Ana", mock.signUpInput.DisplayName)
	}
}

// Requirement: rejections map to status codes and typed error bodies
func TestHandlers_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantError     string
		wantProviders []string
	}{
		{
			name:       "already exists is 409",
			err:        pasok.Reject(pasok.ReasonAlreadyExists),
			wantStatus: http.StatusConflict,
			wantError:  "already_exists",
		},
		{
			name:       "no account is 401",
			err:        pasok.Reject(pasok.ReasonNoAccount),
			wantStatus: http.StatusUnauthorized,
			wantError:  "no_account",
		},
		{
			name:          "no password set lists providers",
			err:           &pasok.AuthFailure{Reason: pasok.ReasonNoPasswordSet, Providers: []string{"google"}},
			wantStatus:    http.StatusUnauthorized,
			wantError:     "no_password_set",
			wantProviders: []string{"google"},
		},
		{
			name:       "wrong password is 401",
			err:        pasok.Reject(pasok.ReasonWrongPassword),
			wantStatus: http.StatusUnauthorized,
			wantError:  "wrong_password",
		},
		{
			name:       "store unavailable is 503",
			err:        pasok.Unavailable(errors.New("dial tcp 10.0.0.1:5432")),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "store_unavailable",
		},
		{
			name:       "validation error is 400",
			err:        pasok.ErrInvalidEmail,
			wantStatus: http.StatusBadRequest,
			wantError:  pasok.ErrInvalidEmail.Error(),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			mock := &mockAuthHandler{err: test.err}
			app := newTestApp(t, mock)

			// Act
			resp := do(t, app, http.MethodPost, "/api/auth/sign-in", `{"email":"a@x.com","password":"password1"}`, nil)

			// Assert
			if resp.StatusCode != test.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, test.wantStatus)
			}
			if sessionCookie(resp) != nil {
				t.Error("rejection must not set a session cookie")
			}
			body := decode[pasok.ErrorResponse](t, resp)
			if body.Error != test.wantError {
				t.Errorf("error = %q, want %q", body.Error, test.wantError)
			}
			if strings.Join(body.Providers, ",") != strings.Join(test.wantProviders, ",") {
				t.Errorf("providers = %v, want %v", body.Providers, test.wantProviders)
			}
			if strings.Contains(body.Message, "10.0.0.1") {
				t.Errorf("message %q leaks the store cause", body.Message)
			}
		})
	}
}

// Requirement: malformed bodies are rejected before reaching the orchestrator
func TestHandlers_MalformedBody(t *testing.T) {
	// Arrange
	mock := &mockAuthHandler{result: testResult()}
	app := newTestApp(t, mock)

	// Act
	resp := do(t, app, http.MethodPost, "/api/auth/sign-up", `{"email":`, nil)
	resp.Body.Close()

	// Assert
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if len(mock.calls) != 0 {
		t.Errorf("calls = %v, want none", mock.calls)
	}
}

// Requirement: federated sign-in trusts only verified assertions
func TestHandleFederatedSignIn(t *testing.T) {
	verified := &pasok.FederatedSignInRequest{Provider: "google", ProviderSubjectID: "g-1", Email: "a@x.com"}

	tests := []struct {
		name       string
		verifier   *mockVerifier
		body       string
		wantStatus int
		wantCalled bool
	}{
		{
			name:       "verified assertion signs in",
			verifier:   &mockVerifier{req: verified},
			body:       `{"provider":"google","credential":"id-token"}`,
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "no verifier configured",
			body:       `{"provider":"google","credential":"id-token"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing credential",
			verifier:   &mockVerifier{req: verified},
			body:       `{"provider":"google"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid assertion",
			verifier:   &mockVerifier{err: pasok.ErrInvalidAssertion},
			body:       `{"provider":"google","credential":"forged"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unsupported provider",
			verifier:   &mockVerifier{err: pasok.ErrUnsupportedProvider},
			body:       `{"provider":"myspace","credential":"x"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			mock := &mockAuthHandler{result: testResult()}
			var opts []Option
			if test.verifier != nil {
				opts = append(opts, WithAssertionVerifier(test.verifier))
			}
			app := newTestApp(t, mock, opts...)

			// Act
			resp := do(t, app, http.MethodPost, "/api/auth/federated/sign-in", test.body, nil)
			resp.Body.Close()

			// Assert
			if resp.StatusCode != test.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, test.wantStatus)
			}
			called := len(mock.calls) == 1 && mock.calls[0] == "FederatedSignIn"
			if called != test.wantCalled {
				t.Errorf("FederatedSignIn called = %v, want %v", called, test.wantCalled)
			}
			if test.wantCalled {
				if test.verifier.credential != "id-token" || test.verifier.provider != "google" {
					t.Errorf("verifier got %q/%q", test.verifier.provider, test.verifier.credential)
				}
				if mock.federatedInput.ProviderSubjectID != "g-1" {
					t.Errorf("FederatedSignIn input = %+v", mock.federatedInput)
				}
			}
		})
	}
}

// Requirement: protected endpoints accept a bearer token or the session cookie
func TestRequireSession(t *testing.T) {
	view := &pasok.SessionView{User: pasok.SessionUser{ID: "acc_1", Email: "a@x.com"}}

	tests := []struct {
		name       string
		header     map[string]string
		sessionErr error
		wantStatus int
		wantToken  string
	}{
		{
			name:       "bearer token",
			header:     map[string]string{fiber.HeaderAuthorization: "Bearer tok-1"},
			wantStatus: http.StatusOK,
			wantToken:  "tok-1",
		},
		{
			name:       "cookie fallback",
			header:     map[string]string{fiber.HeaderCookie: defaultCookieName + "=tok-2"},
			wantStatus: http.StatusOK,
			wantToken:  "tok-2",
		},
		{
			name:       "missing token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			header:     map[string]string{fiber.HeaderAuthorization: "Bearer old"},
			sessionErr: pasok.ErrSessionExpired,
			wantStatus: http.StatusUnauthorized,
			wantToken:  "old",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			mock := &mockAuthHandler{view: view, sessionErr: test.sessionErr}
			if test.sessionErr != nil {
				mock.view = nil
			}
			app := newTestApp(t, mock)

			// Act
			resp := do(t, app, http.MethodGet, "/api/auth/session", "", test.header)

			// Assert
			if resp.StatusCode != test.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, test.wantStatus)
			}
			if mock.sessionToken != test.wantToken {
				t.Errorf("token = %q, want %q", mock.sessionToken, test.wantToken)
			}
			if test.wantStatus == http.StatusOK {
				got := decode[pasok.SessionView](t, resp)
				if got.User.ID != "acc_1" {
					t.Errorf("session user = %+v", got.User)
				}
			}
		})
	}
}

// Requirement: refresh passes the patch and re-issues the cookie
func TestHandleRefreshSession(t *testing.T) {
	// Arrange
	mock := &mockAuthHandler{
		result: testResult(),
		view:   &pasok.SessionView{User: pasok.SessionUser{ID: "acc_1"}},
	}
	app := newTestApp(t, mock)

	// Act
	resp := do(t, app, http.MethodPost, "/api/auth/session/refresh", `{"displayName":"Anita"}`,
		map[string]string{fiber.HeaderAuthorization: "Bearer tok-1"})
	resp.Body.Close()

	// Assert
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if mock.refreshToken != "tok-1" {
		t.Errorf("refresh token = %q, want tok-1", mock.refreshToken)
	}
	if mock.refreshPatch.DisplayName == nil || *mock.refreshPatch.DisplayName != "Anita" {
		t.Errorf("patch = %+v", mock.refreshPatch)
	}
	if c := sessionCookie(resp); c == nil || c.Value != "signed.jwt.token" {
		t.Errorf("session cookie = %+v", c)
	}
}

// Requirement: every registry endpoint is mounted with its declared method
func TestRegisterRoutes_UsesRegistryMethods(t *testing.T) {
	// Arrange
	app := newTestApp(t, &mockAuthHandler{})

	mounted := map[string]bool{}
	for _, r := range app.GetRoutes(true) {
		mounted[r.Method+" "+r.Path] = true
	}

	// Act + Assert
	for _, ep := range pasok.NewEndpointRegistry().Endpoints() {
		key := ep.Method + " /api/auth" + ep.Path
		if !mounted[key] {
			t.Errorf("route %s not mounted", key)
		}
	}

	resp := do(t, app, http.MethodPost, "/api/auth/session", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/auth/session status = %d, want 405", resp.StatusCode)
	}
}

// Requirement: sign out expires the session cookie
func TestHandleSignOut_ClearsCookie(t *testing.T) {
	// Arrange
	app := newTestApp(t, &mockAuthHandler{})

	// Act
	resp := do(t, app, http.MethodPost, "/api/auth/sign-out", "", nil)
	resp.Body.Close()

	// Assert
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	c := sessionCookie(resp)
	if c == nil || c.Value != "" || !c.Expires.Before(time.Now()) {
		t.Errorf("session cookie = %+v, want an expired empty cookie", c)
	}
}

// Requirement: mapErrorToStatus maps authentication errors to correct HTTP status codes
func TestMapErrorToStatus_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "maps ErrAlreadyExists to 409", err: pasok.ErrAlreadyExists, wantStatus: http.StatusConflict},
		{name: "maps ErrLinkConflict to 409", err: pasok.Reject(pasok.ReasonLinkConflict), wantStatus: http.StatusConflict},
		{name: "maps ErrNoAccount to 401", err: pasok.ErrNoAccount, wantStatus: http.StatusUnauthorized},
		{name: "maps ErrNoPasswordSet to 401", err: pasok.ErrNoPasswordSet, wantStatus: http.StatusUnauthorized},
		{name: "maps ErrWrongPassword to 401", err: pasok.ErrWrongPassword, wantStatus: http.StatusUnauthorized},
		{name: "maps ErrInvalidToken to 401", err: pasok.ErrInvalidToken, wantStatus: http.StatusUnauthorized},
		{name: "maps ErrSessionExpired to 401", err: pasok.ErrSessionExpired, wantStatus: http.StatusUnauthorized},
		{name: "maps ErrEmailNotVerified to 401", err: pasok.ErrEmailNotVerified, wantStatus: http.StatusUnauthorized},
		{name: "maps ErrStoreUnavailable to 503", err: pasok.ErrStoreUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "maps ErrEmailRequired to 400", err: pasok.ErrEmailRequired, wantStatus: http.StatusBadRequest},
		{name: "maps ErrPasswordTooShort to 400", err: pasok.ErrPasswordTooShort, wantStatus: http.StatusBadRequest},
		{name: "maps ErrUnsupportedProvider to 400", err: pasok.ErrUnsupportedProvider, wantStatus: http.StatusBadRequest},
		{name: "defaults unknown errors to 500", err: errors.New("unknown error"), wantStatus: http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Act
			status := mapErrorToStatus(test.err)

			// Assert
			if status != test.wantStatus {
				t.Errorf("mapErrorToStatus should map error to %d; got %d", test.wantStatus, status)
			}
		})
	}
}
