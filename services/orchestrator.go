package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lborres/pasok/core"
	"github.com/lborres/pasok/pkg/crypto"
)

// Orchestrator drives every sign-up and sign-in through the reconciliation
// state machine and issues claims on success.
type Orchestrator struct {
	linker        *Linker
	authenticator *Authenticator
	issuer        *SessionIssuer
	log           *zap.Logger
}

// Ensure Orchestrator implements AuthHandler
var _ core.AuthHandler = (*Orchestrator)(nil)

func NewOrchestrator(store core.CredentialStore, hasher crypto.PasswordHandler, issuer *SessionIssuer, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	resolver := NewResolver(store)
	return &Orchestrator{
		linker:        NewLinker(store, resolver),
		authenticator: NewAuthenticator(store, resolver, hasher),
		issuer:        issuer,
		log:           log.Named("reconcile"),
	}
}

// flow tracks the states one request passes through.
type flow struct {
	op   string
	path []core.State
	log  *zap.Logger
}

func (o *Orchestrator) newFlow(op string) *flow {
	return &flow{op: op, path: []core.State{core.StateStart}, log: o.log}
}

func (f *flow) current() core.State {
	return f.path[len(f.path)-1]
}

func (f *flow) enter(next core.State) {
	if !core.CanTransition(f.current(), next) {
		f.log.DPanic("illegal state transition",
			zap.String("op", f.op),
			zap.String("from", string(f.current())),
			zap.String("to", string(next)),
		)
	}
	f.path = append(f.path, next)
}

// SignUp registers a password account or provisions a password onto an
// existing federated-only account.
func (o *Orchestrator) SignUp(ctx context.Context, req core.SignUpRequest) (*core.Result, error) {
	req, err := ValidateSignUp(req)
	if err != nil {
		return nil, err
	}

	f := o.newFlow("sign_up")
	account, err := o.authenticator.register(ctx, req, f.enter)
	return o.finish(f, account, core.ProviderCredential, err)
}

// SignIn authenticates an email and password.
func (o *Orchestrator) SignIn(ctx context.Context, req core.SignInRequest) (*core.Result, error) {
	req, err := ValidateSignIn(req)
	if err != nil {
		return nil, err
	}

	f := o.newFlow("sign_in")
	account, err := o.authenticator.authenticate(ctx, req, f.enter)
	return o.finish(f, account, core.ProviderCredential, err)
}

// FederatedSignIn reconciles a trusted provider assertion against the
// account table.
func (o *Orchestrator) FederatedSignIn(ctx context.Context, req core.FederatedSignInRequest) (*core.Result, error) {
	req, err := ValidateFederated(req)
	if err != nil {
		return nil, err
	}

	f := o.newFlow("federated_sign_in")
	account, err := o.linker.linkOrCreate(ctx, req, f.enter)
	return o.finish(f, account, req.Provider, err)
}

// finish moves the flow into its terminal state.
func (o *Orchestrator) finish(f *flow, account *core.Account, provider string, err error) (*core.Result, error) {
	if err != nil {
		return nil, o.reject(f, err)
	}

	claims := o.issuer.Issue(account, provider)
	token, err := o.issuer.Sign(claims)
	if err != nil {
		return nil, o.reject(f, core.Unavailable(err))
	}
	f.enter(core.StateClaimsIssued)

	o.log.Debug("claims issued",
		zap.String("op", f.op),
		zap.String("account_id", account.ID),
		zap.String("provider", provider),
		zap.Stringers("path", f.path),
	)

	return &core.Result{
		Account: account,
		Claims:  claims,
		Token:   token,
		Session: Project(claims),
		Path:    f.path,
	}, nil
}

func (o *Orchestrator) reject(f *flow, err error) error {
	failure, ok := core.AsFailure(err)
	if !ok {
		// Anything untyped reaching here is a store fault.
		failure = core.Unavailable(err)
	}
	f.enter(core.StateRejected)
	failure.Path = f.path

	fields := []zap.Field{
		zap.String("op", f.op),
		zap.String("reason", string(failure.Reason)),
		zap.Stringers("path", f.path),
	}
	if failure.Reason == core.ReasonStoreUnavailable {
		o.log.Error("credential store unavailable", append(fields, zap.Error(failure.Err))...)
	} else {
		o.log.Debug("request rejected", fields...)
	}
	return failure
}

// GetSession verifies a token and projects it for the client.
func (o *Orchestrator) GetSession(token string) (*core.SessionView, error) {
	claims, err := o.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	view := Project(claims)
	return &view, nil
}

// RefreshSession re-signs token with patch applied, without a store read.
func (o *Orchestrator) RefreshSession(token string, patch core.ProfilePatch) (*core.Result, error) {
	claims, err := o.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	patch, err = ValidatePatch(patch)
	if err != nil {
		return nil, err
	}

	refreshed := o.issuer.Refresh(claims, patch)
	signed, err := o.issuer.Sign(refreshed)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return &core.Result{
		Claims:  refreshed,
		Token:   signed,
		Session: Project(refreshed),
	}, nil
}

// IsRejection reports whether err is a terminal reconciliation outcome, as
// opposed to invalid input or an invalid session.
func IsRejection(err error) bool {
	var f *core.AuthFailure
	return errors.As(err, &f)
}
