package services

import (
	"fmt"

	"github.com/lborres/pasok/core"
)

// BaseEndpoints returns framework-agnostic endpoint descriptions
// for all core authentication endpoints.
//
// Each endpoint is a template: adapters bind their own handlers to the
// Path and Method, and gate Protected endpoints behind a session check.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/sign-up",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: "signUpWithEmailAndPassword",
				Description: "Sign up with email and password, or add a password to an existing account",
			},
		},
		{
			Path:   "/sign-in",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: "signInWithEmailAndPassword",
				Description: "Sign in with email and password",
			},
		},
		{
			Path:   "/federated/sign-in",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: "signInWithProvider",
				Description: "Sign in with a verified identity provider assertion",
			},
		},
		{
			Path:   "/sign-out",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: "signOut",
				Description: "Clear the session cookie",
			},
		},
		{
			Path:   "/session",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: "getSession",
				Description: "Get the current session",
				Protected:   true,
			},
		},
		{
			Path:   "/session/refresh",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: "refreshSession",
				Description: "Extend the session and apply profile changes to it",
				Protected:   true,
			},
		},
	}
}

// EndpointRegistry holds endpoints in registration order and rejects a
// second endpoint on the same METHOD:PATH or with the same operation id.
type EndpointRegistry struct {
	ordered []*core.Endpoint
	byRoute map[string]*core.Endpoint
	byOp    map[string]*core.Endpoint
}

// NewEndpointRegistry creates a registry with the base endpoints registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{
		byRoute: make(map[string]*core.Endpoint),
		byOp:    make(map[string]*core.Endpoint),
	}

	// Base endpoints are unique by construction.
	_ = reg.RegisterPlugin(BaseEndpoints())

	return reg
}

func routeKey(ep *core.Endpoint) string {
	return fmt.Sprintf("%s:%s", ep.Method, ep.Path)
}

// RegisterPlugin adds endpoints to the registry. Either all of them are
// registered or, on any conflict with existing endpoints or within the
// batch, none are.
func (r *EndpointRegistry) RegisterPlugin(endpoints []core.Endpoint) error {
	routes := make(map[string]bool, len(endpoints))
	ops := make(map[string]bool, len(endpoints))

	for i := range endpoints {
		ep := &endpoints[i]
		key := routeKey(ep)

		if _, exists := r.byRoute[key]; exists {
			return fmt.Errorf("plugin endpoint conflict: %s %s already registered", ep.Method, ep.Path)
		}
		if routes[key] {
			return fmt.Errorf("plugin contains duplicate endpoint: %s %s", ep.Method, ep.Path)
		}
		routes[key] = true

		op := ep.Metadata.OperationID
		if op == "" {
			continue
		}
		if _, exists := r.byOp[op]; exists || ops[op] {
			return fmt.Errorf("plugin endpoint conflict: operation %q already registered", op)
		}
		ops[op] = true
	}

	for i := range endpoints {
		ep := endpoints[i]
		r.ordered = append(r.ordered, &ep)
		r.byRoute[routeKey(&ep)] = &ep
		if ep.Metadata.OperationID != "" {
			r.byOp[ep.Metadata.OperationID] = &ep
		}
	}

	return nil
}

// Endpoints returns every registered endpoint in registration order.
func (r *EndpointRegistry) Endpoints() []*core.Endpoint {
	return append([]*core.Endpoint(nil), r.ordered...)
}

// Operation returns the endpoint registered under operationID.
func (r *EndpointRegistry) Operation(operationID string) (*core.Endpoint, bool) {
	ep, ok := r.byOp[operationID]
	return ep, ok
}
