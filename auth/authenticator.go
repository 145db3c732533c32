package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: methods should honor cancellation/deadlines.
//   - Errors: Authenticate returns (nil, error) for internal errors;
//     returns (AuthResult, nil) for auth failures (check result.Authenticated).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports returns true if this authenticator can handle the request.
	Supports(ctx context.Context, req *AuthRequest) bool

	// Authenticate validates credentials and returns a result.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest carries the credentials of one call.
type AuthRequest struct {
	// Headers contains the request headers (Authorization, X-API-Key, ...).
	Headers http.Header

	// Endpoint names the protected endpoint, e.g. "info".
	Endpoint string
}

// NewAuthRequest builds an AuthRequest from an HTTP request.
func NewAuthRequest(r *http.Request, endpoint string) *AuthRequest {
	return &AuthRequest{Headers: r.Header, Endpoint: endpoint}
}

// GetHeader returns the first value for a header, or empty string.
func (r *AuthRequest) GetHeader(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// AuthResult is the result of an authentication attempt.
type AuthResult struct {
	// Authenticated is true if authentication succeeded.
	Authenticated bool

	// Identity is set only when Authenticated is true.
	Identity *Identity

	// Error is set only when Authenticated is false.
	Error error

	// Method names the authenticator that produced the result.
	Method string
}

// AuthSuccess creates a successful authentication result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        string(identity.Method),
	}
}

// AuthFailure creates a failed authentication result.
func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{
		Authenticated: false,
		Error:         err,
		Method:        method,
	}
}

// AuthenticatorFunc adapts a function to Authenticator. It supports every request.
type AuthenticatorFunc struct {
	name string
	auth func(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// NewAuthenticatorFunc creates an AuthenticatorFunc.
func NewAuthenticatorFunc(name string, fn func(ctx context.Context, req *AuthRequest) (*AuthResult, error)) *AuthenticatorFunc {
	return &AuthenticatorFunc{name: name, auth: fn}
}

// Name returns the authenticator name.
func (f *AuthenticatorFunc) Name() string {
	return f.name
}

// Supports always returns true.
func (f *AuthenticatorFunc) Supports(context.Context, *AuthRequest) bool {
	return true
}

// Authenticate calls the wrapped function.
func (f *AuthenticatorFunc) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	return f.auth(ctx, req)
}

// Verify runs a against req and returns the identity, or an error wrapping
// the failure reason. Internal errors are returned unchanged.
func Verify(ctx context.Context, a Authenticator, req *AuthRequest) (*Identity, error) {
	if !a.Supports(ctx, req) {
		return nil, ErrMissingCredentials
	}
	result, err := a.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !result.Authenticated {
		if result.Error != nil {
			return nil, result.Error
		}
		return nil, ErrInvalidCredentials
	}
	return result.Identity, nil
}
