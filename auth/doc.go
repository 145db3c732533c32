// Package auth authenticates callers of protected actuator endpoints.
//
// It supports JWT bearer tokens (HMAC secrets or a JWKS endpoint) and static
// API keys, composed in order. Authenticators see an http.Request only through
// AuthRequest, so they can also be used behind gRPC metadata.
package auth
