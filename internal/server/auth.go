package server

import (
	"github.com/jonwraymond/fastuator/auth"
	"github.com/jonwraymond/fastuator/internal/config"
)

// buildAuthenticator returns nil when no credentials are configured.
func buildAuthenticator(cfg config.AuthConfig) auth.Authenticator {
	var auths []auth.Authenticator

	if len(cfg.APIKeys) > 0 {
		auths = append(auths, auth.NewAPIKeyAuthenticator(
			auth.APIKeyConfig{HeaderName: cfg.APIKeyHeader},
			auth.StaticAPIKeys(cfg.APIKeyMap()),
		))
	}

	var keys auth.KeyProvider
	switch {
	case cfg.JWT.Secret != "":
		keys = auth.NewStaticKeyProvider([]byte(cfg.JWT.Secret))
	case cfg.JWT.JWKSURL != "":
		keys = auth.NewJWKSKeyProvider(auth.JWKSConfig{URL: cfg.JWT.JWKSURL})
	}
	if keys != nil {
		auths = append(auths, auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
			Leeway:   cfg.JWT.Leeway,
		}, keys))
	}

	switch len(auths) {
	case 0:
		return nil
	case 1:
		return auths[0]
	default:
		return auth.NewCompositeAuthenticator(auths...)
	}
}
