package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewAuthRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/fastuator/info", nil)
	r.Header.Set("X-API-Key", "k")

	req := NewAuthRequest(r, "info")
	if req.Endpoint != "info" {
		t.Errorf("Endpoint = %q, want info", req.Endpoint)
	}
	if req.GetHeader("x-api-key") != "k" {
		t.Errorf("GetHeader() = %q, want k", req.GetHeader("x-api-key"))
	}
	if (&AuthRequest{}).GetHeader("X-API-Key") != "" {
		t.Error("GetHeader on nil headers should be empty")
	}
}

func TestAuthResults(t *testing.T) {
	ok := AuthSuccess(&Identity{Principal: "p", Method: AuthMethodAPIKey})
	if !ok.Authenticated || ok.Method != "api_key" || ok.Error != nil {
		t.Errorf("AuthSuccess = %+v", ok)
	}

	fail := AuthFailure(ErrInvalidCredentials, "jwt")
	if fail.Authenticated || fail.Identity != nil || !errors.Is(fail.Error, ErrInvalidCredentials) {
		t.Errorf("AuthFailure = %+v", fail)
	}
}

func TestVerify(t *testing.T) {
	a := NewAPIKeyAuthenticator(APIKeyConfig{}, StaticAPIKeys(map[string]string{"key": "scraper"}))

	id, err := Verify(context.Background(), a, apiKeyRequest("key"))
	if err != nil || id.Principal != "scraper" {
		t.Fatalf("Verify() = %+v, %v", id, err)
	}

	if _, err := Verify(context.Background(), a, &AuthRequest{}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Verify(no credentials) error = %v", err)
	}
	if _, err := Verify(context.Background(), a, apiKeyRequest("nope")); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Verify(bad key) error = %v", err)
	}

	bare := NewAuthenticatorFunc("bare", func(context.Context, *AuthRequest) (*AuthResult, error) {
		return &AuthResult{}, nil
	})
	if _, err := Verify(context.Background(), bare, &AuthRequest{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Verify(failure without reason) error = %v", err)
	}
}

func TestRequire(t *testing.T) {
	a := NewAPIKeyAuthenticator(APIKeyConfig{}, StaticAPIKeys(map[string]string{"key": "scraper"}))

	var principal string
	handler := Require(a, "metrics")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if rec.Body.String() != UnauthorizedBody {
		t.Errorf("body = %q, want %q", rec.Body.String(), UnauthorizedBody)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || principal != "scraper" {
		t.Errorf("status = %d principal = %q, want 200 scraper", rec.Code, principal)
	}
}
