package auth

import (
	"net/http"
)

// UnauthorizedBody is written by Require for rejected requests.
const UnauthorizedBody = `{"detail":"Unauthorized"}`

// Require returns middleware answering 401 for requests a does not
// authenticate. Accepted requests carry their Identity in the context.
func Require(a Authenticator, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := Verify(r.Context(), a, NewAuthRequest(r, endpoint))
			if err != nil {
				WriteUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WriteUnauthorized writes the 401 response used for every rejection.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(UnauthorizedBody))
}
