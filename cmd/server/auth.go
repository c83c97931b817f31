package main

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// passwordGate guards a route group with a shared password, given either as
// "Authorization: Bearer <password>" or as the HTTP basic password. An empty
// password disables the gate.
func passwordGate(password string) func(http.Handler) http.Handler {
	want := []byte(password)

	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			got, ok := presentedPassword(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="visualdna"`)
				writeUnauthorized(w, "missing credentials")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				writeUnauthorized(w, "invalid password")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedPassword(r *http.Request) (string, bool) {
	if _, pass, ok := r.BasicAuth(); ok {
		return pass, true
	}
	const bearerPrefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):]), true
	}
	return "", false
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + codeUnauthorized + `","message":"` + message + `","code":401}`))
}
