package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"example.com/sia/internal/logger"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// Middleware resolves the bearer credential of activity-service requests into claims. The
// credential is a signed token when a secret is configured and the raw user id otherwise.
type Middleware struct {
	Config  Config
	Skipper Skipper
	Log     *logger.Logger
}

// NewMiddleware constructs a middleware with optional skipper.
func NewMiddleware(cfg Config, skipper Skipper) Middleware {
	return Middleware{Config: cfg, Skipper: skipper, Log: logger.Nop()}
}

// WithLogger returns a copy that logs rejected requests.
func (m Middleware) WithLogger(log *logger.Logger) Middleware {
	if log != nil {
		m.Log = log
	}
	return m
}

// Wrap wraps an http.Handler with authentication.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := credential(r)
		if err != nil {
			m.reject(w, r, err)
			return
		}
		claims, err := Parse(token, m.Config)
		if err != nil {
			m.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// reject answers with the service's error shape and a bearer challenge.
func (m Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	challenge := `Bearer realm="sia"`
	if !errors.Is(err, ErrMissingToken) {
		challenge += `, error="invalid_token"`
	}
	if m.Log != nil {
		m.Log.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}

func credential(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(value), nil
}
