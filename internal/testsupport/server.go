package testsupport

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

// Server bundles a running in-memory service with the identity tests act as.
type Server struct {
	*Service
	HTTP    *httptest.Server
	BaseURL string
	UserID  string
}

// StartServer runs a Service on an httptest server for the duration of the test.
func StartServer(t testing.TB, opts ...Option) *Server {
	t.Helper()
	svc := NewService(opts...)
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	return &Server{
		Service: svc,
		HTTP:    srv,
		BaseURL: srv.URL + "/api/v1",
		UserID:  uuid.NewString(),
	}
}
