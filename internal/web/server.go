// Package web serves the task graph as a JSON HTTP API.
package web

import (
	"net/http"
	"time"

	"github.com/metalagman/taskgraph/internal/auth"
	"github.com/metalagman/taskgraph/internal/tracker"
)

// DefaultRequestTimeout bounds a request when Options.RequestTimeout is zero.
const DefaultRequestTimeout = 5 * time.Second

// Options tunes the API server.
type Options struct {
	RequestTimeout time.Duration
	// AllowManagerRegistration permits anonymous registration with the manager role.
	AllowManagerRegistration bool
}

// Server provides the API handlers.
type Server struct {
	svc            *tracker.Service
	users          *auth.Store
	policy         auth.Policy
	requestTimeout time.Duration
	allowManagers  bool
}

// NewServer creates a new API server.
func NewServer(svc *tracker.Service, users *auth.Store, opts Options) *Server {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Server{
		svc:            svc,
		users:          users,
		requestTimeout: timeout,
		allowManagers:  opts.AllowManagerRegistration,
	}
}

// Routes returns the router for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)

	mux.Handle("GET /tasks", s.authenticated(s.handleListTasks))
	mux.Handle("GET /tasks/mine", s.authenticated(s.handleMyTasks))
	mux.Handle("POST /tasks", s.authenticated(s.handleCreateTask))
	mux.Handle("GET /tasks/{id}", s.authenticated(s.handleShowTask))
	mux.Handle("PUT /tasks/{id}", s.authenticated(s.handleUpdateTask))
	mux.Handle("PATCH /tasks/{id}/status", s.authenticated(s.handleUpdateStatus))
	mux.Handle("POST /tasks/{id}/dependencies", s.authenticated(s.handleAddDependency))
	mux.Handle("GET /tasks/{id}/cycle-check", s.authenticated(s.handleCycleCheck))

	return withRequestID(accessLog(withTimeout(s.requestTimeout, mux)))
}
