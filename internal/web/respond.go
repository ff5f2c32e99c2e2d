package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/metalagman/taskgraph/internal/auth"
	"github.com/metalagman/taskgraph/internal/task"
	"github.com/rs/zerolog/log"
)

// apiError is a rejection produced by the HTTP layer itself.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

var (
	errUnauthorized = &apiError{status: http.StatusUnauthorized, code: "unauthorized", message: "valid credentials are required"}
	errForbidden    = &apiError{status: http.StatusForbidden, code: "forbidden", message: "this action is unauthorized"}

	errManagerRegistration = &apiError{status: http.StatusForbidden, code: "forbidden", message: "managers cannot self-register"}
)

func badRequest(message string) error {
	return &apiError{status: http.StatusBadRequest, code: "invalid_request", message: message}
}

func unprocessable(message string) error {
	return &apiError{status: http.StatusUnprocessableEntity, code: "invalid_request", message: message}
}

type errorBody struct {
	Error   string  `json:"error"`
	Message string  `json:"message"`
	Pending []int64 `json:"pending,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.status, errorBody{Error: apiErr.code, Message: apiErr.message}
	}
	var taskErr *task.Error
	if errors.As(err, &taskErr) {
		return taskErr.Kind.HTTPStatus(), errorBody{Error: string(taskErr.Kind), Message: taskErr.Error(), Pending: taskErr.Blocking}
	}
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, errorBody{Error: "email_taken", Message: err.Error()}
	case errors.Is(err, auth.ErrInvalidUser):
		return http.StatusUnprocessableEntity, errorBody{Error: "invalid_request", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorBody{Error: "timeout", Message: "request timed out"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}
