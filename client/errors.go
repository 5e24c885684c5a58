package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnauthorized matches any *APIError carrying a 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRefreshRejected wraps a failed refresh call.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrNoRefreshCredential is returned when there is nothing to refresh with.
	ErrNoRefreshCredential = errors.New("no refresh credential stored")
	// ErrNetwork wraps transport failures.
	ErrNetwork = errors.New("network error")
)

// APIError is a non-2xx response. Message holds the server's human-readable
// message when the body carried one.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

const maxPlainMessage = 200

func newAPIError(req *Request, statusCode int, body []byte) *APIError {
	return &APIError{
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: statusCode,
		Message:    extractMessage(body),
		Body:       string(body),
	}
}

// extractMessage pulls a message out of an error body. The backend answers
// with {"message": ...}, {"error": ...} or a short plain-text string.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return ""
		}
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	if strings.HasPrefix(trimmed, "<") || !utf8.ValidString(trimmed) || len(trimmed) > maxPlainMessage {
		return ""
	}
	return trimmed
}

// ErrorMessage returns the server's message for err, or fallback when there is none.
func ErrorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
