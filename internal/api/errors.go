package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind partitions API failures into the buckets callers branch on.
type ErrorKind string

const (
	// KindNetwork means no response reached the server.
	KindNetwork ErrorKind = "network"
	// KindValidation is a 4xx with field-level messages.
	KindValidation ErrorKind = "validation"
	// KindConflict means the server rejected the action because its state
	// changed, e.g. the slot was booked by someone else first.
	KindConflict ErrorKind = "conflict"
	// KindAuth is a 401 or otherwise invalid credential.
	KindAuth ErrorKind = "auth"
	// KindUnknown is anything else.
	KindUnknown ErrorKind = "unknown"
)

// Error is the single error type the client returns for failed calls.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	// Message is the server-supplied message when present, else a generic
	// fallback. Safe to surface to the user verbatim.
	Message string
	// Fields holds per-field validation messages from the server envelope.
	Fields map[string]string
	// Err is the underlying transport error for network failures.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the text a UI should show for this failure.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return genericMessage(e.Kind)
}

func genericMessage(kind ErrorKind) string {
	switch kind {
	case KindNetwork:
		return "Sunucuya ulaşılamadı. Bağlantınızı kontrol edin."
	case KindAuth:
		return "Oturumunuzun süresi doldu. Lütfen tekrar giriş yapın."
	case KindConflict:
		return "Bu işlem artık geçerli değil. Liste yenilendi."
	case KindValidation:
		return "Girilen bilgiler geçersiz."
	default:
		return "Beklenmeyen bir hata oluştu."
	}
}

// KindOf reports the ErrorKind of err, or KindUnknown when err is not an
// api.Error.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsAuthError reports whether err represents an invalid credential.
func IsAuthError(err error) bool {
	return KindOf(err) == KindAuth
}

// errorEnvelope is the backend's error body: {"message": "...",
// "errors": {"field": "message"}}.
type errorEnvelope struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusConflict:
		return KindConflict
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindUnknown
	}
}
