package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status  int
	Code    string
	Err     error
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail returns e after setting key on its details map.
func (e *Error) WithDetail(key string, val any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = val
	return e
}

// Retryable reports whether the client may resend the same request unchanged.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if v, ok := e.Details["retryable"].(bool); ok {
		return v
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(code string, err error) *Error {
	return New(http.StatusBadRequest, code, err)
}

func Auth(err error) *Error {
	return New(http.StatusUnauthorized, "unauthorized", err)
}

func Permission(code string, err error) *Error {
	return New(http.StatusForbidden, code, err)
}

func NotFound(code string, err error) *Error {
	return New(http.StatusNotFound, code, err)
}

func Billing(code string, err error) *Error {
	return New(http.StatusPaymentRequired, code, err)
}

func RateLimited(err error, retryAfterSeconds int64) *Error {
	return New(http.StatusTooManyRequests, "rate_limited", err).
		WithDetail("retry_after_seconds", retryAfterSeconds).
		WithDetail("retryable", true)
}

func Provider(status int, code string, err error) *Error {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return New(status, code, err).WithDetail("retryable", true)
}

func Internal(code string, err error) *Error {
	return New(http.StatusInternalServerError, code, err)
}

// As unwraps err into an *Error, wrapping anything else as a 500.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal_error", err)
}
