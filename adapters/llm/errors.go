package llm

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed generation call
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindNetwork   ErrorKind = "network"
	KindMalformed ErrorKind = "malformed"
	KindUpstream  ErrorKind = "upstream"
)

// GenerationError is returned by every provider client
type GenerationError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Cause    error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s error (http %d): %v", e.Provider, e.Kind, e.Status, e.Cause)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a later attempt may succeed
func (e *GenerationError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindRateLimit || (e.Kind == KindUpstream && e.Status >= 500)
}

// KindOf returns the kind of a generation error, or "" for other errors
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if stderrors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}

func statusKind(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	default:
		return KindUpstream
	}
}

func httpError(provider string, status int, body []byte) *GenerationError {
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	return &GenerationError{
		Provider: provider,
		Kind:     statusKind(status),
		Status:   status,
		Cause:    fmt.Errorf("%s", body),
	}
}
