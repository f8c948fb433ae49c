package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a provider failure
type Kind int

const (
	KindTransient Kind = iota
	KindRateLimited
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate limited"
	case KindAuth:
		return "authentication failed"
	default:
		return "provider error"
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind
var (
	ErrRateLimited = errors.New("rate limited")
	ErrAuth        = errors.New("authentication failed")
	ErrTransient   = errors.New("provider error")
)

// Error is the failure half of every Invoke call
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int // HTTP status if one was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers test the kind with errors.Is(err, llm.ErrRateLimited)
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrTransient:
		return e.Kind == KindTransient
	}
	return false
}

// KindOf returns the Kind carried by err, KindTransient if it carries none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// UserMessage is the short reason shown to operators for a failed call
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindRateLimited:
		return "API rate limit reached; wait a while before trying again"
	case KindAuth:
		return "API authentication failed; check the API key"
	default:
		return err.Error()
	}
}

// kindForStatus maps an HTTP status code to a Kind
func kindForStatus(code int) Kind {
	switch code {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	default:
		return KindTransient
	}
}

// kindForType refines a Kind using the provider's error type string
func kindForType(kind Kind, errType string) Kind {
	t := strings.ToLower(errType)
	switch {
	case strings.Contains(t, "rate_limit"), strings.Contains(t, "resource_exhausted"), strings.Contains(t, "insufficient_quota"):
		return KindRateLimited
	case strings.Contains(t, "authentication"), strings.Contains(t, "permission"), strings.Contains(t, "invalid_api_key"):
		return KindAuth
	}
	return kind
}

func newError(provider string, kind Kind, status int, message string, err error) *Error {
	return &Error{
		Provider:   provider,
		Kind:       kind,
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}
