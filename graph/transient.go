package graph

import (
	"errors"
	"strings"
)

// RateLimitError marks an error as an upstream rate-limit response (HTTP
// 429 or provider-specific equivalent). Node implementations that call
// rate-limited collaborators can wrap their errors in RateLimitError so
// IsTransientError recognizes them without substring sniffing.
type RateLimitError struct {
	Cause error
}

func (e *RateLimitError) Error() string {
	if e.Cause != nil {
		return "rate limited: " + e.Cause.Error()
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error { return e.Cause }

// transientSubstrings are matched case-insensitively against an error's
// message when no structured RateLimitError is present.
var transientSubstrings = []string{
	"timeout",
	"network",
	"connection",
	"temporary",
	"503",
	"502",
	"500",
	"429",
	"overloaded",
}

// IsTransientError classifies an error as transient (safe to retry) using
// the same heuristic an HTTP-speaking collaborator like an LLM provider
// client would: a structured RateLimitError, or a message mentioning a
// known transport-layer failure mode. It is a utility for node
// implementations that wrap their own external I/O in retry loops; the
// engine's own retry policy (§4.4.2) only auto-retries node timeouts and
// never calls this function.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range transientSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// IsRateLimitError reports whether err is or wraps a RateLimitError.
func IsRateLimitError(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
