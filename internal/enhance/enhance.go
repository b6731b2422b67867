// Package enhance defines the text-enhancement capability the pipeline
// consumes and a client for the DeepSeek chat-completions API.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mode selects the kind of enhancement. Closed set, validated at the
// pipeline boundary.
type Mode string

const (
	ModeGeneral     Mode = "general"
	ModeGrammar     Mode = "grammar"
	ModeSemantic    Mode = "semantic"
	ModeTerminology Mode = "terminology"
)

// TargetLength guides how much the service may expand or condense.
type TargetLength string

const (
	LengthShort  TargetLength = "short"
	LengthMedium TargetLength = "medium"
	LengthLong   TargetLength = "long"
)

// Options parameterizes one enhancement call.
type Options struct {
	Mode         Mode
	TargetLength TargetLength
}

// DefaultOptions is general enhancement at medium length.
func DefaultOptions() Options {
	return Options{Mode: ModeGeneral, TargetLength: LengthMedium}
}

// Validate rejects modes and lengths outside the closed sets.
func (o Options) Validate() error {
	switch o.Mode {
	case ModeGeneral, ModeGrammar, ModeSemantic, ModeTerminology:
	default:
		return fmt.Errorf("invalid enhancement mode %q", o.Mode)
	}
	switch o.TargetLength {
	case LengthShort, LengthMedium, LengthLong:
	default:
		return fmt.Errorf("invalid target length %q", o.TargetLength)
	}
	return nil
}

// Enhancer is the capability interface the engine depends on. The
// pipeline never sees the concrete transport behind it.
type Enhancer interface {
	Enhance(ctx context.Context, text string, opts Options) (string, error)
}

// RateLimitedError signals the service asked us to slow down. The
// engine pauses all workers for RetryAfter (or a configured default).
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// TransientError is a retryable server-side or network failure.
type TransientError struct {
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// AuthError means the credentials were rejected. Never retried.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// InvalidInputError means the service rejected the request itself
// (malformed input, content policy). Never retried.
type InvalidInputError struct {
	StatusCode int
	Message    string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("input rejected (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable reports whether an attempt with this error is worth
// repeating: rate limits, server-side transients, and timeouts are;
// auth and input rejections are not.
func IsRetryable(err error) bool {
	var rl *RateLimitedError
	var tr *TransientError
	if errors.As(err, &rl) || errors.As(err, &tr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// RetryAfter extracts a service-mandated cooldown, or 0.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
