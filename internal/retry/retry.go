// Package retry provides an explicit retry policy for network calls to
// Drive and Salesforce. The policy is applied at each call site rather
// than woven in as a cross-cutting aspect, so a reader can always see
// which operations retry and which do not.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"
)

// ErrorType categorizes an error for retry decisions.
type ErrorType string

const (
	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeTimeout   ErrorType = "timeout"
	ErrorTypeServer    ErrorType = "server"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeClient    ErrorType = "client"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// StatusError is implemented by API errors that carry an HTTP status code.
type StatusError interface {
	error
	HTTPStatus() int
}

// RetryAfterError is implemented by API errors that carry a
// server-suggested wait. When present and positive, the suggestion takes
// precedence over the computed backoff.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// Classify maps an error to an ErrorType.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTypeTimeout
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return ClassifyStatus(statusErr.HTTPStatus())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}

	return ErrorTypeUnknown
}

// ClassifyStatus maps an HTTP status code to an ErrorType.
func ClassifyStatus(status int) ErrorType {
	switch {
	case status == 429:
		return ErrorTypeRateLimit
	case status == 401 || status == 403:
		return ErrorTypeAuth
	case status >= 400 && status < 500:
		return ErrorTypeClient
	case status >= 500:
		return ErrorTypeServer
	default:
		return ErrorTypeUnknown
	}
}

// Retryable reports whether an error type should be retried. Rate limits,
// server errors, timeouts, and network failures are transient; auth and
// client errors are not.
func Retryable(t ErrorType) bool {
	switch t {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// Policy holds the retry parameters for a group of call sites.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	Multiplier  float64       // backoff growth factor per retry
	MaxDelay    time.Duration // cap on any single delay
	Jitter      bool          // randomize delays by ±25%
}

// DefaultPolicy mirrors the retry behavior of the original uploader: three
// attempts, doubling waits from one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxDelay:    60 * time.Second,
		Jitter:      true,
	}
}

// Validate checks the policy parameters.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be greater than 0")
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("base delay cannot be negative")
	}
	if p.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be >= 1.0")
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay cannot be less than base delay")
	}
	return nil
}

// Do runs op, retrying transient failures with exponential backoff until
// the policy's attempts are exhausted. A server-suggested Retry-After on
// the error is used instead of the computed delay when present. The last
// error is returned wrapped; non-retryable errors propagate immediately.
func (p Policy) Do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}

		if !Retryable(Classify(err)) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.delayFor(err, attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("operation failed after %d attempts: %w", p.MaxAttempts, err)
}

// delayFor computes the wait before the next attempt. attempt is 1-based.
func (p Policy) delayFor(err error, attempt int) time.Duration {
	var raErr RetryAfterError
	if errors.As(err, &raErr) {
		if suggested := raErr.RetryAfter(); suggested > 0 {
			return p.cap(suggested)
		}
	}

	base := float64(p.BaseDelay)
	if base == 0 {
		base = float64(time.Second)
	}
	mult := p.Multiplier
	if mult < 1.0 {
		mult = 2.0
	}

	delay := base * math.Pow(mult, float64(attempt-1))
	if p.Jitter {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}
	return p.cap(time.Duration(delay))
}

func (p Policy) cap(d time.Duration) time.Duration {
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
