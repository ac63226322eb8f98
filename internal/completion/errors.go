package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Kind classifies a failed attempt. The retry policy and the credential
// pool both key off it.
type Kind int

const (
	KindGeneric Kind = iota
	KindTimeout
	KindNetwork
	KindMalformed
	KindRateLimit
	// KindAuth means the credential was rejected. It is never retried.
	KindAuth
	// KindCanceled means the caller's context ended.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindMalformed:
		return "malformed"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "auth"
	case KindCanceled:
		return "canceled"
	}
	return "generic"
}

// Error is returned by Complete once a call has failed for good.
type Error struct {
	Kind       Kind
	Attempts   int
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("completion failed (%s", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(", %d attempts", e.Attempts)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies any error returned by this package. Errors from
// elsewhere are inspected for timeouts and network failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindGeneric
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindGeneric
}

// IsAuth reports whether err is a rejected credential.
func IsAuth(err error) bool {
	return err != nil && KindOf(err) == KindAuth
}
