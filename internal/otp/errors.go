package otp

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidFormat    = errors.New("invalid phone number format")
	ErrNotFound         = errors.New("otp not found")
	ErrExpired          = errors.New("otp expired")
	ErrAttemptsExceeded = errors.New("maximum otp attempts exceeded")
)

// RateLimitedError is returned when a phone has used up its sends for the
// current rate window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many otp requests, retry after %ds", RetryAfterSeconds(e.RetryAfter))
}

// CooldownError is returned when a resend is attempted before the cooldown
// since the last send has elapsed.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp resend cooldown active, retry after %ds", RetryAfterSeconds(e.RetryAfter))
}

type MismatchError struct {
	AttemptsRemaining int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("invalid otp, %d attempts remaining", e.AttemptsRemaining)
}

// DispatchError wraps a failure of the SMS collaborator. The code has already
// been stored when this is returned.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to dispatch otp: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// RetryAfterSeconds rounds d up to whole seconds, never below 1.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
