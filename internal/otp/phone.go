package otp

import (
	"strings"
	"unicode"
)

// PhoneFormat describes the accepted phone shape: a fixed country code
// followed by a fixed number of subscriber digits. Subscriber numbers starting
// with 0 are trunk-prefixed national forms and are rejected unless
// AllowLeadingZero is set.
type PhoneFormat struct {
	CountryCode      string
	SubscriberDigits int
	AllowLeadingZero bool
}

var DefaultPhoneFormat = PhoneFormat{CountryCode: "+91", SubscriberDigits: 10}

// Normalize returns the phone in "+<cc><subscriber>" form. Spaces, dashes and
// parentheses are ignored; the country code may be omitted or given without
// the leading plus.
func (f PhoneFormat) Normalize(raw string) (string, error) {
	cc := strings.TrimPrefix(f.CountryCode, "+")
	if cc == "" || f.SubscriberDigits <= 0 {
		return "", ErrInvalidFormat
	}

	var b strings.Builder
	plus := false
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r == '+' && i == 0:
			plus = true
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", ErrInvalidFormat
		}
	}
	digits := b.String()

	switch {
	case len(digits) == len(cc)+f.SubscriberDigits && strings.HasPrefix(digits, cc):
		digits = digits[len(cc):]
	case len(digits) == f.SubscriberDigits && !plus:
	default:
		return "", ErrInvalidFormat
	}
	if digits[0] == '0' && !f.AllowLeadingZero {
		return "", ErrInvalidFormat
	}
	return "+" + cc + digits, nil
}
