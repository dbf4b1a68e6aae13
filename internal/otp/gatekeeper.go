package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sender delivers a text message to a phone and returns the provider's
// message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Config holds the code shape, lifetimes and per-phone send limits.
// RateLimitMax or RateLimitWindow of zero disables rate limiting.
type Config struct {
	CodeLength      int
	TTL             time.Duration
	MaxAttempts     int
	RateLimitMax    int
	RateLimitWindow time.Duration
	Cooldown        time.Duration
	Phone           PhoneFormat
	// MessageTemplate receives the code and the validity in minutes.
	MessageTemplate string
}

// DefaultConfig returns 6 digit codes valid for 10 minutes with 3 attempts,
// at most 5 sends per hour and a 60 second resend cooldown.
func DefaultConfig() Config {
	return Config{
		CodeLength:      6,
		TTL:             10 * time.Minute,
		MaxAttempts:     3,
		RateLimitMax:    5,
		RateLimitWindow: time.Hour,
		Cooldown:        time.Minute,
		Phone:           DefaultPhoneFormat,
		MessageTemplate: "%s is your RentNest verification code. It is valid for %d minutes. Do not share it with anyone.",
	}
}

type record struct {
	codeHash  [sha256.Size]byte
	createdAt time.Time
	expiresAt time.Time
	attempts  int
}

// RequestResult describes a dispatched code. ExpiresIn is in seconds.
type RequestResult struct {
	Phone     string
	ExpiresIn int
	MessageID string
}

// Gatekeeper issues and verifies one-time codes per phone number. Codes and
// the per-phone send history live in process memory; a single mutex guards
// both maps.
type Gatekeeper struct {
	mu       sync.Mutex
	records  map[string]*record
	requests map[string][]time.Time

	cfg      Config
	sender   Sender
	logger   *logrus.Logger
	now      func() time.Time
	generate func(length int) (string, error)
}

type Option func(*Gatekeeper)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gatekeeper) {
		if now != nil {
			g.now = now
		}
	}
}

// WithCodeGenerator replaces the crypto/rand digit generator.
func WithCodeGenerator(generate func(length int) (string, error)) Option {
	return func(g *Gatekeeper) {
		if generate != nil {
			g.generate = generate
		}
	}
}

// NewGatekeeper returns a Gatekeeper sending through sender. A zero code
// length, TTL, attempt limit, template or phone format takes the default.
func NewGatekeeper(cfg Config, sender Sender, logger *logrus.Logger, opts ...Option) *Gatekeeper {
	defaults := DefaultConfig()
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = defaults.CodeLength
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.MessageTemplate == "" {
		cfg.MessageTemplate = defaults.MessageTemplate
	}
	if cfg.Phone.CountryCode == "" {
		cfg.Phone = defaults.Phone
	}

	g := &Gatekeeper{
		records:  make(map[string]*record),
		requests: make(map[string][]time.Time),
		cfg:      cfg,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
		generate: generateRandomCode,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Request issues a fresh code for phone and hands it to the SMS sender. The
// code is committed before dispatch, so a *DispatchError leaves it stored.
func (g *Gatekeeper) Request(ctx context.Context, rawPhone string) (*RequestResult, error) {
	phone, err := g.cfg.Phone.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	code, err := g.generate(g.cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	g.mu.Lock()
	now := g.now()
	if retryAfter, limited := g.rateLimitedLocked(phone, now); limited {
		g.mu.Unlock()
		return nil, &RateLimitedError{RetryAfter: retryAfter}
	}
	if existing, ok := g.records[phone]; ok && g.cfg.Cooldown > 0 {
		if elapsed := now.Sub(existing.createdAt); elapsed < g.cfg.Cooldown {
			g.mu.Unlock()
			return nil, &CooldownError{RetryAfter: g.cfg.Cooldown - elapsed}
		}
	}
	g.records[phone] = &record{
		codeHash:  sha256.Sum256([]byte(code)),
		createdAt: now,
		expiresAt: now.Add(g.cfg.TTL),
	}
	g.requests[phone] = append(g.requests[phone], now)
	g.mu.Unlock()

	body := fmt.Sprintf(g.cfg.MessageTemplate, code, int(g.cfg.TTL.Minutes()))
	messageID, err := g.sender.Send(ctx, phone, body)
	if err != nil {
		g.logger.WithError(err).WithField("phone", maskPhone(phone)).Warn("OTP dispatch failed")
		return nil, &DispatchError{Err: err}
	}

	g.logger.WithFields(logrus.Fields{
		"phone":      maskPhone(phone),
		"message_id": messageID,
	}).Info("OTP dispatched")

	return &RequestResult{
		Phone:     phone,
		ExpiresIn: int(g.cfg.TTL.Seconds()),
		MessageID: messageID,
	}, nil
}

// Verify checks candidate against the live code for phone. A nil error means
// the phone is verified and the code has been consumed.
func (g *Gatekeeper) Verify(ctx context.Context, rawPhone, candidate string) error {
	phone, err := g.cfg.Phone.Normalize(rawPhone)
	if err != nil {
		return err
	}
	candidate = strings.TrimSpace(candidate)

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[phone]
	if !ok {
		return ErrNotFound
	}

	if g.now().After(rec.expiresAt) {
		delete(g.records, phone)
		return ErrExpired
	}

	if rec.attempts >= g.cfg.MaxAttempts {
		delete(g.records, phone)
		return ErrAttemptsExceeded
	}

	sum := sha256.Sum256([]byte(candidate))
	if subtle.ConstantTimeCompare(sum[:], rec.codeHash[:]) != 1 {
		rec.attempts++
		return &MismatchError{AttemptsRemaining: g.cfg.MaxAttempts - rec.attempts}
	}

	delete(g.records, phone)
	return nil
}

// SweepExpired drops expired codes and send timestamps that have left the
// rate window. It returns the number of codes removed.
func (g *Gatekeeper) SweepExpired() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for phone, rec := range g.records {
		if now.After(rec.expiresAt) {
			delete(g.records, phone)
			removed++
		}
	}
	for phone := range g.requests {
		g.pruneLocked(phone, now)
	}
	return removed
}

// Size reports the number of live codes and phones with send history.
func (g *Gatekeeper) Size() (codes, tracked int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records), len(g.requests)
}

func (g *Gatekeeper) rateLimitedLocked(phone string, now time.Time) (time.Duration, bool) {
	if g.cfg.RateLimitMax <= 0 || g.cfg.RateLimitWindow <= 0 {
		return 0, false
	}
	stamps := g.pruneLocked(phone, now)
	if len(stamps) < g.cfg.RateLimitMax {
		return 0, false
	}
	return g.cfg.RateLimitWindow - now.Sub(stamps[0]), true
}

// pruneLocked removes timestamps outside the window and deletes the key
// once nothing is left.
func (g *Gatekeeper) pruneLocked(phone string, now time.Time) []time.Time {
	stamps := g.requests[phone]
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= g.cfg.RateLimitWindow {
		i++
	}
	stamps = stamps[i:]
	if len(stamps) == 0 {
		delete(g.requests, phone)
		return nil
	}
	g.requests[phone] = stamps
	return stamps
}

func generateRandomCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteString(num.String())
	}
	return b.String(), nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// NormalizePhone applies the configured phone format.
func (g *Gatekeeper) NormalizePhone(raw string) (string, error) {
	return g.cfg.Phone.Normalize(raw)
}
