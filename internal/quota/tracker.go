package quota

import (
	"fmt"
	"time"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

type Kind string

const (
	ContactView Kind = "contact_view"
	Listing     Kind = "listing"
)

// Limit holds the monthly allowance of one tier.
type Limit struct {
	ContactViews int
	Listings     int
}

func (l Limit) For(kind Kind) int {
	switch kind {
	case ContactView:
		return l.ContactViews
	case Listing:
		return l.Listings
	}
	return 0
}

type Limits map[Tier]Limit

func DefaultLimits() Limits {
	return Limits{
		TierFree:    {ContactViews: 1, Listings: 2},
		TierPremium: {ContactViews: 10, Listings: 20},
	}
}

// Counters is a snapshot of the quota fields stored on a user.
type Counters struct {
	AccountType               Tier
	ContactViewsUsed          int
	ContactViewsResetDate     time.Time
	PropertiesListedThisMonth int
	PropertiesListedResetDate time.Time
}

type Consumed struct {
	Kind      Kind
	Limit     int
	Remaining int
}

type LimitReachedError struct {
	Kind  Kind
	Limit int
	Used  int
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("monthly %s limit reached (%d of %d used)", e.Kind, e.Used, e.Limit)
}

// Tracker applies the monthly reset and tier limits to Counters. It holds no
// per-user state; callers persist the returned snapshot.
type Tracker struct {
	limits Limits
	now    func() time.Time
}

func NewTracker(limits Limits, now func() time.Time) *Tracker {
	if limits == nil {
		limits = DefaultLimits()
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{limits: limits, now: now}
}

func (t *Tracker) Limit(tier Tier) Limit {
	if l, ok := t.limits[tier]; ok {
		return l
	}
	return t.limits[TierFree]
}

// ResetIfNewMonth zeroes each counter whose reset date falls in an earlier
// (or later) calendar month than now. The two counters reset independently.
func (t *Tracker) ResetIfNewMonth(c Counters) (Counters, bool) {
	now := t.now()
	changed := false
	if !sameMonth(c.ContactViewsResetDate, now) {
		c.ContactViewsUsed = 0
		c.ContactViewsResetDate = now
		changed = true
	}
	if !sameMonth(c.PropertiesListedResetDate, now) {
		c.PropertiesListedThisMonth = 0
		c.PropertiesListedResetDate = now
		changed = true
	}
	return c, changed
}

// CheckAndConsume takes one unit of kind from the tier allowance. On
// *LimitReachedError the input snapshot is returned unchanged.
func (t *Tracker) CheckAndConsume(c Counters, kind Kind) (Counters, Consumed, error) {
	limit := t.Limit(c.AccountType).For(kind)
	n := used(c, kind)
	if n >= limit {
		return c, Consumed{}, &LimitReachedError{Kind: kind, Limit: limit, Used: n}
	}

	switch kind {
	case ContactView:
		c.ContactViewsUsed++
	case Listing:
		c.PropertiesListedThisMonth++
	}
	return c, Consumed{Kind: kind, Limit: limit, Remaining: limit - n - 1}, nil
}

func (t *Tracker) Remaining(c Counters, kind Kind) int {
	remaining := t.Limit(c.AccountType).For(kind) - used(c, kind)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Upgrade moves the snapshot to tier. Counters are kept, so usage earlier in
// the month still counts against the new allowance.
func Upgrade(c Counters, tier Tier) Counters {
	c.AccountType = tier
	return c
}

func used(c Counters, kind Kind) int {
	switch kind {
	case ContactView:
		return c.ContactViewsUsed
	case Listing:
		return c.PropertiesListedThisMonth
	}
	return 0
}

func sameMonth(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}
