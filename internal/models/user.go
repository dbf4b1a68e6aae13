package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rentnest/rentnest/internal/quota"
)

type Role string

const (
	RoleTenant Role = "tenant"
	RoleHost   Role = "host"
)

type User struct {
	ID           string     `json:"id" dynamodbav:"id"`
	Name         string     `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Email        string     `json:"email,omitempty" dynamodbav:"email,omitempty"`
	PhoneNumber  string     `json:"phone_number,omitempty" dynamodbav:"phone_number,omitempty"`
	PasswordHash string     `json:"-" dynamodbav:"password_hash,omitempty"`
	GoogleID     string     `json:"-" dynamodbav:"google_id,omitempty"`
	Role         Role       `json:"role" dynamodbav:"role"`
	AccountType  quota.Tier `json:"account_type" dynamodbav:"account_type"`
	PremiumSince *time.Time `json:"premium_since,omitempty" dynamodbav:"premium_since,omitempty"`

	ContactViewsUsed          int       `json:"contact_views_used" dynamodbav:"contact_views_used"`
	ContactViewsResetDate     time.Time `json:"contact_views_reset_date" dynamodbav:"contact_views_reset_date"`
	PropertiesListedThisMonth int       `json:"properties_listed_this_month" dynamodbav:"properties_listed_this_month"`
	PropertiesListedResetDate time.Time `json:"properties_listed_reset_date" dynamodbav:"properties_listed_reset_date"`
	RevealedProperties        []string  `json:"-" dynamodbav:"revealed_properties,omitempty"`

	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (u *User) GetPK() string {
	return "USER#" + u.ID
}

func (u *User) GetSK() string {
	return "METADATA"
}

// Validate checks the profile fields. Counter-only writes skip it.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if u.Email == "" && u.PhoneNumber == "" && u.GoogleID == "" {
		return fmt.Errorf("user needs an email, phone number or google account")
	}
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			return fmt.Errorf("invalid email address")
		}
	}
	if len(strings.TrimSpace(u.Name)) > 100 {
		return fmt.Errorf("name must be at most 100 characters")
	}
	if u.Role != RoleTenant && u.Role != RoleHost {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	if !u.AccountType.Valid() {
		return fmt.Errorf("invalid account type %q", u.AccountType)
	}
	return nil
}

func (u *User) Counters() quota.Counters {
	return quota.Counters{
		AccountType:               u.AccountType,
		ContactViewsUsed:          u.ContactViewsUsed,
		ContactViewsResetDate:     u.ContactViewsResetDate,
		PropertiesListedThisMonth: u.PropertiesListedThisMonth,
		PropertiesListedResetDate: u.PropertiesListedResetDate,
	}
}

// WithCounters returns a copy of u carrying c.
func (u User) WithCounters(c quota.Counters) User {
	u.AccountType = c.AccountType
	u.ContactViewsUsed = c.ContactViewsUsed
	u.ContactViewsResetDate = c.ContactViewsResetDate
	u.PropertiesListedThisMonth = c.PropertiesListedThisMonth
	u.PropertiesListedResetDate = c.PropertiesListedResetDate
	return u
}

func (u *User) HasRevealed(propertyID string) bool {
	for _, id := range u.RevealedProperties {
		if id == propertyID {
			return true
		}
	}
	return false
}

// WithRevealed returns a copy of u that remembers propertyID as revealed.
func (u User) WithRevealed(propertyID string) User {
	if u.HasRevealed(propertyID) {
		return u
	}
	revealed := make([]string, 0, len(u.RevealedProperties)+1)
	revealed = append(revealed, u.RevealedProperties...)
	u.RevealedProperties = append(revealed, propertyID)
	return u
}

// UpgradeToHost returns a copy of u allowed to list properties.
func UpgradeToHost(u User) User {
	u.Role = RoleHost
	return u
}

// UpgradeToPremium returns a copy of u on the premium tier.
func UpgradeToPremium(u User, at time.Time) User {
	u = u.WithCounters(quota.Upgrade(u.Counters(), quota.TierPremium))
	if u.PremiumSince == nil {
		since := at
		u.PremiumSince = &since
	}
	return u
}

func NewUser(id string, now time.Time) *User {
	return &User{
		ID:                        id,
		Role:                      RoleTenant,
		AccountType:               quota.TierFree,
		ContactViewsResetDate:     now,
		PropertiesListedResetDate: now,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
}
