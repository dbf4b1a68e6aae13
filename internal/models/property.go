package models

import (
	"fmt"
	"strings"
	"time"
)

type PropertyType string

const (
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
	PropertyVilla     PropertyType = "villa"
	PropertyRoom      PropertyType = "room"
	PropertyPG        PropertyType = "pg"
)

func (t PropertyType) Valid() bool {
	switch t {
	case PropertyApartment, PropertyHouse, PropertyVilla, PropertyRoom, PropertyPG:
		return true
	}
	return false
}

type PropertyStatus string

const (
	PropertyActive   PropertyStatus = "active"
	PropertyInactive PropertyStatus = "inactive"
)

type Image struct {
	Key string `json:"key" dynamodbav:"key"`
	URL string `json:"url" dynamodbav:"url"`
}

type Property struct {
	ID          string         `json:"id" dynamodbav:"id"`
	OwnerID     string         `json:"owner_id" dynamodbav:"owner_id"`
	Title       string         `json:"title" dynamodbav:"title"`
	Description string         `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Type        PropertyType   `json:"type" dynamodbav:"type"`
	Address     string         `json:"address" dynamodbav:"address"`
	Locality    string         `json:"locality,omitempty" dynamodbav:"locality,omitempty"`
	City        string         `json:"city" dynamodbav:"city"`
	Rent        int64          `json:"rent" dynamodbav:"rent"`
	Deposit     int64          `json:"deposit,omitempty" dynamodbav:"deposit,omitempty"`
	Bedrooms    int            `json:"bedrooms" dynamodbav:"bedrooms"`
	Bathrooms   int            `json:"bathrooms" dynamodbav:"bathrooms"`
	AreaSqft    int            `json:"area_sqft,omitempty" dynamodbav:"area_sqft,omitempty"`
	Furnished   bool           `json:"furnished" dynamodbav:"furnished"`
	Amenities   []string       `json:"amenities,omitempty" dynamodbav:"amenities,omitempty"`
	Images      []Image        `json:"images,omitempty" dynamodbav:"images,omitempty"`
	Status      PropertyStatus `json:"status" dynamodbav:"status"`
	CreatedAt   time.Time      `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" dynamodbav:"updated_at"`
}

func (p *Property) GetPK() string {
	return "PROPERTY#" + p.ID
}

func (p *Property) GetSK() string {
	return "METADATA"
}

func (p *Property) Validate() error {
	if len(strings.TrimSpace(p.Title)) < 5 || len(p.Title) > 120 {
		return fmt.Errorf("title must be between 5 and 120 characters")
	}
	if len(p.Description) > 4000 {
		return fmt.Errorf("description must be at most 4000 characters")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("invalid property type %q", p.Type)
	}
	if strings.TrimSpace(p.Address) == "" || strings.TrimSpace(p.City) == "" {
		return fmt.Errorf("address and city are required")
	}
	if p.Rent <= 0 {
		return fmt.Errorf("rent must be positive")
	}
	if p.Deposit < 0 || p.Bedrooms < 0 || p.Bathrooms < 0 || p.AreaSqft < 0 {
		return fmt.Errorf("deposit, bedrooms, bathrooms and area cannot be negative")
	}
	if p.Status != PropertyActive && p.Status != PropertyInactive {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	return nil
}

// PropertyFilter narrows a listing query. Zero values match everything.
type PropertyFilter struct {
	City        string
	Type        PropertyType
	MinRent     int64
	MaxRent     int64
	MinBedrooms int
	OwnerID     string
	OnlyActive  bool
	Limit       int
	Offset      int
}

func (f PropertyFilter) Match(p *Property) bool {
	if f.City != "" && !strings.EqualFold(f.City, p.City) {
		return false
	}
	if f.Type != "" && f.Type != p.Type {
		return false
	}
	if f.MinRent > 0 && p.Rent < f.MinRent {
		return false
	}
	if f.MaxRent > 0 && p.Rent > f.MaxRent {
		return false
	}
	if f.MinBedrooms > 0 && p.Bedrooms < f.MinBedrooms {
		return false
	}
	if f.OwnerID != "" && f.OwnerID != p.OwnerID {
		return false
	}
	if f.OnlyActive && p.Status != PropertyActive {
		return false
	}
	return true
}
