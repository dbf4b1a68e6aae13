package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentnest/rentnest/internal/models"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/rentnest/rentnest/internal/quota"
	"github.com/rentnest/rentnest/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type PropertyService struct {
	users      UserStore
	properties PropertyStore
	images     ImageStore
	tracker    *quota.Tracker
	locks      *quota.KeyedMutex
	maxImages  int
	logger     *logrus.Logger
	now        func() time.Time
}

func NewPropertyService(users UserStore, properties PropertyStore, images ImageStore, tracker *quota.Tracker, locks *quota.KeyedMutex, maxImages int, logger *logrus.Logger) *PropertyService {
	return &PropertyService{
		users:      users,
		properties: properties,
		images:     images,
		tracker:    tracker,
		locks:      locks,
		maxImages:  maxImages,
		logger:     logger,
		now:        time.Now,
	}
}

type PropertyInput struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Type        models.PropertyType   `json:"type"`
	Address     string                `json:"address"`
	Locality    string                `json:"locality"`
	City        string                `json:"city"`
	Rent        int64                 `json:"rent"`
	Deposit     int64                 `json:"deposit"`
	Bedrooms    int                   `json:"bedrooms"`
	Bathrooms   int                   `json:"bathrooms"`
	AreaSqft    int                   `json:"area_sqft"`
	Furnished   bool                  `json:"furnished"`
	Amenities   []string              `json:"amenities"`
	Status      models.PropertyStatus `json:"status"`
}

func (in PropertyInput) apply(p *models.Property) {
	p.Title = strings.TrimSpace(in.Title)
	p.Description = strings.TrimSpace(in.Description)
	p.Type = models.PropertyType(strings.ToLower(string(in.Type)))
	p.Address = strings.TrimSpace(in.Address)
	p.Locality = strings.TrimSpace(in.Locality)
	p.City = strings.TrimSpace(in.City)
	p.Rent = in.Rent
	p.Deposit = in.Deposit
	p.Bedrooms = in.Bedrooms
	p.Bathrooms = in.Bathrooms
	p.AreaSqft = in.AreaSqft
	p.Furnished = in.Furnished
	p.Amenities = in.Amenities
	if in.Status != "" {
		p.Status = in.Status
	}
}

type CreatedProperty struct {
	Property *models.Property
	Quota    quota.Consumed
}

// Create lists a new property for a host, consuming one unit of the
// monthly listing quota.
func (s *PropertyService) Create(ctx context.Context, ownerID string, in PropertyInput) (*CreatedProperty, error) {
	now := s.now()
	property := &models.Property{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Status:    models.PropertyActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(property)
	if err := property.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.Role != models.RoleHost {
		return nil, fmt.Errorf("%w: only hosts can list properties", appErr.ErrForbidden)
	}

	counters, _ := s.tracker.ResetIfNewMonth(owner.Counters())
	counters, consumed, err := s.tracker.CheckAndConsume(counters, quota.Listing)
	if err != nil {
		return nil, err
	}

	if err := s.properties.Create(ctx, property); err != nil {
		return nil, err
	}

	updated := owner.WithCounters(counters)
	if err := s.users.Save(ctx, &updated, repository.SaveOptions{SkipValidation: true}); err != nil {
		s.logger.WithError(err).WithField("property_id", property.ID).Error("Failed to persist listing quota, rolling back property")
		if delErr := s.properties.Delete(ctx, property.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("property_id", property.ID).Error("Failed to roll back property")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"owner_id":    ownerID,
		"remaining":   consumed.Remaining,
	}).Info("Property listed")
	return &CreatedProperty{Property: property, Quota: consumed}, nil
}

func (s *PropertyService) Get(ctx context.Context, id string) (*models.Property, error) {
	return s.properties.Get(ctx, id)
}

type PropertyPage struct {
	Items  []*models.Property `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// List returns active listings matching filter.
func (s *PropertyService) List(ctx context.Context, filter models.PropertyFilter) (*PropertyPage, error) {
	filter.OnlyActive = true
	return s.list(ctx, filter)
}

// ListByOwner returns every listing of ownerID, inactive ones included.
func (s *PropertyService) ListByOwner(ctx context.Context, ownerID string, filter models.PropertyFilter) (*PropertyPage, error) {
	filter.OwnerID = ownerID
	filter.OnlyActive = false
	return s.list(ctx, filter)
}

func (s *PropertyService) list(ctx context.Context, filter models.PropertyFilter) (*PropertyPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := s.properties.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &PropertyPage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *PropertyService) Update(ctx context.Context, userID, id string, in PropertyInput) (*models.Property, error) {
	unlock := s.locks.Lock(propertyLockKey(id))
	defer unlock()

	property, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	in.apply(property)
	property.UpdatedAt = s.now()
	if err := property.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
	}
	if err := s.properties.Update(ctx, property); err != nil {
		return nil, err
	}
	return property, nil
}

// Delete removes the listing and its hosted images. The listing quota is not
// refunded.
func (s *PropertyService) Delete(ctx context.Context, userID, id string) error {
	unlock := s.locks.Lock(propertyLockKey(id))
	defer unlock()

	property, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.properties.Delete(ctx, id); err != nil {
		return err
	}
	for _, img := range property.Images {
		if err := s.images.Delete(ctx, img.Key); err != nil {
			s.logger.WithError(err).WithField("key", img.Key).Warn("Failed to delete property image")
		}
	}
	return nil
}

// AddImages uploads files and appends them to the listing. Already uploaded
// files are removed again if any step fails.
func (s *PropertyService) AddImages(ctx context.Context, userID, id string, files []io.Reader) (*models.Property, error) {
	unlock := s.locks.Lock(propertyLockKey(id))
	defer unlock()

	property, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images provided", appErr.ErrInvalid)
	}
	if len(property.Images)+len(files) > s.maxImages {
		return nil, fmt.Errorf("%w: a property can have at most %d images", appErr.ErrInvalid, s.maxImages)
	}

	var uploaded []models.Image
	cleanup := func() {
		for _, img := range uploaded {
			if err := s.images.Delete(ctx, img.Key); err != nil {
				s.logger.WithError(err).WithField("key", img.Key).Warn("Failed to clean up uploaded image")
			}
		}
	}

	for _, f := range files {
		img, err := s.images.Upload(ctx, property.ID, f)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, *img)
	}

	property.Images = append(property.Images, uploaded...)
	property.UpdatedAt = s.now()
	if err := s.properties.Update(ctx, property); err != nil {
		cleanup()
		return nil, err
	}
	return property, nil
}

func (s *PropertyService) RemoveImage(ctx context.Context, userID, id, key string) (*models.Property, error) {
	unlock := s.locks.Lock(propertyLockKey(id))
	defer unlock()

	property, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	kept := property.Images[:0:0]
	for _, img := range property.Images {
		if img.Key != key {
			kept = append(kept, img)
		}
	}
	if len(kept) == len(property.Images) {
		return nil, appErr.ErrNotFound
	}

	property.Images = kept
	property.UpdatedAt = s.now()
	if err := s.properties.Update(ctx, property); err != nil {
		return nil, err
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to delete property image")
	}
	return property, nil
}

type ContactReveal struct {
	PropertyID string `json:"property_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Remaining  int    `json:"remaining"`
	Charged    bool   `json:"charged"`
}

// RevealContact returns the owner's contact details. Each first reveal of a
// listing uses one contact view; owners and repeat reveals are free.
func (s *PropertyService) RevealContact(ctx context.Context, viewerID, propertyID string) (*ContactReveal, error) {
	property, err := s.properties.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.Status != models.PropertyActive && property.OwnerID != viewerID {
		return nil, appErr.ErrNotFound
	}

	owner, err := s.users.GetByID(ctx, property.OwnerID)
	if err != nil {
		return nil, err
	}

	reveal := &ContactReveal{
		PropertyID: property.ID,
		Name:       owner.Name,
		Phone:      owner.PhoneNumber,
		Email:      owner.Email,
	}

	unlock := s.locks.Lock(viewerID)
	defer unlock()

	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	counters, _ := s.tracker.ResetIfNewMonth(viewer.Counters())
	if viewer.ID == owner.ID || viewer.HasRevealed(property.ID) {
		reveal.Remaining = s.tracker.Remaining(counters, quota.ContactView)
		return reveal, nil
	}

	counters, consumed, err := s.tracker.CheckAndConsume(counters, quota.ContactView)
	if err != nil {
		return nil, err
	}

	updated := viewer.WithCounters(counters).WithRevealed(property.ID)
	if err := s.users.Save(ctx, &updated, repository.SaveOptions{SkipValidation: true}); err != nil {
		return nil, err
	}

	reveal.Remaining = consumed.Remaining
	reveal.Charged = true
	s.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"viewer_id":   viewerID,
		"remaining":   consumed.Remaining,
	}).Info("Contact revealed")
	return reveal, nil
}

// propertyLockKey keeps listing locks apart from the per-user keys held on the
// same KeyedMutex.
func propertyLockKey(id string) string {
	return "property:" + id
}

// owned loads a listing for a write by its owner. Callers hold the listing's
// lock so that read-modify-write of the whole item is serialized.
func (s *PropertyService) owned(ctx context.Context, userID, id string) (*models.Property, error) {
	property, err := s.properties.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if property.OwnerID != userID {
		return nil, appErr.ErrForbidden
	}
	return property, nil
}
