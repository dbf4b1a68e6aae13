package service

import (
	"context"

	"github.com/rentnest/rentnest/internal/models"
	"github.com/rentnest/rentnest/internal/quota"
	"github.com/rentnest/rentnest/internal/repository"
	"github.com/sirupsen/logrus"
)

type UserService struct {
	users   UserStore
	tracker *quota.Tracker
	locks   *quota.KeyedMutex
	logger  *logrus.Logger
}

func NewUserService(users UserStore, tracker *quota.Tracker, locks *quota.KeyedMutex, logger *logrus.Logger) *UserService {
	return &UserService{
		users:   users,
		tracker: tracker,
		locks:   locks,
		logger:  logger,
	}
}

type QuotaStatus struct {
	ContactViewsLimit     int `json:"contact_views_limit"`
	ContactViewsRemaining int `json:"contact_views_remaining"`
	ListingsLimit         int `json:"listings_limit"`
	ListingsRemaining     int `json:"listings_remaining"`
}

type Profile struct {
	User  *models.User `json:"user"`
	Quota QuotaStatus  `json:"quota"`
}

// Profile loads the user with the monthly reset applied. A reset that
// changed the counters is written back.
func (s *UserService) Profile(ctx context.Context, userID string) (*Profile, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	counters, changed := s.tracker.ResetIfNewMonth(user.Counters())
	if changed {
		updated := user.WithCounters(counters)
		if err := s.users.Save(ctx, &updated, repository.SaveOptions{SkipValidation: true}); err != nil {
			return nil, err
		}
		user = &updated
	}

	limit := s.tracker.Limit(counters.AccountType)
	return &Profile{
		User: user,
		Quota: QuotaStatus{
			ContactViewsLimit:     limit.ContactViews,
			ContactViewsRemaining: s.tracker.Remaining(counters, quota.ContactView),
			ListingsLimit:         limit.Listings,
			ListingsRemaining:     s.tracker.Remaining(counters, quota.Listing),
		},
	}, nil
}

// BecomeHost switches a tenant to the host role. It is a no-op for hosts.
func (s *UserService) BecomeHost(ctx context.Context, userID string) (*models.User, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleHost {
		return user, nil
	}

	updated := models.UpgradeToHost(*user)
	if err := s.users.Save(ctx, &updated, repository.SaveOptions{SkipValidation: true}); err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", userID).Info("User became a host")
	return &updated, nil
}
