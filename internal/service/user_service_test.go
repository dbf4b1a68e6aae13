package service

import (
	"context"
	"testing"
	"time"

	"github.com/rentnest/rentnest/internal/models"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/rentnest/rentnest/internal/quota"
	"github.com/rentnest/rentnest/internal/service/servicetest"
	"github.com/stretchr/testify/require"
)

func TestUserProfile_AppliesMonthlyReset(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)}
	users := servicetest.NewUserStore()
	svc := NewUserService(users, quota.NewTracker(quota.DefaultLimits(), clock.Now), quota.NewKeyedMutex(), discardLogger())
	ctx := context.Background()

	u := models.NewUser("u1", time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC))
	u.PhoneNumber = "+919876543210"
	u.ContactViewsUsed = 1
	u.PropertiesListedThisMonth = 2
	users.Put(*u)

	profile, err := svc.Profile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, profile.Quota.ContactViewsRemaining)
	require.Equal(t, 2, profile.Quota.ListingsRemaining)
	require.Equal(t, 1, profile.Quota.ContactViewsLimit)
	require.Equal(t, 1, users.Saves)

	stored, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, stored.ContactViewsUsed)
	require.Equal(t, time.May, stored.ContactViewsResetDate.Month())

	// same month, nothing to write
	_, err = svc.Profile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, users.Saves)

	_, err = svc.Profile(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestUserBecomeHost(t *testing.T) {
	users := servicetest.NewUserStore()
	svc := NewUserService(users, quota.NewTracker(nil, nil), quota.NewKeyedMutex(), discardLogger())
	ctx := context.Background()

	u := models.NewUser("u1", time.Now())
	u.Email = "u1@example.com"
	users.Put(*u)

	host, err := svc.BecomeHost(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.RoleHost, host.Role)
	require.Equal(t, quota.TierFree, host.AccountType)

	again, err := svc.BecomeHost(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.RoleHost, again.Role)
	require.Equal(t, 1, users.Saves)
}
