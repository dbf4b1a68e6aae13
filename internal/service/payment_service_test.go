package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rentnest/rentnest/internal/models"
	"github.com/rentnest/rentnest/internal/payment"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/rentnest/rentnest/internal/quota"
	"github.com/rentnest/rentnest/internal/service/servicetest"
	"github.com/stretchr/testify/require"
)

const gatewaySecret = "rzp_secret"

type paymentFixture struct {
	svc      *PaymentService
	users    *servicetest.UserStore
	payments *servicetest.PaymentStore
	gateway  *servicetest.Gateway
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	users := servicetest.NewUserStore()
	payments := servicetest.NewPaymentStore()
	gateway := &servicetest.Gateway{Secret: gatewaySecret}
	svc := NewPaymentService(users, payments, gateway, quota.NewKeyedMutex(), 49900, "INR", discardLogger())
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }

	u := models.NewUser("u1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	u.Email = "u1@example.com"
	u.ContactViewsUsed = 1
	users.Put(*u)

	return &paymentFixture{svc: svc, users: users, payments: payments, gateway: gateway}
}

func TestPaymentUpgradeFlow(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateUpgradeOrder(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(49900), order.Amount)
	require.Equal(t, "INR", order.Currency)
	require.Equal(t, "rzp_test_key", order.KeyID)

	stored, err := f.payments.Get(ctx, order.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentCreated, stored.Status)
	require.Equal(t, "u1", stored.UserID)

	sig := payment.Sign(gatewaySecret, order.OrderID, "pay_1")
	user, err := f.svc.VerifyUpgrade(ctx, "u1", order.OrderID, "pay_1", sig)
	require.NoError(t, err)
	require.Equal(t, quota.TierPremium, user.AccountType)
	require.NotNil(t, user.PremiumSince)
	// usage this month carries over to the new tier
	require.Equal(t, 1, user.ContactViewsUsed)

	stored, err = f.payments.Get(ctx, order.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentPaid, stored.Status)
	require.Equal(t, "pay_1", stored.PaymentID)

	// replay is idempotent
	again, err := f.svc.VerifyUpgrade(ctx, "u1", order.OrderID, "pay_1", sig)
	require.NoError(t, err)
	require.Equal(t, quota.TierPremium, again.AccountType)
	require.Equal(t, user.PremiumSince, again.PremiumSince)

	_, err = f.svc.CreateUpgradeOrder(ctx, "u1")
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestPaymentVerify_RejectsBadSignature(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateUpgradeOrder(ctx, "u1")
	require.NoError(t, err)

	_, err = f.svc.VerifyUpgrade(ctx, "u1", order.OrderID, "pay_1", "deadbeef")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	user, err := f.users.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, quota.TierFree, user.AccountType)

	stored, err := f.payments.Get(ctx, order.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentCreated, stored.Status)
}

func TestPaymentVerify_OtherUsersOrder(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	other := models.NewUser("u2", time.Now())
	other.Email = "u2@example.com"
	f.users.Put(*other)

	order, err := f.svc.CreateUpgradeOrder(ctx, "u1")
	require.NoError(t, err)

	sig := payment.Sign(gatewaySecret, order.OrderID, "pay_1")
	_, err = f.svc.VerifyUpgrade(ctx, "u2", order.OrderID, "pay_1", sig)
	require.ErrorIs(t, err, appErr.ErrForbidden)

	_, err = f.svc.VerifyUpgrade(ctx, "u1", "order_missing", "pay_1", sig)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestPaymentCreateOrder_GatewayFailure(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.Err = errors.New("gateway down")

	_, err := f.svc.CreateUpgradeOrder(context.Background(), "u1")
	require.Error(t, err)
}
