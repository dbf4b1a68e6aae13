package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentnest/rentnest/internal/models"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/rentnest/rentnest/internal/quota"
	"github.com/rentnest/rentnest/internal/repository"
	"github.com/sirupsen/logrus"
)

type PaymentService struct {
	users    UserStore
	payments PaymentStore
	gateway  PaymentGateway
	locks    *quota.KeyedMutex
	price    int64
	currency string
	logger   *logrus.Logger
	now      func() time.Time
}

func NewPaymentService(users UserStore, payments PaymentStore, gateway PaymentGateway, locks *quota.KeyedMutex, price int64, currency string, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		users:    users,
		payments: payments,
		gateway:  gateway,
		locks:    locks,
		price:    price,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

type UpgradeOrder struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// CreateUpgradeOrder opens a gateway order for the premium upgrade and
// records it as created.
func (s *PaymentService) CreateUpgradeOrder(ctx context.Context, userID string) (*UpgradeOrder, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.AccountType == quota.TierPremium {
		return nil, fmt.Errorf("%w: account is already premium", appErr.ErrConflict)
	}

	receipt := "upg_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
	order, err := s.gateway.CreateOrder(ctx, s.price, s.currency, receipt, map[string]string{
		"user_id": userID,
		"purpose": models.PurposePremiumUpgrade,
	})
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to create payment order")
		return nil, err
	}

	payment := &models.Payment{
		OrderID:   order.ID,
		UserID:    userID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Purpose:   models.PurposePremiumUpgrade,
		Status:    models.PaymentCreated,
		CreatedAt: s.now(),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"order_id": order.ID,
	}).Info("Upgrade order created")
	return &UpgradeOrder{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

// VerifyUpgrade checks the checkout signature and moves the user to the
// premium tier. Verifying an order that is already paid is a no-op.
func (s *PaymentService) VerifyUpgrade(ctx context.Context, userID, orderID, paymentID, signature string) (*models.User, error) {
	payment, err := s.payments.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, appErr.ErrForbidden
	}
	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		s.logger.WithField("order_id", orderID).Warn("Payment signature mismatch")
		return nil, fmt.Errorf("%w: invalid payment signature", appErr.ErrInvalid)
	}

	if payment.Status != models.PaymentPaid {
		err := s.payments.MarkPaid(ctx, orderID, paymentID, s.now())
		if err != nil && !appErr.IsConflict(err) {
			return nil, err
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.AccountType == quota.TierPremium {
		return user, nil
	}

	updated := models.UpgradeToPremium(*user, s.now())
	if err := s.users.Save(ctx, &updated, repository.SaveOptions{SkipValidation: true}); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"order_id": orderID,
	}).Info("User upgraded to premium")
	return &updated, nil
}
