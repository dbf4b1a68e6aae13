package service

import (
	"context"
	"io"
	"time"

	"github.com/rentnest/rentnest/internal/models"
	"github.com/rentnest/rentnest/internal/oauth"
	"github.com/rentnest/rentnest/internal/otp"
	"github.com/rentnest/rentnest/internal/payment"
	"github.com/rentnest/rentnest/internal/repository"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPhoneNumber(ctx context.Context, phone string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGoogleID(ctx context.Context, sub string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User, opts repository.SaveOptions) error
	LinkGoogle(ctx context.Context, userID, googleID, name string) error
}

type PropertyStore interface {
	Create(ctx context.Context, property *models.Property) error
	Update(ctx context.Context, property *models.Property) error
	Get(ctx context.Context, id string) (*models.Property, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.PropertyFilter) ([]*models.Property, int, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	Get(ctx context.Context, orderID string) (*models.Payment, error)
	MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) error
}

type TokenStore interface {
	Store(ctx context.Context, jti, userID, familyID string, expiresAt time.Time) error
	Get(ctx context.Context, jti string) (*models.RefreshTokenData, error)
	Revoke(ctx context.Context, jti string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	RevokeFamily(ctx context.Context, familyID string) error
}

type OTPGatekeeper interface {
	Request(ctx context.Context, phone string) (*otp.RequestResult, error)
	Verify(ctx context.Context, phone, candidate string) error
	NormalizePhone(raw string) (string, error)
}

type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*oauth.Profile, error)
}

type ImageStore interface {
	Upload(ctx context.Context, folder string, r io.Reader) (*models.Image, error)
	Delete(ctx context.Context, key string) error
}

type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*payment.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}
