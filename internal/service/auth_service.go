package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentnest/rentnest/internal/models"
	"github.com/rentnest/rentnest/internal/oauth"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/rentnest/rentnest/internal/otp"
	"github.com/rentnest/rentnest/internal/quota"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users    UserStore
	otp      OTPGatekeeper
	google   IdentityVerifier
	jwt      *JWTService
	tokens   TokenStore
	locks    *quota.KeyedMutex
	logger   *logrus.Logger
	now      func() time.Time
	hashCost int
}

func NewAuthService(users UserStore, gatekeeper OTPGatekeeper, google IdentityVerifier, jwt *JWTService, tokens TokenStore, locks *quota.KeyedMutex, logger *logrus.Logger) *AuthService {
	return &AuthService{
		users:    users,
		otp:      gatekeeper,
		google:   google,
		jwt:      jwt,
		tokens:   tokens,
		locks:    locks,
		logger:   logger,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

type AuthResult struct {
	Tokens  *models.TokenPair
	User    *models.User
	Created bool
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", appErr.ErrInvalid)
	}
	if len(password) < 8 || len(password) > 72 {
		return nil, fmt.Errorf("%w: password must be between 8 and 72 characters", appErr.ErrInvalid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(uuid.New().String(), s.now())
	user.Name = strings.TrimSpace(name)
	user.Email = email
	user.PasswordHash = string(hash)

	if err := s.users.Create(ctx, user); err != nil {
		if appErr.IsConflict(err) {
			return nil, fmt.Errorf("%w: email already registered", appErr.ErrConflict)
		}
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("User registered with password")
	return s.issue(ctx, user, true)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if appErr.IsNotFound(err) {
		return nil, appErr.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, appErr.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, appErr.ErrUnauthorized
	}
	return s.issue(ctx, user, false)
}

func (s *AuthService) RequestOTP(ctx context.Context, phone string) (*otp.RequestResult, error) {
	return s.otp.Request(ctx, phone)
}

// VerifyOTP consumes the code and signs the phone's owner in, creating the
// account on first login.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (*AuthResult, error) {
	normalized, err := s.otp.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if err := s.otp.Verify(ctx, normalized, code); err != nil {
		return nil, err
	}

	user, created, err := s.getOrCreate(ctx,
		func() (*models.User, error) { return s.users.GetByPhoneNumber(ctx, normalized) },
		func(u *models.User) { u.PhoneNumber = normalized },
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get or create user")
		return nil, err
	}
	return s.issue(ctx, user, created)
}

// GoogleLogin signs in with a Google ID token. A verified email that already
// belongs to an account links the Google identity to it.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	profile, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByGoogleID(ctx, profile.ProviderUserID)
	if err == nil {
		return s.issue(ctx, user, false)
	}
	if !appErr.IsNotFound(err) {
		return nil, err
	}

	if profile.EmailVerified && profile.Email != "" {
		existing, err := s.users.GetByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			linked, err := s.linkGoogle(ctx, existing.ID, profile)
			if err != nil {
				return nil, err
			}
			return s.issue(ctx, linked, false)
		case !appErr.IsNotFound(err):
			return nil, err
		}
	}

	user, created, err := s.getOrCreate(ctx,
		func() (*models.User, error) { return s.users.GetByGoogleID(ctx, profile.ProviderUserID) },
		func(u *models.User) {
			u.GoogleID = profile.ProviderUserID
			u.Name = profile.Name
			if profile.EmailVerified {
				u.Email = profile.Email
			}
		},
	)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user, created)
}

// linkGoogle attaches profile to userID under the user's lock and returns the
// stored user as it is after the link.
func (s *AuthService) linkGoogle(ctx context.Context, userID string, profile *oauth.Profile) (*models.User, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.users.LinkGoogle(ctx, userID, profile.ProviderUserID, profile.Name); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", userID).Info("Linked google account to existing user")
	return user, nil
}

// Refresh rotates a refresh token. Presenting a revoked token revokes its
// whole family.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.jwt.VerifyToken(refreshToken)
	if err != nil || claims.Type != TokenTypeRefresh {
		return nil, appErr.ErrUnauthorized
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		s.logger.WithField("family_id", claims.FamilyID).Warn("Revoked refresh token replayed, revoking family")
		if err := s.tokens.RevokeFamily(ctx, claims.FamilyID); err != nil {
			s.logger.WithError(err).Error("Failed to revoke refresh family")
		}
		return nil, appErr.ErrUnauthorized
	}

	if _, err := s.tokens.Get(ctx, claims.ID); err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	if err := s.tokens.Revoke(ctx, claims.ID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}

	issued, err := s.jwt.Issue(user, claims.FamilyID)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Store(ctx, issued.RefreshJTI, user.ID, issued.FamilyID, issued.RefreshExpiresAt); err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: issued.Tokens, User: user}, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	claims, err := s.jwt.VerifyToken(refreshToken)
	if err != nil || claims.Type != TokenTypeRefresh {
		return
	}
	if err := s.tokens.Revoke(ctx, claims.ID); err != nil && !appErr.IsNotFound(err) {
		s.logger.WithError(err).Warn("Failed to revoke refresh token on logout")
	}
}

func (s *AuthService) getOrCreate(ctx context.Context, find func() (*models.User, error), fill func(*models.User)) (*models.User, bool, error) {
	user, err := find()
	if err == nil {
		return user, false, nil
	}
	if !appErr.IsNotFound(err) {
		return nil, false, err
	}

	user = models.NewUser(uuid.New().String(), s.now())
	fill(user)
	if err := s.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent first login
		if errors.Is(err, appErr.ErrConflict) {
			user, err := find()
			return user, false, err
		}
		return nil, false, err
	}
	s.logger.WithField("user_id", user.ID).Info("User created")
	return user, true, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User, created bool) (*AuthResult, error) {
	issued, err := s.jwt.Issue(user, "")
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Store(ctx, issued.RefreshJTI, user.ID, issued.FamilyID, issued.RefreshExpiresAt); err != nil {
		s.logger.WithError(err).Error("Failed to store refresh token")
		return nil, err
	}
	return &AuthResult{Tokens: issued.Tokens, User: user, Created: created}, nil
}
