package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rentnest/rentnest/internal/models"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RefreshTokenService struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRefreshTokenService(client *redis.Client, logger *logrus.Logger) *RefreshTokenService {
	return &RefreshTokenService{
		client: client,
		logger: logger,
	}
}

func refreshKey(jti string) string { return fmt.Sprintf("refresh_token:%s", jti) }
func revokedKey(jti string) string { return fmt.Sprintf("revoked_token:%s", jti) }
func familyKey(id string) string   { return fmt.Sprintf("refresh_family:%s", id) }

func (s *RefreshTokenService) Store(ctx context.Context, jti, userID, familyID string, expiresAt time.Time) error {
	tokenData := models.RefreshTokenData{
		JTI:       jti,
		UserID:    userID,
		FamilyID:  familyID,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	dataJSON, err := json.Marshal(tokenData)
	if err != nil {
		return fmt.Errorf("failed to marshal token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshKey(jti), dataJSON, ttl)
	pipe.SAdd(ctx, familyKey(familyID), jti)
	pipe.Expire(ctx, familyKey(familyID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to store refresh token")
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

func (s *RefreshTokenService) Get(ctx context.Context, jti string) (*models.RefreshTokenData, error) {
	dataJSON, err := s.client.Get(ctx, refreshKey(jti)).Result()
	if err == redis.Nil {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	var tokenData models.RefreshTokenData
	if err := json.Unmarshal([]byte(dataJSON), &tokenData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token data: %w", err)
	}

	return &tokenData, nil
}

func (s *RefreshTokenService) Revoke(ctx context.Context, jti string) error {
	tokenData, err := s.Get(ctx, jti)
	if err != nil {
		return err
	}

	ttl := time.Until(tokenData.ExpiresAt)
	if ttl <= 0 {
		return s.client.Del(ctx, refreshKey(jti)).Err()
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, refreshKey(jti))
	pipe.Set(ctx, revokedKey(jti), tokenData.FamilyID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *RefreshTokenService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// RevokeFamily revokes every live token issued in the same refresh family;
// used when a revoked refresh token is replayed.
func (s *RefreshTokenService) RevokeFamily(ctx context.Context, familyID string) error {
	members, err := s.client.SMembers(ctx, familyKey(familyID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list refresh family: %w", err)
	}

	for _, jti := range members {
		if err := s.Revoke(ctx, jti); err != nil && err != appErr.ErrNotFound {
			s.logger.WithError(err).WithField("jti", jti).Warn("Failed to revoke token in family")
		}
	}
	return s.client.Del(ctx, familyKey(familyID)).Err()
}
