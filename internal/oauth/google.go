package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rentnest/rentnest/internal/config"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
)

type Profile struct {
	Provider       string
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
}

// GoogleVerifier validates Google ID tokens against the tokeninfo endpoint.
type GoogleVerifier struct {
	clientID     string
	tokenInfoURL string
	client       *http.Client
}

func NewGoogleVerifier(cfg *config.GoogleConfig) *GoogleVerifier {
	return &GoogleVerifier{
		clientID:     cfg.ClientID,
		tokenInfoURL: cfg.TokenInfoURL,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

type tokenInfoResponse struct {
	Issuer        string `json:"iss"`
	Audience      string `json:"aud"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Profile, error) {
	if g.clientID == "" {
		return nil, fmt.Errorf("google client id is not configured")
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, appErr.ErrInvalid
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.tokenInfoURL+"?"+url.Values{"id_token": {idToken}}.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return nil, appErr.ErrUnauthorized
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("google tokeninfo failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var info tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.Audience != g.clientID {
		return nil, appErr.ErrUnauthorized
	}
	if info.Issuer != "accounts.google.com" && info.Issuer != "https://accounts.google.com" {
		return nil, appErr.ErrUnauthorized
	}
	if info.Subject == "" {
		return nil, appErr.ErrInvalid
	}

	return &Profile{
		Provider:       "google",
		ProviderUserID: info.Subject,
		Email:          strings.ToLower(strings.TrimSpace(info.Email)),
		EmailVerified:  info.EmailVerified == "true",
		Name:           info.Name,
	}, nil
}
