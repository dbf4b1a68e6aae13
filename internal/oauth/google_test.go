package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rentnest/rentnest/internal/config"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/stretchr/testify/require"
)

func tokenInfoServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "good-token", r.URL.Query().Get("id_token"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func newVerifier(url string) *GoogleVerifier {
	return NewGoogleVerifier(&config.GoogleConfig{ClientID: "client-1", TokenInfoURL: url, Timeout: time.Second})
}

func TestGoogleVerifier_Verify(t *testing.T) {
	srv := tokenInfoServer(t, `{"iss":"https://accounts.google.com","aud":"client-1","sub":"1077","email":"Asha@Example.com","email_verified":"true","name":"Asha"}`, http.StatusOK)
	defer srv.Close()

	profile, err := newVerifier(srv.URL).Verify(context.Background(), "good-token")
	require.NoError(t, err)
	require.Equal(t, "1077", profile.ProviderUserID)
	require.Equal(t, "asha@example.com", profile.Email)
	require.True(t, profile.EmailVerified)
	require.Equal(t, "Asha", profile.Name)
}

func TestGoogleVerifier_WrongAudience(t *testing.T) {
	srv := tokenInfoServer(t, `{"iss":"accounts.google.com","aud":"someone-else","sub":"1077"}`, http.StatusOK)
	defer srv.Close()

	_, err := newVerifier(srv.URL).Verify(context.Background(), "good-token")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
}

func TestGoogleVerifier_RejectedToken(t *testing.T) {
	srv := tokenInfoServer(t, `{"error":"invalid_token"}`, http.StatusBadRequest)
	defer srv.Close()

	_, err := newVerifier(srv.URL).Verify(context.Background(), "good-token")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
}
