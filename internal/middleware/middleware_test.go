package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rentnest/rentnest/internal/config"
	"github.com/rentnest/rentnest/internal/models"
	"github.com/rentnest/rentnest/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger(buf *bytes.Buffer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(buf)
	return logger
}

func TestRequireAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := testLogger(&buf)
	jwtSvc, err := service.NewJWTService(&config.JWTConfig{
		SecretKey:     "0123456789abcdef0123456789abcdef",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
	}, logger)
	require.NoError(t, err)

	issued, err := jwtSvc.Issue(&models.User{ID: "u1", Role: models.RoleHost}, "")
	require.NoError(t, err)

	var gotID string
	var gotRole models.Role
	handler := NewAuthMiddleware(jwtSvc, logger).RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserIDFromContext(r.Context())
		gotRole, _ = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + issued.Tokens.RefreshToken, http.StatusUnauthorized},
		{"access token", "Bearer " + issued.Tokens.AccessToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)

			if tc.status == http.StatusUnauthorized {
				var body struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				require.Equal(t, "UNAUTHORIZED", body.Error.Code)
			}
		})
	}
	require.Equal(t, "u1", gotID)
	require.Equal(t, models.RoleHost, gotRole)
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	restricted := CORSMiddleware([]string{"https://app.rentnest.in"})(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.rentnest.in")
	rec := httptest.NewRecorder()
	restricted.ServeHTTP(rec, req)
	require.Equal(t, "https://app.rentnest.in", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	restricted.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/properties", nil)
	rec = httptest.NewRecorder()
	CORSMiddleware(nil)(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingAndRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := testLogger(&buf)

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := LoggingMiddleware(logger)(RecoverMiddleware(logger)(panicking))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/properties", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, buf.String(), `"panic":"boom"`)
	require.Contains(t, buf.String(), `"status":500`)
	require.Contains(t, buf.String(), `"path":"/api/v1/properties"`)
}
