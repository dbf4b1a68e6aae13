package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rentnest/rentnest/internal/config"
	"github.com/rentnest/rentnest/internal/middleware"
	"github.com/rentnest/rentnest/internal/oauth"
	"github.com/rentnest/rentnest/internal/otp"
	"github.com/rentnest/rentnest/internal/payment"
	"github.com/rentnest/rentnest/internal/quota"
	"github.com/rentnest/rentnest/internal/service"
	"github.com/rentnest/rentnest/internal/service/servicetest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const gatewaySecret = "rzp_secret"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	handler http.Handler
	clock   *clock
	sender  *servicetest.Sender
	images  *servicetest.Images
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clk := &clock{now: time.Now()}
	var mu sync.Mutex
	n := 0
	codes := func(length int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%0*d", length, n), nil
	}

	sender := &servicetest.Sender{}
	gatekeeper := otp.NewGatekeeper(otp.DefaultConfig(), sender, logger,
		otp.WithClock(clk.Now),
		otp.WithCodeGenerator(codes),
	)

	jwtSvc, err := service.NewJWTService(&config.JWTConfig{
		SecretKey:     "0123456789abcdef0123456789abcdef",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
	}, logger)
	require.NoError(t, err)

	users := servicetest.NewUserStore()
	images := &servicetest.Images{}
	tracker := quota.NewTracker(quota.DefaultLimits(), nil)
	locks := quota.NewKeyedMutex()
	verifier := &servicetest.Verifier{Profiles: map[string]*oauth.Profile{}}

	authSvc := service.NewAuthService(users, gatekeeper, verifier, jwtSvc, servicetest.NewTokenStore(), locks, logger)
	userSvc := service.NewUserService(users, tracker, locks, logger)
	propertySvc := service.NewPropertyService(users, servicetest.NewPropertyStore(), images, tracker, locks, 5, logger)
	paymentSvc := service.NewPaymentService(users, servicetest.NewPaymentStore(), &servicetest.Gateway{Secret: gatewaySecret}, locks, 49900, "INR", logger)

	router := NewRouter(Handlers{
		Auth:       NewAuthHandlers(authSvc, logger),
		Users:      NewUserHandlers(userSvc, logger),
		Properties: NewPropertyHandlers(propertySvc, 1<<20, 5, logger),
		Payments:   NewPaymentHandlers(paymentSvc, logger),
	}, middleware.NewAuthMiddleware(jwtSvc, logger), nil, logger)

	return &testServer{handler: router, clock: clk, sender: sender, images: images}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// login signs phone in via OTP and returns the access token.
func (s *testServer) login(t *testing.T, phone string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/otp/request", "", map[string]string{"phone": phone})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	code := otpFromMessage(t, s.sender.Last())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/otp/verify", "", map[string]string{"phone": phone, "otp": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[AuthResponse](t, rec).AccessToken
}

// otpFromMessage extracts the code from a "<phone>:<body>" message.
func otpFromMessage(t *testing.T, msg string) string {
	t.Helper()
	parts := strings.SplitN(msg, ":", 2)
	require.Len(t, parts, 2, msg)
	require.GreaterOrEqual(t, len(parts[1]), 6, msg)
	return parts[1][:6]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestOTPFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/otp/request", "", map[string]string{"phone": "12345"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_PHONE", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/otp/verify", "", map[string]string{"phone": "9876543210", "otp": "123456"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "OTP_NOT_FOUND", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/otp/request", "", map[string]string{"phone": "9876543210"})
	require.Equal(t, http.StatusOK, rec.Code)
	sent := decode[RequestOTPResponse](t, rec)
	require.Equal(t, 600, sent.ExpiresIn)
	require.Equal(t, "+919876543210", sent.Phone)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/otp/request", "", map[string]string{"phone": "9876543210"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
	require.Equal(t, "OTP_COOLDOWN", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/otp/verify", "", map[string]string{"phone": "9876543210", "otp": "999999"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	mismatch := decode[ErrorResponse](t, rec)
	require.Equal(t, "OTP_MISMATCH", mismatch.Error.Code)
	require.EqualValues(t, 2, mismatch.Error.Details["attempts_remaining"])

	rec = s.do(t, http.MethodPost, "/api/v1/auth/otp/verify", "", map[string]string{"phone": "9876543210", "otp": "000001"})
	require.Equal(t, http.StatusOK, rec.Code)
	auth := decode[AuthResponse](t, rec)
	require.True(t, auth.IsNewUser)
	require.NotEmpty(t, auth.AccessToken)

	rec = s.do(t, http.MethodGet, "/api/v1/me", auth.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[service.Profile](t, rec)
	require.Equal(t, "+919876543210", profile.User.PhoneNumber)
	require.Equal(t, 1, profile.Quota.ContactViewsRemaining)

	rec = s.do(t, http.MethodGet, "/api/v1/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOTPExpired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/otp/request", "", map[string]string{"phone": "9876543210"})
	require.Equal(t, http.StatusOK, rec.Code)

	s.clock.Advance(11 * time.Minute)
	rec = s.do(t, http.MethodPost, "/api/v1/auth/otp/verify", "", map[string]string{"phone": "9876543210", "otp": "000001"})
	require.Equal(t, http.StatusGone, rec.Code)
	require.Equal(t, "OTP_EXPIRED", decode[ErrorResponse](t, rec).Error.Code)
}

func TestListingAndContactQuota(t *testing.T) {
	s := newTestServer(t)
	host := s.login(t, "9876543210")
	tenant := s.login(t, "9123456789")

	listing := map[string]any{
		"title":    "2BHK near metro",
		"type":     "apartment",
		"address":  "4th Cross, Indiranagar",
		"city":     "Bengaluru",
		"rent":     30000,
		"bedrooms": 2,
	}

	rec := s.do(t, http.MethodPost, "/api/v1/properties", host, listing)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/me/host", host, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ids []string
	for i := 0; i < 2; i++ {
		rec = s.do(t, http.MethodPost, "/api/v1/properties", host, listing)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created := decode[CreatePropertyResponse](t, rec)
		require.Equal(t, 1-i, created.ListingsRemaining)
		ids = append(ids, created.Property.ID)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/properties", host, listing)
	require.Equal(t, http.StatusForbidden, rec.Code)
	limited := decode[ErrorResponse](t, rec)
	require.Equal(t, "QUOTA_EXCEEDED", limited.Error.Code)
	require.Equal(t, "listing", limited.Error.Details["kind"])
	require.EqualValues(t, 2, limited.Error.Details["limit"])

	rec = s.do(t, http.MethodGet, "/api/v1/properties?city=bengaluru&limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[service.PropertyPage](t, rec)
	require.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/properties?min_rent=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/properties/"+ids[0], "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/properties/"+ids[0]+"/contact", tenant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reveal := decode[service.ContactReveal](t, rec)
	require.Equal(t, "+919876543210", reveal.Phone)
	require.True(t, reveal.Charged)

	rec = s.do(t, http.MethodPost, "/api/v1/properties/"+ids[0]+"/contact", tenant, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/properties/"+ids[1]+"/contact", tenant, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "contact_view", decode[ErrorResponse](t, rec).Error.Details["kind"])

	rec = s.do(t, http.MethodDelete, "/api/v1/properties/"+ids[0], tenant, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/properties/"+ids[0], host, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/properties/"+ids[0], "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadImages(t *testing.T) {
	s := newTestServer(t)
	host := s.login(t, "9876543210")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/me/host", host, nil).Code)

	rec := s.do(t, http.MethodPost, "/api/v1/properties", host, map[string]any{
		"title": "Studio room", "type": "room", "address": "MG Road", "city": "Pune", "rent": 9000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[CreatePropertyResponse](t, rec).Property.ID

	upload := func(n int) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for i := 0; i < n; i++ {
			part, err := mw.CreateFormFile(imagesField, fmt.Sprintf("photo%d.jpg", i))
			require.NoError(t, err)
			part.Write([]byte("\xff\xd8\xff\xe0 fake jpeg"))
		}
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/properties/"+id+"/images", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+host)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	rec = upload(2)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, s.images.Uploaded, 2)

	rec = upload(6)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(0)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentUpgrade(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "9876543210")

	rec := s.do(t, http.MethodPost, "/api/v1/payments/upgrade/order", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[service.UpgradeOrder](t, rec)
	require.Equal(t, int64(49900), order.Amount)

	rec = s.do(t, http.MethodPost, "/api/v1/payments/upgrade/verify", token, VerifyUpgradeRequest{
		OrderID: order.OrderID, PaymentID: "pay_1", Signature: "bad",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/payments/upgrade/verify", token, VerifyUpgradeRequest{
		OrderID: order.OrderID, PaymentID: "pay_1", Signature: payment.Sign(gatewaySecret, order.OrderID, "pay_1"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[service.Profile](t, rec)
	require.Equal(t, quota.TierPremium, profile.User.AccountType)
	require.Equal(t, 10, profile.Quota.ContactViewsRemaining)

	rec = s.do(t, http.MethodPost, "/api/v1/payments/upgrade/order", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Name: "Kiran", Email: "kiran@example.com", Password: "kiran-pass"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Name: "Kiran", Email: "kiran@example.com", Password: "kiran-pass"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "kiran@example.com", Password: "nope-nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "kiran@example.com", Password: "kiran-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	auth := decode[AuthResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: auth.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[AuthResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/logout", rotated.AccessToken, RefreshTokenRequest{RefreshToken: rotated.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: rotated.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/google", "", GoogleLoginRequest{IDToken: "unknown"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
