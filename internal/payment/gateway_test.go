package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rentnest/rentnest/internal/config"
	"github.com/stretchr/testify/require"
)

func TestGatewayCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "rzp_test", user)
		require.Equal(t, "secret", pass)

		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(49900), req.Amount)
		require.Equal(t, "INR", req.Currency)

		json.NewEncoder(w).Encode(Order{ID: "order_1", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"})
	}))
	defer srv.Close()

	gw := NewGateway(&config.PaymentConfig{BaseURL: srv.URL + "/", KeyID: "rzp_test", KeySecret: "secret", Timeout: time.Second})
	order, err := gw.CreateOrder(context.Background(), 49900, "INR", "rcpt_1", nil)
	require.NoError(t, err)
	require.Equal(t, "order_1", order.ID)
	require.Equal(t, "rcpt_1", order.Receipt)
}

func TestGatewayCreateOrder_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"BAD_REQUEST_ERROR"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	gw := NewGateway(&config.PaymentConfig{BaseURL: srv.URL, KeyID: "rzp_test", KeySecret: "secret", Timeout: time.Second})
	_, err := gw.CreateOrder(context.Background(), 100, "INR", "r", nil)
	require.ErrorContains(t, err, "BAD_REQUEST_ERROR")
}

func TestGatewayVerifySignature(t *testing.T) {
	gw := NewGateway(&config.PaymentConfig{KeyID: "rzp_test", KeySecret: "secret"})
	sig := Sign("secret", "order_1", "pay_1")

	require.True(t, gw.VerifySignature("order_1", "pay_1", sig))
	require.False(t, gw.VerifySignature("order_1", "pay_2", sig))
	require.False(t, gw.VerifySignature("order_1", "pay_1", Sign("other", "order_1", "pay_1")))
	require.False(t, gw.VerifySignature("", "pay_1", sig))
}
