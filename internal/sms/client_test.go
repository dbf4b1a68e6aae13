package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rentnest/rentnest/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestClient(endpoint string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(&config.SMSConfig{
		Endpoint: endpoint,
		APIKey:   "test-key",
		SenderID: "RNTNST",
		Timeout:  time.Second,
	}, logger)
}

func TestClientSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.Header.Get("authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"return":true,"request_id":"req-42","message":["SMS sent successfully."]}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Send(context.Background(), "+919876543210", "123456 is your code")
	require.NoError(t, err)
	require.Equal(t, "req-42", id)
	require.Equal(t, "9876543210", got.Numbers)
	require.Equal(t, "123456 is your code", got.Message)
	require.Equal(t, "q", got.Route)
}

func TestClientSend_GatewayRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"return":false,"message":"Invalid Numbers"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Send(context.Background(), "+919876543210", "hi")
	require.ErrorContains(t, err, "Invalid Numbers")
}

func TestClientSend_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Send(context.Background(), "+919876543210", "hi")
	require.ErrorContains(t, err, "502")
}

func TestClientSend_MissingKey(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	c.apiKey = ""
	_, err := c.Send(context.Background(), "+919876543210", "hi")
	require.Error(t, err)
}
