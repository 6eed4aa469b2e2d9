package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayClient_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var body createOrderBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 50000, body.Amount)
		assert.Equal(t, "INR", body.Currency)
		assert.Equal(t, "rcpt_1", body.Receipt)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_Abc","entity":"order","amount":50000,"currency":"INR","receipt":"rcpt_1","status":"created"}`))
	}))
	defer srv.Close()

	client := NewGatewayClient("key_id", "key_secret", srv.URL)
	order, err := client.CreateOrder(context.Background(), d("50000"), "INR", "rcpt_1")
	require.NoError(t, err)
	assert.Equal(t, "order_Abc", order.ID)
	assert.Equal(t, "created", order.Status)
	assert.EqualValues(t, 50000, order.Amount)
}

func TestGatewayClient_ErrorResponse(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount exceeds maximum"}}`))
	}))
	defer srv.Close()

	client := NewGatewayClient("key_id", "key_secret", srv.URL)
	_, err := client.CreateOrder(context.Background(), d("1"), "INR", "rcpt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount exceeds maximum")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
