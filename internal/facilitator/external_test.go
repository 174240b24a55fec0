package facilitator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentc22/x402-engine/internal/x402proto"
)

func TestExternalVerifySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify", r.URL.Path)
		_ = json.NewEncoder(w).Encode(verifyResponse{IsValid: true, Payer: "0xpayer"})
	}))
	defer srv.Close()

	ext := &External{BaseURL: srv.URL, VerifyTimeout: time.Second}
	res, err := ext.Verify(context.Background(), x402proto.PaymentHeader{}, x402proto.AcceptEntry{})
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, "0xpayer", res.Payer)
}

func TestExternalVerifyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(verifyResponse{IsValid: false, InvalidReason: "insufficient_amount"})
	}))
	defer srv.Close()

	ext := &External{BaseURL: srv.URL, VerifyTimeout: time.Second}
	res, err := ext.Verify(context.Background(), x402proto.PaymentHeader{}, x402proto.AcceptEntry{})
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, "insufficient_amount", res.Reason)
}

func TestExternalVerifyRetriesOnUnavailable(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(verifyResponse{IsValid: true, Payer: "0xpayer"})
	}))
	defer srv.Close()

	ext := &External{
		BaseURL:       srv.URL,
		VerifyTimeout: time.Second,
		Retry:         RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
	res, err := ext.Verify(context.Background(), x402proto.PaymentHeader{}, x402proto.AcceptEntry{})
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, 3, attempts)
}

func TestExternalSettleSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/settle", r.URL.Path)
		_ = json.NewEncoder(w).Encode(settleResponse{Success: true, TxHash: "0xabc"})
	}))
	defer srv.Close()

	ext := &External{BaseURL: srv.URL, SettleTimeout: time.Second}
	res, err := ext.Settle(context.Background(), x402proto.PaymentHeader{}, x402proto.AcceptEntry{})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "0xabc", res.TxHash)
}

func TestExternalGetSupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kinds": []map[string]any{
				{"scheme": "exact", "network": "eip155:8453", "extra": map[string]any{"name": "USD Coin"}},
			},
		})
	}))
	defer srv.Close()

	ext := &External{BaseURL: srv.URL, VerifyTimeout: time.Second}
	kinds, err := ext.GetSupported(context.Background())
	require.NoError(t, err)
	require.Len(t, kinds, 1)
	require.Equal(t, "eip155:8453", kinds[0].CAIP2)
}
