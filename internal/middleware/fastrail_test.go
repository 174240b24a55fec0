package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/chains"
	"github.com/agentc22/x402-engine/internal/facilitator"
	"github.com/agentc22/x402-engine/internal/onchain"
	"github.com/agentc22/x402-engine/internal/x402proto"
)

const testContract = "0x00000000000000000000000000000000aaaaaa"

type fakeEthClient struct {
	receipt *types.Receipt
	err     error
}

func (f *fakeEthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.err
}

func newRegistryWithFastService(t *testing.T) *catalog.Registry {
	t.Helper()
	body := `[{"id":"svc","displayName":"svc","price":"0.01","method":"GET","path":"/api/paid","upstreamTag":"tag"}]`
	reg, err := catalog.Load(strings.NewReader(body))
	require.NoError(t, err)
	return reg
}

func TestFastRailMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	router := gin.New()

	called := false
	verified := false
	reg := newRegistryWithFastService(t)
	verifier := onchain.NewVerifierWithClient(&fakeEthClient{}, testContract, chains.NetworkFast, nil)
	fr := facilitator.NewFastRail(verifier)

	router.GET("/api/paid",
		FastRail(reg, fr, x402proto.Recipients{Fast: "0xrecipient"}, nil),
		func(c *gin.Context) {
			called = true
			verified = IsVerified(c)
		},
	)
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/paid", nil))

	require.True(t, called, "no payment header must pass through to the next middleware")
	require.False(t, verified)
}

func TestFastRailMiddlewareRejectsMissingTxHash(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	router := gin.New()

	hdr := x402proto.PaymentHeader{
		X402Version: x402proto.ProtocolVersion,
		Accepted: x402proto.AcceptedSummary{
			Scheme: "exact",
			CAIP2:  chains.NetworkFast,
			Amount: "10000000000000000", // 0.01 at 18 decimals
			PayTo:  "0xrecipient",
		},
		Payload: map[string]any{"notTxHash": "nope"},
	}
	raw, err := x402proto.EncodeHeaderValue(hdr)
	require.NoError(t, err)

	reg := newRegistryWithFastService(t)
	verifier := onchain.NewVerifierWithClient(&fakeEthClient{}, testContract, chains.NetworkFast, nil)
	fr := facilitator.NewFastRail(verifier)

	router.GET("/api/paid", FastRail(reg, fr, x402proto.Recipients{Fast: "0xrecipient"}, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/paid", nil)
	req.Header.Set("X-Payment", raw)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	require.Contains(t, w.Body.String(), "txHash")
}

