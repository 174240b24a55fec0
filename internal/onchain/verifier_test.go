package onchain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agentc22/x402-engine/internal/ledger"
)

const (
	testContract  = "0x0000000000000000000000000000000000aaaaaa"
	testRecipient = "0x0000000000000000000000000000000000bbbbbb"
	testPayer     = "0x0000000000000000000000000000000000cccccc"
	testCAIP2     = "eip155:4326"
)

type fakeClient struct {
	receipt *types.Receipt
	err     error
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.err
}

func transferLog(contract, from, to string, value int64) *types.Log {
	return &types.Log{
		Address: common.HexToAddress(contract),
		Topics: []common.Hash{
			transferTopic0,
			common.HexToHash(from),
			common.HexToHash(to),
		},
		Data: common.LeftPadBytes(big.NewInt(value).Bytes(), 32),
	}
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	l, err := ledger.Open(db, ledger.PoolConfig{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestVerifyMalformedTxHash(t *testing.T) {
	v := NewVerifierWithClient(&fakeClient{}, testContract, testCAIP2, nil)
	res := v.Verify(context.Background(), Proof{TxHash: "not-a-hash"}, big.NewInt(1), testRecipient)
	require.Equal(t, ReasonMalformedProof, res.Reason)
}

func TestVerifyMalformedRecipient(t *testing.T) {
	v := NewVerifierWithClient(&fakeClient{}, testContract, testCAIP2, nil)
	txHash := "0x" + "11" + repeatHex(62)
	res := v.Verify(context.Background(), Proof{TxHash: txHash}, big.NewInt(1), "not-an-address")
	require.Equal(t, ReasonMalformedProof, res.Reason)
}

func TestVerifyNotFound(t *testing.T) {
	v := NewVerifierWithClient(&fakeClient{err: ethereum.NotFound}, testContract, testCAIP2, nil)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(1), testRecipient)
	require.Equal(t, ReasonNotFound, res.Reason)
}

func TestVerifyUpstreamError(t *testing.T) {
	v := NewVerifierWithClient(&fakeClient{err: errors.New("dial tcp: timeout")}, testContract, testCAIP2, nil)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(1), testRecipient)
	require.Equal(t, ReasonUpstreamDown, res.Reason)
}

func TestVerifyReverted(t *testing.T) {
	receipt := &types.Receipt{Status: types.ReceiptStatusFailed}
	v := NewVerifierWithClient(&fakeClient{receipt: receipt}, testContract, testCAIP2, nil)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(1), testRecipient)
	require.Equal(t, ReasonReverted, res.Reason)
}

func TestVerifyWrongToken(t *testing.T) {
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog("0x00000000000000000000000000000000dddddd", testPayer, testRecipient, 100)},
	}
	v := NewVerifierWithClient(&fakeClient{receipt: receipt}, testContract, testCAIP2, nil)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(1), testRecipient)
	require.Equal(t, ReasonWrongToken, res.Reason)
}

func TestVerifyWrongTokenWhenContractLogDoesNotParseAsTransfer(t *testing.T) {
	nonTransferLog := &types.Log{
		Address: common.HexToAddress(testContract),
		Topics:  []common.Hash{crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))},
		Data:    common.LeftPadBytes(big.NewInt(100).Bytes(), 32),
	}
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{nonTransferLog},
	}
	v := NewVerifierWithClient(&fakeClient{receipt: receipt}, testContract, testCAIP2, nil)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(1), testRecipient)
	require.Equal(t, ReasonWrongToken, res.Reason)
}

func TestVerifyWrongRecipient(t *testing.T) {
	other := "0x00000000000000000000000000000000eeeeee"
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog(testContract, testPayer, other, 100)},
	}
	v := NewVerifierWithClient(&fakeClient{receipt: receipt}, testContract, testCAIP2, nil)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(1), testRecipient)
	require.Equal(t, ReasonWrongRecipient, res.Reason)
}

func TestVerifyInsufficientAmount(t *testing.T) {
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog(testContract, testPayer, testRecipient, 50)},
	}
	v := NewVerifierWithClient(&fakeClient{receipt: receipt}, testContract, testCAIP2, nil)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(100), testRecipient)
	require.Equal(t, ReasonInsufficientAmt, res.Reason)
}

func TestVerifySplitPaymentsSum(t *testing.T) {
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			transferLog(testContract, testPayer, testRecipient, 40),
			transferLog(testContract, testPayer, testRecipient, 60),
		},
	}
	l := newTestLedger(t)
	v := NewVerifierWithClient(&fakeClient{receipt: receipt}, testContract, testCAIP2, l)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(100), testRecipient)
	require.True(t, res.Valid)
	require.Equal(t, testPayer, res.Payer)
}

func TestVerifyOverpaymentAccepted(t *testing.T) {
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog(testContract, testPayer, testRecipient, 500)},
	}
	l := newTestLedger(t)
	v := NewVerifierWithClient(&fakeClient{receipt: receipt}, testContract, testCAIP2, l)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(100), testRecipient)
	require.True(t, res.Valid)
}

func TestVerifyReplayDetected(t *testing.T) {
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog(testContract, testPayer, testRecipient, 100)},
	}
	l := newTestLedger(t)
	v := NewVerifierWithClient(&fakeClient{receipt: receipt}, testContract, testCAIP2, l)

	first := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(100), testRecipient)
	require.True(t, first.Valid)

	second := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(100), testRecipient)
	require.False(t, second.Valid)
	require.Equal(t, ReasonReplayed, second.Reason)
}

func TestVerifyIgnoresUnrelatedTransfersInSameTx(t *testing.T) {
	other := "0x00000000000000000000000000000000eeeeee"
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			transferLog(testContract, testPayer, testRecipient, 100),
			transferLog(testContract, testContract, other, 999),
		},
	}
	l := newTestLedger(t)
	v := NewVerifierWithClient(&fakeClient{receipt: receipt}, testContract, testCAIP2, l)
	res := v.Verify(context.Background(), Proof{TxHash: validTxHash()}, big.NewInt(100), testRecipient)
	require.True(t, res.Valid)
}

func validTxHash() string {
	return "0x" + repeatHex(64)
}

func repeatHex(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '1'
	}
	return string(b)
}
