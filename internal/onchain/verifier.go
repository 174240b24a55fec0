// Package onchain implements the fast-rail verifier: it fetches a
// transaction receipt over JSON-RPC and validates a stablecoin Transfer
// event against an expected recipient and amount (spec §4.G).
package onchain

import (
	"context"
	"math/big"
	"regexp"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/agentc22/x402-engine/internal/ledger"
)

// Reason is the invalid-verdict taxonomy of spec §3 Verification Result.
type Reason string

const (
	ReasonMissingProof    Reason = "missing_proof"
	ReasonMalformedProof  Reason = "malformed_proof"
	ReasonNotFound        Reason = "not_found"
	ReasonReverted        Reason = "reverted"
	ReasonWrongToken      Reason = "wrong_token"
	ReasonWrongRecipient  Reason = "wrong_recipient"
	ReasonInsufficientAmt Reason = "insufficient_amount"
	ReasonReplayed        Reason = "replayed"
	ReasonUpstreamDown    Reason = "upstream_unavailable"
)

// Result is the tagged Verification Result: either Valid with the payer
// address, or an invalid Reason.
type Result struct {
	Valid  bool
	Payer  string
	Reason Reason
}

var (
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
	addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	transferTopic0 = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	receiptTimeout = 15 * time.Second
)

// Proof is the fast rail's opaque per-rail payload.
type Proof struct {
	TxHash string
}

// Client is the subset of ethclient.Client the verifier depends on, so
// tests can substitute a fake.
type Client interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Verifier verifies fast-rail payments against a configured stablecoin
// contract and records accepted proofs in the ledger for replay protection.
type Verifier struct {
	client          Client
	contractAddress string // lowercase hex, no 0x stripped
	caip2           string
	ledger          *ledger.Ledger
}

// NewVerifier dials the fast-rail RPC endpoint and returns a Verifier bound
// to the given stablecoin contract.
func NewVerifier(rpcURL, contractAddress, caip2 string, l *ledger.Ledger) (*Verifier, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, err
	}
	return &Verifier{
		client:          client,
		contractAddress: strings.ToLower(contractAddress),
		caip2:           caip2,
		ledger:          l,
	}, nil
}

// NewVerifierWithClient constructs a Verifier against an already-dialed
// client; used by tests to inject a fake.
func NewVerifierWithClient(client Client, contractAddress, caip2 string, l *ledger.Ledger) *Verifier {
	return &Verifier{client: client, contractAddress: strings.ToLower(contractAddress), caip2: caip2, ledger: l}
}

// Verify runs the full algorithm of spec §4.G against a fast-rail proof.
func (v *Verifier) Verify(ctx context.Context, proof Proof, expectedAmountBaseUnits *big.Int, expectedRecipient string) Result {
	txHash := strings.ToLower(strings.TrimSpace(proof.TxHash))
	if !txHashPattern.MatchString(txHash) {
		return Result{Reason: ReasonMalformedProof}
	}
	recipient := strings.ToLower(expectedRecipient)
	if !addressPattern.MatchString(recipient) {
		return Result{Reason: ReasonMalformedProof}
	}

	rctx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := v.client.TransactionReceipt(rctx, common.HexToHash(txHash))
	if err != nil {
		if err == ethereum.NotFound {
			return Result{Reason: ReasonNotFound}
		}
		return Result{Reason: ReasonUpstreamDown}
	}
	if receipt == nil {
		return Result{Reason: ReasonNotFound}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Result{Reason: ReasonReverted}
	}

	total := new(big.Int)
	var payer string
	matchedTransfer := false

	for _, lg := range receipt.Logs {
		if lg == nil || !strings.EqualFold(lg.Address.Hex(), v.contractAddress) {
			continue
		}
		from, to, value, ok := parseTransferLog(lg)
		if !ok {
			continue
		}
		matchedTransfer = true
		if strings.EqualFold(to, recipient) {
			total.Add(total, value)
			payer = from
		}
	}

	if !matchedTransfer {
		return Result{Reason: ReasonWrongToken}
	}
	if total.Sign() == 0 {
		return Result{Reason: ReasonWrongRecipient}
	}
	if total.Cmp(expectedAmountBaseUnits) < 0 {
		return Result{Reason: ReasonInsufficientAmt}
	}

	if v.ledger != nil {
		inserted, err := v.ledger.RecordProof(ctx, txHash, payer, total.String(), v.caip2)
		if err != nil {
			return Result{Reason: ReasonUpstreamDown}
		}
		if !inserted {
			return Result{Reason: ReasonReplayed}
		}
	}

	return Result{Valid: true, Payer: payer}
}

// parseTransferLog decodes an ERC-20 Transfer(address,address,uint256) log.
// topic0 must match the Transfer event signature; topic1/topic2 are
// zero-padded addresses; data is the 32-byte value.
func parseTransferLog(lg *types.Log) (from, to string, value *big.Int, ok bool) {
	if len(lg.Topics) != 3 || lg.Topics[0] != transferTopic0 {
		return "", "", nil, false
	}
	if len(lg.Data) < 32 {
		return "", "", nil, false
	}
	from = strings.ToLower(common.HexToAddress(lg.Topics[1].Hex()).Hex())
	to = common.HexToAddress(lg.Topics[2].Hex()).Hex()
	value = new(big.Int).SetBytes(lg.Data[:32])
	return from, to, value, true
}
