package facilitator

import (
	"context"
	"math/big"

	"github.com/agentc22/x402-engine/internal/chains"
	"github.com/agentc22/x402-engine/internal/onchain"
	"github.com/agentc22/x402-engine/internal/x402proto"
)

// FastRail adapts internal/onchain.Verifier to the Facilitator contract
// (spec §4.H). Settle is a no-op: the fast rail settles itself at the
// moment the client's on-chain transfer confirms, so there is nothing left
// for the gateway to execute.
type FastRail struct {
	verifier *onchain.Verifier
}

// NewFastRail constructs a FastRail facilitator over an already-configured
// on-chain verifier.
func NewFastRail(verifier *onchain.Verifier) *FastRail {
	return &FastRail{verifier: verifier}
}

// GetSupported returns a static manifest advertising the fast rail's single
// payment kind, per spec §4.H.
func (f *FastRail) GetSupported(ctx context.Context) ([]SupportedKind, error) {
	fast, err := chains.Lookup(chains.NetworkFast)
	if err != nil {
		return nil, err
	}
	return []SupportedKind{
		{
			Scheme: "exact",
			CAIP2:  fast.CAIP2,
			Extra: map[string]any{
				"name":    fast.EIP712Name,
				"version": fast.EIP712Version,
			},
		},
	}, nil
}

// Verify decodes the fast-rail payload and delegates to the on-chain
// verifier.
func (f *FastRail) Verify(ctx context.Context, payload x402proto.PaymentHeader, requirement x402proto.AcceptEntry) (VerifyResult, error) {
	fastPayload, ok := x402proto.DecodeFastRailPayload(payload.Payload)
	if !ok {
		return VerifyResult{Reason: string(onchain.ReasonMalformedProof)}, nil
	}

	amount, ok := new(big.Int).SetString(requirement.Amount, 10)
	if !ok {
		return VerifyResult{Reason: string(onchain.ReasonMalformedProof)}, nil
	}

	result := f.verifier.Verify(ctx, onchain.Proof{TxHash: fastPayload.TxHash}, amount, requirement.PayTo)
	return VerifyResult{Valid: result.Valid, Payer: result.Payer, Reason: string(result.Reason)}, nil
}

// Settle is a no-op for the fast rail: verification IS settlement.
func (f *FastRail) Settle(ctx context.Context, payload x402proto.PaymentHeader, requirement x402proto.AcceptEntry) (SettleResult, error) {
	fastPayload, ok := x402proto.DecodeFastRailPayload(payload.Payload)
	if !ok {
		return SettleResult{Reason: string(onchain.ReasonMalformedProof)}, nil
	}
	return SettleResult{Success: true, TxHash: fastPayload.TxHash}, nil
}
