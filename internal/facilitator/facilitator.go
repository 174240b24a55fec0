// Package facilitator implements the shared verify/settle/supported
// contract (spec §4.H, §4.I) behind two concrete adapters: FastRail, which
// verifies fast-rail proofs directly against receipts via internal/onchain,
// and External, which delegates to a remote permit-based facilitator over
// HTTP for the two slow rails.
package facilitator

import (
	"context"

	"github.com/agentc22/x402-engine/internal/x402proto"
)

// VerifyResult is the facilitator-agnostic outcome of a verify call.
type VerifyResult struct {
	Valid  bool
	Payer  string
	Reason string
}

// SettleResult is the facilitator-agnostic outcome of a settle call.
type SettleResult struct {
	Success bool
	TxHash  string
	Reason  string
}

// SupportedKind describes one payment option a facilitator supports.
type SupportedKind struct {
	Scheme string
	CAIP2  string
	Extra  map[string]any
}

// Facilitator is the contract both rail adapters satisfy, mirroring the
// teacher's facilitator.Interface (Verify/Settle/Supported).
type Facilitator interface {
	GetSupported(ctx context.Context) ([]SupportedKind, error)
	Verify(ctx context.Context, payload x402proto.PaymentHeader, requirement x402proto.AcceptEntry) (VerifyResult, error)
	Settle(ctx context.Context, payload x402proto.PaymentHeader, requirement x402proto.AcceptEntry) (SettleResult, error)
}
