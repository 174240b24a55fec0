package x402proto

import (
	"errors"
	"fmt"

	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/chains"
	"github.com/agentc22/x402-engine/internal/money"
)

// ErrNoRecipientForRail is returned by RequirementFor when no pay-to
// address is configured for the requested rail; callers treat this as
// "this rail is not offered", not as a hard error.
var ErrNoRecipientForRail = errors.New("x402proto: no recipient configured for rail")

// HeaderName is the response header carrying the base64-JSON 402 body.
const HeaderName = "PAYMENT-REQUIRED"

// Recipients maps each rail to the pay-to address configured for it.
type Recipients struct {
	Fast  string
	SlowA string
	SlowB string
}

func (r Recipients) forRail(rail chains.Rail) string {
	switch rail {
	case chains.RailFast:
		return r.Fast
	case chains.RailSlowA:
		return r.SlowA
	case chains.RailSlowB:
		return r.SlowB
	default:
		return ""
	}
}

// BuildAdvertisement synthesizes the 402 body for a matched service,
// computing one AcceptEntry per enabled rail via exact price_to_base_units
// arithmetic (spec §4.C, §4.J). Rails are enumerated in chains.All()'s
// stable registration order. The human-readable "price" field is
// intentionally omitted so that a client's echoed "accepted" summary can be
// compared for strict equality against what was advertised.
func BuildAdvertisement(svc catalog.Service, resourceURL string, recipients Recipients, maxTimeoutSeconds int) (PaymentRequired, error) {
	body := PaymentRequired{
		X402Version: ProtocolVersion,
		Error:       "Payment required",
		Resource: ResourceInfo{
			URL:         resourceURL,
			Description: svc.Description,
			MimeType:    svc.MimeType,
		},
	}

	for _, c := range chains.All() {
		if !railEnabled(svc, c.Rail) {
			continue
		}
		entry, err := RequirementFor(svc, c.Rail, recipients)
		if err != nil {
			if errors.Is(err, ErrNoRecipientForRail) {
				continue
			}
			return PaymentRequired{}, err
		}
		entry.MaxTimeoutSeconds = maxTimeoutSeconds
		body.Accepts = append(body.Accepts, entry)
	}

	return body, nil
}

// RequirementFor computes the canonical AcceptEntry the gateway itself
// advertises for a service on a given rail: the price converted to exact
// base units for that rail's stablecoin, and the configured pay-to
// address — never values echoed from client input. Both the 402
// advertiser and the payment-gate middlewares call this so the figure a
// client is verified against is always the gateway's own, per spec §4.J's
// strict-equality intent.
func RequirementFor(svc catalog.Service, rail chains.Rail, recipients Recipients) (AcceptEntry, error) {
	c, err := chains.ForRail(rail)
	if err != nil {
		return AcceptEntry{}, err
	}
	payTo := recipients.forRail(rail)
	if payTo == "" {
		return AcceptEntry{}, ErrNoRecipientForRail
	}
	amount, err := money.PriceToBaseUnits(svc.Price, c.Stablecoin.Decimals)
	if err != nil {
		return AcceptEntry{}, fmt.Errorf("x402proto: service %s: %w", svc.ID, err)
	}

	entry := AcceptEntry{
		Scheme: "exact",
		CAIP2:  c.CAIP2,
		Amount: amount.String(),
		Asset:  c.Stablecoin.ContractAddress,
		PayTo:  payTo,
	}
	if c.EIP712Name != "" {
		entry.Extra = map[string]any{
			"name":    c.EIP712Name,
			"version": c.EIP712Version,
		}
	}
	if c.FeePayer != "" {
		if entry.Extra == nil {
			entry.Extra = map[string]any{}
		}
		entry.Extra["feePayer"] = c.FeePayer
	}
	return entry, nil
}

func railEnabled(svc catalog.Service, rail chains.Rail) bool {
	if len(svc.AcceptedRails) == 0 {
		return true
	}
	for _, r := range svc.AcceptedRails {
		if chains.Rail(r) == rail {
			return true
		}
	}
	return false
}
