package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentc22/x402-engine/internal/x402proto"
)

// ErrFacilitatorUnavailable marks a transport-level failure or a 5xx
// response from an external facilitator, distinct from the facilitator
// rejecting a payment.
var ErrFacilitatorUnavailable = errors.New("facilitator: unavailable")

type verifyRequest struct {
	X402Version int                     `json:"x402Version"`
	Payload     x402proto.PaymentHeader `json:"paymentPayload"`
	Requirement x402proto.AcceptEntry   `json:"paymentRequirements"`
}

type settleRequest struct {
	X402Version int                     `json:"x402Version"`
	Payload     x402proto.PaymentHeader `json:"paymentPayload"`
	Requirement x402proto.AcceptEntry   `json:"paymentRequirements"`
}

type verifyResponse struct {
	IsValid       bool   `json:"isValid"`
	Payer         string `json:"payer"`
	InvalidReason string `json:"invalidReason"`
}

type settleResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash"`
	Reason  string `json:"errorReason"`
}

type supportedResponse struct {
	Kinds []struct {
		Scheme string         `json:"scheme"`
		CAIP2  string         `json:"network"`
		Extra  map[string]any `json:"extra"`
	} `json:"kinds"`
}

// External implements the Facilitator contract by delegating to a remote
// permit-based settlement service over HTTP (spec §4.I), grounded on the
// teacher's FacilitatorClient.
type External struct {
	BaseURL       string
	Client        *http.Client
	Authorization string
	VerifyTimeout time.Duration
	SettleTimeout time.Duration
	Retry         RetryConfig
}

func (e *External) httpClient() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return http.DefaultClient
}

func (e *External) do(ctx context.Context, timeout time.Duration, method, path string, body any, out any) error {
	fn := func() (struct{}, error) {
		reqCtx := ctx
		if _, hasDeadline := ctx.Deadline(); !hasDeadline && timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return struct{}{}, fmt.Errorf("facilitator: marshal request: %w", err)
			}
			reader = bytes.NewReader(data)
		}

		httpReq, err := http.NewRequestWithContext(reqCtx, method, e.BaseURL+path, reader)
		if err != nil {
			return struct{}{}, fmt.Errorf("facilitator: build request: %w", err)
		}
		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if e.Authorization != "" {
			httpReq.Header.Set("Authorization", e.Authorization)
		}

		httpResp, err := e.httpClient().Do(httpReq)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: %v", ErrFacilitatorUnavailable, err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= http.StatusInternalServerError {
			return struct{}{}, fmt.Errorf("%w: status %d", ErrFacilitatorUnavailable, httpResp.StatusCode)
		}
		if httpResp.StatusCode != http.StatusOK {
			return struct{}{}, parseErrorResponse(httpResp)
		}
		if out != nil {
			if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
				return struct{}{}, fmt.Errorf("facilitator: decode response: %w", err)
			}
		}
		return struct{}{}, nil
	}

	_, err := withRetry(ctx, e.Retry, func(err error) bool { return errors.Is(err, ErrFacilitatorUnavailable) }, fn)
	return err
}

func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		if reason, ok := parsed["invalidReason"].(string); ok && reason != "" {
			return fmt.Errorf("facilitator: rejected: status %d, reason %s", resp.StatusCode, reason)
		}
		if reason, ok := parsed["errorReason"].(string); ok && reason != "" {
			return fmt.Errorf("facilitator: rejected: status %d, reason %s", resp.StatusCode, reason)
		}
	}
	return fmt.Errorf("facilitator: status %d", resp.StatusCode)
}

// GetSupported queries the external facilitator's /supported endpoint.
func (e *External) GetSupported(ctx context.Context) ([]SupportedKind, error) {
	var resp supportedResponse
	if err := e.do(ctx, e.VerifyTimeout, http.MethodGet, "/supported", nil, &resp); err != nil {
		return nil, err
	}
	kinds := make([]SupportedKind, 0, len(resp.Kinds))
	for _, k := range resp.Kinds {
		kinds = append(kinds, SupportedKind{Scheme: k.Scheme, CAIP2: k.CAIP2, Extra: k.Extra})
	}
	return kinds, nil
}

// Verify calls POST /verify on the external facilitator.
func (e *External) Verify(ctx context.Context, payload x402proto.PaymentHeader, requirement x402proto.AcceptEntry) (VerifyResult, error) {
	req := verifyRequest{X402Version: x402proto.ProtocolVersion, Payload: payload, Requirement: requirement}
	var resp verifyResponse
	if err := e.do(ctx, e.VerifyTimeout, http.MethodPost, "/verify", req, &resp); err != nil {
		return VerifyResult{Reason: "facilitator_rejected"}, err
	}
	reason := resp.InvalidReason
	if !resp.IsValid && reason == "" {
		reason = "facilitator_rejected"
	}
	return VerifyResult{Valid: resp.IsValid, Payer: resp.Payer, Reason: reason}, nil
}

// Settle calls POST /settle on the external facilitator.
func (e *External) Settle(ctx context.Context, payload x402proto.PaymentHeader, requirement x402proto.AcceptEntry) (SettleResult, error) {
	req := settleRequest{X402Version: x402proto.ProtocolVersion, Payload: payload, Requirement: requirement}
	var resp settleResponse
	if err := e.do(ctx, e.SettleTimeout, http.MethodPost, "/settle", req, &resp); err != nil {
		return SettleResult{Reason: "facilitator_rejected"}, err
	}
	return SettleResult{Success: resp.Success, TxHash: resp.TxHash, Reason: resp.Reason}, nil
}
