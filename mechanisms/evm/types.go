package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	x402 "github.com/x402labs/x402-go"
)

// Authorization is an EIP-3009 transfer authorization. All numeric
// fields are decimal strings of unsigned 256-bit integers; Nonce is
// 0x-prefixed hex of 32 random bytes. An Authorization is immutable once
// signed and consumed exactly once by a successful settlement.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ToMap renders the authorization as the generic map used inside a
// payment payload body.
func (a Authorization) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"from":        a.From,
		"to":          a.To,
		"value":       a.Value,
		"validAfter":  a.ValidAfter,
		"validBefore": a.ValidBefore,
		"nonce":       a.Nonce,
	}
}

// ExactPayload is the scheme-specific body of an exact-scheme payment:
// the authorization and its 65-byte signature in 0x hex.
type ExactPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// ToMap renders the payload body for embedding in a PaymentPayload.
func (p ExactPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"signature":     p.Signature,
		"authorization": p.Authorization.ToMap(),
	}
}

// ParseExactPayload extracts the exact-scheme body from the generic
// payload map of a PaymentPayload.
func ParseExactPayload(body map[string]interface{}) (*ExactPayload, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payload body is not serializable: %w", err)
	}
	var p ExactPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("payload body is not an exact-scheme payload: %w", err)
	}
	if p.Signature == "" {
		return nil, fmt.Errorf("payload body has no signature")
	}
	if p.Authorization.From == "" || p.Authorization.To == "" {
		return nil, fmt.Errorf("authorization is missing from/to")
	}
	return &p, nil
}

// parseUint256 parses a decimal string as an unsigned 256-bit integer.
// Parse failures are hard errors, never truncation.
func parseUint256(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("authorization %s %q is not a decimal integer", field, s)
	}
	if v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("authorization %s %q is out of uint256 range", field, s)
	}
	return v, nil
}

// ClientSigner produces signatures on behalf of the paying wallet.
// Implementations sign a 32-byte EIP-712 digest and return a 65-byte
// r||s||v signature.
type ClientSigner interface {
	Address() string
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

// FacilitatorSigner is the facilitator's on-chain capability: reading
// token balances and submitting transferWithAuthorization transactions.
type FacilitatorSigner interface {
	Addresses(network x402.Network) []string
	Balance(ctx context.Context, network x402.Network, asset, owner string) (*big.Int, error)
	TransferWithAuthorization(ctx context.Context, network x402.Network, asset string, auth Authorization, signature []byte) (txHash string, err error)
}
