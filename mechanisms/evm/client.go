package evm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	x402 "github.com/x402labs/x402-go"
)

// ExactClient creates signed exact-scheme payment payloads for both wire
// versions.
type ExactClient struct {
	signer   ClientSigner
	validity time.Duration
	now      func() time.Time
}

// ExactClientOption configures an ExactClient.
type ExactClientOption func(*ExactClient)

// WithValidityPeriod overrides the default authorization lifetime used
// when the requirement carries no timeout of its own.
func WithValidityPeriod(d time.Duration) ExactClientOption {
	return func(c *ExactClient) { c.validity = d }
}

// NewExactClient builds a client-side exact-scheme mechanism around the
// given signer.
func NewExactClient(signer ClientSigner, opts ...ExactClientOption) *ExactClient {
	c := &ExactClient{
		signer:   signer,
		validity: DefaultValidityPeriodSeconds * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scheme implements x402.SchemeNetworkClient.
func (c *ExactClient) Scheme() string { return SchemeExact }

// CreatePaymentPayload signs a fresh EIP-3009 authorization for the
// requirement's full amount and wraps it in the wire shape of the
// requested protocol version. The validity window opens slightly in the
// past to tolerate verifier clock skew.
func (c *ExactClient) CreatePaymentPayload(ctx context.Context, version int, req x402.PaymentRequirements) (x402.PaymentPayload, error) {
	if req.Scheme != SchemeExact {
		return x402.PaymentPayload{}, fmt.Errorf("%w: %q", x402.ErrUnsupportedScheme, req.Scheme)
	}

	domainName, domainVersion, err := SigningDomain(req)
	if err != nil {
		return x402.PaymentPayload{}, err
	}

	amount := req.AmountRequired()
	if _, err := parseUint256("value", amount); err != nil {
		return x402.PaymentPayload{}, err
	}

	validity := c.validity
	if req.MaxTimeoutSeconds > 0 {
		validity = time.Duration(req.MaxTimeoutSeconds) * time.Second
	}

	nonce, err := NewNonce()
	if err != nil {
		return x402.PaymentPayload{}, err
	}

	now := c.now()
	auth := Authorization{
		From:        c.signer.Address(),
		To:          req.PayTo,
		Value:       amount,
		ValidAfter:  formatUnix(now.Add(-ClockSkewToleranceSeconds * time.Second)),
		ValidBefore: formatUnix(now.Add(validity)),
		Nonce:       nonce,
	}

	digest, err := AuthorizationDigest(auth, req.Network, req.Asset, domainName, domainVersion)
	if err != nil {
		return x402.PaymentPayload{}, err
	}

	signature, err := c.signer.SignDigest(ctx, digest)
	if err != nil {
		return x402.PaymentPayload{}, fmt.Errorf("signing authorization: %w", err)
	}
	if len(signature) != 65 {
		return x402.PaymentPayload{}, fmt.Errorf("signer returned %d bytes, want 65", len(signature))
	}
	// Normalize to Ethereum-style v.
	if signature[64] < 27 {
		sig := make([]byte, 65)
		copy(sig, signature)
		sig[64] += 27
		signature = sig
	}

	body := ExactPayload{
		Signature:     hexutil.Encode(signature),
		Authorization: auth,
	}

	switch version {
	case x402.V1:
		return x402.PaymentPayload{
			X402Version: x402.V1,
			Scheme:      SchemeExact,
			Network:     req.Network,
			Payload:     body.ToMap(),
		}, nil
	case x402.V2:
		accepted := req
		return x402.PaymentPayload{
			X402Version: x402.V2,
			Payload:     body.ToMap(),
			Accepted:    &accepted,
		}, nil
	default:
		return x402.PaymentPayload{}, fmt.Errorf("%w: %d", x402.ErrUnsupportedVersion, version)
	}
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
