package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/logger"
	"github.com/x402labs/x402-go/replay"
)

// ExactFacilitator verifies and settles exact-scheme payments. It holds
// the replay ledger: a nonce transitions to consumed during the
// verification that accepts it, so no second verification of the same
// nonce can succeed, sequentially or concurrently.
type ExactFacilitator struct {
	signer FacilitatorSigner
	ledger replay.Ledger
	log    logger.Logger
	now    func() time.Time
}

// ExactFacilitatorOption configures an ExactFacilitator.
type ExactFacilitatorOption func(*ExactFacilitator)

// WithLedger substitutes the replay ledger, e.g. one backed by shared
// storage for a multi-instance deployment.
func WithLedger(l replay.Ledger) ExactFacilitatorOption {
	return func(f *ExactFacilitator) { f.ledger = l }
}

// WithLogger attaches a structured logger.
func WithLogger(l logger.Logger) ExactFacilitatorOption {
	return func(f *ExactFacilitator) { f.log = l }
}

// WithClock substitutes the time source used for validity windows.
func WithClock(now func() time.Time) ExactFacilitatorOption {
	return func(f *ExactFacilitator) { f.now = now }
}

// NewExactFacilitator builds a facilitator-side exact-scheme mechanism.
func NewExactFacilitator(signer FacilitatorSigner, opts ...ExactFacilitatorOption) *ExactFacilitator {
	f := &ExactFacilitator{
		signer: signer,
		ledger: replay.NewMemoryLedger(),
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Scheme implements x402.SchemeNetworkFacilitator.
func (f *ExactFacilitator) Scheme() string { return SchemeExact }

// CaipFamily implements x402.SchemeNetworkFacilitator.
func (f *ExactFacilitator) CaipFamily() x402.Network { return CaipFamily }

// SignerAddresses implements x402.SchemeNetworkFacilitator.
func (f *ExactFacilitator) SignerAddresses(network x402.Network) []string {
	if f.signer == nil {
		return nil
	}
	return f.signer.Addresses(network)
}

func invalid(reason string) *x402.VerifyResponse {
	return &x402.VerifyResponse{IsValid: false, InvalidReason: reason}
}

// Verify checks every property of an exact-scheme payment against its
// requirement. The verdict is a result record: validation failures come
// back as IsValid false with a distinct reason, while only signer and
// infrastructure problems surface as errors. The authorization's nonce
// is consumed here, on the first verification that finds everything else
// valid.
func (f *ExactFacilitator) Verify(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	if payload.SchemeName() != SchemeExact || req.Scheme != SchemeExact {
		return invalid(x402.ReasonUnsupportedScheme), nil
	}
	if _, err := GetNetworkConfig(req.Network); err != nil {
		return invalid(x402.ReasonInvalidNetwork), nil
	}
	if !payload.NetworkName().Match(req.Network) {
		return invalid(x402.ReasonInvalidNetwork), nil
	}

	body, err := ParseExactPayload(payload.Payload)
	if err != nil {
		return invalid(ReasonInvalidPayload), nil
	}
	auth := body.Authorization

	domainName, domainVersion, err := SigningDomain(req)
	if err != nil {
		return invalid(ReasonMissingDomain), nil
	}

	if !strings.EqualFold(auth.To, req.PayTo) {
		return invalid(ReasonRecipientMismatch), nil
	}

	value, err := parseUint256("value", auth.Value)
	if err != nil {
		return invalid(ReasonValueTooLow), nil
	}
	required, err := parseUint256("amount", req.AmountRequired())
	if err != nil {
		return nil, fmt.Errorf("requirement amount: %w", err)
	}
	if value.Cmp(required) < 0 {
		return invalid(ReasonValueTooLow), nil
	}

	// Validity window, on the verifier's clock only. Both boundaries
	// are inclusive: validAfter <= now <= validBefore is valid.
	now := big.NewInt(f.now().Unix())
	validAfter, err := parseUint256("validAfter", auth.ValidAfter)
	if err != nil {
		return invalid(ReasonNotYetValid), nil
	}
	validBefore, err := parseUint256("validBefore", auth.ValidBefore)
	if err != nil {
		return invalid(ReasonExpired), nil
	}
	if validAfter.Cmp(now) > 0 {
		return invalid(ReasonNotYetValid), nil
	}
	if now.Cmp(validBefore) > 0 {
		return invalid(ReasonExpired), nil
	}

	digest, err := AuthorizationDigest(auth, req.Network, req.Asset, domainName, domainVersion)
	if err != nil {
		return nil, err
	}
	signature, err := hexutil.Decode(body.Signature)
	if err != nil {
		return invalid(ReasonInvalidSignature), nil
	}
	if err := VerifyAuthorizationSignature(digest, signature, auth.From); err != nil {
		f.log.Debug("signature verification failed",
			logger.String("from", auth.From),
			logger.Err(err))
		return invalid(ReasonInvalidSignature), nil
	}

	if f.signer != nil {
		balance, err := f.signer.Balance(ctx, req.Network, req.Asset, auth.From)
		if err != nil {
			return nil, fmt.Errorf("reading payer balance: %w", err)
		}
		if balance.Cmp(value) < 0 {
			return invalid(ReasonInsufficientFunds), nil
		}
	}

	// Last, so an otherwise-invalid payload never burns its nonce. The
	// ledger keys on the decoded bytes re-encoded canonically, so every
	// hex-case spelling of one nonce lands on the same entry.
	nonce, err := hexutil.Decode(auth.Nonce)
	if err != nil {
		return invalid(ReasonInvalidPayload), nil
	}
	if !f.ledger.CheckAndConsume(hexutil.Encode(nonce)) {
		return invalid(x402.ReasonNonceAlreadyUsed), nil
	}

	f.log.Debug("payment verified",
		logger.String("payer", auth.From),
		logger.String("network", string(req.Network)))
	return &x402.VerifyResponse{IsValid: true, Payer: auth.From}, nil
}

// Settle submits the authorization on chain. On-chain rejection is a
// failed SettleResponse, not an error; only infrastructure problems
// (no signer configured, malformed payload) are errors.
func (f *ExactFacilitator) Settle(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirements) (*x402.SettleResponse, error) {
	if f.signer == nil {
		return nil, fmt.Errorf("exact facilitator has no settlement signer")
	}

	body, err := ParseExactPayload(payload.Payload)
	if err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}
	signature, err := hexutil.Decode(body.Signature)
	if err != nil {
		return nil, fmt.Errorf("settle: signature is not hex: %w", err)
	}

	tx, err := f.signer.TransferWithAuthorization(ctx, req.Network, req.Asset, body.Authorization, signature)
	if err != nil {
		f.log.Error("settlement transaction failed",
			logger.String("payer", body.Authorization.From),
			logger.Err(err))
		return &x402.SettleResponse{
			Success:     false,
			ErrorReason: ReasonSettleFailed,
			Payer:       body.Authorization.From,
			Network:     req.Network,
		}, nil
	}

	f.log.Info("payment settled",
		logger.String("payer", body.Authorization.From),
		logger.String("tx", tx))
	return &x402.SettleResponse{
		Success:     true,
		Payer:       body.Authorization.From,
		Transaction: tx,
		Network:     req.Network,
	}, nil
}
