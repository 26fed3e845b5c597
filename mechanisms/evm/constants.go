package evm

import (
	x402 "github.com/x402labs/x402-go"
)

// SchemeExact is the EVM exact-amount scheme: the client signs an
// EIP-3009 transferWithAuthorization for precisely the required amount.
const SchemeExact = "exact"

// CaipFamily covers every EVM chain.
const CaipFamily x402.Network = "eip155:*"

const (
	// DefaultValidityPeriodSeconds bounds how long a signed authorization
	// stays redeemable when the requirement does not say otherwise.
	DefaultValidityPeriodSeconds = 600

	// ClockSkewToleranceSeconds is subtracted from validAfter at signing
	// time so a verifier with a slightly behind clock still accepts a
	// freshly signed authorization.
	ClockSkewToleranceSeconds = 60
)

// Machine-readable invalid reasons produced by this scheme's verifier.
// The names are part of the wire protocol and shared with other
// implementations of the scheme.
const (
	ReasonInvalidPayload    = "invalid_exact_evm_payload"
	ReasonInvalidSignature  = "invalid_exact_evm_payload_signature"
	ReasonRecipientMismatch = "invalid_exact_evm_payload_recipient_mismatch"
	ReasonValueTooLow       = "invalid_exact_evm_payload_authorization_value"
	ReasonExpired           = "invalid_exact_evm_payload_authorization_valid_before"
	ReasonNotYetValid       = "invalid_exact_evm_payload_authorization_valid_after"
	ReasonMissingDomain     = "missing_eip712_domain"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonSettleFailed      = "settle_transaction_failed"
)
