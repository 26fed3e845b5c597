package x402

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration problems. These are programmer
// errors: they surface immediately and are never retried.
var (
	// ErrUnsupportedVersion means no implementation is registered for the
	// payload's protocol version.
	ErrUnsupportedVersion = errors.New("x402: unsupported protocol version")

	// ErrUnsupportedScheme means no implementation is registered for the
	// requested scheme on the requested network.
	ErrUnsupportedScheme = errors.New("x402: unsupported scheme")

	// ErrUnsupportedNetwork means the network identifier is unknown to
	// every registered implementation.
	ErrUnsupportedNetwork = errors.New("x402: unsupported network")

	// ErrNoMatchingRequirements means none of the challenge's accepts
	// entries can be satisfied by any registered client scheme.
	ErrNoMatchingRequirements = errors.New("x402: no matching payment requirements")

	// ErrNoFacilitator means no facilitator client covers the payment's
	// version, network, and scheme.
	ErrNoFacilitator = errors.New("x402: no facilitator for payment kind")

	// ErrMissingSigningDomain means a requirement that needs a signature
	// lacks the asset's EIP-712 name/version in its extra field.
	ErrMissingSigningDomain = errors.New("x402: requirement extra is missing signing domain name/version")
)

// Machine-readable invalid reasons shared across schemes. Scheme
// implementations define their own more specific codes alongside these.
const (
	ReasonNonceAlreadyUsed   = "nonce_already_used"
	ReasonUnsupportedScheme  = "unsupported_scheme"
	ReasonInvalidNetwork     = "invalid_network"
	ReasonInsufficientAmount = "insufficient_amount"
)

// PaymentError is a protocol-level failure with a machine-readable code.
// Code is one of the reason constants above or a scheme-specific code;
// it is stable across releases and safe to branch on.
type PaymentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("x402: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("x402: %s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// NewPaymentError builds a PaymentError wrapping err, which may be nil.
func NewPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: err}
}

// DecodeError marks malformed wire data: bad base64, invalid JSON, or a
// document matching neither wire version. Callers can always recover by
// re-requesting without payment.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("x402: decoding %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
