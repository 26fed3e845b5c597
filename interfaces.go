package x402

import (
	"context"

	"github.com/shopspring/decimal"
)

// MoneyParser converts a decimal major-unit amount into an AssetAmount
// for a given network. Parsers return (nil, nil) when they do not handle
// the network, letting the next registered parser try; the scheme's
// built-in parser is always the fallback.
type MoneyParser func(amount decimal.Decimal, network Network) (*AssetAmount, error)

// SchemeNetworkClient is a client-side payment mechanism: given a
// requirement the server will accept, it produces a signed payload in
// the wire shape of the requested protocol version.
type SchemeNetworkClient interface {
	Scheme() string
	CreatePaymentPayload(ctx context.Context, version int, requirements PaymentRequirements) (PaymentPayload, error)
}

// SchemeNetworkServer is a server-side payment mechanism. It turns an
// operator-facing Price into the atomic asset amount a requirement
// advertises, and decorates requirements with any scheme-specific extra
// data (for the EVM exact scheme: the asset's EIP-712 name and version).
type SchemeNetworkServer interface {
	Scheme() string
	ParsePrice(price Price, network Network) (AssetAmount, error)
	EnhanceRequirements(ctx context.Context, requirements PaymentRequirements, kind SupportedKind) (PaymentRequirements, error)
}

// SchemeNetworkFacilitator is a facilitator-side payment mechanism:
// it verifies signed payloads and settles them on chain.
type SchemeNetworkFacilitator interface {
	Scheme() string

	// CaipFamily is the network pattern this mechanism covers,
	// e.g. "eip155:*" for EVM chains.
	CaipFamily() Network

	// SignerAddresses lists the addresses this facilitator settles from
	// on the given network, for inclusion in the supported response.
	SignerAddresses(network Network) []string

	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error)
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error)
}

// FacilitatorClient is the resource server's handle on a facilitator,
// remote or in-process. Implementations must keep the three failure
// classes distinct: a transport error and a facilitator rejection are
// returned as errors; an invalid payment is a nil error with
// IsValid == false and a populated InvalidReason.
type FacilitatorClient interface {
	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error)
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error)
	GetSupported(ctx context.Context) (SupportedResponse, error)
}

// PaymentRequirementsSelector picks which entry of a challenge's accepts
// list the client will pay. Returning an error aborts the payment.
type PaymentRequirementsSelector func(version int, accepts []PaymentRequirements) (PaymentRequirements, error)
