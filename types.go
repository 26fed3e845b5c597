package x402

import (
	"fmt"
	"strings"
)

// Network is a blockchain network identifier in CAIP-2 form,
// "namespace:reference" (for example "eip155:8453" for Base mainnet).
// The reference may be the wildcard "*" when used as a match pattern.
type Network string

// Parse splits the network into its namespace and reference parts.
func (n Network) Parse() (namespace, reference string, err error) {
	namespace, reference, ok := strings.Cut(string(n), ":")
	if !ok || namespace == "" || reference == "" {
		return "", "", fmt.Errorf("network %q is not in CAIP-2 namespace:reference form", n)
	}
	return namespace, reference, nil
}

// Match reports whether n matches pattern. Either side may use a "*"
// reference to match any network in the same namespace, so "eip155:8453"
// matches "eip155:*" and vice versa. Malformed identifiers never match.
func (n Network) Match(pattern Network) bool {
	if n == pattern {
		return true
	}
	nns, nref, err := n.Parse()
	if err != nil {
		return false
	}
	pns, pref, err := pattern.Parse()
	if err != nil {
		return false
	}
	if nns != pns {
		return false
	}
	return nref == "*" || pref == "*"
}

// Price is what a resource charges. Accepted dynamic types are a string
// in major units (for example "$0.10" or "0.10"), a float64 in dollars,
// or an AssetAmount naming the asset and atomic amount directly. Scheme
// servers convert a Price to an AssetAmount for their network.
type Price interface{}

// AssetAmount is an atomic amount of a specific on-chain asset.
type AssetAmount struct {
	Asset  string                 `json:"asset"`
	Amount string                 `json:"amount"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequirements describes one acceptable payment for a resource.
// It is version-neutral: Amount is the V2 field and MaxAmountRequired
// its V1 spelling; exactly one is populated depending on the protocol
// version the requirement was built for.
//
// When a signature will be produced against a requirement, Extra must
// carry the signing-domain "name" and "version" of the asset contract.
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           Network                `json:"network"`
	Asset             string                 `json:"asset"`
	Amount            string                 `json:"amount,omitempty"`
	MaxAmountRequired string                 `json:"maxAmountRequired,omitempty"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds,omitempty"`
	Resource          string                 `json:"resource,omitempty"`
	Description       string                 `json:"description,omitempty"`
	MimeType          string                 `json:"mimeType,omitempty"`
	OutputSchema      map[string]interface{} `json:"outputSchema,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// AmountRequired returns whichever of the two amount fields is set.
func (r PaymentRequirements) AmountRequired() string {
	if r.Amount != "" {
		return r.Amount
	}
	return r.MaxAmountRequired
}

// ResourceInfo describes the resource a payment is for.
type ResourceInfo struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PaymentPayload is the signed payment a client attaches to its retried
// request. Like PaymentRequirements it is version-neutral: V1 payloads
// put Scheme and Network at the top level, V2 payloads carry the chosen
// requirement in Accepted. Payload holds the scheme-specific body (for
// the EVM exact scheme: the EIP-3009 authorization and its signature).
type PaymentPayload struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme,omitempty"`
	Network     Network                `json:"network,omitempty"`
	Payload     map[string]interface{} `json:"payload"`
	Accepted    *PaymentRequirements   `json:"accepted,omitempty"`
	Resource    *ResourceInfo          `json:"resource,omitempty"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

// SchemeName returns the scheme the payload was built for, wherever the
// wire version put it.
func (p PaymentPayload) SchemeName() string {
	if p.Scheme != "" {
		return p.Scheme
	}
	if p.Accepted != nil {
		return p.Accepted.Scheme
	}
	return ""
}

// NetworkName returns the network the payload targets, wherever the
// wire version put it.
func (p PaymentPayload) NetworkName() Network {
	if p.Network != "" {
		return p.Network
	}
	if p.Accepted != nil {
		return p.Accepted.Network
	}
	return ""
}

// PaymentRequired is the challenge a server issues for an unpaid request.
type PaymentRequired struct {
	X402Version int                    `json:"x402Version"`
	Error       string                 `json:"error,omitempty"`
	Resource    *ResourceInfo          `json:"resource,omitempty"`
	Accepts     []PaymentRequirements  `json:"accepts"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

// VerifyRequest is the envelope posted to a facilitator's verify endpoint.
type VerifyRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// VerifyResponse is the facilitator's verdict on a payment. It is a
// result record: IsValid false with an empty InvalidReason is never
// produced by this module.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleRequest is the envelope posted to a facilitator's settle endpoint.
type SettleRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettleResponse reports the outcome of an on-chain settlement.
type SettleResponse struct {
	Success     bool    `json:"success"`
	ErrorReason string  `json:"errorReason,omitempty"`
	Payer       string  `json:"payer,omitempty"`
	Transaction string  `json:"transaction"`
	Network     Network `json:"network"`
}

// SupportedKind is one (version, scheme, network) combination a
// facilitator can verify and settle.
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     Network                `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse is the facilitator's capability advertisement.
type SupportedResponse struct {
	Kinds      []SupportedKind `json:"kinds"`
	Extensions []string        `json:"extensions,omitempty"`
}

// ResourceConfig is the server operator's declaration of what a protected
// resource costs. Validation tags are checked by ResourceService when the
// resource is registered, so misconfiguration surfaces at startup rather
// than on the first paid request.
type ResourceConfig struct {
	Scheme            string  `json:"scheme" validate:"required"`
	PayTo             string  `json:"payTo" validate:"required"`
	Price             Price   `json:"price" validate:"required"`
	Network           Network `json:"network" validate:"required"`
	Description       string  `json:"description,omitempty"`
	MimeType          string  `json:"mimeType,omitempty"`
	MaxTimeoutSeconds int     `json:"maxTimeoutSeconds,omitempty" validate:"gte=0"`

	// OutputSchema is an optional JSON Schema describing the protected
	// resource's response, advertised to clients inside the challenge.
	// ResourceService.ValidateConfig checks it for schema validity.
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
}

// RequirementsMatch reports whether a client-selected requirement agrees
// with a server-side one on every field that determines who gets paid
// what: scheme, network, recipient, amount, and asset. Networks compare
// with wildcard awareness; everything else compares exactly.
func RequirementsMatch(offered, accepted PaymentRequirements) bool {
	if offered.Scheme != accepted.Scheme {
		return false
	}
	if !offered.Network.Match(accepted.Network) {
		return false
	}
	if !strings.EqualFold(offered.PayTo, accepted.PayTo) {
		return false
	}
	if offered.AmountRequired() != accepted.AmountRequired() {
		return false
	}
	return strings.EqualFold(offered.Asset, accepted.Asset)
}
