// Package types holds the strict wire shapes of the two protocol
// versions, structural version detection, and conversion to and from the
// version-neutral types in the root package.
//
// The versioned structs are deliberately narrow: they carry exactly the
// fields their wire version defines, so marshaling one can never leak a
// field from the other version into a document.
package types

import "encoding/json"

// PaymentPayloadV1 is the original payload shape: scheme and network at
// the top level, no embedded requirement.
type PaymentPayloadV1 struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Payload     map[string]interface{} `json:"payload"`
}

// PaymentRequirementsV1 is the original requirement shape. The amount
// field is spelled maxAmountRequired and resource metadata is inline.
type PaymentRequirementsV1 struct {
	Scheme            string                 `json:"scheme"`
	Network           string                 `json:"network"`
	MaxAmountRequired string                 `json:"maxAmountRequired"`
	Resource          string                 `json:"resource"`
	Description       string                 `json:"description,omitempty"`
	MimeType          string                 `json:"mimeType,omitempty"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Asset             string                 `json:"asset"`
	OutputSchema      map[string]interface{} `json:"outputSchema,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequiredV1 is the original 402 challenge, sent as the response
// body rather than a header.
type PaymentRequiredV1 struct {
	X402Version int                     `json:"x402Version"`
	Error       string                  `json:"error,omitempty"`
	Accepts     []PaymentRequirementsV1 `json:"accepts"`
}

// ParsePaymentPayloadV1 unmarshals a V1 payment payload, rejecting
// documents with fields outside the V1 shape.
func ParsePaymentPayloadV1(data []byte) (*PaymentPayloadV1, error) {
	var p PaymentPayloadV1
	if err := strictUnmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParsePaymentRequirementsV1 unmarshals V1 payment requirements.
func ParsePaymentRequirementsV1(data []byte) (*PaymentRequirementsV1, error) {
	var r PaymentRequirementsV1
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ParsePaymentRequiredV1 unmarshals a V1 challenge body.
func ParsePaymentRequiredV1(data []byte) (*PaymentRequiredV1, error) {
	var pr PaymentRequiredV1
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}
