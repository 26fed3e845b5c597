package types

import "encoding/json"

// PaymentPayloadV2 embeds the requirement the client chose to pay under
// accepted, and may carry resource info and extension data.
type PaymentPayloadV2 struct {
	X402Version int                    `json:"x402Version"`
	Payload     map[string]interface{} `json:"payload"`
	Accepted    PaymentRequirementsV2  `json:"accepted"`
	Resource    *ResourceInfoV2        `json:"resource,omitempty"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

// PaymentRequirementsV2 spells the amount field "amount" and drops the
// inline resource metadata V1 carried.
type PaymentRequirementsV2 struct {
	Scheme            string                 `json:"scheme"`
	Network           string                 `json:"network"`
	Asset             string                 `json:"asset"`
	Amount            string                 `json:"amount"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequiredV2 is the header-borne 402 challenge.
type PaymentRequiredV2 struct {
	X402Version int                     `json:"x402Version"`
	Error       string                  `json:"error,omitempty"`
	Resource    *ResourceInfoV2         `json:"resource,omitempty"`
	Accepts     []PaymentRequirementsV2 `json:"accepts"`
	Extensions  map[string]interface{}  `json:"extensions,omitempty"`
}

// ResourceInfoV2 describes the resource a challenge or payload is for.
type ResourceInfoV2 struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ParsePaymentPayloadV2 unmarshals a V2 payment payload, rejecting
// documents with fields outside the V2 shape.
func ParsePaymentPayloadV2(data []byte) (*PaymentPayloadV2, error) {
	var p PaymentPayloadV2
	if err := strictUnmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParsePaymentRequirementsV2 unmarshals V2 payment requirements.
func ParsePaymentRequirementsV2(data []byte) (*PaymentRequirementsV2, error) {
	var r PaymentRequirementsV2
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ParsePaymentRequiredV2 unmarshals a V2 challenge.
func ParsePaymentRequiredV2(data []byte) (*PaymentRequiredV2, error) {
	var pr PaymentRequiredV2
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}
