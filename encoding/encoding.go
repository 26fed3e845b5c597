// Package encoding serializes protocol values to and from the base64
// strings carried in HTTP headers.
//
// The wire encoding is URL-safe base64 without padding over compact
// JSON, so any encoded value is safe as a single header value. Decoding
// detects the wire version structurally and parses strictly; every
// representable value round-trips field for field.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/types"
)

var codec = base64.RawURLEncoding

func encode(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return codec.EncodeToString(data), nil
}

// EncodePaymentPayload serializes a payload in its declared wire version.
func EncodePaymentPayload(p x402.PaymentPayload) (string, error) {
	switch p.X402Version {
	case x402.V1:
		return encode(types.PayloadV1FromUnified(p))
	case x402.V2:
		return encode(types.PayloadV2FromUnified(p))
	default:
		return "", fmt.Errorf("%w: %d", x402.ErrUnsupportedVersion, p.X402Version)
	}
}

// DecodePaymentPayload parses a payment header value, detecting the wire
// version from the document's shape. Malformed base64, malformed JSON,
// and version-ambiguous documents all return a DecodeError.
func DecodePaymentPayload(s string) (x402.PaymentPayload, error) {
	data, err := codec.DecodeString(s)
	if err != nil {
		return x402.PaymentPayload{}, &x402.DecodeError{What: "payment payload", Err: err}
	}

	version, err := types.DetectPayloadVersion(data)
	if err != nil {
		return x402.PaymentPayload{}, &x402.DecodeError{What: "payment payload", Err: err}
	}

	switch version {
	case x402.V1:
		p, err := types.ParsePaymentPayloadV1(data)
		if err != nil {
			return x402.PaymentPayload{}, &x402.DecodeError{What: "v1 payment payload", Err: err}
		}
		return p.ToUnified(), nil
	default:
		p, err := types.ParsePaymentPayloadV2(data)
		if err != nil {
			return x402.PaymentPayload{}, &x402.DecodeError{What: "v2 payment payload", Err: err}
		}
		return p.ToUnified(), nil
	}
}

// EncodePaymentRequired serializes a 402 challenge in its declared wire
// version, for the challenge header (V2) or response body (V1).
func EncodePaymentRequired(pr x402.PaymentRequired) (string, error) {
	switch pr.X402Version {
	case x402.V1:
		return encode(types.RequiredV1FromUnified(pr))
	case x402.V2:
		return encode(types.RequiredV2FromUnified(pr))
	default:
		return "", fmt.Errorf("%w: %d", x402.ErrUnsupportedVersion, pr.X402Version)
	}
}

// DecodePaymentRequired parses a challenge header value.
func DecodePaymentRequired(s string) (x402.PaymentRequired, error) {
	data, err := codec.DecodeString(s)
	if err != nil {
		return x402.PaymentRequired{}, &x402.DecodeError{What: "payment required challenge", Err: err}
	}
	return DecodePaymentRequiredJSON(data)
}

// DecodePaymentRequiredJSON parses a challenge from raw JSON, as found
// in a V1 402 response body.
func DecodePaymentRequiredJSON(data []byte) (x402.PaymentRequired, error) {
	version, err := types.DetectRequiredVersion(data)
	if err != nil {
		return x402.PaymentRequired{}, &x402.DecodeError{What: "payment required challenge", Err: err}
	}

	switch version {
	case x402.V1:
		pr, err := types.ParsePaymentRequiredV1(data)
		if err != nil {
			return x402.PaymentRequired{}, &x402.DecodeError{What: "v1 challenge", Err: err}
		}
		return pr.ToUnified(), nil
	default:
		pr, err := types.ParsePaymentRequiredV2(data)
		if err != nil {
			return x402.PaymentRequired{}, &x402.DecodeError{What: "v2 challenge", Err: err}
		}
		return pr.ToUnified(), nil
	}
}

// EncodeSettleResponse serializes a settlement result for the response
// header attached after a paid request succeeds.
func EncodeSettleResponse(sr x402.SettleResponse) (string, error) {
	return encode(sr)
}

// DecodeSettleResponse parses a settlement response header value.
func DecodeSettleResponse(s string) (x402.SettleResponse, error) {
	data, err := codec.DecodeString(s)
	if err != nil {
		return x402.SettleResponse{}, &x402.DecodeError{What: "settle response", Err: err}
	}
	var sr x402.SettleResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return x402.SettleResponse{}, &x402.DecodeError{What: "settle response", Err: err}
	}
	return sr, nil
}
