package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// strictUnmarshal decodes data into v, failing on unknown fields and on
// trailing garbage after the document.
func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	var trailing interface{}
	if err := dec.Decode(&trailing); err == nil {
		return fmt.Errorf("trailing data after JSON document")
	}
	return nil
}

// DetectPayloadVersion determines the protocol version of a payment
// payload document by structural shape, never by trusting the
// x402Version field alone. Checks run in a fixed order: a document with
// top-level scheme and network is V1; a document with an accepted object
// is V2. A document matching both or neither shape is malformed. When
// the x402Version field is present it must agree with the detected
// shape.
func DetectPayloadVersion(data []byte) (int, error) {
	var probe struct {
		X402Version *int             `json:"x402Version"`
		Scheme      *string          `json:"scheme"`
		Network     *string          `json:"network"`
		Accepted    *json.RawMessage `json:"accepted"`
		Payload     *json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("payment payload is not valid JSON: %w", err)
	}
	if probe.Payload == nil {
		return 0, fmt.Errorf("payment payload has no payload field")
	}

	hasV1Shape := probe.Scheme != nil && probe.Network != nil
	hasV2Shape := probe.Accepted != nil

	var version int
	switch {
	case hasV1Shape && !hasV2Shape:
		version = 1
	case hasV2Shape && !hasV1Shape:
		version = 2
	case hasV1Shape && hasV2Shape:
		return 0, fmt.Errorf("payment payload mixes v1 and v2 fields")
	default:
		return 0, fmt.Errorf("payment payload matches neither wire version")
	}

	if probe.X402Version != nil && *probe.X402Version != version {
		return 0, fmt.Errorf("payment payload declares x402Version %d but has v%d shape", *probe.X402Version, version)
	}
	return version, nil
}

// DetectRequiredVersion determines the protocol version of a 402
// challenge document. V1 challenges carry maxAmountRequired inside
// accepts entries; V2 challenges carry amount. An empty accepts list
// falls back to the declared x402Version.
func DetectRequiredVersion(data []byte) (int, error) {
	var probe struct {
		X402Version *int `json:"x402Version"`
		Accepts     []struct {
			MaxAmountRequired *string `json:"maxAmountRequired"`
			Amount            *string `json:"amount"`
		} `json:"accepts"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("payment required challenge is not valid JSON: %w", err)
	}

	if len(probe.Accepts) > 0 {
		first := probe.Accepts[0]
		switch {
		case first.MaxAmountRequired != nil && first.Amount == nil:
			return 1, nil
		case first.Amount != nil && first.MaxAmountRequired == nil:
			return 2, nil
		case first.MaxAmountRequired != nil && first.Amount != nil:
			return 0, fmt.Errorf("challenge accepts entry mixes v1 and v2 amount fields")
		}
	}

	if probe.X402Version != nil {
		switch *probe.X402Version {
		case 1, 2:
			return *probe.X402Version, nil
		}
		return 0, fmt.Errorf("challenge declares unknown x402Version %d", *probe.X402Version)
	}
	return 0, fmt.Errorf("challenge version cannot be determined")
}
