package encoding

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	x402 "github.com/x402labs/x402-go"
)

func v2Payload() x402.PaymentPayload {
	return x402.PaymentPayload{
		X402Version: 2,
		Payload: map[string]interface{}{
			"signature": "0xdeadbeef",
			"authorization": map[string]interface{}{
				"from":        "0x1111111111111111111111111111111111111111",
				"to":          "0x2222222222222222222222222222222222222222",
				"value":       "1000000",
				"validAfter":  "1700000000",
				"validBefore": "1700000600",
				"nonce":       "0x" + strings.Repeat("ab", 32),
			},
		},
		Accepted: &x402.PaymentRequirements{
			Scheme:  "exact",
			Network: "eip155:84532",
			Asset:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Amount:  "1000000",
			PayTo:   "0x2222222222222222222222222222222222222222",
			Extra:   map[string]interface{}{"name": "USDC", "version": "2"},
		},
	}
}

func TestPaymentPayloadRoundTrip(t *testing.T) {
	for _, p := range []x402.PaymentPayload{
		v2Payload(),
		{
			X402Version: 1,
			Scheme:      "exact",
			Network:     "base-sepolia",
			Payload: map[string]interface{}{
				"signature":     "0xsig",
				"authorization": map[string]interface{}{"nonce": "0xabc"},
			},
		},
	} {
		s, err := EncodePaymentPayload(p)
		if err != nil {
			t.Fatalf("encode v%d: %v", p.X402Version, err)
		}
		got, err := DecodePaymentPayload(s)
		if err != nil {
			t.Fatalf("decode v%d: %v", p.X402Version, err)
		}
		if diff := cmp.Diff(p, got); diff != "" {
			t.Fatalf("v%d round trip mismatch (-want +got):\n%s", p.X402Version, diff)
		}
	}
}

func TestEncodedValueIsHeaderSafe(t *testing.T) {
	s, err := EncodePaymentPayload(v2Payload())
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(s, "+/=\n\r ") {
		t.Fatalf("encoded value contains header-unsafe characters: %q", s)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	for name, input := range map[string]string{
		"not base64":       "!!!not-base64!!!",
		"not json": "bm90IGpzb24",
		"empty object":     "e30",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePaymentPayload(input)
			if err == nil {
				t.Fatal("expected decode error")
			}
			if !x402.IsDecodeError(err) {
				t.Fatalf("expected DecodeError, got %T: %v", err, err)
			}
		})
	}
}

func TestEncodeUnknownVersionFails(t *testing.T) {
	_, err := EncodePaymentPayload(x402.PaymentPayload{X402Version: 7})
	if err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestPaymentRequiredHeaderAndBodyForms(t *testing.T) {
	pr := x402.PaymentRequired{
		X402Version: 2,
		Accepts: []x402.PaymentRequirements{{
			Scheme:  "exact",
			Network: "eip155:84532",
			Asset:   "0xUSDC",
			Amount:  "1000000",
			PayTo:   "0xMerchant",
		}},
	}

	s, err := EncodePaymentRequired(pr)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodePaymentRequired(s)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pr, got); diff != "" {
		t.Fatalf("challenge round trip mismatch (-want +got):\n%s", diff)
	}

	// V1 challenges travel as a raw JSON body.
	body := `{"x402Version":1,"accepts":[{"scheme":"exact","network":"base-sepolia","maxAmountRequired":"10","resource":"/r","payTo":"0xM","maxTimeoutSeconds":30,"asset":"0xA"}]}`
	v1, err := DecodePaymentRequiredJSON([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if v1.X402Version != 1 || len(v1.Accepts) != 1 || v1.Accepts[0].AmountRequired() != "10" {
		t.Fatalf("unexpected v1 challenge: %+v", v1)
	}
}

func TestSettleResponseRoundTrip(t *testing.T) {
	sr := x402.SettleResponse{
		Success:     true,
		Payer:       "0x1111111111111111111111111111111111111111",
		Transaction: "0x123abc",
		Network:     "eip155:84532",
	}
	s, err := EncodeSettleResponse(sr)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSettleResponse(s)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sr, got); diff != "" {
		t.Fatalf("settle response round trip mismatch (-want +got):\n%s", diff)
	}
}
