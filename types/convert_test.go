package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	x402 "github.com/x402labs/x402-go"
)

func TestPayloadV2RoundTrip(t *testing.T) {
	u := x402.PaymentPayload{
		X402Version: 2,
		Payload: map[string]interface{}{
			"signature": "0xsig",
			"authorization": map[string]interface{}{
				"from": "0xFrom", "to": "0xTo", "value": "1000000",
			},
		},
		Accepted: &x402.PaymentRequirements{
			Scheme:            "exact",
			Network:           "eip155:84532",
			Asset:             "0xUSDC",
			Amount:            "1000000",
			PayTo:             "0xMerchant",
			MaxTimeoutSeconds: 300,
			Extra:             map[string]interface{}{"name": "USDC", "version": "2"},
		},
		Resource: &x402.ResourceInfo{URL: "https://api.example.com/premium"},
	}

	got := PayloadV2FromUnified(u).ToUnified()
	if diff := cmp.Diff(u, got); diff != "" {
		t.Fatalf("v2 payload round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPayloadV1RoundTrip(t *testing.T) {
	u := x402.PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "base-sepolia",
		Payload: map[string]interface{}{
			"signature":     "0xsig",
			"authorization": map[string]interface{}{"nonce": "0xabc"},
		},
	}

	got := PayloadV1FromUnified(u).ToUnified()
	if diff := cmp.Diff(u, got); diff != "" {
		t.Fatalf("v1 payload round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRequirementsProjectionPicksVersionAmountField(t *testing.T) {
	u := x402.PaymentRequirements{
		Scheme:  "exact",
		Network: "eip155:8453",
		Asset:   "0xUSDC",
		Amount:  "250000",
		PayTo:   "0xMerchant",
	}

	v1 := RequirementsV1FromUnified(u)
	if v1.MaxAmountRequired != "250000" {
		t.Fatalf("v1 projection lost the amount: %+v", v1)
	}

	v2 := RequirementsV2FromUnified(x402.PaymentRequirements{
		Scheme: "exact", Network: "base", Asset: "0xUSDC",
		MaxAmountRequired: "99", PayTo: "0xM",
	})
	if v2.Amount != "99" {
		t.Fatalf("v2 projection lost the v1-spelled amount: %+v", v2)
	}
}

func TestRequiredV1RoundTrip(t *testing.T) {
	u := x402.PaymentRequired{
		X402Version: 1,
		Error:       "payment required",
		Accepts: []x402.PaymentRequirements{
			{
				Scheme:            "exact",
				Network:           "base-sepolia",
				MaxAmountRequired: "1000000",
				Resource:          "https://api.example.com/premium",
				PayTo:             "0xMerchant",
				Asset:             "0xUSDC",
				MaxTimeoutSeconds: 60,
			},
		},
	}

	got := RequiredV1FromUnified(u).ToUnified()
	if diff := cmp.Diff(u, got); diff != "" {
		t.Fatalf("v1 challenge round trip mismatch (-want +got):\n%s", diff)
	}
}
