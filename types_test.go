package x402

import "testing"

func TestNetworkParse(t *testing.T) {
	ns, ref, err := Network("eip155:8453").Parse()
	if err != nil {
		t.Fatal(err)
	}
	if ns != "eip155" || ref != "8453" {
		t.Fatalf("got %s/%s", ns, ref)
	}

	for _, bad := range []Network{"", "eip155", "eip155:", ":8453"} {
		if _, _, err := bad.Parse(); err == nil {
			t.Errorf("%q parsed without error", bad)
		}
	}
}

func TestNetworkMatch(t *testing.T) {
	tests := []struct {
		n, pattern Network
		want       bool
	}{
		{"eip155:8453", "eip155:8453", true},
		{"eip155:8453", "eip155:*", true},
		{"eip155:*", "eip155:8453", true},
		{"eip155:*", "eip155:*", true},
		{"eip155:8453", "eip155:84532", false},
		{"eip155:8453", "solana:*", false},
		{"solana:mainnet", "eip155:*", false},
		{"base-sepolia", "base-sepolia", true},
		{"base-sepolia", "eip155:*", false},
		{"", "eip155:*", false},
	}
	for _, tt := range tests {
		if got := tt.n.Match(tt.pattern); got != tt.want {
			t.Errorf("%q.Match(%q) = %v, want %v", tt.n, tt.pattern, got, tt.want)
		}
	}
}

func TestPayloadSchemeAndNetworkAccessors(t *testing.T) {
	v1 := PaymentPayload{X402Version: V1, Scheme: "exact", Network: "base"}
	if v1.SchemeName() != "exact" || v1.NetworkName() != "base" {
		t.Fatal("v1 accessors failed")
	}

	v2 := PaymentPayload{
		X402Version: V2,
		Accepted:    &PaymentRequirements{Scheme: "exact", Network: "eip155:8453"},
	}
	if v2.SchemeName() != "exact" || v2.NetworkName() != "eip155:8453" {
		t.Fatal("v2 accessors failed")
	}

	if (PaymentPayload{}).SchemeName() != "" {
		t.Fatal("empty payload should have empty scheme")
	}
}

func TestRequirementsMatch(t *testing.T) {
	base := PaymentRequirements{
		Scheme:  "exact",
		Network: "eip155:84532",
		Asset:   "0xAAAA",
		Amount:  "1000",
		PayTo:   "0xBBBB",
	}

	if !RequirementsMatch(base, base) {
		t.Fatal("identical requirements must match")
	}

	// Case differences in addresses do not matter.
	caseShift := base
	caseShift.PayTo = "0xbbbb"
	caseShift.Asset = "0xaaaa"
	if !RequirementsMatch(base, caseShift) {
		t.Fatal("address case must not affect matching")
	}

	// V1/V2 amount spellings agree.
	v1Spelling := base
	v1Spelling.Amount = ""
	v1Spelling.MaxAmountRequired = "1000"
	if !RequirementsMatch(base, v1Spelling) {
		t.Fatal("amount spelling must not affect matching")
	}

	// Wildcard networks match.
	wild := base
	wild.Network = "eip155:*"
	if !RequirementsMatch(base, wild) {
		t.Fatal("wildcard network must match")
	}

	for name, mutate := range map[string]func(*PaymentRequirements){
		"scheme":  func(r *PaymentRequirements) { r.Scheme = "upto" },
		"network": func(r *PaymentRequirements) { r.Network = "eip155:1" },
		"payTo":   func(r *PaymentRequirements) { r.PayTo = "0xCCCC" },
		"amount":  func(r *PaymentRequirements) { r.Amount = "1001" },
		"asset":   func(r *PaymentRequirements) { r.Asset = "0xCCCC" },
	} {
		other := base
		mutate(&other)
		if RequirementsMatch(base, other) {
			t.Errorf("mismatched %s still matched", name)
		}
	}
}

func TestValidatePaymentRequirements(t *testing.T) {
	good := PaymentRequirements{
		Scheme: "exact", Network: "eip155:1", Asset: "0xA", Amount: "1", PayTo: "0xB",
	}
	if err := ValidatePaymentRequirements(good); err != nil {
		t.Fatal(err)
	}

	v1good := good
	v1good.Amount = ""
	v1good.MaxAmountRequired = "1"
	if err := ValidatePaymentRequirements(v1good); err != nil {
		t.Fatal(err)
	}

	noAmount := good
	noAmount.Amount = ""
	if err := ValidatePaymentRequirements(noAmount); err == nil {
		t.Fatal("requirement without any amount validated")
	}
}
