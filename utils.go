package x402

import "fmt"

// ValidatePaymentPayload checks the invariants every payload must hold
// before any scheme-specific work happens.
func ValidatePaymentPayload(p PaymentPayload) error {
	if p.X402Version != V1 && p.X402Version != V2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.X402Version)
	}
	if p.SchemeName() == "" {
		return fmt.Errorf("payment payload has no scheme")
	}
	if p.NetworkName() == "" {
		return fmt.Errorf("payment payload has no network")
	}
	if p.Payload == nil {
		return fmt.Errorf("payment payload has no body")
	}
	return nil
}

// ValidatePaymentRequirements checks the fields every requirement needs
// regardless of scheme or wire version.
func ValidatePaymentRequirements(r PaymentRequirements) error {
	if r.Scheme == "" {
		return fmt.Errorf("requirement has no scheme")
	}
	if r.Network == "" {
		return fmt.Errorf("requirement has no network")
	}
	if r.Asset == "" {
		return fmt.Errorf("requirement has no asset")
	}
	if r.AmountRequired() == "" {
		return fmt.Errorf("requirement has no amount")
	}
	if r.PayTo == "" {
		return fmt.Errorf("requirement has no recipient")
	}
	return nil
}

// findByNetworkAndScheme resolves a registry entry for a network/scheme
// pair. Exact network matches win; otherwise wildcard patterns on either
// side are honored.
func findByNetworkAndScheme[T any](networkMap map[Network]map[string]T, scheme string, network Network) (T, bool) {
	if schemeMap, ok := networkMap[network]; ok {
		if impl, ok := schemeMap[scheme]; ok {
			return impl, true
		}
	}
	for registered, schemeMap := range networkMap {
		if network.Match(registered) {
			if impl, ok := schemeMap[scheme]; ok {
				return impl, true
			}
		}
	}
	var zero T
	return zero, false
}
