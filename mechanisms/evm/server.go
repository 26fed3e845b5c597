package evm

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	x402 "github.com/x402labs/x402-go"
)

// ExactServer is the server-side exact-scheme mechanism: it converts
// operator prices into atomic asset amounts and stamps requirements with
// the asset's signing domain.
type ExactServer struct {
	parsers []x402.MoneyParser
}

// ExactServerOption configures an ExactServer.
type ExactServerOption func(*ExactServer)

// WithMoneyParser prepends a custom money parser. Parsers run in
// registration order before the built-in USDC conversion.
func WithMoneyParser(p x402.MoneyParser) ExactServerOption {
	return func(s *ExactServer) { s.parsers = append(s.parsers, p) }
}

// NewExactServer builds a server-side exact-scheme mechanism.
func NewExactServer(opts ...ExactServerOption) *ExactServer {
	s := &ExactServer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scheme implements x402.SchemeNetworkServer.
func (s *ExactServer) Scheme() string { return SchemeExact }

// ParsePrice converts an operator-facing price into an atomic asset
// amount for the given network. Strings may carry a leading "$";
// floats are taken as major units of the network's default asset.
// An AssetAmount passes through untouched.
func (s *ExactServer) ParsePrice(price x402.Price, network x402.Network) (x402.AssetAmount, error) {
	switch p := price.(type) {
	case x402.AssetAmount:
		return p, nil
	case *x402.AssetAmount:
		return *p, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(p), "$"))
		if err != nil {
			return x402.AssetAmount{}, fmt.Errorf("price %q is not a decimal amount: %w", p, err)
		}
		return s.fromDecimal(d, network)
	case float64:
		return s.fromDecimal(decimal.NewFromFloat(p), network)
	case int:
		return s.fromDecimal(decimal.NewFromInt(int64(p)), network)
	default:
		return x402.AssetAmount{}, fmt.Errorf("unsupported price type %T", price)
	}
}

func (s *ExactServer) fromDecimal(d decimal.Decimal, network x402.Network) (x402.AssetAmount, error) {
	if d.IsNegative() {
		return x402.AssetAmount{}, fmt.Errorf("price %s is negative", d)
	}
	for _, parse := range s.parsers {
		amount, err := parse(d, network)
		if err != nil {
			return x402.AssetAmount{}, err
		}
		if amount != nil {
			return *amount, nil
		}
	}

	cfg, err := GetNetworkConfig(network)
	if err != nil {
		return x402.AssetAmount{}, err
	}
	asset := cfg.DefaultAsset
	atomic := d.Shift(asset.Decimals)
	if !atomic.Equal(atomic.Truncate(0)) {
		return x402.AssetAmount{}, fmt.Errorf("price %s has more precision than %d decimals", d, asset.Decimals)
	}
	return x402.AssetAmount{
		Asset:  asset.Address,
		Amount: atomic.String(),
		Extra: map[string]interface{}{
			"name":    asset.Name,
			"version": asset.Version,
		},
	}, nil
}

// EnhanceRequirements fills in the signing-domain extra for the
// network's default asset when the requirement lacks it. Requirements
// for unknown assets must already carry their own domain metadata.
func (s *ExactServer) EnhanceRequirements(ctx context.Context, req x402.PaymentRequirements, kind x402.SupportedKind) (x402.PaymentRequirements, error) {
	if _, _, err := SigningDomain(req); err == nil {
		return req, nil
	}

	cfg, err := GetNetworkConfig(req.Network)
	if err != nil {
		return x402.PaymentRequirements{}, err
	}
	if !strings.EqualFold(req.Asset, cfg.DefaultAsset.Address) {
		return x402.PaymentRequirements{}, fmt.Errorf("%w: asset %s on %s", x402.ErrMissingSigningDomain, req.Asset, req.Network)
	}

	extra := make(map[string]interface{}, len(req.Extra)+2)
	for k, v := range req.Extra {
		extra[k] = v
	}
	extra["name"] = cfg.DefaultAsset.Name
	extra["version"] = cfg.DefaultAsset.Version
	req.Extra = extra
	return req, nil
}
