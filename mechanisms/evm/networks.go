package evm

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	x402 "github.com/x402labs/x402-go"
)

// AssetInfo describes an EIP-3009-capable token: its address and the
// EIP-712 signing domain its contract declares.
type AssetInfo struct {
	Address  string
	Name     string
	Version  string
	Decimals int32
}

// NetworkConfig maps a network identifier to its chain id and the asset
// used when a price does not name one explicitly.
type NetworkConfig struct {
	ChainID      *big.Int
	DefaultAsset AssetInfo
}

var (
	usdcBase = AssetInfo{
		Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: 6,
	}
	usdcBaseSepolia = AssetInfo{
		Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Name:     "USDC",
		Version:  "2",
		Decimals: 6,
	}
	usdcEthereum = AssetInfo{
		Address:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: 6,
	}
	usdcPolygon = AssetInfo{
		Address:  "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Name:     "USD Coin",
		Version:  "2",
		Decimals: 6,
	}
)

// networkConfigs is keyed by canonical CAIP-2 identifier plus the legacy
// human-readable aliases the V1 wire format used.
var networkConfigs = map[x402.Network]NetworkConfig{
	"eip155:8453":  {ChainID: big.NewInt(8453), DefaultAsset: usdcBase},
	"base":         {ChainID: big.NewInt(8453), DefaultAsset: usdcBase},
	"eip155:84532": {ChainID: big.NewInt(84532), DefaultAsset: usdcBaseSepolia},
	"base-sepolia": {ChainID: big.NewInt(84532), DefaultAsset: usdcBaseSepolia},
	"eip155:1":     {ChainID: big.NewInt(1), DefaultAsset: usdcEthereum},
	"eip155:137":   {ChainID: big.NewInt(137), DefaultAsset: usdcPolygon},
}

// GetNetworkConfig resolves a network identifier. Unknown networks are a
// hard error, never a silent default.
func GetNetworkConfig(network x402.Network) (NetworkConfig, error) {
	if cfg, ok := networkConfigs[network]; ok {
		return cfg, nil
	}
	return NetworkConfig{}, fmt.Errorf("%w: %q", x402.ErrUnsupportedNetwork, network)
}

// ChainID resolves a network to its EVM chain id. Registry entries win;
// otherwise any well-formed eip155:N identifier parses directly.
func ChainID(network x402.Network) (*big.Int, error) {
	if cfg, ok := networkConfigs[network]; ok {
		return cfg.ChainID, nil
	}
	ns, ref, err := network.Parse()
	if err == nil && ns == "eip155" && ref != "*" {
		id, perr := strconv.ParseInt(ref, 10, 64)
		if perr == nil && id > 0 {
			return big.NewInt(id), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", x402.ErrUnsupportedNetwork, network)
}

// SupportedNetworks lists the canonical CAIP-2 identifiers this scheme
// ships configuration for, in stable order.
func SupportedNetworks() []x402.Network {
	out := make([]x402.Network, 0, len(networkConfigs))
	for n := range networkConfigs {
		if strings.HasPrefix(string(n), "eip155:") {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
