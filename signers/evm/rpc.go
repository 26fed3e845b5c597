package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	x402 "github.com/x402labs/x402-go"
	mechevm "github.com/x402labs/x402-go/mechanisms/evm"
)

// eip3009ABI covers the two calls a facilitator needs: reading a payer's
// balance and redeeming a transfer authorization (EIP-3009 bytes form).
const eip3009ABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"transferWithAuthorization","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"from","type":"address"},
		{"name":"to","type":"address"},
		{"name":"value","type":"uint256"},
		{"name":"validAfter","type":"uint256"},
		{"name":"validBefore","type":"uint256"},
		{"name":"nonce","type":"bytes32"},
		{"name":"signature","type":"bytes"}],
	 "outputs":[]}
]`

// RPCSigner settles payments by submitting transferWithAuthorization
// transactions through JSON-RPC endpoints, one per network. It
// implements the facilitator signer interface of the exact scheme.
type RPCSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	clients map[x402.Network]*ethclient.Client
	parsed  abi.ABI
}

// NewRPCSigner dials one JSON-RPC endpoint per network and prepares the
// given hex private key for transaction signing.
func NewRPCSigner(privateKeyHex string, rpcURLs map[x402.Network]string) (*RPCSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(eip3009ABI))
	if err != nil {
		return nil, fmt.Errorf("parsing token ABI: %w", err)
	}

	clients := make(map[x402.Network]*ethclient.Client, len(rpcURLs))
	for network, url := range rpcURLs {
		client, err := ethclient.Dial(url)
		if err != nil {
			return nil, fmt.Errorf("dialing %s rpc: %w", network, err)
		}
		clients[network] = client
	}

	return &RPCSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		clients: clients,
		parsed:  parsed,
	}, nil
}

// Close releases all RPC connections.
func (s *RPCSigner) Close() {
	for _, c := range s.clients {
		c.Close()
	}
}

// Addresses implements the facilitator signer interface.
func (s *RPCSigner) Addresses(network x402.Network) []string {
	if _, ok := s.clients[network]; !ok {
		return nil
	}
	return []string{s.address.Hex()}
}

func (s *RPCSigner) client(network x402.Network) (*ethclient.Client, error) {
	if c, ok := s.clients[network]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: no rpc endpoint for %q", x402.ErrUnsupportedNetwork, network)
}

// Balance reads the payer's token balance via balanceOf.
func (s *RPCSigner) Balance(ctx context.Context, network x402.Network, asset, owner string) (*big.Int, error) {
	client, err := s.client(network)
	if err != nil {
		return nil, err
	}

	calldata, err := s.parsed.Pack("balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("packing balanceOf: %w", err)
	}
	token := common.HexToAddress(asset)
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling balanceOf on %s: %w", asset, err)
	}

	results, err := s.parsed.Unpack("balanceOf", out)
	if err != nil || len(results) != 1 {
		return nil, fmt.Errorf("unpacking balanceOf result: %w", err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T, want *big.Int", results[0])
	}
	return balance, nil
}

// TransferWithAuthorization submits the authorization on chain and
// returns the transaction hash. The transaction is signed with the
// facilitator's own key; the payer signed only the authorization.
func (s *RPCSigner) TransferWithAuthorization(ctx context.Context, network x402.Network, asset string, auth mechevm.Authorization, signature []byte) (string, error) {
	client, err := s.client(network)
	if err != nil {
		return "", err
	}
	chainID, err := mechevm.ChainID(network)
	if err != nil {
		return "", err
	}

	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return "", fmt.Errorf("authorization value %q is not a decimal integer", auth.Value)
	}
	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return "", fmt.Errorf("authorization validAfter %q is not a decimal integer", auth.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return "", fmt.Errorf("authorization validBefore %q is not a decimal integer", auth.ValidBefore)
	}
	nonceBytes, err := hexutil.Decode(auth.Nonce)
	if err != nil || len(nonceBytes) != 32 {
		return "", fmt.Errorf("authorization nonce %q is not 32 bytes of hex", auth.Nonce)
	}
	var nonce32 [32]byte
	copy(nonce32[:], nonceBytes)

	calldata, err := s.parsed.Pack("transferWithAuthorization",
		common.HexToAddress(auth.From),
		common.HexToAddress(auth.To),
		value, validAfter, validBefore, nonce32, signature)
	if err != nil {
		return "", fmt.Errorf("packing transferWithAuthorization: %w", err)
	}

	token := common.HexToAddress(asset)
	txNonce, err := client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("reading account nonce: %w", err)
	}
	gasTip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("estimating gas tip: %w", err)
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("reading chain head: %w", err)
	}
	gasFeeCap := new(big.Int).Add(gasTip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: s.address,
		To:   &token,
		Data: calldata,
	})
	if err != nil {
		return "", fmt.Errorf("estimating gas: %w", err)
	}

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     txNonce,
		GasTipCap: gasTip,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &token,
		Data:      calldata,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return "", fmt.Errorf("signing settlement transaction: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("broadcasting settlement transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}
