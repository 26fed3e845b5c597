// Package evm provides concrete signers for the EVM exact scheme: a
// private-key wallet signer for clients and an RPC-backed settlement
// signer for facilitators.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKeySigner signs EIP-712 digests with a local ECDSA key. It
// implements the client-side signer interface of the exact scheme.
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKeySigner parses a hex private key, with or without a 0x
// prefix.
func NewPrivateKeySigner(privateKeyHex string) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// NewPrivateKeySignerFromKey wraps an already-parsed key.
func NewPrivateKeySignerFromKey(key *ecdsa.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the checksummed wallet address.
func (s *PrivateKeySigner) Address() string {
	return s.address.Hex()
}

// SignDigest signs a 32-byte digest and returns the 65-byte r||s||v
// signature with Ethereum-style v in {27, 28}.
func (s *PrivateKeySigner) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("signing digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
