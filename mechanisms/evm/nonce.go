package evm

import (
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NewNonce returns 32 bytes of cryptographic randomness as 0x hex, the
// replay-protection nonce of an EIP-3009 authorization.
func NewNonce() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating authorization nonce: %w", err)
	}
	return hexutil.Encode(b[:]), nil
}
