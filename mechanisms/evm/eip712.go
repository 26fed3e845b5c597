package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	x402 "github.com/x402labs/x402-go"
)

// SigningDomain extracts the EIP-712 domain name and version a
// requirement's asset contract declares. Requirements that will be
// signed against must carry both in extra.
func SigningDomain(req x402.PaymentRequirements) (name, version string, err error) {
	name, _ = req.Extra["name"].(string)
	version, _ = req.Extra["version"].(string)
	if name == "" || version == "" {
		return "", "", x402.ErrMissingSigningDomain
	}
	return name, version, nil
}

// AuthorizationDigest computes the 32-byte EIP-712 digest of a
// TransferWithAuthorization message:
//
//	keccak256(0x19 0x01 || domainSeparator || structHash)
//
// The chain id comes from the network registry; unknown networks are a
// hard error.
func AuthorizationDigest(auth Authorization, network x402.Network, asset, domainName, domainVersion string) ([]byte, error) {
	chainID, err := ChainID(network)
	if err != nil {
		return nil, err
	}

	value, err := parseUint256("value", auth.Value)
	if err != nil {
		return nil, err
	}
	validAfter, err := parseUint256("validAfter", auth.ValidAfter)
	if err != nil {
		return nil, err
	}
	validBefore, err := parseUint256("validBefore", auth.ValidBefore)
	if err != nil {
		return nil, err
	}
	nonce, err := hexutil.Decode(auth.Nonce)
	if err != nil || len(nonce) != 32 {
		return nil, fmt.Errorf("authorization nonce %q is not 32 bytes of hex", auth.Nonce)
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: asset,
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       value.String(),
			"validAfter":  validAfter.String(),
			"validBefore": validBefore.String(),
			"nonce":       hexutil.Encode(nonce),
		},
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hashing authorization struct: %w", err)
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hashing signing domain: %w", err)
	}

	digest := crypto.Keccak256(
		[]byte{0x19, 0x01},
		domainSeparator,
		structHash,
	)
	return digest, nil
}

// RecoverAddress recovers the signing address from a 32-byte digest and
// a 65-byte r||s||v signature. Both Ethereum-style v in {27,28} and raw
// v in {0,1} are accepted; anything else is rejected.
func RecoverAddress(digest, signature []byte) (common.Address, error) {
	if len(digest) != 32 {
		return common.Address{}, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	switch sig[64] {
	case 0, 1:
	case 27, 28:
		sig[64] -= 27
	default:
		return common.Address{}, fmt.Errorf("signature recovery id %d is invalid", sig[64])
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyAuthorizationSignature checks that signature over digest was
// produced by from. It fails closed: any recovery problem, not just a
// mismatched address, is an error.
func VerifyAuthorizationSignature(digest, signature []byte, from string) error {
	recovered, err := RecoverAddress(digest, signature)
	if err != nil {
		return err
	}
	if recovered != common.HexToAddress(from) {
		return fmt.Errorf("recovered signer %s does not match authorization from %s", recovered.Hex(), from)
	}
	return nil
}
