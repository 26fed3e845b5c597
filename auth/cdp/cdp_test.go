package cdp

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ecSecret(t *testing.T) (string, *ecdsa.PublicKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	secret := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	return string(secret), &key.PublicKey
}

func TestProviderSignsES256(t *testing.T) {
	secret, pub := ecSecret(t)
	p, err := NewProvider("key-id", secret)
	require.NoError(t, err)

	headers, err := p.AuthHeaders(context.Background(), "verify", "POST", "https://api.cdp.coinbase.com/platform/v2/x402/verify")
	require.NoError(t, err)

	authz := headers["Authorization"]
	require.True(t, strings.HasPrefix(authz, "Bearer "))

	token, err := jwt.Parse(strings.TrimPrefix(authz, "Bearer "), func(tok *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "cdp", claims["iss"])
	assert.Equal(t, "key-id", claims["sub"])
	assert.Equal(t, "key-id", token.Header["kid"])
	assert.NotEmpty(t, token.Header["nonce"])

	uris, ok := claims["uris"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "POST api.cdp.coinbase.com/platform/v2/x402/verify", uris[0])
}

func TestProviderSignsEdDSA(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := base64.StdEncoding.EncodeToString(priv)

	p, err := NewProvider("key-id", secret)
	require.NoError(t, err)

	headers, err := p.AuthHeaders(context.Background(), "settle", "POST", "https://api.cdp.coinbase.com/platform/v2/x402/settle")
	require.NoError(t, err)

	token, err := jwt.Parse(strings.TrimPrefix(headers["Authorization"], "Bearer "), func(tok *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}))
	require.NoError(t, err)
	assert.True(t, token.Valid)
}

func TestProviderTokensAreFreshPerRequest(t *testing.T) {
	secret, _ := ecSecret(t)
	p, err := NewProvider("key-id", secret)
	require.NoError(t, err)

	first, err := p.AuthHeaders(context.Background(), "verify", "POST", "https://example.com/verify")
	require.NoError(t, err)
	second, err := p.AuthHeaders(context.Background(), "verify", "POST", "https://example.com/verify")
	require.NoError(t, err)

	// The nonce differs even when everything else is identical.
	assert.NotEqual(t, first["Authorization"], second["Authorization"])
	assert.NotEqual(t, first["Correlation-Context"], second["Correlation-Context"])
}

func TestProviderCorrelationContext(t *testing.T) {
	secret, _ := ecSecret(t)
	p, err := NewProvider("key-id", secret)
	require.NoError(t, err)

	headers, err := p.AuthHeaders(context.Background(), "supported", "GET", "https://example.com/supported")
	require.NoError(t, err)

	cc := headers["Correlation-Context"]
	assert.Contains(t, cc, "sdk_language=go")
	assert.Contains(t, cc, "source=x402-go")
	assert.Contains(t, cc, "correlation_id=")
}

func TestProviderMissingCredentials(t *testing.T) {
	t.Setenv("CDP_API_KEY_ID", "")
	t.Setenv("CDP_API_KEY_SECRET", "")
	_, err := NewProvider("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing credentials")
}

func TestProviderRejectsBadSecret(t *testing.T) {
	_, err := NewProvider("key-id", "not a key at all!!!")
	require.Error(t, err)
}
