// Package cdp authenticates facilitator requests against the Coinbase
// Developer Platform. Each request gets a freshly signed short-lived JWT
// whose claims bind the exact method, host, and path being called, so a
// captured token cannot be replayed elsewhere.
package cdp

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// FacilitatorBaseURL is the CDP API host.
	FacilitatorBaseURL = "https://api.cdp.coinbase.com"
	// FacilitatorRoute is the x402 route prefix on the CDP API.
	FacilitatorRoute = "/platform/v2/x402"

	tokenTTL = 2 * time.Minute

	sdkLanguage = "go"
	sdkSource   = "x402-go"
)

// FacilitatorURL is the full base URL of the Coinbase facilitator,
// suitable for http.NewFacilitatorClient.
func FacilitatorURL() string {
	return FacilitatorBaseURL + FacilitatorRoute
}

// Provider signs CDP JWTs. It implements the facilitator client's
// AuthProvider interface. Safe for concurrent use; the key is parsed
// once at construction and every request signs its own token.
type Provider struct {
	keyID string
	ecKey *ecdsa.PrivateKey
	edKey ed25519.PrivateKey
	now   func() time.Time
}

// NewProvider builds a Provider from a CDP API key id and secret. Empty
// arguments fall back to the CDP_API_KEY_ID and CDP_API_KEY_SECRET
// environment variables. The secret is either a PEM-encoded EC private
// key (signed with ES256) or a base64-encoded Ed25519 key (signed with
// EdDSA).
func NewProvider(keyID, keySecret string) (*Provider, error) {
	if keyID == "" {
		keyID = os.Getenv("CDP_API_KEY_ID")
	}
	if keySecret == "" {
		keySecret = os.Getenv("CDP_API_KEY_SECRET")
	}
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("missing credentials: CDP_API_KEY_ID and CDP_API_KEY_SECRET must be set")
	}

	p := &Provider{keyID: keyID, now: time.Now}
	if strings.Contains(keySecret, "BEGIN") {
		block, _ := pem.Decode([]byte(keySecret))
		if block == nil {
			return nil, fmt.Errorf("invalid PEM in API key secret")
		}
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse EC private key: %w", err)
		}
		p.ecKey = key
		return p, nil
	}

	raw, err := base64.StdEncoding.DecodeString(keySecret)
	if err != nil {
		return nil, fmt.Errorf("API key secret is neither PEM nor base64: %w", err)
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		p.edKey = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		p.edKey = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("ed25519 key secret has %d bytes, want %d or %d",
			len(raw), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
	return p, nil
}

// AuthHeaders signs a JWT bound to the request about to be sent and
// returns it with the correlation header. Called once per request so
// expiry is never shared across requests.
func (p *Provider) AuthHeaders(_ context.Context, _ string, method, rawURL string) (map[string]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}

	token, err := p.signToken(method, u.Host, u.Path)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"Authorization":       "Bearer " + token,
		"Correlation-Context": correlationContext(),
	}, nil
}

func (p *Provider) signToken(method, host, path string) (string, error) {
	now := p.now()
	claims := jwt.MapClaims{
		"iss":  "cdp",
		"sub":  p.keyID,
		"aud":  []string{host},
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
		"uris": []string{fmt.Sprintf("%s %s%s", method, host, path)},
	}

	var token *jwt.Token
	var key interface{}
	if p.ecKey != nil {
		token = jwt.NewWithClaims(jwt.SigningMethodES256, claims)
		key = p.ecKey
	} else {
		token = jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
		key = p.edKey
	}
	token.Header["kid"] = p.keyID
	token.Header["nonce"] = uuid.NewString()

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign auth token: %w", err)
	}
	return signed, nil
}

func correlationContext() string {
	pairs := []string{
		"sdk_language=" + sdkLanguage,
		"source=" + sdkSource,
		"correlation_id=" + uuid.NewString(),
	}
	return strings.Join(pairs, ",")
}
