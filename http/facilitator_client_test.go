package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402labs/x402-go"
)

type headerAuth struct {
	calls int32
}

func (a *headerAuth) AuthHeaders(_ context.Context, op, method, rawURL string) (map[string]string, error) {
	atomic.AddInt32(&a.calls, 1)
	return map[string]string{
		"Authorization": "Bearer token-for-" + op,
	}, nil
}

func testPayment() (x402.PaymentPayload, x402.PaymentRequirements) {
	req := x402.PaymentRequirements{
		Scheme:  "exact",
		Network: "eip155:84532",
		Asset:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Amount:  "10000",
		PayTo:   "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
	}
	accepted := req
	payload := x402.PaymentPayload{
		X402Version: x402.V2,
		Payload:     map[string]interface{}{"signature": "0xabc"},
		Accepted:    &accepted,
	}
	return payload, req
}

func TestFacilitatorClientVerify(t *testing.T) {
	var gotBody map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token-for-verify", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(x402.VerifyResponse{IsValid: true, Payer: "0xpayer"})
	}))
	defer srv.Close()

	auth := &headerAuth{}
	fc := NewFacilitatorClient(srv.URL, WithAuthProvider(auth))

	payload, req := testPayment()
	resp, err := fc.Verify(context.Background(), payload, req)
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.Equal(t, "0xpayer", resp.Payer)
	assert.Equal(t, int32(1), atomic.LoadInt32(&auth.calls))

	// Envelope wraps payload and requirements under the documented keys.
	for _, key := range []string{"x402Version", "paymentPayload", "paymentRequirements"} {
		assert.Contains(t, gotBody, key)
	}
}

func TestFacilitatorClientVerifyInvalidIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(x402.VerifyResponse{IsValid: false, InvalidReason: x402.ReasonInsufficientAmount})
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL)
	payload, req := testPayment()
	resp, err := fc.Verify(context.Background(), payload, req)
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.Equal(t, x402.ReasonInsufficientAmount, resp.InvalidReason)
}

func TestFacilitatorClientNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("no credit"))
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL)
	payload, req := testPayment()
	_, err := fc.Settle(context.Background(), payload, req)
	require.Error(t, err)

	var fe *FacilitatorError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, OpSettle, fe.Operation)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.Equal(t, "no credit", fe.Body)
}

func TestFacilitatorClientTransportError(t *testing.T) {
	fc := NewFacilitatorClient("http://127.0.0.1:1")
	payload, req := testPayment()
	_, err := fc.Verify(context.Background(), payload, req)
	require.Error(t, err)

	var fe *FacilitatorError
	assert.False(t, errors.As(err, &fe), "transport failures must not look like facilitator rejections")
}

func TestFacilitatorClientSupportedRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(x402.SupportedResponse{
			Kinds: []x402.SupportedKind{{X402Version: 2, Scheme: "exact", Network: "eip155:84532"}},
		})
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL)
	resp, err := fc.GetSupported(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Kinds, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFacilitatorClientSupportedGivesUpAfterSecond429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	fc := NewFacilitatorClient(srv.URL)
	_, err := fc.GetSupported(context.Background())
	var fe *FacilitatorError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
}

func TestFacilitatorClientDefaultURL(t *testing.T) {
	fc := NewFacilitatorClient("")
	assert.Equal(t, DefaultFacilitatorURL, fc.baseURL)
}
