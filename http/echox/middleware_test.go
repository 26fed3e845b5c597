package echox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
	x402http "github.com/x402labs/x402-go/http"
)

type stubFacilitator struct {
	valid  bool
	reason string
}

func (s *stubFacilitator) Verify(context.Context, x402.PaymentPayload, x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	if !s.valid {
		return &x402.VerifyResponse{IsValid: false, InvalidReason: s.reason}, nil
	}
	return &x402.VerifyResponse{IsValid: true, Payer: "0xpayer"}, nil
}

func (s *stubFacilitator) Settle(context.Context, x402.PaymentPayload, x402.PaymentRequirements) (*x402.SettleResponse, error) {
	return &x402.SettleResponse{Success: true, Transaction: "0xtx", Network: "eip155:84532"}, nil
}

func (s *stubFacilitator) GetSupported(context.Context) (x402.SupportedResponse, error) {
	return x402.SupportedResponse{Kinds: []x402.SupportedKind{
		{X402Version: x402.V2, Scheme: "exact", Network: "eip155:84532"},
	}}, nil
}

type stubSchemeServer struct{}

func (stubSchemeServer) Scheme() string { return "exact" }

func (stubSchemeServer) ParsePrice(x402.Price, x402.Network) (x402.AssetAmount, error) {
	return x402.AssetAmount{Asset: "0xToken", Amount: "10000"}, nil
}

func (stubSchemeServer) EnhanceRequirements(_ context.Context, req x402.PaymentRequirements, _ x402.SupportedKind) (x402.PaymentRequirements, error) {
	return req, nil
}

func testGate(t *testing.T, fc x402.FacilitatorClient) *x402http.Gate {
	t.Helper()
	svc := x402.NewResourceService(
		x402.WithFacilitator(fc),
		x402.WithSchemeServer("eip155:*", stubSchemeServer{}),
	)
	require.NoError(t, svc.Initialize(context.Background()))
	return x402http.NewGate(svc)
}

func testConfig() x402.ResourceConfig {
	return x402.ResourceConfig{
		Scheme:  "exact",
		PayTo:   "0xseller",
		Price:   "$0.01",
		Network: "eip155:84532",
	}
}

func paymentHeader(t *testing.T) string {
	t.Helper()
	accepted := x402.PaymentRequirements{
		Scheme:  "exact",
		Network: "eip155:84532",
		Asset:   "0xToken",
		Amount:  "10000",
		PayTo:   "0xseller",
	}
	h, err := encoding.EncodePaymentPayload(x402.PaymentPayload{
		X402Version: x402.V2,
		Payload:     map[string]interface{}{"signature": "0xsig"},
		Accepted:    &accepted,
	})
	require.NoError(t, err)
	return h
}

func newEcho(t *testing.T, fc x402.FacilitatorClient, handled *bool) *echo.Echo {
	e := echo.New()
	e.GET("/premium", func(c echo.Context) error {
		if handled != nil {
			*handled = true
		}
		return c.String(http.StatusOK, "premium content")
	}, PaymentMiddleware(testGate(t, fc), testConfig()))
	return e
}

func TestEchoChallenge(t *testing.T) {
	e := newEcho(t, &stubFacilitator{valid: true}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	required, err := encoding.DecodePaymentRequired(w.Header().Get(x402http.HeaderPaymentRequired))
	require.NoError(t, err)
	require.Len(t, required.Accepts, 1)
	assert.Equal(t, "0xseller", required.Accepts[0].PayTo)
}

func TestEchoPaidRequest(t *testing.T) {
	e := newEcho(t, &stubFacilitator{valid: true}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(x402http.HeaderPayment, paymentHeader(t))
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "premium content", w.Body.String())

	settle, err := encoding.DecodeSettleResponse(w.Header().Get(x402http.HeaderPaymentResponse))
	require.NoError(t, err)
	assert.True(t, settle.Success)
}

func TestEchoInvalidPaymentStopsHandler(t *testing.T) {
	var handled bool
	e := newEcho(t, &stubFacilitator{valid: false, reason: x402.ReasonInsufficientAmount}, &handled)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(x402http.HeaderPayment, paymentHeader(t))
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), x402.ReasonInsufficientAmount)
	assert.False(t, handled)
}
