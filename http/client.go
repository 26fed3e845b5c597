package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
	"github.com/x402labs/x402-go/logger"
)

// PaymentRoundTripper retries a request exactly once with a signed
// payment attached when the first attempt comes back 402. A second 402
// after paying is returned to the caller as-is, never retried again, so
// a misbehaving or double-charging server cannot drive a retry loop.
//
// The wrapped transport sees two requests at most: the original, and a
// clone carrying the X-Payment header. Request bodies are buffered so
// the retry can replay them.
type PaymentRoundTripper struct {
	base     http.RoundTripper
	payments *x402.Client
	log      logger.Logger
}

// RoundTripperOption configures a PaymentRoundTripper.
type RoundTripperOption func(*PaymentRoundTripper)

// WithTransport sets the underlying transport. Defaults to
// http.DefaultTransport.
func WithTransport(rt http.RoundTripper) RoundTripperOption {
	return func(p *PaymentRoundTripper) { p.base = rt }
}

// WithRoundTripperLogger sets the logger.
func WithRoundTripperLogger(l logger.Logger) RoundTripperOption {
	return func(p *PaymentRoundTripper) { p.log = l }
}

// NewPaymentRoundTripper wraps a transport with challenge-response
// payment handling driven by the given payment client.
func NewPaymentRoundTripper(payments *x402.Client, opts ...RoundTripperOption) *PaymentRoundTripper {
	p := &PaymentRoundTripper{
		base:     http.DefaultTransport,
		payments: payments,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WrapClient returns a copy of hc whose transport pays 402 challenges
// using the given payment client. A nil hc wraps http.DefaultClient.
func WrapClient(hc *http.Client, payments *x402.Client, opts ...RoundTripperOption) *http.Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	wrapped := *hc
	rtOpts := append([]RoundTripperOption{}, opts...)
	if hc.Transport != nil {
		rtOpts = append(rtOpts, WithTransport(hc.Transport))
	}
	wrapped.Transport = NewPaymentRoundTripper(payments, rtOpts...)
	return &wrapped
}

// RoundTrip implements http.RoundTripper.
func (p *PaymentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := bufferBody(req)
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}

	resp, err := p.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	required, err := decodeChallenge(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	resp.Body.Close()

	payload, err := p.payments.CreatePaymentPayload(req.Context(), required)
	if err != nil {
		return nil, fmt.Errorf("create payment payload: %w", err)
	}
	header, err := encoding.EncodePaymentPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payment payload: %w", err)
	}

	retry := req.Clone(req.Context())
	if body != nil {
		retry.Body = io.NopCloser(bytes.NewReader(body))
	}
	retry.Header.Set(HeaderPayment, header)

	p.log.Debug("retrying with payment",
		logger.String("url", req.URL.String()),
		logger.Int("version", payload.X402Version))
	return p.base.RoundTrip(retry)
}

// bufferBody reads and restores a request body so it can be replayed on
// the paid retry. Requests without a body return nil.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// decodeChallenge extracts the PaymentRequired challenge from a 402
// response: the X-Payment-Required header when present, otherwise the
// JSON body used by version 1 servers.
func decodeChallenge(resp *http.Response) (x402.PaymentRequired, error) {
	if h := resp.Header.Get(HeaderPaymentRequired); h != "" {
		return encoding.DecodePaymentRequired(h)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return x402.PaymentRequired{}, &x402.DecodeError{What: "payment required body", Err: err}
	}
	if len(data) == 0 {
		return x402.PaymentRequired{}, &x402.DecodeError{
			What: "payment required response",
			Err:  fmt.Errorf("no challenge header and empty body"),
		}
	}
	return encoding.DecodePaymentRequiredJSON(data)
}
