package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/logger"
)

// DefaultFacilitatorURL is used when no base URL is configured.
const DefaultFacilitatorURL = "https://x402.org/facilitator"

// Facilitator operations, passed to AuthProvider so credentials can be
// scoped per endpoint.
const (
	OpVerify    = "verify"
	OpSettle    = "settle"
	OpSupported = "supported"
)

// AuthProvider supplies authentication headers for facilitator requests.
// It is invoked immediately before every send so time-bounded credentials
// (short-lived JWTs) are regenerated per request, never cached across
// requests. Implementations must be safe for concurrent use.
type AuthProvider interface {
	AuthHeaders(ctx context.Context, operation, method, rawURL string) (map[string]string, error)
}

// NoAuth is an AuthProvider that adds no headers.
type NoAuth struct{}

func (NoAuth) AuthHeaders(context.Context, string, string, string) (map[string]string, error) {
	return nil, nil
}

// FacilitatorError is a non-2xx response from the facilitator itself,
// distinct from a transport failure and from a valid response reporting
// an invalid payment. The status code and body are carried verbatim.
type FacilitatorError struct {
	Operation  string
	StatusCode int
	Body       string
	Header     http.Header
}

func (e *FacilitatorError) Error() string {
	return fmt.Sprintf("facilitator %s failed (%d): %s", e.Operation, e.StatusCode, e.Body)
}

// FacilitatorClient talks to a remote facilitator over HTTP. It
// implements x402.FacilitatorClient. The zero value is not usable;
// construct with NewFacilitatorClient. Safe for concurrent use.
type FacilitatorClient struct {
	baseURL string
	client  *http.Client
	auth    AuthProvider
	log     logger.Logger
}

// FacilitatorClientOption configures a FacilitatorClient.
type FacilitatorClientOption func(*FacilitatorClient)

// WithHTTPClient sets the underlying HTTP client. The default has a
// 30 second timeout.
func WithHTTPClient(c *http.Client) FacilitatorClientOption {
	return func(fc *FacilitatorClient) { fc.client = c }
}

// WithAuthProvider sets the per-request authentication capability.
func WithAuthProvider(ap AuthProvider) FacilitatorClientOption {
	return func(fc *FacilitatorClient) { fc.auth = ap }
}

// WithFacilitatorClientLogger sets the logger.
func WithFacilitatorClientLogger(l logger.Logger) FacilitatorClientOption {
	return func(fc *FacilitatorClient) { fc.log = l }
}

// NewFacilitatorClient creates a client for the facilitator at baseURL.
// An empty baseURL selects DefaultFacilitatorURL.
func NewFacilitatorClient(baseURL string, opts ...FacilitatorClientOption) *FacilitatorClient {
	if baseURL == "" {
		baseURL = DefaultFacilitatorURL
	}
	fc := &FacilitatorClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		auth:    NoAuth{},
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// Verify posts the payload and the requirement it claims to satisfy to
// the facilitator's verify endpoint. A transport failure and a non-2xx
// status are returned as errors; a well-formed response reporting an
// invalid payment is returned with a nil error.
func (fc *FacilitatorClient) Verify(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	body := x402.VerifyRequest{
		X402Version:         payload.X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: req,
	}
	var out x402.VerifyResponse
	if err := fc.post(ctx, OpVerify, "/verify", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settle posts the payload to the facilitator's settle endpoint and
// returns the settlement outcome. Only meaningful after a successful
// Verify.
func (fc *FacilitatorClient) Settle(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirements) (*x402.SettleResponse, error) {
	body := x402.SettleRequest{
		X402Version:         payload.X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: req,
	}
	var out x402.SettleResponse
	if err := fc.post(ctx, OpSettle, "/settle", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSupported fetches the facilitator's (version, scheme, network)
// capability list. A 429 is retried once after the advertised Retry-After
// delay (or one second when absent).
func (fc *FacilitatorClient) GetSupported(ctx context.Context) (x402.SupportedResponse, error) {
	var out x402.SupportedResponse
	err := fc.get(ctx, OpSupported, "/supported", &out)
	var fe *FacilitatorError
	if errors.As(err, &fe) && fe.StatusCode == http.StatusTooManyRequests {
		delay := retryAfter(fe.Header, time.Second)
		select {
		case <-ctx.Done():
			return x402.SupportedResponse{}, ctx.Err()
		case <-time.After(delay):
		}
		err = fc.get(ctx, OpSupported, "/supported", &out)
	}
	if err != nil {
		return x402.SupportedResponse{}, err
	}
	return out, nil
}

func (fc *FacilitatorClient) post(ctx context.Context, op, path string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fc.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return fc.do(op, req, out)
}

func (fc *FacilitatorClient) get(ctx context.Context, op, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fc.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	return fc.do(op, req, out)
}

func (fc *FacilitatorClient) do(op string, req *http.Request, out interface{}) error {
	headers, err := fc.auth.AuthHeaders(req.Context(), op, req.Method, req.URL.String())
	if err != nil {
		return fmt.Errorf("auth headers for %s: %w", op, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := fc.client.Do(req)
	if err != nil {
		return fmt.Errorf("facilitator %s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	fc.log.Debug("facilitator call",
		logger.String("op", op),
		logger.Int("status", resp.StatusCode),
		logger.String("elapsed", time.Since(start).String()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FacilitatorError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Header:     resp.Header,
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// retryAfter parses a Retry-After header as integer seconds. Malformed
// or absent values fall back to def.
func retryAfter(h http.Header, def time.Duration) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}
