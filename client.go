package x402

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/x402labs/x402-go/logger"
	"github.com/x402labs/x402-go/metrics"
)

// Client is the payment-side engine: given a 402 challenge it selects a
// requirement and asks the registered scheme mechanism to produce a
// signed payload. Registration may happen concurrently with use.
type Client struct {
	mu       sync.RWMutex
	schemes  map[int]map[Network]map[string]SchemeNetworkClient
	selector PaymentRequirementsSelector
	log      logger.Logger
	rec      metrics.Recorder
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSelector replaces the default first-usable-entry selection policy.
func WithSelector(sel PaymentRequirementsSelector) ClientOption {
	return func(c *Client) { c.selector = sel }
}

// WithClientLogger attaches a structured logger.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// WithClientMetrics attaches a metrics recorder.
func WithClientMetrics(r metrics.Recorder) ClientOption {
	return func(c *Client) { c.rec = r }
}

// NewClient builds an empty client engine; register scheme mechanisms
// with Register before use.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		schemes: make(map[int]map[Network]map[string]SchemeNetworkClient),
		log:     logger.Nop(),
		rec:     metrics.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a scheme mechanism for one protocol version and network
// (which may be a wildcard pattern like "eip155:*"). It returns the
// client for chaining.
func (c *Client) Register(version int, network Network, impl SchemeNetworkClient) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schemes[version] == nil {
		c.schemes[version] = make(map[Network]map[string]SchemeNetworkClient)
	}
	if c.schemes[version][network] == nil {
		c.schemes[version][network] = make(map[string]SchemeNetworkClient)
	}
	c.schemes[version][network][impl.Scheme()] = impl
	return c
}

// RegisterAllVersions adds a scheme mechanism for every protocol version
// this module speaks.
func (c *Client) RegisterAllVersions(network Network, impl SchemeNetworkClient) *Client {
	for _, v := range SupportedVersions {
		c.Register(v, network, impl)
	}
	return c
}

func (c *Client) find(version int, network Network, scheme string) (SchemeNetworkClient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byNetwork, ok := c.schemes[version]
	if !ok {
		return nil, false
	}
	return findByNetworkAndScheme(byNetwork, scheme, network)
}

// SelectRequirements picks the accepts entry to pay. With no custom
// selector it returns the first entry some registered mechanism can
// satisfy; no usable entry is a configuration error.
func (c *Client) SelectRequirements(version int, accepts []PaymentRequirements) (PaymentRequirements, error) {
	if c.selector != nil {
		return c.selector(version, accepts)
	}
	for _, req := range accepts {
		if _, ok := c.find(version, req.Network, req.Scheme); ok {
			return req, nil
		}
	}
	return PaymentRequirements{}, fmt.Errorf("%w: %d entries offered for v%d", ErrNoMatchingRequirements, len(accepts), version)
}

// CreatePaymentPayload turns a 402 challenge into a signed payment
// payload ready for header encoding.
func (c *Client) CreatePaymentPayload(ctx context.Context, required PaymentRequired) (PaymentPayload, error) {
	version := required.X402Version
	if version == 0 {
		version = V2
	}

	req, err := c.SelectRequirements(version, required.Accepts)
	if err != nil {
		return PaymentPayload{}, err
	}

	impl, ok := c.find(version, req.Network, req.Scheme)
	if !ok {
		return PaymentPayload{}, fmt.Errorf("%w: %s on %s (v%d)", ErrUnsupportedScheme, req.Scheme, req.Network, version)
	}

	start := time.Now()
	payload, err := impl.CreatePaymentPayload(ctx, version, req)
	c.rec.Latency(metrics.OpPayment, time.Since(start))
	if err != nil {
		c.rec.Event(metrics.OpPayment, req.Scheme, string(req.Network), metrics.OutcomeError)
		return PaymentPayload{}, fmt.Errorf("creating %s payment: %w", req.Scheme, err)
	}

	if required.Resource != nil && payload.X402Version == V2 && payload.Resource == nil {
		resource := *required.Resource
		payload.Resource = &resource
	}

	c.rec.Event(metrics.OpPayment, req.Scheme, string(req.Network), metrics.OutcomeOK)
	c.log.Debug("payment payload created",
		logger.String("scheme", req.Scheme),
		logger.String("network", string(req.Network)),
		logger.Int("version", payload.X402Version))
	return payload, nil
}
