package x402

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/x402labs/x402-go/logger"
	"github.com/x402labs/x402-go/metrics"
)

// ResourceService is the server-side engine: it turns resource
// configurations into payment requirements, matches incoming payloads
// against them, and routes verify/settle calls to the right facilitator.
type ResourceService struct {
	mu              sync.RWMutex
	schemes         map[Network]map[string]SchemeNetworkServer
	facilitators    []FacilitatorClient
	facilitatorsMap map[int]map[Network]map[string]FacilitatorClient
	cache           *SupportedCache
	validate        *validator.Validate
	log             logger.Logger
	rec             metrics.Recorder
}

// ResourceServiceOption configures a ResourceService.
type ResourceServiceOption func(*ResourceService)

// WithFacilitator adds a facilitator client. Earlier facilitators take
// precedence when several support the same payment kind.
func WithFacilitator(fc FacilitatorClient) ResourceServiceOption {
	return func(s *ResourceService) { s.facilitators = append(s.facilitators, fc) }
}

// WithSchemeServer registers a server-side scheme mechanism for a
// network (or wildcard pattern).
func WithSchemeServer(network Network, srv SchemeNetworkServer) ResourceServiceOption {
	return func(s *ResourceService) { s.registerScheme(network, srv) }
}

// WithSupportedCacheTTL controls how long facilitator capability
// advertisements stay cached.
func WithSupportedCacheTTL(ttl time.Duration) ResourceServiceOption {
	return func(s *ResourceService) { s.cache.ttl = ttl }
}

// WithServiceLogger attaches a structured logger.
func WithServiceLogger(l logger.Logger) ResourceServiceOption {
	return func(s *ResourceService) { s.log = l }
}

// WithServiceMetrics attaches a metrics recorder.
func WithServiceMetrics(r metrics.Recorder) ResourceServiceOption {
	return func(s *ResourceService) { s.rec = r }
}

// NewResourceService builds the server-side engine.
func NewResourceService(opts ...ResourceServiceOption) *ResourceService {
	s := &ResourceService{
		schemes:         make(map[Network]map[string]SchemeNetworkServer),
		facilitatorsMap: make(map[int]map[Network]map[string]FacilitatorClient),
		cache:           newSupportedCache(5 * time.Minute),
		validate:        validator.New(),
		log:             logger.Nop(),
		rec:             metrics.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResourceService) registerScheme(network Network, srv SchemeNetworkServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemes[network] == nil {
		s.schemes[network] = make(map[string]SchemeNetworkServer)
	}
	s.schemes[network][srv.Scheme()] = srv
}

// Initialize fetches supported payment kinds from every facilitator and
// builds the version/network/scheme routing table. Call it at startup;
// a service that skips it still works but routes every payment through
// the first facilitator. At least one facilitator must respond.
func (s *ResourceService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.facilitatorsMap = make(map[int]map[Network]map[string]FacilitatorClient)

	var lastErr error
	reachable := 0
	for i, fc := range s.facilitators {
		supported, err := fc.GetSupported(ctx)
		if err != nil {
			lastErr = fmt.Errorf("facilitator %d: %w", i, err)
			s.log.Warn("facilitator unreachable during initialization",
				logger.Int("index", i), logger.Err(err))
			continue
		}
		reachable++
		s.cache.Set(fmt.Sprintf("facilitator_%d", i), supported)

		for _, kind := range supported.Kinds {
			if s.facilitatorsMap[kind.X402Version] == nil {
				s.facilitatorsMap[kind.X402Version] = make(map[Network]map[string]FacilitatorClient)
			}
			byNetwork := s.facilitatorsMap[kind.X402Version]
			if byNetwork[kind.Network] == nil {
				byNetwork[kind.Network] = make(map[string]FacilitatorClient)
			}
			// First registration wins, preserving facilitator precedence.
			if _, taken := byNetwork[kind.Network][kind.Scheme]; !taken {
				byNetwork[kind.Network][kind.Scheme] = fc
			}
		}
	}

	if reachable == 0 && lastErr != nil {
		return fmt.Errorf("no facilitator reachable: %w", lastErr)
	}
	s.log.Info("resource service initialized",
		logger.Int("facilitators", reachable))
	return nil
}

// supportedKindsFor lists the (version, network, scheme) kinds the
// routing table has for a config, newest version first. Before
// Initialize has run the table is empty and every version is assumed.
func (s *ResourceService) supportedKindsFor(cfg ResourceConfig) []SupportedKind {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var kinds []SupportedKind
	if len(s.facilitatorsMap) == 0 {
		for _, v := range SupportedVersions {
			kinds = append(kinds, SupportedKind{X402Version: v, Scheme: cfg.Scheme, Network: cfg.Network})
		}
		return kinds
	}
	for _, v := range SupportedVersions {
		byNetwork, ok := s.facilitatorsMap[v]
		if !ok {
			continue
		}
		if _, ok := findByNetworkAndScheme(byNetwork, cfg.Scheme, cfg.Network); ok {
			kinds = append(kinds, SupportedKind{X402Version: v, Scheme: cfg.Scheme, Network: cfg.Network})
		}
	}
	return kinds
}

// ValidateConfig checks a resource configuration: required fields and,
// when present, the well-formedness of the output schema. Run it once
// when the route is registered; the per-request paths assume their
// config has already passed.
func (s *ResourceService) ValidateConfig(cfg ResourceConfig) error {
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid resource config: %w", err)
	}
	if cfg.OutputSchema != nil {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(cfg.OutputSchema)); err != nil {
			return fmt.Errorf("invalid output schema: %w", err)
		}
	}
	return nil
}

// BuildPaymentRequirements expands a resource configuration into the
// accepts list of a challenge: one requirement per protocol version a
// facilitator supports for the configured scheme and network, newest
// first. The config must have passed ValidateConfig.
func (s *ResourceService) BuildPaymentRequirements(ctx context.Context, cfg ResourceConfig, resource ResourceInfo) ([]PaymentRequirements, error) {
	s.mu.RLock()
	srv, ok := findByNetworkAndScheme(s.schemes, cfg.Scheme, cfg.Network)
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedScheme, cfg.Scheme, cfg.Network)
	}

	amount, err := srv.ParsePrice(cfg.Price, cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("parsing price: %w", err)
	}

	kinds := s.supportedKindsFor(cfg)
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoFacilitator, cfg.Scheme, cfg.Network)
	}

	var accepts []PaymentRequirements
	for _, kind := range kinds {
		req := PaymentRequirements{
			Scheme:            cfg.Scheme,
			Network:           cfg.Network,
			Asset:             amount.Asset,
			PayTo:             cfg.PayTo,
			MaxTimeoutSeconds: cfg.MaxTimeoutSeconds,
			Description:       cfg.Description,
			MimeType:          cfg.MimeType,
			OutputSchema:      cfg.OutputSchema,
			Extra:             amount.Extra,
		}
		if kind.X402Version == V1 {
			req.MaxAmountRequired = amount.Amount
			req.Resource = resource.URL
			if req.Description == "" {
				req.Description = resource.Description
			}
			if req.MimeType == "" {
				req.MimeType = resource.MimeType
			}
		} else {
			req.Amount = amount.Amount
		}

		req, err = srv.EnhanceRequirements(ctx, req, kind)
		if err != nil {
			return nil, fmt.Errorf("enhancing requirements: %w", err)
		}
		accepts = append(accepts, req)
	}
	return accepts, nil
}

// FindMatchingRequirements locates the accepts entry a payload claims to
// satisfy. V2 payloads must embed a requirement agreeing with a server
// entry on scheme, network, recipient, amount, and asset; V1 payloads
// match on scheme and network. No match means the payment is rejected
// before any facilitator is consulted.
func (s *ResourceService) FindMatchingRequirements(accepts []PaymentRequirements, payload PaymentPayload) (PaymentRequirements, error) {
	switch payload.X402Version {
	case V2:
		if payload.Accepted == nil {
			return PaymentRequirements{}, fmt.Errorf("%w: v2 payload has no accepted requirement", ErrNoMatchingRequirements)
		}
		for _, req := range accepts {
			if RequirementsMatch(req, *payload.Accepted) {
				return req, nil
			}
		}
	case V1:
		for _, req := range accepts {
			if req.Scheme == payload.Scheme && payload.Network.Match(req.Network) {
				return req, nil
			}
		}
	default:
		return PaymentRequirements{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, payload.X402Version)
	}
	return PaymentRequirements{}, ErrNoMatchingRequirements
}

func (s *ResourceService) facilitatorFor(payload PaymentPayload) (FacilitatorClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if byNetwork, ok := s.facilitatorsMap[payload.X402Version]; ok {
		if fc, ok := findByNetworkAndScheme(byNetwork, payload.SchemeName(), payload.NetworkName()); ok {
			return fc, nil
		}
	}
	// Routing table empty or no entry: fall back to the primary
	// facilitator rather than failing a payment that might settle.
	if len(s.facilitators) > 0 {
		return s.facilitators[0], nil
	}
	return nil, fmt.Errorf("%w: %s/%s v%d", ErrNoFacilitator, payload.SchemeName(), payload.NetworkName(), payload.X402Version)
}

// VerifyPayment routes a payload to its facilitator for verification.
func (s *ResourceService) VerifyPayment(ctx context.Context, payload PaymentPayload, req PaymentRequirements) (*VerifyResponse, error) {
	if err := ValidatePaymentPayload(payload); err != nil {
		return nil, err
	}
	fc, err := s.facilitatorFor(payload)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := fc.Verify(ctx, payload, req)
	s.rec.Latency(metrics.OpVerify, time.Since(start))
	if err != nil {
		s.rec.Event(metrics.OpVerify, req.Scheme, string(req.Network), metrics.OutcomeError)
		return nil, err
	}

	outcome := metrics.OutcomeOK
	if !resp.IsValid {
		outcome = metrics.OutcomeInvalid
		s.log.Info("payment rejected",
			logger.String("reason", resp.InvalidReason),
			logger.String("network", string(req.Network)))
	}
	s.rec.Event(metrics.OpVerify, req.Scheme, string(req.Network), outcome)
	return resp, nil
}

// SettlePayment routes a verified payload to its facilitator for
// settlement.
func (s *ResourceService) SettlePayment(ctx context.Context, payload PaymentPayload, req PaymentRequirements) (*SettleResponse, error) {
	fc, err := s.facilitatorFor(payload)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := fc.Settle(ctx, payload, req)
	s.rec.Latency(metrics.OpSettle, time.Since(start))
	if err != nil {
		s.rec.Event(metrics.OpSettle, req.Scheme, string(req.Network), metrics.OutcomeError)
		return nil, err
	}

	outcome := metrics.OutcomeOK
	if !resp.Success {
		outcome = metrics.OutcomeError
		s.log.Error("settlement failed",
			logger.String("reason", resp.ErrorReason),
			logger.String("network", string(resp.Network)))
	} else {
		s.log.Info("payment settled",
			logger.String("tx", resp.Transaction),
			logger.String("payer", resp.Payer))
	}
	s.rec.Event(metrics.OpSettle, req.Scheme, string(req.Network), outcome)
	return resp, nil
}

// SupportedCache caches facilitator capability advertisements with a
// per-entry TTL.
type SupportedCache struct {
	mu     sync.RWMutex
	data   map[string]SupportedResponse
	expiry map[string]time.Time
	ttl    time.Duration
}

func newSupportedCache(ttl time.Duration) *SupportedCache {
	return &SupportedCache{
		data:   make(map[string]SupportedResponse),
		expiry: make(map[string]time.Time),
		ttl:    ttl,
	}
}

// Get returns a cached advertisement if present and fresh.
func (c *SupportedCache) Get(key string) (SupportedResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exp, ok := c.expiry[key]
	if !ok || time.Now().After(exp) {
		return SupportedResponse{}, false
	}
	return c.data[key], true
}

// Set stores an advertisement, restarting its TTL.
func (c *SupportedCache) Set(key string, resp SupportedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = resp
	c.expiry[key] = time.Now().Add(c.ttl)
}
