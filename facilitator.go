package x402

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/x402labs/x402-go/logger"
	"github.com/x402labs/x402-go/metrics"
)

// Facilitator is an in-process verification and settlement engine. It
// satisfies FacilitatorClient, so a ResourceService can use it directly
// instead of a remote facilitator, and an operator can expose it over
// HTTP to run their own facilitator service.
type Facilitator struct {
	mu         sync.RWMutex
	schemes    map[int]map[Network]map[string]SchemeNetworkFacilitator
	extensions []string
	settled    *settlementCache
	log        logger.Logger
	rec        metrics.Recorder
}

// FacilitatorOption configures a Facilitator.
type FacilitatorOption func(*Facilitator)

// WithExtensions declares protocol extensions in the supported response.
func WithExtensions(exts ...string) FacilitatorOption {
	return func(f *Facilitator) { f.extensions = append(f.extensions, exts...) }
}

// WithFacilitatorLogger attaches a structured logger.
func WithFacilitatorLogger(l logger.Logger) FacilitatorOption {
	return func(f *Facilitator) { f.log = l }
}

// WithFacilitatorMetrics attaches a metrics recorder.
func WithFacilitatorMetrics(r metrics.Recorder) FacilitatorOption {
	return func(f *Facilitator) { f.rec = r }
}

// WithSettlementTTL controls how long settled payments are remembered
// for idempotent retries.
func WithSettlementTTL(ttl time.Duration) FacilitatorOption {
	return func(f *Facilitator) { f.settled = newSettlementCache(ttl) }
}

// NewFacilitator builds an empty facilitator engine; register scheme
// mechanisms with Register before use.
func NewFacilitator(opts ...FacilitatorOption) *Facilitator {
	f := &Facilitator{
		schemes: make(map[int]map[Network]map[string]SchemeNetworkFacilitator),
		settled: newSettlementCache(10 * time.Minute),
		log:     logger.Nop(),
		rec:     metrics.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds a scheme mechanism for one protocol version and network
// pattern. It returns the facilitator for chaining.
func (f *Facilitator) Register(version int, network Network, impl SchemeNetworkFacilitator) *Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.schemes[version] == nil {
		f.schemes[version] = make(map[Network]map[string]SchemeNetworkFacilitator)
	}
	if f.schemes[version][network] == nil {
		f.schemes[version][network] = make(map[string]SchemeNetworkFacilitator)
	}
	f.schemes[version][network][impl.Scheme()] = impl
	return f
}

// RegisterAllVersions adds a scheme mechanism for every protocol
// version this module speaks.
func (f *Facilitator) RegisterAllVersions(network Network, impl SchemeNetworkFacilitator) *Facilitator {
	for _, v := range SupportedVersions {
		f.Register(v, network, impl)
	}
	return f
}

func (f *Facilitator) find(payload PaymentPayload) (SchemeNetworkFacilitator, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	byNetwork, ok := f.schemes[payload.X402Version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, payload.X402Version)
	}
	impl, ok := findByNetworkAndScheme(byNetwork, payload.SchemeName(), payload.NetworkName())
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s (v%d)", ErrUnsupportedScheme, payload.SchemeName(), payload.NetworkName(), payload.X402Version)
	}
	return impl, nil
}

// Verify implements FacilitatorClient.
func (f *Facilitator) Verify(ctx context.Context, payload PaymentPayload, req PaymentRequirements) (*VerifyResponse, error) {
	if err := ValidatePaymentPayload(payload); err != nil {
		return nil, err
	}
	if err := ValidatePaymentRequirements(req); err != nil {
		return nil, err
	}
	impl, err := f.find(payload)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := impl.Verify(ctx, payload, req)
	f.rec.Latency(metrics.OpVerify, time.Since(start))
	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case !resp.IsValid:
		outcome = metrics.OutcomeInvalid
	}
	f.rec.Event(metrics.OpVerify, req.Scheme, string(req.Network), outcome)
	return resp, err
}

// Settle implements FacilitatorClient. Settlement is idempotent per
// payment: a retry of an already-settled payload returns the recorded
// result instead of submitting a second transaction, and concurrent
// settles of the same payment coalesce into one submission.
func (f *Facilitator) Settle(ctx context.Context, payload PaymentPayload, req PaymentRequirements) (*SettleResponse, error) {
	impl, err := f.find(payload)
	if err != nil {
		return nil, err
	}

	key, err := settlementKey(payload)
	if err != nil {
		return nil, err
	}

	if cached, ok := f.settled.beginOrWait(ctx, key); ok {
		return cached, nil
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	start := time.Now()
	resp, err := impl.Settle(ctx, payload, req)
	f.rec.Latency(metrics.OpSettle, time.Since(start))
	if err != nil {
		f.settled.abandon(key)
		f.rec.Event(metrics.OpSettle, req.Scheme, string(req.Network), metrics.OutcomeError)
		return nil, err
	}

	if resp.Success {
		f.settled.finish(key, resp)
		f.rec.Event(metrics.OpSettle, req.Scheme, string(req.Network), metrics.OutcomeOK)
	} else {
		// Failed settlements are not cached: the client may retry with
		// a fresh payment.
		f.settled.abandon(key)
		f.rec.Event(metrics.OpSettle, req.Scheme, string(req.Network), metrics.OutcomeError)
	}
	return resp, nil
}

// GetSupported implements FacilitatorClient: it advertises every
// registered (version, scheme, network) kind, in stable order, with the
// mechanism's settlement addresses in extra.
func (f *Facilitator) GetSupported(ctx context.Context) (SupportedResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var kinds []SupportedKind
	for version, byNetwork := range f.schemes {
		for network, byScheme := range byNetwork {
			for scheme, impl := range byScheme {
				kind := SupportedKind{
					X402Version: version,
					Scheme:      scheme,
					Network:     network,
				}
				if signers := impl.SignerAddresses(network); len(signers) > 0 {
					addrs := make([]interface{}, len(signers))
					for i, a := range signers {
						addrs[i] = a
					}
					kind.Extra = map[string]interface{}{"signers": addrs}
				}
				kinds = append(kinds, kind)
			}
		}
	}

	sort.Slice(kinds, func(i, j int) bool {
		a, b := kinds[i], kinds[j]
		if a.X402Version != b.X402Version {
			return a.X402Version > b.X402Version
		}
		if a.Network != b.Network {
			return a.Network < b.Network
		}
		return a.Scheme < b.Scheme
	})

	return SupportedResponse{Kinds: kinds, Extensions: f.extensions}, nil
}
