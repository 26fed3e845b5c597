package http

import (
	"context"
	"encoding/json"
	"net/http"

	x402 "github.com/x402labs/x402-go"
	"github.com/x402labs/x402-go/encoding"
	"github.com/x402labs/x402-go/logger"
	"github.com/x402labs/x402-go/metrics"
)

// Outcome classifies how the payment gate disposed of a request.
type Outcome string

const (
	// OutcomeSuccess means the payment verified and the protected handler
	// may run.
	OutcomeSuccess Outcome = "success"
	// OutcomePaymentRequired means no acceptable payment accompanied the
	// request and a challenge was issued.
	OutcomePaymentRequired Outcome = "payment_required"
	// OutcomeVerificationFailed means a payment was presented but the
	// facilitator rejected it or could not be reached.
	OutcomeVerificationFailed Outcome = "verification_failed"
	// OutcomeSettlementFailed means verification succeeded and the handler
	// ran, but settlement afterwards failed. Handler side effects are not
	// rolled back.
	OutcomeSettlementFailed Outcome = "settlement_failed"
)

// GateRequest is the transport-neutral slice of an incoming request the
// gate needs. Framework adapters fill it from their native request type.
type GateRequest struct {
	PaymentHeader string
	Accept        string
	UserAgent     string
	Resource      x402.ResourceInfo
}

// GateResponse is a complete outgoing response decided by the gate. When
// Outcome is OutcomeSuccess the response fields are empty and Payload and
// Requirement identify the admitted payment; the adapter runs the
// protected handler and then calls Settle.
type GateResponse struct {
	Outcome     Outcome
	Status      int
	ContentType string
	Header      map[string]string
	Body        []byte

	Payload     x402.PaymentPayload
	Requirement x402.PaymentRequirements
}

// Gate is the server-side payment state machine: challenge, admit,
// settle. It is transport-neutral; the net/http middleware and the
// gin/echo adapters all drive the same Gate. Safe for concurrent use.
type Gate struct {
	svc     *x402.ResourceService
	paywall PaywallProvider
	log     logger.Logger
	rec     metrics.Recorder
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithPaywall sets the HTML renderer for browser-facing 402 responses.
func WithPaywall(p PaywallProvider) GateOption {
	return func(g *Gate) { g.paywall = p }
}

// WithGateLogger sets the logger.
func WithGateLogger(l logger.Logger) GateOption {
	return func(g *Gate) { g.log = l }
}

// WithGateMetrics sets the metrics recorder.
func WithGateMetrics(r metrics.Recorder) GateOption {
	return func(g *Gate) { g.rec = r }
}

// NewGate creates a payment gate backed by the given resource service.
// The service must be initialized before the gate handles traffic.
func NewGate(svc *x402.ResourceService, opts ...GateOption) *Gate {
	g := &Gate{
		svc:     svc,
		paywall: DefaultPaywall(),
		log:     logger.Nop(),
		rec:     metrics.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidateConfig checks the resource configuration a route will serve.
// Adapters run it once when the route is built; Admit assumes the
// config it receives has already passed.
func (g *Gate) ValidateConfig(cfg x402.ResourceConfig) error {
	return g.svc.ValidateConfig(cfg)
}

// ConfigError turns a configuration rejected by ValidateConfig into the
// response an adapter serves for requests reaching the broken route.
func (g *Gate) ConfigError(err error) *GateResponse {
	return g.serverError(err.Error())
}

// Admit runs the pre-handler half of the gate: build the accepted
// requirement set, challenge unpaid requests, decode and match a
// presented payment, and verify it with the facilitator. The protected
// handler must only run when the returned Outcome is OutcomeSuccess.
func (g *Gate) Admit(ctx context.Context, cfg x402.ResourceConfig, req GateRequest) *GateResponse {
	accepts, err := g.svc.BuildPaymentRequirements(ctx, cfg, req.Resource)
	if err != nil {
		g.log.Error("build payment requirements", logger.Err(err))
		return g.serverError(err.Error())
	}

	if req.PaymentHeader == "" {
		g.rec.Event(metrics.OpChallenge, cfg.Scheme, string(cfg.Network), metrics.OutcomeOK)
		return g.challenge(http.StatusPaymentRequired, "payment required", accepts, req)
	}

	payload, err := encoding.DecodePaymentPayload(req.PaymentHeader)
	if err != nil {
		g.rec.Event(metrics.OpChallenge, cfg.Scheme, string(cfg.Network), metrics.OutcomeInvalid)
		return g.challenge(http.StatusBadRequest, "malformed payment header: "+err.Error(), accepts, req)
	}

	requirement, err := g.svc.FindMatchingRequirements(accepts, payload)
	if err != nil {
		return g.challenge(http.StatusPaymentRequired, "no matching payment requirements", accepts, req)
	}

	verify, err := g.svc.VerifyPayment(ctx, payload, requirement)
	if err != nil {
		g.log.Error("verify payment", logger.Err(err))
		return &GateResponse{
			Outcome:     OutcomeVerificationFailed,
			Status:      http.StatusBadGateway,
			ContentType: "application/json",
			Body:        errorBody(payload.X402Version, "payment verification unavailable: "+err.Error(), nil),
		}
	}
	if !verify.IsValid {
		return &GateResponse{
			Outcome:     OutcomeVerificationFailed,
			Status:      http.StatusPaymentRequired,
			ContentType: "application/json",
			Body:        errorBody(payload.X402Version, verify.InvalidReason, accepts),
		}
	}

	return &GateResponse{
		Outcome:     OutcomeSuccess,
		Payload:     payload,
		Requirement: requirement,
	}
}

// Settle runs the post-handler half of the gate. On success it returns
// the encoded settlement proof for the X-Payment-Response header and a
// nil GateResponse. On failure it returns a SettlementFailed response;
// the adapter must discard the handler's response body in that case,
// though its side effects have already happened.
func (g *Gate) Settle(ctx context.Context, payload x402.PaymentPayload, requirement x402.PaymentRequirements) (string, *GateResponse) {
	settle, err := g.svc.SettlePayment(ctx, payload, requirement)
	if err != nil {
		g.log.Error("settle payment", logger.Err(err))
		return "", &GateResponse{
			Outcome:     OutcomeSettlementFailed,
			Status:      http.StatusBadGateway,
			ContentType: "application/json",
			Body:        errorBody(payload.X402Version, "settlement failed: "+err.Error(), nil),
		}
	}
	if !settle.Success {
		return "", &GateResponse{
			Outcome:     OutcomeSettlementFailed,
			Status:      http.StatusPaymentRequired,
			ContentType: "application/json",
			Body:        errorBody(payload.X402Version, "settlement failed: "+settle.ErrorReason, nil),
		}
	}
	header, err := encoding.EncodeSettleResponse(*settle)
	if err != nil {
		return "", &GateResponse{
			Outcome:     OutcomeSettlementFailed,
			Status:      http.StatusInternalServerError,
			ContentType: "application/json",
			Body:        errorBody(payload.X402Version, "encode settlement response: "+err.Error(), nil),
		}
	}
	return header, nil
}

// challenge builds a 402 (or 400 for malformed payments) carrying the
// accepted requirements. API clients get the structured JSON challenge;
// version 2 clients additionally read it from the X-Payment-Required
// header; browsers get an HTML paywall body instead of JSON.
func (g *Gate) challenge(status int, msg string, accepts []x402.PaymentRequirements, req GateRequest) *GateResponse {
	required := x402.PaymentRequired{
		X402Version: challengeVersion(accepts),
		Error:       msg,
		Resource:    &req.Resource,
		Accepts:     accepts,
	}

	resp := &GateResponse{
		Outcome: OutcomePaymentRequired,
		Status:  status,
		Header:  map[string]string{},
	}
	if hasVersion(accepts, x402.V2) {
		if h, err := encoding.EncodePaymentRequired(required); err == nil {
			resp.Header[HeaderPaymentRequired] = h
		} else {
			g.log.Error("encode challenge header", logger.Err(err))
		}
	}

	if IsBrowser(req.Accept, req.UserAgent) {
		resp.ContentType = "text/html; charset=utf-8"
		resp.Body = []byte(g.paywall.RenderHTML(msg, required))
		return resp
	}

	resp.ContentType = "application/json"
	body, err := json.Marshal(required)
	if err != nil {
		return g.serverError("encode challenge: " + err.Error())
	}
	resp.Body = body
	return resp
}

func (g *Gate) serverError(msg string) *GateResponse {
	return &GateResponse{
		Outcome:     OutcomeVerificationFailed,
		Status:      http.StatusInternalServerError,
		ContentType: "application/json",
		Body:        errorBody(x402.V2, msg, nil),
	}
}

// challengeVersion picks the version stamped on a challenge document:
// the highest version present in the accepted set, defaulting to V2.
func challengeVersion(accepts []x402.PaymentRequirements) int {
	if hasVersion(accepts, x402.V2) || len(accepts) == 0 {
		return x402.V2
	}
	return x402.V1
}

// requirementVersion infers a requirement's wire version from its shape:
// version 1 uses maxAmountRequired, version 2 uses amount.
func requirementVersion(r x402.PaymentRequirements) int {
	if r.MaxAmountRequired != "" && r.Amount == "" {
		return x402.V1
	}
	return x402.V2
}

func hasVersion(accepts []x402.PaymentRequirements, version int) bool {
	for _, a := range accepts {
		if requirementVersion(a) == version {
			return true
		}
	}
	return false
}

func errorBody(version int, msg string, accepts []x402.PaymentRequirements) []byte {
	if version == 0 {
		version = x402.V2
	}
	out := map[string]interface{}{
		"x402Version": version,
		"error":       msg,
	}
	if len(accepts) > 0 {
		out["accepts"] = accepts
	}
	body, err := json.Marshal(out)
	if err != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return body
}
