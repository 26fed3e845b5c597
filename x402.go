// Package x402 implements the x402 payment protocol: an HTTP-native
// challenge/response flow in which a server answers unpaid requests with
// 402 Payment Required plus a machine-readable list of acceptable
// payments, the client signs a payment authorization off-chain, and a
// facilitator verifies and settles it on the client's behalf.
//
// The package is organized around three engines:
//
//   - Client: selects a requirement from a 402 challenge and produces a
//     signed PaymentPayload through registered scheme implementations.
//   - ResourceService: the server side; builds requirements for protected
//     resources and routes verify/settle calls to facilitators.
//   - Facilitator: an in-process verification and settlement engine for
//     operators running their own facilitator.
//
// Two wire versions of the protocol coexist. Version 1 carries scheme and
// network at the top level of the payload and announces challenges in the
// 402 response body; version 2 embeds the accepted requirement in the
// payload and moves challenges into a response header. Both are first-class
// here: engines key their registries by protocol version and never coerce
// one shape into the other.
package x402

// Protocol versions understood by this module.
const (
	// V1 is the original wire format: scheme/network at the payload top
	// level, maxAmountRequired on requirements, challenge in the 402 body.
	V1 = 1
	// V2 embeds the accepted requirement in the payload, uses amount on
	// requirements, and carries the challenge in a response header.
	V2 = 2
)

// SupportedVersions lists the protocol versions this module speaks, in
// preference order (newest first).
var SupportedVersions = []int{V2, V1}
