package http

import "strings"

// Protocol headers. The payment payload travels client-to-server, the
// challenge and settlement proof travel server-to-client. All three carry
// URL-safe unpadded base64 over compact JSON.
const (
	// HeaderPayment carries the encoded PaymentPayload on a retried request.
	HeaderPayment = "X-Payment"

	// HeaderPaymentRequired carries the encoded PaymentRequired challenge on
	// a 402 response. Version 1 clients read the challenge from the JSON
	// body instead, so gates emit both.
	HeaderPaymentRequired = "X-Payment-Required"

	// HeaderPaymentResponse carries the encoded SettleResponse on a
	// successful paid response.
	HeaderPaymentResponse = "X-Payment-Response"
)

// IsBrowser reports whether a request looks like it came from a web
// browser rather than an API client. Browsers get an HTML paywall on 402
// instead of the JSON challenge. The heuristic is deliberately loose:
// an Accept header asking for HTML plus a Mozilla-derived User-Agent.
func IsBrowser(accept, userAgent string) bool {
	return strings.Contains(accept, "text/html") && strings.Contains(userAgent, "Mozilla")
}
