package http

import (
	"html/template"
	"strings"

	x402 "github.com/x402labs/x402-go"
)

// PaywallProvider renders the HTML page browser clients see on a 402.
// The gate decides when to render; providers only decide how.
type PaywallProvider interface {
	RenderHTML(message string, required x402.PaymentRequired) string
}

// PaywallNetworkHandler renders paywall HTML for one network family.
// Compose handlers into a provider with PaywallBuilder.
type PaywallNetworkHandler interface {
	Supports(requirement x402.PaymentRequirements) bool
	RenderHTML(requirement x402.PaymentRequirements, message string, required x402.PaymentRequired) string
}

// EVMPaywallHandler renders the built-in template for eip155 networks.
type EVMPaywallHandler struct{}

func (EVMPaywallHandler) Supports(r x402.PaymentRequirements) bool {
	return strings.HasPrefix(string(r.Network), "eip155:") || isLegacyEVMName(r.Network)
}

func (EVMPaywallHandler) RenderHTML(r x402.PaymentRequirements, message string, required x402.PaymentRequired) string {
	return renderTemplate(message, r, required)
}

func isLegacyEVMName(n x402.Network) bool {
	switch string(n) {
	case "base", "base-sepolia", "ethereum", "polygon":
		return true
	}
	return false
}

// PaywallBuilder composes network handlers into a PaywallProvider. The
// first handler whose Supports returns true for the first accepted
// requirement renders the page; with no match a plain fallback is used.
type PaywallBuilder struct {
	handlers []PaywallNetworkHandler
}

func NewPaywallBuilder() *PaywallBuilder {
	return &PaywallBuilder{}
}

func (b *PaywallBuilder) WithNetwork(h PaywallNetworkHandler) *PaywallBuilder {
	b.handlers = append(b.handlers, h)
	return b
}

func (b *PaywallBuilder) Build() PaywallProvider {
	handlers := append([]PaywallNetworkHandler{}, b.handlers...)
	return &builtPaywall{handlers: handlers}
}

type builtPaywall struct {
	handlers []PaywallNetworkHandler
}

func (p *builtPaywall) RenderHTML(message string, required x402.PaymentRequired) string {
	if len(required.Accepts) > 0 {
		first := required.Accepts[0]
		for _, h := range p.handlers {
			if h.Supports(first) {
				return h.RenderHTML(first, message, required)
			}
		}
	}
	return renderTemplate(message, x402.PaymentRequirements{}, required)
}

// DefaultPaywall is the provider gates use when none is configured:
// the built-in EVM handler plus the plain fallback.
func DefaultPaywall() PaywallProvider {
	return NewPaywallBuilder().WithNetwork(EVMPaywallHandler{}).Build()
}

var paywallTemplate = template.Must(template.New("paywall").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Payment Required</title></head>
<body>
<h1>Payment Required</h1>
<p>{{.Message}}</p>
{{if .HasRequirement}}
<ul>
<li>Network: {{.Network}}</li>
<li>Amount: {{.Amount}}</li>
<li>Pay to: {{.PayTo}}</li>
<li>Asset: {{.Asset}}</li>
</ul>
{{end}}
<p>Use an x402-capable client to pay for this resource.</p>
</body>
</html>
`))

func renderTemplate(message string, r x402.PaymentRequirements, _ x402.PaymentRequired) string {
	var sb strings.Builder
	data := struct {
		Message        string
		HasRequirement bool
		Network        string
		Amount         string
		PayTo          string
		Asset          string
	}{
		Message:        message,
		HasRequirement: r.PayTo != "",
		Network:        string(r.Network),
		Amount:         r.AmountRequired(),
		PayTo:          r.PayTo,
		Asset:          r.Asset,
	}
	if err := paywallTemplate.Execute(&sb, data); err != nil {
		return "<html><body>Payment Required</body></html>"
	}
	return sb.String()
}
