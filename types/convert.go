package types

import (
	x402 "github.com/x402labs/x402-go"
)

// Conversions between the strict versioned wire shapes and the
// version-neutral types the engines work with. Converting to a versioned
// shape drops fields the version does not define; converting back always
// yields a unified value whose X402Version matches the source shape.

// ToUnified lifts a V1 payload into the version-neutral shape.
func (p *PaymentPayloadV1) ToUnified() x402.PaymentPayload {
	return x402.PaymentPayload{
		X402Version: 1,
		Scheme:      p.Scheme,
		Network:     x402.Network(p.Network),
		Payload:     p.Payload,
	}
}

// ToUnified lifts a V2 payload into the version-neutral shape.
func (p *PaymentPayloadV2) ToUnified() x402.PaymentPayload {
	accepted := p.Accepted.ToUnified()
	u := x402.PaymentPayload{
		X402Version: 2,
		Payload:     p.Payload,
		Accepted:    &accepted,
		Extensions:  p.Extensions,
	}
	if p.Resource != nil {
		u.Resource = &x402.ResourceInfo{
			URL:         p.Resource.URL,
			Description: p.Resource.Description,
			MimeType:    p.Resource.MimeType,
		}
	}
	return u
}

// ToUnified lifts V1 requirements into the version-neutral shape.
func (r *PaymentRequirementsV1) ToUnified() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            r.Scheme,
		Network:           x402.Network(r.Network),
		Asset:             r.Asset,
		MaxAmountRequired: r.MaxAmountRequired,
		PayTo:             r.PayTo,
		MaxTimeoutSeconds: r.MaxTimeoutSeconds,
		Resource:          r.Resource,
		Description:       r.Description,
		MimeType:          r.MimeType,
		OutputSchema:      r.OutputSchema,
		Extra:             r.Extra,
	}
}

// ToUnified lifts V2 requirements into the version-neutral shape.
func (r *PaymentRequirementsV2) ToUnified() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            r.Scheme,
		Network:           x402.Network(r.Network),
		Asset:             r.Asset,
		Amount:            r.Amount,
		PayTo:             r.PayTo,
		MaxTimeoutSeconds: r.MaxTimeoutSeconds,
		Extra:             r.Extra,
	}
}

// ToUnified lifts a V1 challenge into the version-neutral shape.
func (pr *PaymentRequiredV1) ToUnified() x402.PaymentRequired {
	accepts := make([]x402.PaymentRequirements, 0, len(pr.Accepts))
	for i := range pr.Accepts {
		accepts = append(accepts, pr.Accepts[i].ToUnified())
	}
	return x402.PaymentRequired{
		X402Version: 1,
		Error:       pr.Error,
		Accepts:     accepts,
	}
}

// ToUnified lifts a V2 challenge into the version-neutral shape.
func (pr *PaymentRequiredV2) ToUnified() x402.PaymentRequired {
	accepts := make([]x402.PaymentRequirements, 0, len(pr.Accepts))
	for i := range pr.Accepts {
		accepts = append(accepts, pr.Accepts[i].ToUnified())
	}
	u := x402.PaymentRequired{
		X402Version: 2,
		Error:       pr.Error,
		Accepts:     accepts,
		Extensions:  pr.Extensions,
	}
	if pr.Resource != nil {
		u.Resource = &x402.ResourceInfo{
			URL:         pr.Resource.URL,
			Description: pr.Resource.Description,
			MimeType:    pr.Resource.MimeType,
		}
	}
	return u
}

// PayloadV1FromUnified projects a unified payload onto the V1 shape.
func PayloadV1FromUnified(u x402.PaymentPayload) *PaymentPayloadV1 {
	return &PaymentPayloadV1{
		X402Version: 1,
		Scheme:      u.SchemeName(),
		Network:     string(u.NetworkName()),
		Payload:     u.Payload,
	}
}

// PayloadV2FromUnified projects a unified payload onto the V2 shape.
func PayloadV2FromUnified(u x402.PaymentPayload) *PaymentPayloadV2 {
	p := &PaymentPayloadV2{
		X402Version: 2,
		Payload:     u.Payload,
		Extensions:  u.Extensions,
	}
	if u.Accepted != nil {
		p.Accepted = RequirementsV2FromUnified(*u.Accepted)
	}
	if u.Resource != nil {
		p.Resource = &ResourceInfoV2{
			URL:         u.Resource.URL,
			Description: u.Resource.Description,
			MimeType:    u.Resource.MimeType,
		}
	}
	return p
}

// RequirementsV1FromUnified projects unified requirements onto V1.
func RequirementsV1FromUnified(u x402.PaymentRequirements) PaymentRequirementsV1 {
	return PaymentRequirementsV1{
		Scheme:            u.Scheme,
		Network:           string(u.Network),
		MaxAmountRequired: u.AmountRequired(),
		Resource:          u.Resource,
		Description:       u.Description,
		MimeType:          u.MimeType,
		PayTo:             u.PayTo,
		MaxTimeoutSeconds: u.MaxTimeoutSeconds,
		Asset:             u.Asset,
		OutputSchema:      u.OutputSchema,
		Extra:             u.Extra,
	}
}

// RequirementsV2FromUnified projects unified requirements onto V2.
func RequirementsV2FromUnified(u x402.PaymentRequirements) PaymentRequirementsV2 {
	return PaymentRequirementsV2{
		Scheme:            u.Scheme,
		Network:           string(u.Network),
		Asset:             u.Asset,
		Amount:            u.AmountRequired(),
		PayTo:             u.PayTo,
		MaxTimeoutSeconds: u.MaxTimeoutSeconds,
		Extra:             u.Extra,
	}
}

// RequiredV1FromUnified projects a unified challenge onto V1.
func RequiredV1FromUnified(u x402.PaymentRequired) *PaymentRequiredV1 {
	accepts := make([]PaymentRequirementsV1, 0, len(u.Accepts))
	for i := range u.Accepts {
		accepts = append(accepts, RequirementsV1FromUnified(u.Accepts[i]))
	}
	return &PaymentRequiredV1{
		X402Version: 1,
		Error:       u.Error,
		Accepts:     accepts,
	}
}

// RequiredV2FromUnified projects a unified challenge onto V2.
func RequiredV2FromUnified(u x402.PaymentRequired) *PaymentRequiredV2 {
	accepts := make([]PaymentRequirementsV2, 0, len(u.Accepts))
	for i := range u.Accepts {
		accepts = append(accepts, RequirementsV2FromUnified(u.Accepts[i]))
	}
	pr := &PaymentRequiredV2{
		X402Version: 2,
		Error:       u.Error,
		Accepts:     accepts,
		Extensions:  u.Extensions,
	}
	if u.Resource != nil {
		pr.Resource = &ResourceInfoV2{
			URL:         u.Resource.URL,
			Description: u.Resource.Description,
			MimeType:    u.Resource.MimeType,
		}
	}
	return pr
}
