package http

import (
	"bytes"
	"net/http"

	x402 "github.com/x402labs/x402-go"
)

// MiddlewareOption configures PaymentMiddleware.
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	resourceURL     string
	resourceRootURL string
}

// WithResourceURL pins the advertised resource URL instead of deriving
// it from the request path.
func WithResourceURL(url string) MiddlewareOption {
	return func(o *middlewareOptions) { o.resourceURL = url }
}

// WithResourceRootURL sets the prefix joined with the request path to
// form the advertised resource URL.
func WithResourceRootURL(root string) MiddlewareOption {
	return func(o *middlewareOptions) { o.resourceRootURL = root }
}

// PaymentMiddleware gates an http.Handler behind the x402 payment flow:
// unpaid requests receive a 402 challenge, paid requests are verified
// before the handler runs and settled after it returns. The handler's
// response is buffered so a settlement failure can replace it; its side
// effects are not rolled back.
func PaymentMiddleware(gate *Gate, cfg x402.ResourceConfig, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	options := &middlewareOptions{}
	for _, opt := range opts {
		opt(options)
	}
	// The config is programmer input, checked here once rather than on
	// every request.
	cfgErr := gate.ValidateConfig(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfgErr != nil {
				writeGateResponse(w, gate.ConfigError(cfgErr))
				return
			}
			url := options.resourceURL
			if url == "" {
				url = options.resourceRootURL + r.URL.Path
			}
			greq := GateRequest{
				PaymentHeader: r.Header.Get(HeaderPayment),
				Accept:        r.Header.Get("Accept"),
				UserAgent:     r.Header.Get("User-Agent"),
				Resource: x402.ResourceInfo{
					URL:         url,
					Description: cfg.Description,
					MimeType:    cfg.MimeType,
				},
			}

			admit := gate.Admit(r.Context(), cfg, greq)
			if admit.Outcome != OutcomeSuccess {
				writeGateResponse(w, admit)
				return
			}

			buf := newBufferedResponseWriter()
			next.ServeHTTP(buf, r)

			settleHeader, failed := gate.Settle(r.Context(), admit.Payload, admit.Requirement)
			if failed != nil {
				writeGateResponse(w, failed)
				return
			}

			buf.header.Set(HeaderPaymentResponse, settleHeader)
			buf.flush(w)
		})
	}
}

func writeGateResponse(w http.ResponseWriter, resp *GateResponse) {
	for k, v := range resp.Header {
		w.Header().Set(k, v)
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}

// bufferedResponseWriter captures the handler's response so settlement
// can run, and its proof header be attached, before anything reaches the
// client.
type bufferedResponseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponseWriter) Header() http.Header { return b.header }

func (b *bufferedResponseWriter) WriteHeader(status int) { b.status = status }

func (b *bufferedResponseWriter) Write(p []byte) (int, error) { return b.body.Write(p) }

func (b *bufferedResponseWriter) flush(w http.ResponseWriter) {
	dst := w.Header()
	for k, vs := range b.header {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	w.WriteHeader(b.status)
	w.Write(b.body.Bytes())
}
