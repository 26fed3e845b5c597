// Package echox gates Echo routes behind the x402 payment flow.
package echox

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	x402 "github.com/x402labs/x402-go"
	x402http "github.com/x402labs/x402-go/http"
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

// PaymentMiddleware returns Echo middleware that challenges unpaid
// requests, verifies presented payments before the route handler runs,
// and settles after it returns. The handler's response is buffered so a
// settlement failure replaces it; side effects are not rolled back.
func PaymentMiddleware(gate *x402http.Gate, cfg x402.ResourceConfig, opts ...MiddlewareOption) echo.MiddlewareFunc {
	options := &middlewareOptions{}
	for _, opt := range opts {
		opt(options)
	}
	// The config is programmer input, checked here once rather than on
	// every request.
	cfgErr := gate.ValidateConfig(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfgErr != nil {
				return writeGateResponse(c, gate.ConfigError(cfgErr))
			}
			req := c.Request()
			url := options.resourceURL
			if url == "" {
				url = options.resourceRootURL + req.URL.Path
			}
			greq := x402http.GateRequest{
				PaymentHeader: req.Header.Get(x402http.HeaderPayment),
				Accept:        req.Header.Get("Accept"),
				UserAgent:     req.Header.Get("User-Agent"),
				Resource: x402.ResourceInfo{
					URL:         url,
					Description: cfg.Description,
					MimeType:    cfg.MimeType,
				},
			}

			admit := gate.Admit(req.Context(), cfg, greq)
			if admit.Outcome != x402http.OutcomeSuccess {
				return writeGateResponse(c, admit)
			}

			// Swap in a buffering writer so the handler's output can be
			// withheld until settlement succeeds.
			original := c.Response().Writer
			buf := &bufferedWriter{header: make(http.Header), status: http.StatusOK}
			c.Response().Writer = buf
			err := next(c)
			c.Response().Writer = original
			// The handler committed into the buffer, not the wire;
			// reset so the real response can still be written.
			c.Response().Committed = false
			if err != nil {
				return err
			}

			settleHeader, failed := gate.Settle(req.Context(), admit.Payload, admit.Requirement)
			if failed != nil {
				return writeGateResponse(c, failed)
			}

			dst := c.Response().Header()
			for k, vs := range buf.header {
				for _, v := range vs {
					dst.Add(k, v)
				}
			}
			dst.Set(x402http.HeaderPaymentResponse, settleHeader)
			c.Response().WriteHeader(buf.status)
			_, werr := c.Response().Write(buf.body.Bytes())
			return werr
		}
	}
}

func writeGateResponse(c echo.Context, resp *x402http.GateResponse) error {
	for k, v := range resp.Header {
		c.Response().Header().Set(k, v)
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	return c.Blob(resp.Status, contentType, resp.Body)
}

type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) { b.status = status }

func (b *bufferedWriter) Write(p []byte) (int, error) { return b.body.Write(p) }
