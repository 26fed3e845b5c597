// Package ginx gates Gin routes behind the x402 payment flow.
package ginx

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

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

// PaymentMiddleware returns a Gin handler that challenges unpaid
// requests, verifies presented payments before the route handler runs,
// and settles after it returns. The handler's response is buffered so a
// settlement failure replaces it; side effects are not rolled back.
func PaymentMiddleware(gate *x402http.Gate, cfg x402.ResourceConfig, opts ...MiddlewareOption) gin.HandlerFunc {
	options := &middlewareOptions{}
	for _, opt := range opts {
		opt(options)
	}
	// The config is programmer input, checked here once rather than on
	// every request.
	cfgErr := gate.ValidateConfig(cfg)

	return func(c *gin.Context) {
		if cfgErr != nil {
			writeGateResponse(c, gate.ConfigError(cfgErr))
			c.Abort()
			return
		}
		url := options.resourceURL
		if url == "" {
			url = options.resourceRootURL + c.Request.URL.Path
		}
		greq := x402http.GateRequest{
			PaymentHeader: c.GetHeader(x402http.HeaderPayment),
			Accept:        c.GetHeader("Accept"),
			UserAgent:     c.GetHeader("User-Agent"),
			Resource: x402.ResourceInfo{
				URL:         url,
				Description: cfg.Description,
				MimeType:    cfg.MimeType,
			},
		}

		admit := gate.Admit(c.Request.Context(), cfg, greq)
		if admit.Outcome != x402http.OutcomeSuccess {
			writeGateResponse(c, admit)
			c.Abort()
			return
		}

		buf := &bufferedWriter{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = buf
		c.Next()
		c.Writer = buf.ResponseWriter

		settleHeader, failed := gate.Settle(c.Request.Context(), admit.Payload, admit.Requirement)
		if failed != nil {
			writeGateResponse(c, failed)
			return
		}

		c.Writer.Header().Set(x402http.HeaderPaymentResponse, settleHeader)
		c.Writer.WriteHeader(buf.status)
		c.Writer.Write(buf.body.Bytes())
	}
}

func writeGateResponse(c *gin.Context, resp *x402http.GateResponse) {
	for k, v := range resp.Header {
		c.Writer.Header().Set(k, v)
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.Status, contentType, resp.Body)
}

// bufferedWriter holds back the route handler's output until settlement
// has succeeded.
type bufferedWriter struct {
	gin.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) WriteHeader(status int) { b.status = status }

func (b *bufferedWriter) WriteHeaderNow() {}

func (b *bufferedWriter) Write(p []byte) (int, error) { return b.body.Write(p) }

func (b *bufferedWriter) WriteString(s string) (int, error) { return b.body.WriteString(s) }

func (b *bufferedWriter) Status() int { return b.status }

func (b *bufferedWriter) Size() int { return b.body.Len() }

func (b *bufferedWriter) Written() bool { return b.body.Len() > 0 }
