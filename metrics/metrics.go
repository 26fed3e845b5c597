// Package metrics defines the instrumentation hooks the payment engines
// emit into, with Prometheus and no-op implementations.
package metrics

import "time"

// Operation names recorded by the engines.
const (
	OpVerify    = "verify"
	OpSettle    = "settle"
	OpSupported = "supported"
	OpChallenge = "challenge"
	OpPayment   = "payment"
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Recorder receives protocol events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// Event counts one protocol operation with its outcome.
	Event(op, scheme, network, outcome string)
	// Latency records how long one operation took.
	Latency(op string, d time.Duration)
}

// Nop returns a Recorder that discards everything.
func Nop() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) Event(string, string, string, string) {}
func (nopRecorder) Latency(string, time.Duration)        {}
