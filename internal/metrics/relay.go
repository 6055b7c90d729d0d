package metrics

import "fmt"

// Relay outcomes recorded per handled message.
const (
	OutcomePhoto            = "photo"
	OutcomeGreeting         = "greeting"
	OutcomeTranslationError = "translation_error"
	OutcomeInferenceError   = "inference_error"
	OutcomeSendError        = "send_error"
	OutcomePanic            = "panic"
)

var stageBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// RelayMetrics groups the instruments used by the message relay.
type RelayMetrics struct {
	c        *Collector
	InFlight *Gauge
}

// NewRelayMetrics registers the relay instruments on c.
func NewRelayMetrics(c *Collector) *RelayMetrics {
	return &RelayMetrics{
		c:        c,
		InFlight: c.Gauge("imagebot_relay_in_flight", "Messages currently being handled", ""),
	}
}

// Outcome counts one handled message with the given outcome.
func (m *RelayMetrics) Outcome(outcome string) {
	m.c.Counter("imagebot_relay_messages_total", "Handled messages by outcome",
		fmt.Sprintf("outcome=%q", outcome)).Inc()
}

// Stage returns the latency histogram for a relay stage.
func (m *RelayMetrics) Stage(stage string) *Histogram {
	return m.c.Histogram("imagebot_relay_stage_seconds", "Relay stage latency in seconds",
		fmt.Sprintf("stage=%q", stage), stageBuckets)
}
