package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "exar"

// Client holds the counters of Exar clients. A nil *Client is valid and
// records nothing.
type Client struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	requestErrors    *prometheus.CounterVec
	streamedEvents   prometheus.Counter
	droppedLines     prometheus.Counter
	unsolicitedClose prometheus.Counter
}

// NewClient registers the client counters with registry. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func NewClient(registry prometheus.Registerer) *Client {
	factory := promauto.With(registry)

	return &Client{
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "messages_sent_total",
			Help:      "Total number of messages sent to the server",
		}, []string{"kind"}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "messages_received_total",
			Help:      "Total number of messages received from the server, events included",
		}, []string{"kind"}),

		requestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_errors_total",
			Help:      "Total number of requests that were rejected",
		}, []string{"kind"}),

		streamedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "streamed_events_total",
			Help:      "Total number of events delivered to subscribers",
		}),

		droppedLines: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "dropped_lines_total",
			Help:      "Total number of malformed or unexpected lines that were dropped",
		}),

		unsolicitedClose: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "unsolicited_closures_total",
			Help:      "Total number of connections closed by something other than Disconnect",
		}),
	}
}

func (c *Client) MessageSent(kind string) {
	if c != nil {
		c.messagesSent.WithLabelValues(kind).Inc()
	}
}

func (c *Client) MessageReceived(kind string) {
	if c != nil {
		c.messagesReceived.WithLabelValues(kind).Inc()
	}
}

func (c *Client) RequestFailed(kind string) {
	if c != nil {
		c.requestErrors.WithLabelValues(kind).Inc()
	}
}

func (c *Client) EventStreamed() {
	if c != nil {
		c.streamedEvents.Inc()
	}
}

func (c *Client) LineDropped() {
	if c != nil {
		c.droppedLines.Inc()
	}
}

func (c *Client) UnsolicitedClose() {
	if c != nil {
		c.unsolicitedClose.Inc()
	}
}
