package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Close reasons reported to ConnectionClosed.
const (
	ReasonLocal = "local" // Disconnect or Remove
	ReasonPeer  = "peer"  // Close frame from the remote side
	ReasonError = "error" // Read failure
)

// Collector receives connection events. Calls happen inline on the read loop
// and send path, so implementations must be cheap.
type Collector interface {
	ConnectionOpened(id string)
	ConnectionClosed(id, reason string)
	MessageReceived(id string, bytes int)
	MessageSent(id string, bytes, frames int)
	CallbackFailed(id, hook string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) ConnectionOpened(string)         {}
func (noopCollector) ConnectionClosed(string, string) {}
func (noopCollector) MessageReceived(string, int)     {}
func (noopCollector) MessageSent(string, int, int)    {}
func (noopCollector) CallbackFailed(string, string)   {}

// PrometheusCollector exposes connection metrics via Prometheus.
type PrometheusCollector struct {
	opened        *prometheus.CounterVec
	closed        *prometheus.CounterVec
	open          *prometheus.GaugeVec
	received      *prometheus.CounterVec
	receivedBytes *prometheus.CounterVec
	sent          *prometheus.CounterVec
	sentBytes     *prometheus.CounterVec
	sentFrames    *prometheus.CounterVec
	callbackFails *prometheus.CounterVec
}

// NewPrometheusCollector registers the connection metrics with reg. Metrics
// already registered on reg are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	p := &PrometheusCollector{}

	if p.opened, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiotimer_connections_opened_total",
		Help: "Number of successful connects per connection id.",
	}, []string{"connection"})); err != nil {
		return nil, err
	}
	if p.closed, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiotimer_connections_closed_total",
		Help: "Number of disconnects per connection id and reason.",
	}, []string{"connection", "reason"})); err != nil {
		return nil, err
	}
	if p.open, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wiotimer_connection_open",
		Help: "1 while the connection is open, 0 otherwise.",
	}, []string{"connection"})); err != nil {
		return nil, err
	}
	if p.received, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiotimer_messages_received_total",
		Help: "Number of complete inbound messages.",
	}, []string{"connection"})); err != nil {
		return nil, err
	}
	if p.receivedBytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiotimer_received_bytes_total",
		Help: "Payload bytes of complete inbound messages.",
	}, []string{"connection"})); err != nil {
		return nil, err
	}
	if p.sent, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiotimer_messages_sent_total",
		Help: "Number of outbound messages fully written.",
	}, []string{"connection"})); err != nil {
		return nil, err
	}
	if p.sentBytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiotimer_sent_bytes_total",
		Help: "Payload bytes of outbound messages.",
	}, []string{"connection"})); err != nil {
		return nil, err
	}
	if p.sentFrames, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiotimer_frames_sent_total",
		Help: "Number of outbound frames.",
	}, []string{"connection"})); err != nil {
		return nil, err
	}
	if p.callbackFails, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiotimer_callback_failures_total",
		Help: "Number of callback errors and panics per hook.",
	}, []string{"connection", "hook"})); err != nil {
		return nil, err
	}

	return p, nil
}

// register adds c to reg, returning the existing collector when an equal one
// is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// ConnectionOpened records a successful connect.
func (p *PrometheusCollector) ConnectionOpened(id string) {
	if p == nil {
		return
	}
	p.opened.WithLabelValues(id).Inc()
	p.open.WithLabelValues(id).Set(1)
}

// ConnectionClosed records a disconnect.
func (p *PrometheusCollector) ConnectionClosed(id, reason string) {
	if p == nil {
		return
	}
	p.closed.WithLabelValues(id, reason).Inc()
	p.open.WithLabelValues(id).Set(0)
}

// MessageReceived records one complete inbound message.
func (p *PrometheusCollector) MessageReceived(id string, bytes int) {
	if p == nil {
		return
	}
	p.received.WithLabelValues(id).Inc()
	p.receivedBytes.WithLabelValues(id).Add(float64(bytes))
}

// MessageSent records one outbound message.
func (p *PrometheusCollector) MessageSent(id string, bytes, frames int) {
	if p == nil {
		return
	}
	p.sent.WithLabelValues(id).Inc()
	p.sentBytes.WithLabelValues(id).Add(float64(bytes))
	p.sentFrames.WithLabelValues(id).Add(float64(frames))
}

// CallbackFailed records a callback error or panic.
func (p *PrometheusCollector) CallbackFailed(id, hook string) {
	if p == nil {
		return
	}
	p.callbackFails.WithLabelValues(id, hook).Inc()
}
