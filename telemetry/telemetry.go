package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for connect options constructions
const (
	OutcomeOK              = "ok"
	OutcomeInvalidArgument = "invalid_argument"
	OutcomeEncodingError   = "encoding_error"
	OutcomeNativeError     = "native_error"
)

// Collector receives connect options lifecycle events.
//
// Hooks run inline with construction and release, so implementations must be
// cheap and safe for concurrent use.
type Collector interface {
	IncConstructed(backend, outcome string)
	IncReleased(backend string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncConstructed(string, string) {}
func (noopCollector) IncReleased(string)            {}

// PrometheusCollector exposes connect options metrics via Prometheus.
type PrometheusCollector struct {
	constructed *prometheus.CounterVec
	released    *prometheus.CounterVec
	live        *prometheus.GaugeVec
}

// NewPrometheusCollector registers the metrics with the provided registerer.
// Metrics already registered by an earlier collector are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	constructed, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dlv_connect_options_constructed_total",
		Help: "Number of connect options constructions per backend and outcome.",
	}, []string{"backend", "outcome"}))
	if err != nil {
		return nil, err
	}

	released, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dlv_connect_options_released_total",
		Help: "Number of native connect options values released per backend.",
	}, []string{"backend"}))
	if err != nil {
		return nil, err
	}

	live, err := registerOrReuse(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dlv_connect_options_live",
		Help: "Number of native connect options values currently owned per backend.",
	}, []string{"backend"}))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		constructed: constructed,
		released:    released,
		live:        live,
	}, nil
}

func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
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

// IncConstructed counts a construction attempt. Successful constructions
// also raise the live gauge.
func (p *PrometheusCollector) IncConstructed(backend, outcome string) {
	if p == nil {
		return
	}
	p.constructed.WithLabelValues(backend, outcome).Inc()
	if outcome == OutcomeOK {
		p.live.WithLabelValues(backend).Inc()
	}
}

// IncReleased counts a release and lowers the live gauge.
func (p *PrometheusCollector) IncReleased(backend string) {
	if p == nil {
		return
	}
	p.released.WithLabelValues(backend).Inc()
	p.live.WithLabelValues(backend).Dec()
}
