// Package metrics exports chain activity as Prometheus metrics.
//
// A Collector reads the chain's processing counters and length at scrape
// time, so the audio path is never touched by instrumentation. Counters for
// control-side events are fed by subscribing the Collector to the chain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/algo-pluginhost/host/chain"
)

const (
	namespace = "pluginhost"
	subsystem = "chain"
)

// Source is the part of a chain the collector reads at scrape time.
type Source interface {
	Stats() chain.Stats
	Count() int
}

// Collector implements prometheus.Collector for one chain.
type Collector struct {
	src Source

	cycles  *prometheus.Desc
	entries *prometheus.Desc

	mutations      prometheus.Counter
	bypassToggles  *prometheus.CounterVec
	instantiations *prometheus.CounterVec
}

// NewCollector returns a collector reading src. constLabels are attached to
// every metric, which lets several chains share a registry.
func NewCollector(src Source, constLabels prometheus.Labels) *Collector {
	return &Collector{
		src: src,
		cycles: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "blocks_total"),
			"Process calls by outcome (processed or skipped).",
			[]string{"result"}, constLabels,
		),
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "entries"),
			"Number of plugins in the chain.",
			nil, constLabels,
		),
		mutations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "mutations_total",
			Help:        "Entries added or removed and chain clears.",
			ConstLabels: constLabels,
		}),
		bypassToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "bypass_changes_total",
			Help:        "SetBypassed calls by requested state.",
			ConstLabels: constLabels,
		}, []string{"bypassed"}),
		instantiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "instantiation_failures_total",
			Help:        "Descriptors the chain failed to load, by format.",
			ConstLabels: constLabels,
		}, []string{"format"}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cycles
	ch <- c.entries
	c.mutations.Describe(ch)
	c.bypassToggles.Describe(ch)
	c.instantiations.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(stats.Cycles), "processed")
	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(stats.Skipped), "skipped")
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(c.src.Count()))

	c.mutations.Collect(ch)
	c.bypassToggles.Collect(ch)
	c.instantiations.Collect(ch)
}

// ChainChanged implements chain.Listener.
func (c *Collector) ChainChanged() {
	c.mutations.Inc()
}

// BypassChanged implements chain.Listener.
func (c *Collector) BypassChanged(_ int, bypassed bool) {
	if bypassed {
		c.bypassToggles.WithLabelValues("true").Inc()
	} else {
		c.bypassToggles.WithLabelValues("false").Inc()
	}
}

// InstantiationFailed implements chain.Listener.
func (c *Collector) InstantiationFailed(err *chain.InstantiationError) {
	format := err.Descriptor.Format
	if format == "" {
		format = "unknown"
	}

	c.instantiations.WithLabelValues(format).Inc()
}

// Instrument creates a collector for c, subscribes it to c's notifications
// and registers it with reg. The returned function unsubscribes and
// unregisters it.
func Instrument(c *chain.Chain, reg prometheus.Registerer, constLabels prometheus.Labels) (*Collector, func(), error) {
	col := NewCollector(c, constLabels)

	if err := reg.Register(col); err != nil {
		return nil, nil, err
	}

	unsubscribe := c.Subscribe(col)

	return col, func() {
		unsubscribe()
		reg.Unregister(col)
	}, nil
}
