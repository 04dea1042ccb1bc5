package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for a simulation run. It satisfies
// the core.RunObserver interface, so an experiment or transport trial can
// drive it directly.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TasksCreated     prometheus.Counter
	TokensIssued     prometheus.Counter
	TasksForwarded   prometheus.Counter
	TokenValidations *prometheus.CounterVec
	Receipts         prometheus.Counter
	DeadlineMisses   prometheus.Counter
	TasksOutstanding prometheus.Gauge

	PacketsInjected  prometheus.Counter
	PacketsDelivered prometheus.Counter
	PacketsDropped   *prometheus.CounterVec
	PacketsTampered  prometheus.Counter
	TTFSSteps        prometheus.Histogram
}

// NewSimCollector registers simulation Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	created, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_tasks_created_total",
		Help: "Total number of tasks injected into the run.",
	}), "sim_tasks_created_total")
	if err != nil {
		return nil, err
	}
	issued, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_tokens_issued_total",
		Help: "Total number of capability tokens minted for tasks.",
	}), "sim_tokens_issued_total")
	if err != nil {
		return nil, err
	}
	forwarded, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_tasks_forwarded_total",
		Help: "Total number of crosslink forwarding attempts during flooding.",
	}), "sim_tasks_forwarded_total")
	if err != nil {
		return nil, err
	}

	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_token_validations_total",
		Help: "Token validation outcomes at satellites, labeled by reason.",
	}, []string{"reason"})
	validations, err = registerCounterVec(reg, validations, "sim_token_validations_total")
	if err != nil {
		return nil, err
	}

	receipts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_receipts_total",
		Help: "Total number of completion receipts emitted.",
	}), "sim_receipts_total")
	if err != nil {
		return nil, err
	}
	misses, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_deadline_misses_total",
		Help: "Total number of tasks that expired before completion.",
	}), "sim_deadline_misses_total")
	if err != nil {
		return nil, err
	}
	outstanding, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_tasks_outstanding",
		Help: "Tasks currently pending or dispatched but not yet resolved.",
	}), "sim_tasks_outstanding")
	if err != nil {
		return nil, err
	}

	injected, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_packets_injected_total",
		Help: "Total number of packets handed to the transport.",
	}), "sim_packets_injected_total")
	if err != nil {
		return nil, err
	}
	delivered, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_packets_delivered_total",
		Help: "Total number of packets delivered to their destination.",
	}), "sim_packets_delivered_total")
	if err != nil {
		return nil, err
	}

	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_packets_dropped_total",
		Help: "Packets dropped in transit, labeled by reason.",
	}, []string{"reason"})
	dropped, err = registerCounterVec(reg, dropped, "sim_packets_dropped_total")
	if err != nil {
		return nil, err
	}

	tampered, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_packets_tampered_total",
		Help: "Packets corrupted by the in-transit adversary.",
	}), "sim_packets_tampered_total")
	if err != nil {
		return nil, err
	}

	ttfs, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_ttfs_steps",
		Help:    "Time to first verified success, in simulation steps.",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
	}), "sim_ttfs_steps")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:         gatherer,
		TasksCreated:     created,
		TokensIssued:     issued,
		TasksForwarded:   forwarded,
		TokenValidations: validations,
		Receipts:         receipts,
		DeadlineMisses:   misses,
		TasksOutstanding: outstanding,
		PacketsInjected:  injected,
		PacketsDelivered: delivered,
		PacketsDropped:   dropped,
		PacketsTampered:  tampered,
		TTFSSteps:        ttfs,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// core.RunObserver implementation. Nil receivers and nil metrics are
// tolerated so a partially constructed collector never panics a run.

func (c *SimCollector) TaskCreated() {
	if c != nil && c.TasksCreated != nil {
		c.TasksCreated.Inc()
	}
}

func (c *SimCollector) TokenIssued() {
	if c != nil && c.TokensIssued != nil {
		c.TokensIssued.Inc()
	}
}

func (c *SimCollector) TaskForwarded() {
	if c != nil && c.TasksForwarded != nil {
		c.TasksForwarded.Inc()
	}
}

func (c *SimCollector) TokenValidated(reason string) {
	if c != nil && c.TokenValidations != nil {
		c.TokenValidations.WithLabelValues(reason).Inc()
	}
}

func (c *SimCollector) ReceiptEmitted() {
	if c != nil && c.Receipts != nil {
		c.Receipts.Inc()
	}
}

func (c *SimCollector) DeadlineMissed() {
	if c != nil && c.DeadlineMisses != nil {
		c.DeadlineMisses.Inc()
	}
}

func (c *SimCollector) SetOutstanding(n int) {
	if c != nil && c.TasksOutstanding != nil {
		c.TasksOutstanding.Set(float64(n))
	}
}

func (c *SimCollector) PacketInjected() {
	if c != nil && c.PacketsInjected != nil {
		c.PacketsInjected.Inc()
	}
}

func (c *SimCollector) PacketDelivered() {
	if c != nil && c.PacketsDelivered != nil {
		c.PacketsDelivered.Inc()
	}
}

func (c *SimCollector) PacketDropped(reason string) {
	if c != nil && c.PacketsDropped != nil {
		c.PacketsDropped.WithLabelValues(reason).Inc()
	}
}

func (c *SimCollector) PacketTampered() {
	if c != nil && c.PacketsTampered != nil {
		c.PacketsTampered.Inc()
	}
}

func (c *SimCollector) ObserveTTFS(steps int) {
	if c != nil && c.TTFSSteps != nil {
		c.TTFSSteps.Observe(float64(steps))
	}
}
