package metrics

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "converter"
	subsystem = "eval"
)

// Collector exports evaluation metrics to a Prometheus registry
type Collector struct {
	gatherer prometheus.Gatherer

	evaluations       *prometheus.CounterVec
	duration          prometheus.Histogram
	scenarios         prometheus.Counter
	scenarioScore     prometheus.Histogram
	logsScored        *prometheus.CounterVec
	causalityFailures prometheus.Counter
	runtimeFailures   prometheus.Counter
	bestFitness       prometheus.Gauge
	lastFitness       prometheus.Gauge

	mu      sync.Mutex
	best    float64
	hasBest bool
}

// NewCollector registers the evaluation metrics on reg. A nil reg uses a
// fresh private registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Collector{
		gatherer: reg,
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluations_total",
			Help:      "Candidate evaluations by outcome.",
		}, []string{LabelOutcome}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of one candidate evaluation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		scenarios: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scenarios_simulated_total",
			Help:      "Scenarios simulated and scored.",
		}),
		scenarioScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scenario_score_log10",
			Help:      "log10 of per-scenario scores; zero scores are not observed.",
			Buckets:   prometheus.LinearBuckets(-4, 1, 12),
		}),
		logsScored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "logs_scored_total",
			Help:      "Simulation logs scored on behalf of remote hosts.",
		}, []string{LabelTransport}),
		causalityFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "causality_failures_total",
			Help:      "Scenarios aborted by a causality violation, including a failed initial state search.",
		}),
		runtimeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runtime_failures_total",
			Help:      "Evaluations aborted by a model failure.",
		}),
		bestFitness: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "best_fitness",
			Help:      "Highest fitness seen by this process.",
		}),
		lastFitness: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_fitness",
			Help:      "Fitness of the most recent evaluation.",
		}),
	}
}

// ObserveEvaluation records a finished evaluation. Methods on a nil
// Collector are no-ops.
func (c *Collector) ObserveEvaluation(outcome string, value float64, d time.Duration) {
	if c == nil {
		return
	}
	c.evaluations.WithLabelValues(outcome).Inc()
	c.duration.Observe(d.Seconds())
	c.lastFitness.Set(value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasBest || value > c.best {
		c.best = value
		c.hasBest = true
		c.bestFitness.Set(value)
	}
}

// ObserveScenario records one scored scenario
func (c *Collector) ObserveScenario(score float64) {
	if c == nil {
		return
	}
	c.scenarios.Inc()
	if score > 0 {
		c.scenarioScore.Observe(math.Log10(score))
	}
}

// ObserveRemoteScore records a log scored through the daemon
func (c *Collector) ObserveRemoteScore(transport string, score float64) {
	if c == nil {
		return
	}
	c.logsScored.WithLabelValues(transport).Inc()
	if score > 0 {
		c.scenarioScore.Observe(math.Log10(score))
	}
}

// IncCausalityFailure counts a scenario without a causal initial state
func (c *Collector) IncCausalityFailure() {
	if c == nil {
		return
	}
	c.causalityFailures.Inc()
}

// IncRuntimeFailure counts an evaluation aborted by the model
func (c *Collector) IncRuntimeFailure() {
	if c == nil {
		return
	}
	c.runtimeFailures.Inc()
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
