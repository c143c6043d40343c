package eval

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	BatchesTotal   prometheus.Counter
	CallsTotal     *prometheus.CounterVec
	FallbacksTotal *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			BatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "llmeval_batches_total",
				Help: "Total number of evaluation batches started",
			}),
			CallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "llmeval_model_calls_total",
				Help: "Total number of model calls by role and model",
			}, []string{"role", "model"}),
			FallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "llmeval_judge_fallbacks_total",
				Help: "Judge replies replaced by the zero score, by reason",
			}, []string{"reason"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) batch() {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
}

func (m *Metrics) call(role, model string) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(role, model).Inc()
}

func (m *Metrics) fallback(reason string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(reason).Inc()
}
