package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
)

// EpochCollector implements metric collection for the reconfiguration loop.
type EpochCollector struct {
	currentEpoch            prometheus.Gauge
	isValidator             prometheus.Gauge
	roleTransitions         *prometheus.CounterVec
	reconfigurationDuration prometheus.Histogram
	orchestratorRestarts    prometheus.Counter
}

var _ module.EpochMetrics = (*EpochCollector)(nil)

func NewEpochCollector(registerer prometheus.Registerer) *EpochCollector {
	currentEpoch := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceDWallet,
		Subsystem: subsystemEpoch,
		Name:      "current",
		Help:      "the epoch the node is currently running",
	})
	isValidator := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceDWallet,
		Subsystem: subsystemEpoch,
		Name:      "is_validator",
		Help:      "reported as 1 while the node runs validator components",
	})
	roleTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceDWallet,
		Subsystem: subsystemEpoch,
		Name:      "role_transitions_total",
		Help:      "the number of epoch boundaries, by role transition",
	}, []string{LabelTransition})
	reconfigurationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespaceDWallet,
		Subsystem: subsystemEpoch,
		Name:      "reconfiguration_duration_seconds",
		Help:      "time from epoch completion until the next epoch is running",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
	orchestratorRestarts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceDWallet,
		Subsystem: subsystemEpoch,
		Name:      "orchestrator_restarts_total",
		Help:      "the number of times the reconfiguration loop was restarted after an error",
	})
	registerer.MustRegister(currentEpoch, isValidator, roleTransitions, reconfigurationDuration, orchestratorRestarts)

	return &EpochCollector{
		currentEpoch:            currentEpoch,
		isValidator:             isValidator,
		roleTransitions:         roleTransitions,
		reconfigurationDuration: reconfigurationDuration,
		orchestratorRestarts:    orchestratorRestarts,
	}
}

func (c *EpochCollector) CurrentEpoch(epoch dwallet.EpochID) {
	c.currentEpoch.Set(float64(epoch))
}

func (c *EpochCollector) IsValidator(validator bool) {
	if validator {
		c.isValidator.Set(1)
	} else {
		c.isValidator.Set(0)
	}
}

func (c *EpochCollector) RoleTransition(transition string) {
	c.roleTransitions.WithLabelValues(transition).Inc()
}

func (c *EpochCollector) ReconfigurationDuration(duration time.Duration) {
	c.reconfigurationDuration.Observe(duration.Seconds())
}

func (c *EpochCollector) OrchestratorRestarted() {
	c.orchestratorRestarts.Inc()
}
