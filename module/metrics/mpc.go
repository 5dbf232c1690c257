package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dwallet-network/dwallet-node/module"
)

// MPCCollector implements metric collection for the network key service and outputs verifier.
type MPCCollector struct {
	keysInstantiated prometheus.Counter
	outputsVerified  prometheus.Counter
}

var _ module.MPCMetrics = (*MPCCollector)(nil)

func NewMPCCollector(registerer prometheus.Registerer) *MPCCollector {
	keysInstantiated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceDWallet,
		Subsystem: subsystemMPC,
		Name:      "network_keys_instantiated_total",
		Help:      "the number of network keys this node produced an output for",
	})
	outputsVerified := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceDWallet,
		Subsystem: subsystemMPC,
		Name:      "outputs_verified_total",
		Help:      "the number of MPC outputs accepted by a quorum",
	})
	registerer.MustRegister(keysInstantiated, outputsVerified)
	return &MPCCollector{
		keysInstantiated: keysInstantiated,
		outputsVerified:  outputsVerified,
	}
}

func (c *MPCCollector) NetworkKeyInstantiated() {
	c.keysInstantiated.Inc()
}

func (c *MPCCollector) OutputVerified() {
	c.outputsVerified.Inc()
}
