package metrics

// Prometheus metric namespaces
const (
	namespaceDWallet = "dwallet"
)

// Prometheus metric subsystems
const (
	subsystemEpoch      = "epoch"
	subsystemCheckpoint = "checkpoint"
	subsystemConsensus  = "consensus"
	subsystemMPC        = "mpc"
)
