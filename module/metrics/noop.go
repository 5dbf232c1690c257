package metrics

import (
	"time"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/module"
)

type NoopCollector struct{}

var (
	_ module.EpochMetrics      = (*NoopCollector)(nil)
	_ module.CheckpointMetrics = (*NoopCollector)(nil)
	_ module.ConsensusMetrics  = (*NoopCollector)(nil)
	_ module.MPCMetrics        = (*NoopCollector)(nil)
)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) CurrentEpoch(dwallet.EpochID)                             {}
func (nc *NoopCollector) IsValidator(bool)                                         {}
func (nc *NoopCollector) RoleTransition(string)                                    {}
func (nc *NoopCollector) ReconfigurationDuration(time.Duration)                    {}
func (nc *NoopCollector) OrchestratorRestarted()                                   {}
func (nc *NoopCollector) BatchBuilt(dwallet.BatchKind, uint64, int, int)           {}
func (nc *NoopCollector) BatchCertified(dwallet.BatchKind, uint64)                 {}
func (nc *NoopCollector) PendingMessages(dwallet.BatchKind, int)                   {}
func (nc *NoopCollector) TransactionSubmitted(dwallet.ConsensusTransactionKind)    {}
func (nc *NoopCollector) TransactionSubmitFailed(dwallet.ConsensusTransactionKind) {}
func (nc *NoopCollector) PendingTransactions(int)                                  {}
func (nc *NoopCollector) TransactionHandled(dwallet.ConsensusTransactionKind)      {}
func (nc *NoopCollector) TransactionRejected(dwallet.ConsensusTransactionKind)     {}
func (nc *NoopCollector) LowScoringAuthorities(int)                                {}
func (nc *NoopCollector) ThroughputLevel(int)                                      {}
func (nc *NoopCollector) NetworkKeyInstantiated()                                  {}
func (nc *NoopCollector) OutputVerified()                                          {}
