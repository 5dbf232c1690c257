package consensus

import (
	"sort"

	"go.uber.org/atomic"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
)

// LowScoringAuthorities is the set of committee members whose consensus reputation is low.
// It is written by the consensus handler when new scores arrive and read by the adapter on
// every submission. Writers replace the whole map, readers never lock.
type LowScoringAuthorities struct {
	scores *atomic.Pointer[map[dwallet.AuthorityName]uint64]
}

func NewLowScoringAuthorities() *LowScoringAuthorities {
	empty := make(map[dwallet.AuthorityName]uint64)
	return &LowScoringAuthorities{
		scores: atomic.NewPointer(&empty),
	}
}

// Load returns the current set. The returned map must not be modified.
func (l *LowScoringAuthorities) Load() map[dwallet.AuthorityName]uint64 {
	return *l.scores.Load()
}

// Contains returns true if name is currently scored low.
func (l *LowScoringAuthorities) Contains(name dwallet.AuthorityName) bool {
	_, ok := l.Load()[name]
	return ok
}

// Len returns the number of low scoring authorities.
func (l *LowScoringAuthorities) Len() int {
	return len(l.Load())
}

// Swap replaces the set and returns the previous one.
func (l *LowScoringAuthorities) Swap(next map[dwallet.AuthorityName]uint64) map[dwallet.AuthorityName]uint64 {
	if next == nil {
		next = make(map[dwallet.AuthorityName]uint64)
	}
	return *l.scores.Swap(&next)
}

// ComputeLowScoring selects the authorities scoring below thresholdPercent of the median score.
// Authorities are added from the lowest score upwards as long as their combined voting power
// stays below the validity threshold, so the set never holds enough stake to stall submission.
// Authorities without a score are ignored.
func ComputeLowScoring(committee *dwallet.Committee, scores map[dwallet.AuthorityName]uint64, thresholdPercent uint64) map[dwallet.AuthorityName]uint64 {
	low := make(map[dwallet.AuthorityName]uint64)
	if len(scores) == 0 {
		return low
	}

	type scored struct {
		name  dwallet.AuthorityName
		score uint64
	}
	ranked := make([]scored, 0, len(scores))
	for name, score := range scores {
		if !committee.Contains(name) {
			continue
		}
		ranked = append(ranked, scored{name: name, score: score})
	}
	if len(ranked) == 0 {
		return low
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return string(ranked[i].name[:]) < string(ranked[j].name[:])
	})

	median := ranked[len(ranked)/2].score
	cutoff := median * thresholdPercent / 100

	var power uint64
	limit := committee.ValidityThreshold()
	for _, s := range ranked {
		if s.score >= cutoff {
			break
		}
		vp := committee.VotingPower(s.name)
		if power+vp >= limit {
			break
		}
		power += vp
		low[s.name] = s.score
	}
	return low
}
