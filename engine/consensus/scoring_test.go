package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwallet-network/dwallet-node/model/dwallet"
	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

func TestComputeLowScoring(t *testing.T) {
	committee := unittest.CommitteeFixture(1, 4)
	names := committee.Names()

	t.Run("no scores", func(t *testing.T) {
		low := ComputeLowScoring(committee, nil, 20)
		assert.Empty(t, low)
	})

	t.Run("single outlier", func(t *testing.T) {
		scores := map[dwallet.AuthorityName]uint64{
			names[0]: 100,
			names[1]: 1000,
			names[2]: 1000,
			names[3]: 1000,
		}
		low := ComputeLowScoring(committee, scores, 20)
		require.Len(t, low, 1)
		assert.Equal(t, uint64(100), low[names[0]])
	})

	// two outliers together would reach the validity threshold, only the lowest is kept
	t.Run("capped by voting power", func(t *testing.T) {
		scores := map[dwallet.AuthorityName]uint64{
			names[0]: 20,
			names[1]: 10,
			names[2]: 1000,
			names[3]: 1000,
		}
		low := ComputeLowScoring(committee, scores, 20)
		require.Len(t, low, 1)
		assert.Contains(t, low, names[1])
	})

	t.Run("non members ignored", func(t *testing.T) {
		scores := map[dwallet.AuthorityName]uint64{
			unittest.AuthorityNameFixture(): 0,
			names[0]:                        1000,
			names[1]:                        1000,
		}
		low := ComputeLowScoring(committee, scores, 20)
		assert.Empty(t, low)
	})
}

func TestLowScoringAuthorities_Swap(t *testing.T) {
	set := NewLowScoringAuthorities()
	name := unittest.AuthorityNameFixture()
	assert.False(t, set.Contains(name))
	assert.Equal(t, 0, set.Len())

	prev := set.Swap(map[dwallet.AuthorityName]uint64{name: 3})
	assert.Empty(t, prev)
	assert.True(t, set.Contains(name))
	assert.Equal(t, 1, set.Len())

	prev = set.Swap(nil)
	assert.Contains(t, prev, name)
	assert.False(t, set.Contains(name))
}
