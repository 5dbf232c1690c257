package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThroughputProfiler(t *testing.T) {
	calculator := NewThroughputCalculator(10 * time.Second)
	profiler := NewThroughputProfiler(calculator, DefaultThroughputProfiles())
	t0 := time.Unix(1_700_000_000, 0)

	assert.Equal(t, ThroughputLow, profiler.Profile().Level)

	calculator.AddTransactions(t0, 1_000)
	assert.Equal(t, uint64(100), calculator.CurrentThroughput())
	assert.Equal(t, ThroughputLow, profiler.Profile().Level)

	calculator.AddTransactions(t0.Add(time.Second), 4_000)
	assert.Equal(t, uint64(500), calculator.CurrentThroughput())
	assert.Equal(t, ThroughputMedium, profiler.Profile().Level)

	calculator.AddTransactions(t0.Add(2*time.Second), 15_000)
	assert.Equal(t, uint64(2_000), calculator.CurrentThroughput())
	assert.Equal(t, ThroughputHigh, profiler.Profile().Level)

	// all earlier buckets fall out of the window
	calculator.AddTransactions(t0.Add(30*time.Second), 0)
	assert.Equal(t, uint64(0), calculator.CurrentThroughput())
	assert.Equal(t, ThroughputLow, profiler.Profile().Level)
}
