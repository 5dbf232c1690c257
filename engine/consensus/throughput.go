package consensus

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ThroughputCalculator measures the rate of transactions ordered by consensus over a sliding
// window of one second buckets. The rate is read without locking by the profiler.
type ThroughputCalculator struct {
	mu      sync.Mutex
	window  int
	buckets []uint64
	seconds []int64
	current *atomic.Uint64
}

func NewThroughputCalculator(window time.Duration) *ThroughputCalculator {
	n := int(window / time.Second)
	if n < 1 {
		n = 1
	}
	return &ThroughputCalculator{
		window:  n,
		buckets: make([]uint64, n),
		seconds: make([]int64, n),
		current: atomic.NewUint64(0),
	}
}

// AddTransactions records n transactions handled at now and refreshes the rate.
func (c *ThroughputCalculator) AddTransactions(now time.Time, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec := now.Unix()
	i := int(sec % int64(c.window))
	if c.seconds[i] != sec {
		c.seconds[i] = sec
		c.buckets[i] = 0
	}
	c.buckets[i] += uint64(n)

	var total uint64
	for j := range c.buckets {
		if sec-c.seconds[j] < int64(c.window) {
			total += c.buckets[j]
		}
	}
	c.current.Store(total / uint64(c.window))
}

// CurrentThroughput returns the last computed rate in transactions per second.
func (c *ThroughputCalculator) CurrentThroughput() uint64 {
	return c.current.Load()
}

// ThroughputProfiler maps the measured throughput to the highest profile it reaches.
type ThroughputProfiler struct {
	calculator *ThroughputCalculator
	profiles   []ThroughputProfile
}

// NewThroughputProfiler returns a profiler over profiles, which must be ordered by increasing
// throughput and hold at least one entry.
func NewThroughputProfiler(calculator *ThroughputCalculator, profiles []ThroughputProfile) *ThroughputProfiler {
	if len(profiles) == 0 {
		profiles = DefaultThroughputProfiles()
	}
	return &ThroughputProfiler{
		calculator: calculator,
		profiles:   profiles,
	}
}

// Calculator returns the underlying calculator.
func (p *ThroughputProfiler) Calculator() *ThroughputCalculator {
	return p.calculator
}

// Profile returns the profile matching the current throughput.
func (p *ThroughputProfiler) Profile() ThroughputProfile {
	throughput := p.calculator.CurrentThroughput()
	profile := p.profiles[0]
	for _, candidate := range p.profiles[1:] {
		if throughput < candidate.Throughput {
			break
		}
		profile = candidate
	}
	return profile
}
