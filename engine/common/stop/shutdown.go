package stop

import (
	"sync"

	"github.com/rs/zerolog"
)

// ShutdownSignal announces the terminal stop of the node. It carries the optional range
// directive that caused the stop and is delivered exactly once.
type ShutdownSignal struct {
	log zerolog.Logger

	once   sync.Once
	done   chan struct{}
	reason *RunWithRange
}

func NewShutdownSignal(log zerolog.Logger) *ShutdownSignal {
	return &ShutdownSignal{
		log:  log.With().Str("component", "shutdown_signal").Logger(),
		done: make(chan struct{}),
	}
}

// Send publishes reason and returns true. Every later call is ignored and returns false.
func (s *ShutdownSignal) Send(reason *RunWithRange) bool {
	sent := false
	s.once.Do(func() {
		s.reason = reason
		close(s.done)
		sent = true
		s.log.Info().Str("reason", reason.String()).Msg("shutdown signal sent")
	})
	if !sent {
		s.log.Warn().Str("reason", reason.String()).Msg("shutdown signal already sent, ignoring")
	}
	return sent
}

// Done returns a channel which is closed once the signal has been sent.
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.done
}

// Reason returns the directive the signal was sent with. It must only be called after Done
// is closed.
func (s *ShutdownSignal) Reason() *RunWithRange {
	<-s.done
	return s.reason
}
