// Package broadcast provides a fan-out channel which delivers every sent value
// to all current subscribers.
package broadcast

import (
	"errors"
	"sync"
)

// ErrNoSubscribers is returned by Send when the value was not delivered to anyone.
var ErrNoSubscribers = errors.New("broadcast channel has no subscribers")

// Channel fans values out to its subscribers. Each subscriber has a bounded buffer;
// values are dropped for subscribers whose buffer is full instead of blocking the sender.
type Channel[T any] struct {
	mu       sync.Mutex
	capacity int
	nextID   uint64
	subs     map[uint64]chan T
}

// Subscription is a subscription to a Channel.
type Subscription[T any] struct {
	id      uint64
	ch      chan T
	channel *Channel[T]
	once    sync.Once
}

// NewChannel returns a Channel whose subscribers buffer up to capacity values.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel[T]{
		capacity: capacity,
		subs:     make(map[uint64]chan T),
	}
}

// Subscribe registers a new subscriber which receives every value sent from now on.
func (c *Channel[T]) Subscribe() *Subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan T, c.capacity)
	c.subs[id] = ch
	return &Subscription[T]{id: id, ch: ch, channel: c}
}

// Send delivers value to every subscriber with buffer space left and returns the
// number of subscribers it was delivered to. It never blocks.
// Returns ErrNoSubscribers if there are no subscribers at all.
func (c *Channel[T]) Send(value T) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subs) == 0 {
		return 0, ErrNoSubscribers
	}

	delivered := 0
	for _, ch := range c.subs {
		select {
		case ch <- value:
			delivered++
		default:
		}
	}
	return delivered, nil
}

// SubscriberCount returns the number of active subscriptions.
func (c *Channel[T]) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Ch returns the channel values are delivered on. It is closed by Unsubscribe.
func (s *Subscription[T]) Ch() <-chan T {
	return s.ch
}

// Unsubscribe cancels this subscription. Once Unsubscribe is called, no
// further values are sent over the channel.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.channel.mu.Lock()
		defer s.channel.mu.Unlock()
		delete(s.channel.subs, s.id)
		close(s.ch)
	})
}
