package engine

// Notifier is a concurrency primitive for informing a worker that new work is available.
// Notifications coalesce: any number of Notify calls without a consumer leave exactly one
// notification pending. Notifier is safe to pass by value.
type Notifier struct {
	notifier chan struct{}
}

// NewNotifier instantiates a Notifier without pending notifications.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sends a notification without blocking.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns a channel for receiving notifications.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
