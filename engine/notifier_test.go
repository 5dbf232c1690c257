package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

// TestNotifier_PassByValue verifies that passing Notifier by value is safe
func TestNotifier_PassByValue(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()

	var sent sync.WaitGroup
	sent.Add(1)
	go func(n Notifier) {
		n.Notify()
		sent.Done()
	}(notifier)
	sent.Wait()

	select {
	case <-notifier.Channel():
	default:
		t.Fail()
	}
}

func TestNotifier_NoNotificationsInitialization(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()
	select {
	case <-notifier.Channel():
		t.Fail()
	default:
	}
}

// TestNotifier_ManyNotifications verifies that concurrent notifications coalesce into one.
func TestNotifier_ManyNotifications(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()

	var counter sync.WaitGroup
	for i := 0; i < 10; i++ {
		counter.Add(1)
		go func() {
			notifier.Notify()
			counter.Done()
		}()
	}
	counter.Wait()

	c := notifier.Channel()
	select {
	case <-c:
	default:
		t.Error("expected one notification to be available")
	}
	select {
	case <-c:
		t.Error("expected only one notification to be available")
	default:
	}
}

// TestNotifier_WakesWaitingWorker verifies that a blocked consumer is woken by Notify.
func TestNotifier_WakesWaitingWorker(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()
	woken := make(chan struct{})

	go func() {
		<-notifier.Channel()
		close(woken)
	}()

	unittest.RequireNeverClosedWithin(t, woken, 20*time.Millisecond, "worker woken without notification")
	notifier.Notify()
	unittest.RequireCloseBefore(t, woken, time.Second, "worker not woken")
}
