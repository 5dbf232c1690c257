package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_LatestValueOnly(t *testing.T) {
	sender, receiver := New(1)
	assert.False(t, receiver.HasChanged())
	assert.Equal(t, 1, receiver.Borrow())

	require.NoError(t, sender.Send(2))
	require.NoError(t, sender.Send(3))
	assert.True(t, receiver.HasChanged())
	assert.Equal(t, 3, receiver.BorrowAndUpdate())
	assert.False(t, receiver.HasChanged())

	late := sender.Subscribe()
	assert.False(t, late.HasChanged())
	assert.Equal(t, 3, late.Borrow())
}

func TestWatch_ChangedWakesWaiter(t *testing.T) {
	sender, receiver := New("a")

	woke := make(chan error, 1)
	go func() {
		woke <- receiver.Changed(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, sender.Send("b"))

	select {
	case err := <-woke:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken")
	}
	assert.Equal(t, "b", receiver.Borrow())
}

// TestWatch_CloseAfterSend verifies a value sent before Close is still reported once before
// the receiver observes the closure.
func TestWatch_CloseAfterSend(t *testing.T) {
	sender, receiver := New(0)
	require.NoError(t, sender.Send(1))
	sender.Close()
	sender.Close()

	require.NoError(t, receiver.Changed(context.Background()))
	assert.ErrorIs(t, receiver.Changed(context.Background()), ErrClosed)
	assert.ErrorIs(t, sender.Send(2), ErrClosed)

	select {
	case <-receiver.Closed():
	default:
		t.Fatal("closed channel not closed")
	}
}

func TestWatch_ChangedHonoursContext(t *testing.T) {
	_, receiver := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, receiver.Changed(ctx), context.DeadlineExceeded)
}

func TestWatch_CloneIsIndependent(t *testing.T) {
	sender, receiver := New(0)
	require.NoError(t, sender.Send(1))

	clone := receiver.Clone()
	receiver.BorrowAndUpdate()
	assert.False(t, receiver.HasChanged())
	assert.True(t, clone.HasChanged())
}
