package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
	"github.com/dwallet-network/dwallet-node/utils/unittest"
)

func TestComponentManager_ReadyAndDone(t *testing.T) {
	release := make(chan struct{})
	manager := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			ready()
			<-ctx.Done()
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			<-release
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	manager.Start(ctx)
	unittest.RequireNeverClosedWithin(t, manager.Ready(), 20*time.Millisecond, "ready before all workers")

	close(release)
	unittest.RequireComponentsReadyBefore(t, time.Second, manager)

	cancel()
	unittest.RequireComponentsDoneBefore(t, time.Second, manager)
}

func TestComponentManager_StartTwice(t *testing.T) {
	manager := NewComponentManagerBuilder().Build()
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	defer cancel()

	manager.Start(ctx)
	assert.PanicsWithValue(t, module.ErrMultipleStartup, func() {
		manager.Start(ctx)
	})
}

// TestComponentManager_ThrowPropagates verifies a worker error cancels the other workers and
// reaches the parent before Done closes.
func TestComponentManager_ThrowPropagates(t *testing.T) {
	expected := errors.New("store corrupted")
	manager := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			ctx.Throw(expected)
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		Build()

	parent, errChan := irrecoverable.WithSignaler(context.Background())
	manager.Start(parent)

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, expected)
	case <-time.After(time.Second):
		t.Fatal("error was not propagated")
	}
	unittest.RequireComponentsDoneBefore(t, time.Second, manager)
}
