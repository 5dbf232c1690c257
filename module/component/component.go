package component

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/dwallet-network/dwallet-node/module"
	"github.com/dwallet-network/dwallet-node/module/irrecoverable"
	"github.com/dwallet-network/dwallet-node/module/util"
)

// Component is started once and stopped by cancelling its start context. Done must close
// eventually after Start, on graceful shutdown as well as on an irrecoverable error.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc is called by a worker once it is ready. It may be called more than once.
type ReadyFunc func()

// ComponentWorker is a long running routine of a component. It returns when ctx is done and
// reports fatal errors through ctx.Throw.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

// ComponentManagerBuilder collects the workers of a ComponentManager.
// It is not safe for concurrent use.
type ComponentManagerBuilder struct {
	workers []ComponentWorker
}

func NewComponentManagerBuilder() *ComponentManagerBuilder {
	return &ComponentManagerBuilder{}
}

// AddWorker registers a worker. All workers run concurrently once the manager is started.
func (b *ComponentManagerBuilder) AddWorker(worker ComponentWorker) *ComponentManagerBuilder {
	b.workers = append(b.workers, worker)
	return b
}

func (b *ComponentManagerBuilder) Build() *ComponentManager {
	workers := make([]ComponentWorker, len(b.workers))
	copy(workers, b.workers)
	return &ComponentManager{
		started:     atomic.NewBool(false),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		workersDone: make(chan struct{}),
		workers:     workers,
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager runs a fixed set of workers as one Component.
// Ready closes once every worker called its ReadyFunc. Done closes once every worker returned.
// The first error thrown by a worker cancels all workers and is rethrown to the parent context.
type ComponentManager struct {
	started     *atomic.Bool
	ready       chan struct{}
	done        chan struct{}
	workersDone chan struct{}

	workers []ComponentWorker
}

// Start launches the workers. It panics with module.ErrMultipleStartup on a second call.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(module.ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	go func() {
		// the parent learns about a thrown error before Done closes
		defer func() {
			<-c.workersDone
			cancel()
			close(c.done)
		}()

		err := util.WaitError(errChan, c.workersDone)
		if err != nil {
			cancel()
			parent.Throw(err)
		}
	}()

	var ready, done sync.WaitGroup
	ready.Add(len(c.workers))
	done.Add(len(c.workers))
	for _, worker := range c.workers {
		go func(worker ComponentWorker) {
			defer done.Done()
			var once sync.Once
			worker(signalerCtx, func() {
				once.Do(ready.Done)
			})
		}(worker)
	}

	go func() {
		ready.Wait()
		close(c.ready)
	}()
	go func() {
		done.Wait()
		close(c.workersDone)
	}()
}

// Ready closes once all workers are ready. It never closes if a worker returns before
// calling its ReadyFunc.
func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}
