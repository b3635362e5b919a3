package chain

import (
	"context"
	"sync"
)

// worker drives the background mining loop, adapted from the teacher's
// foundation/blockchain/state.worker: a goroutine that waits to be signaled
// into a mining attempt and can be cancelled mid-attempt, generalized here
// to a single mining loop since this package owns no peer-update or
// tx-sharing network loops (out of this repo's scope).
type worker struct {
	chain        *Chain
	wg           sync.WaitGroup
	shut         chan struct{}
	startMining  chan struct{}
	cancelMining chan chan struct{}
}

// StartWorker launches the mining loop in the background. Call
// SignalStartMining to kick off an attempt (e.g. whenever the mempool has
// pending transactions) and Shutdown to stop it.
func (c *Chain) StartWorker() {
	if c.worker != nil {
		return
	}
	w := &worker{
		chain:        c,
		shut:         make(chan struct{}),
		startMining:  make(chan struct{}, 1),
		cancelMining: make(chan chan struct{}, 1),
	}
	c.worker = w

	w.wg.Add(1)
	go w.loop()
}

// StopWorker signals the mining loop to exit and waits for it to do so.
func (c *Chain) StopWorker() {
	if c.worker == nil {
		return
	}
	close(c.worker.shut)
	c.worker.wg.Wait()
	c.worker = nil
}

// SignalStartMining requests a mining attempt on the next loop iteration.
func (c *Chain) SignalStartMining() {
	if c.worker == nil {
		return
	}
	select {
	case c.worker.startMining <- struct{}{}:
	default:
	}
}

// SignalCancelMining aborts the in-flight mining attempt, if any, and
// returns a function the caller can invoke to block until the abort has
// taken effect.
func (c *Chain) SignalCancelMining() (done func()) {
	if c.worker == nil {
		return func() {}
	}
	ch := make(chan struct{})
	select {
	case c.worker.cancelMining <- ch:
	default:
		close(ch)
	}
	return func() { <-ch }
}

func (w *worker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.shut:
			return
		case <-w.startMining:
			w.mineOnce()
		}
	}
}

func (w *worker) mineOnce() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case ch := <-w.cancelMining:
			cancel()
			close(ch)
		case <-ctx.Done():
		}
	}()

	if w.chain.mempool.Count() == 0 {
		return
	}

	b, err := w.chain.MineNewBlock(ctx)
	if err != nil {
		w.chain.evHandler("chain: mining attempt failed: %v", err)
		return
	}
	w.chain.evHandler("chain: mined block %x at height %d", b.Hash(), b.Height)
}
