package index

import (
	"context"
	"sync"

	"github.com/notewik/noteindex/internal/logging"
)

// worker runs the tree indexer state machine in the background,
// committing once per iteration so a reader or an interactive
// on_store_page/on_delete_page call can interleave between steps.
// Modeled on the teacher's LoopManager (start/stop via a stop
// channel, checked only at iteration boundaries, never mid-transaction
// — see §5 "Cancellation").
type worker struct {
	idx *Index
	log *logging.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func newWorker(idx *Index) *worker {
	return &worker{idx: idx, log: logging.GetLogger("index.worker")}
}

// start launches the background loop over path (empty = whole tree),
// unless one is already running. Returns ErrWorkerRunning if so.
func (w *worker) start(path string) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWorkerRunning
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	stopChan := w.stopChan
	done := w.done
	w.mu.Unlock()

	go w.run(path, stopChan, done)
	return nil
}

// stop signals the worker to terminate at the next iteration
// boundary. Safe to call when nothing is running.
func (w *worker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopChan)
}

// wait blocks until the worker finishes, or timeoutCh fires first
// (pass nil to wait indefinitely). Returns true if the worker was
// still running when the wait ended.
func (w *worker) wait(timeoutCh <-chan struct{}) bool {
	w.mu.Lock()
	done := w.done
	running := w.running
	w.mu.Unlock()
	if !running {
		return false
	}
	select {
	case <-done:
		return false
	case <-timeoutCh:
		return true
	}
}

func (w *worker) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *worker) run(path string, stopChan, done chan struct{}) {
	defer close(done)
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	ctx := context.Background()
	if err := w.idx.queueCheck(ctx, path); err != nil {
		w.log.Error("failed to enqueue update", "path", path, "error", err)
		return
	}

	for {
		select {
		case <-stopChan:
			w.log.Info("update worker stopped", "path", path)
			return
		default:
		}

		finished, page, kind, err := w.idx.step(ctx)
		if err != nil {
			w.log.Error("dispatch error, page marked uptodate and skipped", "page", page, "kind", kind, "error", err)
		}
		if finished {
			w.log.Info("update worker reached quiescence", "path", path)
			return
		}
	}
}
