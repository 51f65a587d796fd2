package worker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/mediagraph/filter"
)

// Runnable is the subset of a filter.Node that a Simple Worker needs: the
// ability to take one scheduling step.
type Runnable interface {
	Process() filter.Status
}

// Simple is the plain Worker variant: while running, if enabled, it calls
// Process() on its filter and paces to frameTime; otherwise it sleeps for a
// short interval without tearing down the thread.
type Simple struct {
	log      *slog.Logger
	runnable Runnable

	running atomic.Bool
	enabled atomic.Bool

	// stepMu is held across each enabled check and the Process call that
	// follows it, so Disable returns only once no Process call is in flight.
	stepMu sync.Mutex

	frameTimeUs atomic.Int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSimple constructs a Simple worker for runnable, paced to maxFps
// (0 = unbounded). If log is nil, slog.Default() is used.
func NewSimple(runnable Runnable, maxFps int, log *slog.Logger) *Simple {
	if log == nil {
		log = slog.Default()
	}
	w := &Simple{
		log:      log.With("component", "worker-simple"),
		runnable: runnable,
	}
	w.frameTimeUs.Store(int64(frameTimeFromFPS(maxFps)))
	return w
}

// SetFPS recomputes the frame-time budget on a running or stopped worker,
// without a stop/start cycle.
func (w *Simple) SetFPS(maxFps int) {
	w.frameTimeUs.Store(int64(frameTimeFromFPS(maxFps)))
}

// Start launches the worker's thread. It returns false if already running.
func (w *Simple) Start() bool {
	if !w.running.CompareAndSwap(false, true) {
		return false
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.enabled.Store(true)
	go w.loop()
	return true
}

func (w *Simple) loop() {
	defer close(w.doneCh)
	for w.running.Load() {
		w.stepMu.Lock()
		if !w.enabled.Load() {
			w.stepMu.Unlock()
			if !w.sleep(idleSleep) {
				return
			}
			continue
		}

		start := time.Now()
		w.runnable.Process()
		w.stepMu.Unlock()

		frameTime := time.Duration(w.frameTimeUs.Load())
		if frameTime <= 0 {
			continue
		}
		if remaining := frameTime - time.Since(start); remaining > 0 {
			if !w.sleep(remaining) {
				return
			}
		}
	}
}

// sleep waits for d or an early Stop, returning false if Stop fired.
func (w *Simple) sleep(d time.Duration) bool {
	select {
	case <-w.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

// Stop signals the loop to exit, waits for the current step to finish, and
// joins the thread.
func (w *Simple) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.stopCh)
	<-w.doneCh
}

// Enable resumes calling Process() on every cycle without restarting the
// thread.
func (w *Simple) Enable() { w.enabled.Store(true) }

// Disable pauses Process() calls; the filter and its endpoints are
// retained. It returns once any in-flight Process call has finished.
func (w *Simple) Disable() {
	w.stepMu.Lock()
	w.enabled.Store(false)
	w.stepMu.Unlock()
}

// IsRunning reports whether the worker's thread is active.
func (w *Simple) IsRunning() bool { return w.running.Load() }

// IsEnabled reports whether the worker is currently calling Process().
func (w *Simple) IsEnabled() bool { return w.enabled.Load() }
