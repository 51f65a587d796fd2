package worker

import (
	"log/slog"
	"sync/atomic"
)

// External wraps a filter whose processing thread is owned by an outside
// library (e.g. an event-loop-driven protocol stack such as the SRT
// ingest adapter). It never calls Process() itself; it only bridges
// enable/disable/stop. Enable and Disable are no-ops — preserved from the
// original LiveMediaWorker, which cannot tell an externally owned thread to
// idle without tearing it down — so only Stop does real work.
type External struct {
	log     *slog.Logger
	stopped atomic.Bool
	stopFn  func()
}

// NewExternal wraps stopFn, the hook that tears down the external
// library's own thread. If log is nil, slog.Default() is used.
func NewExternal(stopFn func(), log *slog.Logger) *External {
	if log == nil {
		log = slog.Default()
	}
	return &External{
		log:    log.With("component", "worker-external"),
		stopFn: stopFn,
	}
}

// Start marks the worker as running. The external library's thread is
// assumed to already be running on its own, outside this call.
func (w *External) Start() bool {
	return !w.stopped.Swap(false)
}

// Stop tears down the external library's thread via stopFn.
func (w *External) Stop() {
	if w.stopped.Swap(true) {
		return
	}
	if w.stopFn != nil {
		w.stopFn()
	}
}

// Enable is a no-op; see the External doc comment.
func (w *External) Enable() {}

// Disable is a no-op; see the External doc comment.
func (w *External) Disable() {}

// IsRunning reports whether Stop has been called yet.
func (w *External) IsRunning() bool { return !w.stopped.Load() }

// IsEnabled always reports true: External has no disabled state.
func (w *External) IsEnabled() bool { return true }
