package worker

import (
	"log/slog"
	"sync/atomic"

	"github.com/zsiec/mediagraph/frame"
)

// SlaveRunnable processes one partition of a Master's input frame. The
// partition boundary (which slice of the frame this Slave owns) is
// implementation-defined by the concrete filter, typically derived from the
// Slave's id.
type SlaveRunnable interface {
	ProcessSlave(id int, origin *frame.Frame)
}

// Slave is one parallel worker thread owned by a Master. Per cycle, the
// Master writes origin and clears finished; the Slave runs its filter on
// the partitioned input and sets finished once done.
type Slave struct {
	id  int
	log *slog.Logger

	runnable SlaveRunnable

	running  atomic.Bool
	finished atomic.Bool
	origin   atomic.Pointer[frame.Frame]

	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSlave constructs a Slave with the given id, used both to identify it
// to its Master and to let runnable compute its partition of the input.
func NewSlave(id int, runnable SlaveRunnable, log *slog.Logger) *Slave {
	if log == nil {
		log = slog.Default()
	}
	return &Slave{
		id:       id,
		log:      log.With("component", "worker-slave", "slave_id", id),
		runnable: runnable,
	}
}

// ID returns the Slave's id.
func (s *Slave) ID() int { return s.id }

// Finished reports whether the Slave has completed the current cycle's
// work.
func (s *Slave) Finished() bool { return s.finished.Load() }

// SetFrame hands the Master's current input frame to the Slave and wakes
// its thread. It is called once per cycle by the owning Master.
func (s *Slave) SetFrame(f *frame.Frame) {
	s.origin.Store(f)
	s.finished.Store(false)
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Start launches the Slave's thread. It returns false if already running.
func (s *Slave) Start() bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.wakeCh = make(chan struct{}, 1)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.finished.Store(true)
	go s.loop()
	return true
}

func (s *Slave) loop() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.wakeCh:
		}
		if !s.running.Load() {
			return
		}
		s.runnable.ProcessSlave(s.id, s.origin.Load())
		s.finished.Store(true)
	}
}

// Stop signals the Slave's thread to exit and joins it.
func (s *Slave) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	<-s.doneCh
}
