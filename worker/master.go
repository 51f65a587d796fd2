package worker

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/mediagraph/frame"
	"github.com/zsiec/mediagraph/queue"
)

// MasterRunnable is the filter a Master drives. Unlike Simple's Runnable,
// a Master bypasses the filter's generic Process() dispatch and talks to
// its single reader/writer pair directly, because the cycle's real work
// (partition, spin-wait, merge) is owned by the Master/Slave protocol
// rather than the arity's doProcessFrame contract.
type MasterRunnable interface {
	Reader(id int) (*queue.Reader, bool)
	Writer(id int) (*queue.Writer, bool)
	// ProcessAll finalizes a cycle after every Slave has finished —
	// typically merging each Slave's partial result into dst.
	ProcessAll(origin, dst *frame.Frame) error
}

// Master drives a filter that partitions its work across up to MaxSlaves
// Slaves. Each cycle: obtain input/output, hand the input to every Slave,
// spin-wait for all of them to finish, finalize via ProcessAll, then commit.
type Master struct {
	log      *slog.Logger
	runnable MasterRunnable
	readerID int
	writerID int

	slavesMu sync.Mutex
	slaves   []*Slave

	running atomic.Bool
	enabled atomic.Bool

	// stepMu is held across each enabled check and the step call that
	// follows it, so Disable returns only once no step is in flight.
	stepMu sync.Mutex

	frameTimeUs atomic.Int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMaster constructs a Master driving runnable's readerID/writerID
// endpoints, paced to maxFps (0 = unbounded).
func NewMaster(runnable MasterRunnable, readerID, writerID, maxFps int, log *slog.Logger) *Master {
	if log == nil {
		log = slog.Default()
	}
	m := &Master{
		log:      log.With("component", "worker-master"),
		runnable: runnable,
		readerID: readerID,
		writerID: writerID,
	}
	m.frameTimeUs.Store(int64(frameTimeFromFPS(maxFps)))
	return m
}

// AddSlave registers and starts a new Slave. It fails once MaxSlaves is
// reached.
func (m *Master) AddSlave(s *Slave) error {
	m.slavesMu.Lock()
	defer m.slavesMu.Unlock()
	if len(m.slaves) >= MaxSlaves {
		return fmt.Errorf("slave capacity exceeded (max %d)", MaxSlaves)
	}
	m.slaves = append(m.slaves, s)
	s.Start()
	return nil
}

// RemoveSlave stops and unregisters the Slave with the given id.
func (m *Master) RemoveSlave(id int) {
	m.slavesMu.Lock()
	defer m.slavesMu.Unlock()
	for i, s := range m.slaves {
		if s.ID() == id {
			s.Stop()
			m.slaves = append(m.slaves[:i], m.slaves[i+1:]...)
			return
		}
	}
}

// slaveSnapshot returns a shallow copy of the current slave list, safe for
// the loop goroutine to iterate without holding slavesMu across each
// per-slave call.
func (m *Master) slaveSnapshot() []*Slave {
	m.slavesMu.Lock()
	defer m.slavesMu.Unlock()
	out := make([]*Slave, len(m.slaves))
	copy(out, m.slaves)
	return out
}

// SetFPS recomputes the frame-time budget without a stop/start cycle.
func (m *Master) SetFPS(maxFps int) {
	m.frameTimeUs.Store(int64(frameTimeFromFPS(maxFps)))
}

// Start launches the Master's thread (the Slaves are already running,
// started individually by AddSlave). It returns false if already running.
func (m *Master) Start() bool {
	if !m.running.CompareAndSwap(false, true) {
		return false
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.enabled.Store(true)
	go m.loop()
	return true
}

func (m *Master) loop() {
	defer close(m.doneCh)
	for m.running.Load() {
		m.stepMu.Lock()
		if !m.enabled.Load() {
			m.stepMu.Unlock()
			if !m.sleep(idleSleep) {
				return
			}
			continue
		}

		start := time.Now()
		m.step()
		m.stepMu.Unlock()

		frameTime := time.Duration(m.frameTimeUs.Load())
		if frameTime <= 0 {
			continue
		}
		if remaining := frameTime - time.Since(start); remaining > 0 {
			if !m.sleep(remaining) {
				return
			}
		}
	}
}

func (m *Master) sleep(d time.Duration) bool {
	select {
	case <-m.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (m *Master) step() {
	r, ok := m.runnable.Reader(m.readerID)
	if !ok {
		return
	}
	w, ok := m.runnable.Writer(m.writerID)
	if !ok {
		return
	}

	origin := r.GetFrame(false)
	if origin == nil {
		return
	}
	dst := w.GetRear()
	if dst == nil {
		return
	}

	slaves := m.slaveSnapshot()
	for _, s := range slaves {
		s.SetFrame(origin)
	}
	m.spinWaitSlaves(slaves)

	if err := m.runnable.ProcessAll(origin, dst); err != nil {
		m.log.Debug("process all failed", "error", err)
		return
	}

	w.AddFrame()
	r.RemoveFrame()
}

// spinWaitSlaves blocks until every Slave reports finished, yielding
// briefly between checks rather than busy-spinning at full CPU.
func (m *Master) spinWaitSlaves(slaves []*Slave) {
	for {
		allDone := true
		for _, s := range slaves {
			if !s.Finished() {
				allDone = false
				break
			}
		}
		if allDone {
			return
		}
		runtime.Gosched()
	}
}

// Stop signals the Master's thread to exit, joins it, then stops every
// Slave.
func (m *Master) Stop() {
	if m.running.CompareAndSwap(true, false) {
		close(m.stopCh)
		<-m.doneCh
	}
	for _, s := range m.slaveSnapshot() {
		s.Stop()
	}
}

// Enable resumes calling step() on every cycle.
func (m *Master) Enable() { m.enabled.Store(true) }

// Disable pauses step() calls without tearing down the Master or its
// Slaves. It returns once any in-flight step has finished.
func (m *Master) Disable() {
	m.stepMu.Lock()
	m.enabled.Store(false)
	m.stepMu.Unlock()
}

// IsRunning reports whether the Master's thread is active.
func (m *Master) IsRunning() bool { return m.running.Load() }

// IsEnabled reports whether the Master is currently calling step().
func (m *Master) IsEnabled() bool { return m.enabled.Load() }
