package worker

import (
	"testing"
	"time"

	"github.com/zsiec/mediagraph/frame"
)

type recordingSlaveRunnable struct {
	ch chan int
}

func (r *recordingSlaveRunnable) ProcessSlave(id int, origin *frame.Frame) {
	r.ch <- id
}

func TestSlaveProcessesOnSetFrame(t *testing.T) {
	t.Parallel()

	r := &recordingSlaveRunnable{ch: make(chan int, 1)}
	s := NewSlave(3, r, nil)
	s.Start()
	defer s.Stop()

	if !s.Finished() {
		t.Fatal("expected Finished true before first cycle")
	}

	s.SetFrame(frame.New(16, frame.Format{}))

	select {
	case id := <-r.ch:
		if id != 3 {
			t.Fatalf("expected slave id 3, got %d", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ProcessSlave")
	}

	deadline := time.Now().Add(time.Second)
	for !s.Finished() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for Finished")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSlaveStopJoinsThread(t *testing.T) {
	t.Parallel()

	r := &recordingSlaveRunnable{ch: make(chan int, 1)}
	s := NewSlave(0, r, nil)
	s.Start()
	s.Stop()
	s.Stop() // idempotent
}
