// Package filter implements the Filter base model: nodes with a fixed arity
// (one-to-one, many-to-one, one-to-many, many-to-many) that consume frames
// from zero or more Readers and produce into zero or more Writers, plus the
// graph-mutation primitives (Connect/Disconnect) used to wire them together.
package filter

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/zsiec/mediagraph/queue"
)

// ID identifies a filter within a PipelineManager.
type ID int

// Status is the outcome of a single Process() step, reported by a Worker
// for pacing and diagnostics.
type Status int

const (
	// StatusIdle means the filter had nothing to do this cycle — an
	// endpoint was unavailable or there wasn't enough input to emit.
	StatusIdle Status = iota
	// StatusProcessed means the filter committed at least one frame.
	StatusProcessed
	// StatusFailed means doProcessFrame returned an error; the failing
	// frame is retired and the pipeline continues.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusProcessed:
		return "processed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// QueueAllocator creates the FrameQueue for a given writer id. Each filter
// chooses its own queue capacity, Frame format, and ForcePolicy, which is
// why allocation is a function supplied by the concrete filter rather than
// something Base can do generically.
type QueueAllocator func(writerID int) (*queue.FrameQueue, error)

// Node is the graph-facing contract every concrete filter satisfies: the
// connection protocol (AllocQueue/SetReader/accessors), the wire-facing
// event dispatch, and the per-cycle Process step. PipelineManager and the
// package-level Connect/Disconnect helpers operate purely in terms of Node,
// decoupling the graph fabric from any particular filter implementation.
type Node interface {
	ID() ID
	Kind() string

	AllocQueue(writerID int) (*queue.FrameQueue, error)
	SetReader(readerID int, q *queue.FrameQueue) (*queue.Reader, error)
	Writer(writerID int) (*queue.Writer, bool)
	Reader(readerID int) (*queue.Reader, bool)
	RemoveWriter(writerID int)
	RemoveReader(readerID int)

	ProcessEvent(name string, params map[string]any) map[string]any
	Process() Status
}

// Base implements the bookkeeping shared by all four arities: bounded
// reader/writer maps, the connection protocol, and event dispatch. Concrete
// arities (OneToOne, ManyToOne, ...) embed Base and add their Process
// contract plus a Processor callback supplied by the domain filter.
type Base struct {
	log *slog.Logger

	id   ID
	kind string

	maxReaders int
	maxWriters int

	mu      sync.Mutex
	readers map[int]*queue.Reader
	writers map[int]*queue.Writer

	alloc  QueueAllocator
	events EventMap
}

// NewBase constructs the shared bookkeeping for a filter of the given
// arity. alloc is invoked by AllocQueue to create the FrameQueue for a new
// writer id; events is consulted by ProcessEvent. If log is nil,
// slog.Default() is used.
func NewBase(id ID, kind string, maxReaders, maxWriters int, alloc QueueAllocator, events EventMap, log *slog.Logger) *Base {
	if log == nil {
		log = slog.Default()
	}
	if events == nil {
		events = EventMap{}
	}
	return &Base{
		log:        log.With("component", "filter", "kind", kind, "id", int(id)),
		id:         id,
		kind:       kind,
		maxReaders: maxReaders,
		maxWriters: maxWriters,
		readers:    make(map[int]*queue.Reader),
		writers:    make(map[int]*queue.Writer),
		alloc:      alloc,
		events:     events,
	}
}

// ID returns the filter's identifier within its PipelineManager.
func (b *Base) ID() ID { return b.id }

// Kind returns the filter's type tag.
func (b *Base) Kind() string { return b.kind }

// AllocQueue creates and registers a new Writer at writerID via this
// filter's QueueAllocator. It fails if writerID is already in use or if
// maxWriters has been reached.
func (b *Base) AllocQueue(writerID int) (*queue.FrameQueue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.writers[writerID]; exists {
		return nil, fmt.Errorf("filter %d: writer %d already connected", b.id, writerID)
	}
	if len(b.writers) >= b.maxWriters {
		return nil, fmt.Errorf("filter %d: writer capacity exceeded (max %d)", b.id, b.maxWriters)
	}

	q, err := b.alloc(writerID)
	if err != nil {
		return nil, fmt.Errorf("filter %d: alloc queue for writer %d: %w", b.id, writerID, err)
	}

	b.writers[writerID] = queue.NewWriter(q)
	return q, nil
}

// SetReader registers a new Reader bound to q at readerID. It fails if
// readerID is already in use or if maxReaders has been reached.
func (b *Base) SetReader(readerID int, q *queue.FrameQueue) (*queue.Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.readers[readerID]; exists {
		return nil, fmt.Errorf("filter %d: reader %d already connected", b.id, readerID)
	}
	if len(b.readers) >= b.maxReaders {
		return nil, fmt.Errorf("filter %d: reader capacity exceeded (max %d)", b.id, b.maxReaders)
	}

	r := queue.NewReader(q, b.log)
	b.readers[readerID] = r
	return r, nil
}

// Writer returns the Writer registered at writerID, if any.
func (b *Base) Writer(writerID int) (*queue.Writer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.writers[writerID]
	return w, ok
}

// Reader returns the Reader registered at readerID, if any.
func (b *Base) Reader(readerID int) (*queue.Reader, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.readers[readerID]
	return r, ok
}

// RemoveWriter unregisters a writer, e.g. after a failed or torn-down
// connection. It is a no-op if writerID is not registered.
func (b *Base) RemoveWriter(writerID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.writers, writerID)
}

// RemoveReader unregisters a reader, e.g. after a failed or torn-down
// connection. It is a no-op if readerID is not registered.
func (b *Base) RemoveReader(readerID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.readers, readerID)
}

// ReaderIDs returns the ids of all currently registered readers, in no
// particular order.
func (b *Base) ReaderIDs() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int, 0, len(b.readers))
	for id := range b.readers {
		ids = append(ids, id)
	}
	return ids
}

// WriterIDs returns the ids of all currently registered writers, in no
// particular order.
func (b *Base) WriterIDs() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int, 0, len(b.writers))
	for id := range b.writers {
		ids = append(ids, id)
	}
	return ids
}

// ProcessEvent dispatches name against this filter's event map, the
// per-filter codec configuration contract.
func (b *Base) ProcessEvent(name string, params map[string]any) map[string]any {
	return b.events.Dispatch(name, params)
}

// Log returns the filter's scoped logger, for use by embedding arities.
func (b *Base) Log() *slog.Logger { return b.log }
