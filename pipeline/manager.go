package pipeline

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/zsiec/mediagraph/filter"
	"github.com/zsiec/mediagraph/worker"
)

// Manager is the process-wide singleton registry and mutator for filters,
// workers, and paths. Its lifecycle straddles the entire program: it is
// explicitly created at startup and owns every filter and worker it is
// given, rather than being reached through hidden global state.
//
// mu serializes every graph mutation (AddFilter, AddPath, ConnectPath,
// RemovePath, ...) against each other and against the wire-facing event
// handlers below. It does not serialize against a filter's own Process()
// call — callers that need to edit a live filter's endpoints must disable
// its Worker first.
type Manager struct {
	log *slog.Logger

	mu      sync.Mutex
	filters map[int]filter.Node
	workers map[int]*workerEntry
	paths   map[int]*Path

	receiverID    int
	transmitterID int
	haveReceiver  bool
	haveTransmit  bool

	events filter.EventMap
}

// New creates an empty Manager. If log is nil, slog.Default() is used.
func New(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		log:     log.With("component", "pipeline-manager"),
		filters: make(map[int]filter.Node),
		workers: make(map[int]*workerEntry),
		paths:   make(map[int]*Path),
	}
	m.events = filter.EventMap{
		"getState":             m.getStateEvent,
		"reconfigAudioEncoder": m.reconfigAudioEncoderEvent,
		"addPath":              m.addPathEvent,
		"connectPath":          m.connectPathEvent,
		"removePath":           m.removePathEvent,
		"addWorkerToPath":      m.addWorkerToPathEvent,
	}
	return m
}

// Events returns the Manager's wire-facing event map, for wiring into a
// control.Controller as the fallback dispatch target when an incoming
// message carries no filterId.
func (m *Manager) Events() filter.EventMap { return m.events }

// SetReceiver records id as the fixed source-adapter filter for this
// process.
func (m *Manager) SetReceiver(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiverID = id
	m.haveReceiver = true
}

// SetTransmitter records id as the fixed sink-adapter filter for this
// process.
func (m *Manager) SetTransmitter(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transmitterID = id
	m.haveTransmit = true
}

// AddFilter registers f under id. It fails if id is already registered.
func (m *Manager) AddFilter(id int, f filter.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.filters[id]; exists {
		return fmt.Errorf("filter %d already registered", id)
	}
	m.filters[id] = f
	return nil
}

// GetFilter returns the filter registered at id, if any.
func (m *Manager) GetFilter(id int) (filter.Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.filters[id]
	return f, ok
}

// RemoveFilter unregisters id. It fails if any recorded Path still
// references it.
func (m *Manager) RemoveFilter(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.paths {
		for _, fid := range p.FilterIDs {
			if fid == id {
				return fmt.Errorf("filter %d: still referenced by path %d", id, p.ID)
			}
		}
	}
	delete(m.filters, id)
	return nil
}

// AddWorker registers w under id. It fails if id is already registered.
func (m *Manager) AddWorker(id int, w worker.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[id]; exists {
		return fmt.Errorf("worker %d already registered", id)
	}
	m.workers[id] = &workerEntry{w: w, paths: map[int]struct{}{}}
	return nil
}

// GetWorker returns the worker registered at id, if any.
func (m *Manager) GetWorker(id int) (worker.Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.workers[id]
	if !ok {
		return nil, false
	}
	return e.w, true
}

// AddWorkerToPath records that pathID's connect/disconnect lifecycle also
// covers workerID. A worker referenced by several paths is only stopped by
// RemovePath once none of its owning paths remain.
func (m *Manager) AddWorkerToPath(pathID, workerID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addWorkerToPathLocked(pathID, workerID)
}

func (m *Manager) addWorkerToPathLocked(pathID, workerID int) error {
	p, ok := m.paths[pathID]
	if !ok {
		return fmt.Errorf("path %d not registered", pathID)
	}
	e, ok := m.workers[workerID]
	if !ok {
		return fmt.Errorf("worker %d not registered", workerID)
	}
	e.paths[pathID] = struct{}{}
	for _, id := range p.WorkerIDs {
		if id == workerID {
			return nil
		}
	}
	p.WorkerIDs = append(p.WorkerIDs, workerID)
	return nil
}

// AddPath records p's definition. Every filter it references must already
// be registered; every worker it references must already be registered.
// AddPath does not connect anything — see ConnectPath.
func (m *Manager) AddPath(p *Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.paths[p.ID]; exists {
		return fmt.Errorf("path %d already registered", p.ID)
	}
	for _, fid := range p.FilterIDs {
		if _, ok := m.filters[fid]; !ok {
			return fmt.Errorf("path %d: filter %d not registered", p.ID, fid)
		}
	}
	m.paths[p.ID] = p
	for _, wid := range p.WorkerIDs {
		if err := m.addWorkerToPathLocked(p.ID, wid); err != nil {
			delete(m.paths, p.ID)
			return err
		}
	}
	return nil
}

// ConnectPath walks path id in order, connecting each consecutive pair via
// filter.Connect. If any link fails, every link already created by this
// call is rolled back before returning the error: connectPath is all-or-
// nothing. On success every worker referenced by the path is (re)started.
func (m *Manager) ConnectPath(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.paths[id]
	if !ok {
		return fmt.Errorf("path %d not registered", id)
	}

	connected := make([]Link, 0, len(p.Links))
	for _, link := range p.Links {
		origin, ok := m.filters[link.OriginID]
		if !ok {
			m.rollback(connected)
			return fmt.Errorf("connect path %d: filter %d not registered", id, link.OriginID)
		}
		dest, ok := m.filters[link.DestID]
		if !ok {
			m.rollback(connected)
			return fmt.Errorf("connect path %d: filter %d not registered", id, link.DestID)
		}
		if err := filter.Connect(origin, link.WriterID, dest, link.ReaderID); err != nil {
			m.rollback(connected)
			return fmt.Errorf("connect path %d: %w", id, err)
		}
		connected = append(connected, link)
	}

	for _, wid := range p.WorkerIDs {
		if e, ok := m.workers[wid]; ok {
			e.w.Start()
		}
	}
	return nil
}

// rollback disconnects every link in connected, in reverse order, using the
// filters already known to exist (ConnectPath only appends to connected
// after a successful Connect).
func (m *Manager) rollback(connected []Link) {
	for i := len(connected) - 1; i >= 0; i-- {
		link := connected[i]
		origin, ok1 := m.filters[link.OriginID]
		dest, ok2 := m.filters[link.DestID]
		if ok1 && ok2 {
			filter.Disconnect(origin, link.WriterID, dest, link.ReaderID)
		}
	}
}

// RemovePath stops every worker exclusively owned by path id, disconnects
// every link, then unregisters the path. Filters still referenced by other
// paths are retained, as are workers still owned by another path.
func (m *Manager) RemovePath(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.paths[id]
	if !ok {
		return fmt.Errorf("path %d not registered", id)
	}

	for _, wid := range p.WorkerIDs {
		e, ok := m.workers[wid]
		if !ok {
			continue
		}
		delete(e.paths, id)
		if len(e.paths) == 0 {
			e.w.Stop()
		}
	}

	for _, link := range p.Links {
		origin, ok1 := m.filters[link.OriginID]
		dest, ok2 := m.filters[link.DestID]
		if ok1 && ok2 {
			filter.Disconnect(origin, link.WriterID, dest, link.ReaderID)
		}
	}

	delete(m.paths, id)
	return nil
}

// newAdHocID derives a positive int id from a fresh UUID, for wire CRUD
// calls that omit a numeric id.
func newAdHocID() int {
	u := uuid.New()
	return int(binary.BigEndian.Uint64(u[:8]) & 0x7fffffffffffffff)
}
