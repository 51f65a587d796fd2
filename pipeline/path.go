// Package pipeline implements the mutable graph of filters, workers, and
// paths that the Controller drives: Manager is the process-wide singleton
// registry, Path is an ordered chain of filters defining one data-flow
// route through it.
package pipeline

import "github.com/zsiec/mediagraph/worker"

// Link is one (origin, writer) -> (dest, reader) hop within a Path.
type Link struct {
	OriginID int
	WriterID int
	DestID   int
	ReaderID int
}

// Path is an ordered chain of filter ids — origin, zero or more
// intermediates, destination — plus the writer/reader ids chosen at each
// hop and the set of workers that must be (re)started when the path is
// connected. A worker may be shared across paths; Manager tracks exclusive
// ownership separately so removePath only stops workers nothing else still
// needs.
type Path struct {
	ID int

	// FilterIDs lists the path's filters in data-flow order.
	FilterIDs []int
	// Links enumerates the hops between consecutive filters; len(Links) ==
	// len(FilterIDs)-1.
	Links []Link
	// WorkerIDs lists every worker referenced by this path, for
	// (re)starting on connect and candidate stopping on removal.
	WorkerIDs []int
}

// workerEntry tracks a registered worker plus the paths currently
// referencing it, so Manager can tell whether removing one path leaves the
// worker still owned by another.
type workerEntry struct {
	w     worker.Worker
	paths map[int]struct{}
}
