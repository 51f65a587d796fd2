// Package control implements Controller, the external collaborator that
// exposes the PipelineManager and individual filters over a TCP control
// channel: one connection at a time, self-delimiting JSON request/response
// pairs.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/zsiec/mediagraph/filter"
)

// FilterLookup is the subset of pipeline.Manager the Controller needs to
// route a message carrying a filterId. Accepting an interface here keeps
// control decoupled from the concrete Manager type.
type FilterLookup interface {
	GetFilter(id int) (filter.Node, bool)
}

// request is the wire shape of one control-channel message:
// { action: string, filterId?: int, params?: object }.
type request struct {
	Action   string         `json:"action"`
	FilterID *int           `json:"filterId,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// Controller accepts control-channel connections on a TCP listening socket.
// Only one connection is served at a time; a second concurrent dial simply
// queues behind Accept until the first connection closes.
type Controller struct {
	log      *slog.Logger
	addr     string
	lookup   FilterLookup
	fallback filter.EventMap

	mu       sync.Mutex
	listener net.Listener
}

// New creates a Controller listening on addr. lookup resolves a message's
// filterId to its target filter's event map; fallback handles messages
// with no filterId, or with one that does not resolve (normally
// pipeline.Manager.Events(): getState, reconfigAudioEncoder, path
// add/connect/remove and addWorkerToPath; it has no actions that add or
// remove filters or workers). If log is nil,
// slog.Default() is used.
func New(addr string, lookup FilterLookup, fallback filter.EventMap, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		log:      log.With("component", "control-controller"),
		addr:     addr,
		lookup:   lookup,
		fallback: fallback,
	}
}

// ListenAndServe opens the listening socket and accepts connections until
// ctx is cancelled. Connections are served one at a time, in the accept
// loop's own goroutine, so a second dial while one is active simply queues
// behind Accept rather than being handled concurrently.
func (c *Controller) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("control listen on %s: %w", c.addr, err)
	}
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
	c.log.Info("listening", "addr", c.addr)

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("accept error", "error", err)
			continue
		}
		c.handleConn(ctx, conn)
	}
}

// Close closes the listening socket, if open.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return nil
	}
	return c.listener.Close()
}

// handleConn serves one connection to completion: decode a request,
// dispatch, respond; repeat until the peer disconnects or sends malformed
// JSON, which closes the connection.
func (c *Controller) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	c.log.Debug("connection accepted", "remote", remote)

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		if ctx.Err() != nil {
			return
		}

		var req request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Debug("malformed request, closing connection", "remote", remote, "error", err)
			}
			return
		}

		resp := c.dispatch(req)
		if err := enc.Encode(resp); err != nil {
			c.log.Debug("response encode failed, closing connection", "remote", remote, "error", err)
			return
		}
	}
}

// dispatch routes req to its target event map: if filterId is present and
// resolves to a registered filter, dispatch against that filter's event
// map; otherwise dispatch against the fallback (PipelineManager) event map.
func (c *Controller) dispatch(req request) map[string]any {
	if req.FilterID != nil {
		if f, ok := c.lookup.GetFilter(*req.FilterID); ok {
			return f.ProcessEvent(req.Action, req.Params)
		}
	}
	return c.fallback.Dispatch(req.Action, req.Params)
}
