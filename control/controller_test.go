package control

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/zsiec/mediagraph/filter"
)

type fakeLookup struct {
	filters map[int]filter.Node
}

func (l *fakeLookup) GetFilter(id int) (filter.Node, bool) {
	f, ok := l.filters[id]
	return f, ok
}

type fakeFilterNode struct {
	filter.Node
	id     filter.ID
	events filter.EventMap
}

func (f *fakeFilterNode) ID() filter.ID { return f.id }
func (f *fakeFilterNode) ProcessEvent(name string, params map[string]any) map[string]any {
	return f.events.Dispatch(name, params)
}

func startTestController(t *testing.T, lookup FilterLookup, fallback filter.EventMap) (addr string, stop func()) {
	t.Helper()
	c := New("127.0.0.1:0", lookup, fallback, nil)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	c.listener = l
	c.addr = l.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go c.handleConn(ctx, conn)
		}
	}()

	return l.Addr().String(), func() {
		cancel()
		l.Close()
	}
}

func roundTrip(t *testing.T, addr string, req map[string]any) map[string]any {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var resp map[string]any
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestDispatchRoutesByFilterID(t *testing.T) {
	t.Parallel()

	f := &fakeFilterNode{
		id: 5,
		events: filter.EventMap{
			"ping": func(params map[string]any) (map[string]any, error) {
				return map[string]any{"pong": true}, nil
			},
		},
	}
	lookup := &fakeLookup{filters: map[int]filter.Node{5: f}}
	addr, stop := startTestController(t, lookup, filter.EventMap{})
	defer stop()

	resp := roundTrip(t, addr, map[string]any{"action": "ping", "filterId": 5})
	if resp["pong"] != true {
		t.Fatalf("expected pong=true, got %v", resp)
	}
	if resp["error"] != nil {
		t.Fatalf("expected nil error, got %v", resp["error"])
	}
}

func TestDispatchFallsBackWithoutFilterID(t *testing.T) {
	t.Parallel()

	called := false
	fallback := filter.EventMap{
		"getState": func(params map[string]any) (map[string]any, error) {
			called = true
			return map[string]any{"filters": []int{}}, nil
		},
	}
	lookup := &fakeLookup{filters: map[int]filter.Node{}}
	addr, stop := startTestController(t, lookup, fallback)
	defer stop()

	roundTrip(t, addr, map[string]any{"action": "getState"})
	if !called {
		t.Fatal("expected fallback handler to be invoked")
	}
}

func TestDispatchUnknownActionReturnsError(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{filters: map[int]filter.Node{}}
	addr, stop := startTestController(t, lookup, filter.EventMap{})
	defer stop()

	resp := roundTrip(t, addr, map[string]any{"action": "doesNotExist"})
	if resp["error"] != "unknown action" {
		t.Fatalf("expected unknown action error, got %v", resp["error"])
	}
}

func TestMalformedJSONClosesConnection(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{filters: map[int]filter.Node{}}
	addr, stop := startTestController(t, lookup, filter.EventMap{})
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("{not valid json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	if err == nil {
		t.Fatal("expected connection to be closed after malformed JSON")
	}
}
