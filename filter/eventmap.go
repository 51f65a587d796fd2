package filter

// EventHandler implements one recognized control-channel action. It
// returns the handler-supplied response fields, or an error which is
// reported to the caller as {"error": "<message>"}.
type EventHandler func(params map[string]any) (map[string]any, error)

// EventMap is the string-keyed dispatch table backing processEvent. The
// wire contract is string-keyed by design; concrete filters build their
// EventMap from a small, enumerable set of recognized actions (e.g. the
// audio encoder's "configure"), so the string keying never leaks past this
// one dispatch point.
type EventMap map[string]EventHandler

// Dispatch runs the handler registered for name, or reports
// {"error": "unknown action"} if there isn't one. On success the
// handler's fields are merged into the response alongside {"error": nil}.
func (m EventMap) Dispatch(name string, params map[string]any) map[string]any {
	h, ok := m[name]
	if !ok {
		return map[string]any{"error": "unknown action"}
	}

	out, err := h(params)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	if out == nil {
		out = map[string]any{}
	}
	out["error"] = nil
	return out
}
