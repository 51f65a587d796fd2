package pipeline

import "fmt"

// getStateEvent reports a point-in-time summary of the registry: how many
// filters, workers, and paths exist and their ids. It takes no params.
func (m *Manager) getStateEvent(params map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filterIDs := make([]int, 0, len(m.filters))
	for id := range m.filters {
		filterIDs = append(filterIDs, id)
	}
	workerIDs := make([]int, 0, len(m.workers))
	for id := range m.workers {
		workerIDs = append(workerIDs, id)
	}
	pathIDs := make([]int, 0, len(m.paths))
	for id := range m.paths {
		pathIDs = append(pathIDs, id)
	}

	out := map[string]any{
		"filters": filterIDs,
		"workers": workerIDs,
		"paths":   pathIDs,
	}
	if m.haveReceiver {
		out["receiverId"] = m.receiverID
	}
	if m.haveTransmit {
		out["transmitterId"] = m.transmitterID
	}
	return out, nil
}

// reconfigAudioEncoderEvent forwards a "configure" call to the audio
// encoder filter named by params["filterId"], passing the remaining
// params through unchanged. It exists as a PipelineManager-level
// convenience because a control message with no filterId would otherwise
// have no way to address an individual filter's event map.
func (m *Manager) reconfigAudioEncoderEvent(params map[string]any) (map[string]any, error) {
	fid, ok := intParam(params, "filterId")
	if !ok {
		return nil, fmt.Errorf("reconfigAudioEncoder: missing filterId")
	}

	m.mu.Lock()
	f, ok := m.filters[fid]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("reconfigAudioEncoder: filter %d not registered", fid)
	}

	configureParams := make(map[string]any, len(params))
	for k, v := range params {
		if k == "filterId" {
			continue
		}
		configureParams[k] = v
	}

	result := f.ProcessEvent("configure", configureParams)
	if errVal, _ := result["error"].(string); errVal != "" {
		return nil, fmt.Errorf("reconfigAudioEncoder: %s", errVal)
	}
	return result, nil
}

// addPathEvent builds and registers a Path from wire params:
//
//	{ id?: int, filterIds: []int, writerIds: []int, readerIds: []int, workerIds?: []int }
//
// len(writerIds) and len(readerIds) must equal len(filterIds)-1, one per
// hop. If id is omitted or zero, a fresh id is generated.
func (m *Manager) addPathEvent(params map[string]any) (map[string]any, error) {
	filterIDs, err := intSliceParam(params, "filterIds")
	if err != nil {
		return nil, err
	}
	if len(filterIDs) < 2 {
		return nil, fmt.Errorf("addPath: filterIds must have at least 2 entries")
	}
	writerIDs, err := intSliceParam(params, "writerIds")
	if err != nil {
		return nil, err
	}
	readerIDs, err := intSliceParam(params, "readerIds")
	if err != nil {
		return nil, err
	}
	hops := len(filterIDs) - 1
	if len(writerIDs) != hops || len(readerIDs) != hops {
		return nil, fmt.Errorf("addPath: writerIds/readerIds must have %d entries", hops)
	}

	id, ok := intParam(params, "id")
	if !ok || id == 0 {
		id = newAdHocID()
	}

	links := make([]Link, hops)
	for i := 0; i < hops; i++ {
		links[i] = Link{
			OriginID: filterIDs[i],
			WriterID: writerIDs[i],
			DestID:   filterIDs[i+1],
			ReaderID: readerIDs[i],
		}
	}

	workerIDs, _ := intSliceParam(params, "workerIds")

	p := &Path{ID: id, FilterIDs: filterIDs, Links: links, WorkerIDs: workerIDs}
	if err := m.AddPath(p); err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

// connectPathEvent connects the path named by params["id"].
func (m *Manager) connectPathEvent(params map[string]any) (map[string]any, error) {
	id, ok := intParam(params, "id")
	if !ok {
		return nil, fmt.Errorf("connectPath: missing id")
	}
	if err := m.ConnectPath(id); err != nil {
		return nil, err
	}
	return nil, nil
}

// removePathEvent removes the path named by params["id"].
func (m *Manager) removePathEvent(params map[string]any) (map[string]any, error) {
	id, ok := intParam(params, "id")
	if !ok {
		return nil, fmt.Errorf("removePath: missing id")
	}
	if err := m.RemovePath(id); err != nil {
		return nil, err
	}
	return nil, nil
}

// addWorkerToPathEvent records that params["workerId"] belongs to
// params["pathId"].
func (m *Manager) addWorkerToPathEvent(params map[string]any) (map[string]any, error) {
	pathID, ok := intParam(params, "pathId")
	if !ok {
		return nil, fmt.Errorf("addWorkerToPath: missing pathId")
	}
	workerID, ok := intParam(params, "workerId")
	if !ok {
		return nil, fmt.Errorf("addWorkerToPath: missing workerId")
	}
	if err := m.AddWorkerToPath(pathID, workerID); err != nil {
		return nil, err
	}
	return nil, nil
}

// intParam extracts an int-valued param, tolerating the float64 that
// encoding/json produces for a bare JSON number.
func intParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// intSliceParam extracts a []int-valued param from the []any that
// encoding/json produces for a JSON array.
func intSliceParam(params map[string]any, key string) ([]int, error) {
	v, ok := params[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected an array", key)
	}
	out := make([]int, 0, len(raw))
	for _, elem := range raw {
		switch n := elem.(type) {
		case int:
			out = append(out, n)
		case float64:
			out = append(out, int(n))
		default:
			return nil, fmt.Errorf("%s: expected numbers", key)
		}
	}
	return out, nil
}
