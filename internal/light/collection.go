package light

import "sort"

// Light is a device as reported by the transport.
type Light struct {
	Name      string `json:"name"`
	State     State  `json:"state"`
	Reachable bool   `json:"reachable"`
}

// IsActive reports whether the light is powered and reachable.
func (l Light) IsActive() bool {
	return l.Reachable && l.State.On != nil && *l.State.On
}

// Collection is a snapshot of lights keyed by device id.
type Collection map[DeviceID]Light

// Active returns the subset of lights that are on and reachable.
func (c Collection) Active() Collection {
	out := make(Collection, len(c))
	for id, l := range c {
		if l.IsActive() {
			out[id] = l
		}
	}
	return out
}

// IDs returns the device ids in ascending order.
func (c Collection) IDs() []DeviceID {
	ids := make([]DeviceID, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Filter keeps only the given ids. An empty list keeps everything.
func (c Collection) Filter(ids []DeviceID) Collection {
	if len(ids) == 0 {
		return c
	}
	out := make(Collection, len(ids))
	for _, id := range ids {
		if l, ok := c[id]; ok {
			out[id] = l
		}
	}
	return out
}

// StateOf returns the state of a device, or false if it's not in the snapshot.
func (c Collection) StateOf(id DeviceID) (State, bool) {
	l, ok := c[id]
	if !ok {
		return State{}, false
	}
	return l.State, true
}
