package core

import "github.com/signalsfoundry/isl-tasking-sim/model"

// flood tracks which satellites hold a copy of one task's token and at what
// hop distance from the dispatch point. Arrival order is preserved so
// validation visits holders deterministically; the first recorded hop count
// for a satellite wins and never decreases.
type flood struct {
	order []model.NodeID
	hops  map[model.NodeID]int
}

func newFlood() *flood {
	return &flood{hops: make(map[model.NodeID]int)}
}

// add records a holder at the given hop count if the satellite is not
// already a holder. Returns true when the holder is new.
func (f *flood) add(sat model.NodeID, hop int) bool {
	if _, ok := f.hops[sat]; ok {
		return false
	}
	f.order = append(f.order, sat)
	f.hops[sat] = hop
	return true
}

// hop returns the recorded hop count for a holder.
func (f *flood) hop(sat model.NodeID) (int, bool) {
	h, ok := f.hops[sat]
	return h, ok
}

// propagate runs one step of flooding over the active inter-satellite
// edges. Reads come from the pre-step holder set and writes land in the
// post-step set, so a satellite reached this step does not forward until
// the next one. onForward fires for every forwarding attempt by an eligible
// holder, including re-offers to satellites that already hold the token;
// that is what the ISL message count measures.
func (f *flood) propagate(edges []Edge, maxHops int, onForward func(src, dst model.NodeID)) {
	before := f.hops
	after := make(map[model.NodeID]int, len(before))
	order := append([]model.NodeID(nil), f.order...)
	for sat, hop := range before {
		after[sat] = hop
	}

	addIfAbsent := func(sat model.NodeID, hop int) {
		if _, ok := after[sat]; !ok {
			after[sat] = hop
			order = append(order, sat)
		}
	}

	for _, e := range edges {
		if e.HasGround() {
			continue
		}
		if hop, ok := before[e.A]; ok && hop < maxHops {
			addIfAbsent(e.B, hop+1)
			onForward(e.A, e.B)
		}
		if hop, ok := before[e.B]; ok && hop < maxHops {
			addIfAbsent(e.A, hop+1)
			onForward(e.B, e.A)
		}
	}

	f.hops = after
	f.order = order
}

// floodTable tracks the active floods in dispatch order.
type floodTable struct {
	order  []int
	floods map[int]*flood
}

func newFloodTable() *floodTable {
	return &floodTable{floods: make(map[int]*flood)}
}

// dispatch seeds a flood for the task at the given satellite with hop 0.
func (t *floodTable) dispatch(taskID int, sat model.NodeID) {
	f, ok := t.floods[taskID]
	if !ok {
		f = newFlood()
		t.floods[taskID] = f
		t.order = append(t.order, taskID)
	}
	f.add(sat, 0)
}

// active reports whether the task has a live flood.
func (t *floodTable) active(taskID int) bool {
	_, ok := t.floods[taskID]
	return ok
}

// get returns the flood for a task id.
func (t *floodTable) get(taskID int) *flood { return t.floods[taskID] }

// taskIDs returns live flood ids in dispatch order.
func (t *floodTable) taskIDs() []int {
	ids := make([]int, 0, len(t.order))
	for _, id := range t.order {
		if _, ok := t.floods[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// remove tears a flood down, ending propagation and validation for it.
func (t *floodTable) remove(taskID int) {
	delete(t.floods, taskID)
}
