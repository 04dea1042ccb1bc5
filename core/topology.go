package core

import (
	"github.com/signalsfoundry/isl-tasking-sim/kb"
	"github.com/signalsfoundry/isl-tasking-sim/model"
)

// Edge is an undirected link between two nodes, valid only for the step it
// was computed for. Edges are never persisted across steps; the topology
// engine recomputes the full set each step from deterministic rules.
type Edge struct {
	A, B model.NodeID
}

// Touches reports whether the edge has the node as an endpoint.
func (e Edge) Touches(n model.NodeID) bool { return e.A == n || e.B == n }

// HasGround reports whether either endpoint is a ground station.
func (e Edge) HasGround() bool { return e.A.IsGround() || e.B.IsGround() }

// Topology computes the active edge set for each discrete step. It holds no
// mutable state: the same (step, configuration) always yields the same
// edges, in the same order, which the event log's determinism depends on.
//
// Four rule families compose additively:
//   - duty-cycled nearest-neighbour ring links between satellites,
//   - rotating ground contact windows,
//   - rotating crosslinks approximating changing inter-plane geometry,
//   - extra duty-cycled links inside each constellation.
type Topology struct {
	kb *kb.ConstellationKB

	ringPeriod              int
	ringDuty                float64
	crosslinkWindow         int
	crosslinkPeriod         int
	constellationCrosslinks int
}

// NewTopology builds a topology engine over the constellation store.
func NewTopology(store *kb.ConstellationKB, params RunParams) *Topology {
	return &Topology{
		kb:                      store,
		ringPeriod:              params.RingPeriod,
		ringDuty:                params.RingDuty,
		crosslinkWindow:         params.CrosslinkWindow,
		crosslinkPeriod:         params.CrosslinkPeriod,
		constellationCrosslinks: params.ConstellationCrosslinks,
	}
}

// ringOpen reports whether a duty-cycled link with the given phase offset is
// open at step t.
func (tp *Topology) ringOpen(t, offset int) bool {
	period := tp.ringPeriod
	if period < 1 {
		period = 1
	}
	phase := (t + offset) % period
	return phase < int(tp.ringDuty*float64(period))
}

// ActiveEdges returns the undirected edges active at step t. The emission
// order is fixed: ring links by satellite index, ground windows by ground
// index, rotating crosslinks by window slot, then constellation extras.
func (tp *Topology) ActiveEdges(t int) []Edge {
	nSats := tp.kb.NumSatellites()
	var edges []Edge

	// Intermittent ring connectivity among satellites.
	for i := 0; i < nSats; i++ {
		if tp.ringOpen(t, i) {
			edges = append(edges, Edge{A: model.SatNode(i), B: model.SatNode((i + 1) % nSats)})
		}
	}

	// Ground stations see a rotating window of satellites. Windows are
	// offset per ground node to spread contacts around the ring.
	period := tp.crosslinkPeriod
	if period < 1 {
		period = 1
	}
	start := (t / period) % nSats
	groundOffset := nSats / tp.kb.NumGround()
	if groundOffset < 1 {
		groundOffset = 1
	}
	for g, ground := range tp.kb.GroundNodes() {
		gStart := (start + g*groundOffset) % nSats
		for k := 0; k < tp.crosslinkWindow; k++ {
			edges = append(edges, Edge{A: model.SatNode((gStart + k) % nSats), B: ground})
		}
	}

	// Rotating crosslinks: sat i connects to sat i+w inside the current
	// window, a cheap proxy for changing inter-plane geometry.
	w := tp.crosslinkWindow
	if w < 2 {
		w = 2
	}
	for k := 0; k < tp.crosslinkWindow; k++ {
		i := (start + k) % nSats
		edges = append(edges, Edge{A: model.SatNode(i), B: model.SatNode((i + w) % nSats)})
	}

	// Extra intra-constellation links mimic operator-owned crosslinks.
	if tp.constellationCrosslinks > 0 {
		for _, name := range tp.kb.ConstellationNames() {
			members := tp.kb.ConstellationMembers(name)
			if len(members) < 2 {
				continue
			}
			for extra := 0; extra < tp.constellationCrosslinks; extra++ {
				offset := extra + 1
				for idx := range members {
					aIdx := members[idx]
					bIdx := members[(idx+offset)%len(members)]
					if tp.ringOpen(t, aIdx+extra) {
						edges = append(edges, Edge{A: model.SatNode(aIdx), B: model.SatNode(bIdx)})
					}
				}
			}
		}
	}

	return edges
}
