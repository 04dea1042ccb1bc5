package core

import (
	"fmt"
	"math/rand"

	"github.com/signalsfoundry/isl-tasking-sim/kb"
	"github.com/signalsfoundry/isl-tasking-sim/leo"
	"github.com/signalsfoundry/isl-tasking-sim/model"
	"github.com/signalsfoundry/isl-tasking-sim/timectrl"
)

// Drop reasons reported to on-drop handlers.
const (
	DropTTL        = "ttl"
	DropOutage     = "outage"
	DropCongestion = "congestion"
)

// DeliveryFunc observes a packet leaving the queue successfully.
type DeliveryFunc func(pkt model.Packet)

// DropFunc observes a packet being discarded with a reason.
type DropFunc func(pkt model.Packet, reason string)

type queuedPacket struct {
	pkt        model.Packet
	injectStep int
	ttlSteps   int
}

// Network is the store-and-forward model at the orbital network boundary.
// Packets queue until a path exists between their endpoints on the current
// topology; delivery can still be lost to outages or congestion. Handlers
// run synchronously, in registration order, so event ordering is a pure
// function of the run's inputs.
//
// All mutable state is owned by the run that constructed the network; there
// is no locking because there is no concurrency.
type Network struct {
	params RunParams
	rng    *rand.Rand
	kb     *kb.ConstellationKB
	topo   *Topology
	clock  *timectrl.StepClock

	queue      []queuedPacket
	onDelivery []DeliveryFunc
	onDrop     []DropFunc
}

// NewNetwork builds the network model. When satellites is nil a synthetic
// population of params.NSats records is sampled from rng at construction
// time; per-step behaviour never draws construction randomness again.
func NewNetwork(params RunParams, satellites []leo.SatelliteRecord, rng *rand.Rand, clock *timectrl.StepClock) (*Network, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("network: rng must be provided (runs own their randomness)")
	}
	if clock == nil {
		return nil, fmt.Errorf("network: clock must be provided")
	}
	if satellites == nil {
		satellites = leo.SampleSynthetic(params.NSats, rng)
	}

	store, err := kb.New(satellites, params.NGround)
	if err != nil {
		return nil, err
	}

	return &Network{
		params: params,
		rng:    rng,
		kb:     store,
		topo:   NewTopology(store, params),
		clock:  clock,
	}, nil
}

// KB exposes the constellation store backing the network.
func (n *Network) KB() *kb.ConstellationKB { return n.kb }

// OnDelivery registers a delivery handler.
func (n *Network) OnDelivery(fn DeliveryFunc) { n.onDelivery = append(n.onDelivery, fn) }

// OnDrop registers a drop handler.
func (n *Network) OnDrop(fn DropFunc) { n.onDrop = append(n.onDrop, fn) }

// Now returns the current discrete timestep.
func (n *Network) Now() int { return n.clock.Step() }

// ActiveLinks returns the edges active at the current step.
func (n *Network) ActiveLinks() []Edge { return n.topo.ActiveEdges(n.Now()) }

// NodePositions returns every node's projected position at the current step.
func (n *Network) NodePositions() map[model.NodeID]model.Point {
	return n.kb.NodePositions(n.Now())
}

// InjectPacket enqueues a packet. Delivery is attempted on the next Step so
// queueing delay is never zero.
func (n *Network) InjectPacket(pkt model.Packet) {
	ttl := pkt.Meta.TTLSteps
	if ttl <= 0 {
		ttl = n.params.TTLSteps
	}
	n.queue = append(n.queue, queuedPacket{pkt: pkt, injectStep: n.Now(), ttlSteps: ttl})
}

// QueueLen returns the number of packets currently queued.
func (n *Network) QueueLen() int { return len(n.queue) }

// Step advances the network by count steps, attempting delivery of queued
// packets after each advance.
func (n *Network) Step(count int) {
	for i := 0; i < count; i++ {
		n.clock.Advance(1)
		n.processQueue()
	}
}

// processQueue resolves every queued packet, in enqueue order, against the
// topology at the current step. The per-packet check order is a protocol
// decision and must not be rearranged: TTL expiry first, then reachability,
// then impairment draws, then delivery. Reordering changes which drop
// reason borderline packets are attributed.
func (n *Network) processQueue() {
	if len(n.queue) == 0 {
		return
	}

	now := n.Now()
	edges := n.topo.ActiveEdges(now)
	var keep []queuedPacket

	// Handlers may inject new packets; those land on n.queue and are
	// resolved within this same pass, matching enqueue order.
	for i := 0; i < len(n.queue); i++ {
		qd := n.queue[i]

		if now-qd.injectStep > qd.ttlSteps {
			n.drop(qd.pkt, DropTTL)
			continue
		}

		if !hasPath(qd.pkt.Src, qd.pkt.Dst, edges) {
			keep = append(keep, qd)
			continue
		}

		if n.rng.Float64() < n.params.OutageP {
			n.drop(qd.pkt, DropOutage)
			continue
		}
		if n.rng.Float64() < n.params.CongestionP {
			n.drop(qd.pkt, DropCongestion)
			continue
		}

		for _, fn := range n.onDelivery {
			fn(qd.pkt)
		}
	}

	n.queue = keep
}

func (n *Network) drop(pkt model.Packet, reason string) {
	for _, fn := range n.onDrop {
		fn(pkt, reason)
	}
}

// hasPath runs BFS reachability over an undirected edge list.
func hasPath(src, dst model.NodeID, edges []Edge) bool {
	if src == dst {
		return true
	}

	nbrs := make(map[model.NodeID][]model.NodeID, len(edges)*2)
	for _, e := range edges {
		nbrs[e.A] = append(nbrs[e.A], e.B)
		nbrs[e.B] = append(nbrs[e.B], e.A)
	}

	frontier := []model.NodeID{src}
	seen := map[model.NodeID]struct{}{src: {}}
	for len(frontier) > 0 {
		u := frontier[0]
		frontier = frontier[1:]
		for _, v := range nbrs[u] {
			if v == dst {
				return true
			}
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				frontier = append(frontier, v)
			}
		}
	}
	return false
}
