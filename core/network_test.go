package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/signalsfoundry/isl-tasking-sim/model"
	"github.com/signalsfoundry/isl-tasking-sim/timectrl"
)

func netParams() RunParams {
	params := topoParams()
	params.RingDuty = 1.0
	params.TTLSteps = 10
	params.OutageP = 0
	params.CongestionP = 0
	return params
}

func newTestNetwork(t *testing.T, params RunParams) *Network {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	clock := timectrl.NewStepClock(time.Unix(0, 0), timectrl.DefaultStepDuration)
	net, err := NewNetwork(params, nil, rng, clock)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	return net
}

func TestNetworkDeliversWhenPathExists(t *testing.T) {
	net := newTestNetwork(t, netParams())

	var delivered []model.Packet
	net.OnDelivery(func(pkt model.Packet) { delivered = append(delivered, pkt) })

	net.InjectPacket(model.Packet{
		Src:     model.SatNode(5),
		Dst:     model.GroundNode(0),
		Payload: []byte("receipt"),
	})
	net.Step(1)

	if len(delivered) != 1 {
		t.Fatalf("delivered = %d packets, want 1", len(delivered))
	}
	if string(delivered[0].Payload) != "receipt" {
		t.Fatalf("payload = %q, want %q", delivered[0].Payload, "receipt")
	}
	if net.QueueLen() != 0 {
		t.Fatalf("queue = %d after delivery, want 0", net.QueueLen())
	}
}

func TestNetworkKeepsUnreachablePacketsQueued(t *testing.T) {
	params := netParams()
	params.CrosslinkWindow = 0 // no ground contacts at all
	net := newTestNetwork(t, params)

	var drops []string
	net.OnDrop(func(_ model.Packet, reason string) { drops = append(drops, reason) })

	net.InjectPacket(model.Packet{
		Src:  model.SatNode(0),
		Dst:  model.GroundNode(0),
		Meta: model.PacketMeta{TTLSteps: 2},
	})

	net.Step(2)
	if net.QueueLen() != 1 {
		t.Fatalf("queue = %d within TTL, want 1", net.QueueLen())
	}
	if len(drops) != 0 {
		t.Fatalf("drops = %v within TTL, want none", drops)
	}

	// One more step puts the packet strictly past its TTL.
	net.Step(1)
	if net.QueueLen() != 0 {
		t.Fatalf("queue = %d after expiry, want 0", net.QueueLen())
	}
	if len(drops) != 1 || drops[0] != DropTTL {
		t.Fatalf("drops = %v, want [%s]", drops, DropTTL)
	}
}

func TestNetworkDropPrecedence(t *testing.T) {
	outage := netParams()
	outage.OutageP = 1
	outage.CongestionP = 1
	net := newTestNetwork(t, outage)

	var drops []string
	net.OnDrop(func(_ model.Packet, reason string) { drops = append(drops, reason) })
	net.InjectPacket(model.Packet{Src: model.SatNode(0), Dst: model.GroundNode(0)})
	net.Step(1)

	// Outage is drawn before congestion, so with both certain the packet
	// is always lost to the outage.
	if len(drops) != 1 || drops[0] != DropOutage {
		t.Fatalf("drops = %v, want [%s]", drops, DropOutage)
	}

	congested := netParams()
	congested.CongestionP = 1
	net = newTestNetwork(t, congested)
	drops = nil
	net.OnDrop(func(_ model.Packet, reason string) { drops = append(drops, reason) })
	net.InjectPacket(model.Packet{Src: model.SatNode(0), Dst: model.GroundNode(0)})
	net.Step(1)

	if len(drops) != 1 || drops[0] != DropCongestion {
		t.Fatalf("drops = %v, want [%s]", drops, DropCongestion)
	}
}

func TestNetworkRequiresRngAndClock(t *testing.T) {
	if _, err := NewNetwork(netParams(), nil, nil, timectrl.NewStepClock(time.Unix(0, 0), time.Minute)); err == nil {
		t.Fatal("NewNetwork accepted nil rng")
	}
	if _, err := NewNetwork(netParams(), nil, rand.New(rand.NewSource(1)), nil); err == nil {
		t.Fatal("NewNetwork accepted nil clock")
	}
}

func TestHasPath(t *testing.T) {
	edges := []Edge{
		{A: model.SatNode(0), B: model.SatNode(1)},
		{A: model.SatNode(1), B: model.GroundNode(0)},
	}
	if !hasPath(model.SatNode(0), model.GroundNode(0), edges) {
		t.Fatal("expected path sat-0 -> ground-0")
	}
	if hasPath(model.SatNode(2), model.GroundNode(0), edges) {
		t.Fatal("unexpected path from isolated sat-2")
	}
	if !hasPath(model.SatNode(3), model.SatNode(3), nil) {
		t.Fatal("node should always reach itself")
	}
}
