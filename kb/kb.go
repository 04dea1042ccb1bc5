// Package kb holds the constellation knowledge base: the static node set a
// simulation run is built from, plus the deterministic position model the
// topology and validation layers query each step.
package kb

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/isl-tasking-sim/leo"
	"github.com/signalsfoundry/isl-tasking-sim/model"
)

// ConstellationKB is an immutable store of the satellites and ground
// stations participating in a run. It is built once at construction; every
// query afterwards is a pure function of (step, static data), which is what
// keeps runs reproducible.
type ConstellationKB struct {
	satellites []leo.SatelliteRecord
	satNodes   []model.NodeID
	groundSet  []model.NodeID
	nodes      []model.NodeID

	// constellationNames preserves first-appearance order so every
	// iteration over groups is deterministic.
	constellationNames []string
	constellations     map[string][]int

	motion []leo.MotionModel

	minAltKm float64
	maxAltKm float64
}

// New builds a knowledge base from satellite records and a ground-station
// count. Missing satellites or ground stations are configuration errors and
// fail immediately rather than producing misleading zero-valued metrics.
func New(satellites []leo.SatelliteRecord, nGround int) (*ConstellationKB, error) {
	if len(satellites) == 0 {
		return nil, fmt.Errorf("constellation kb: no satellites")
	}
	if nGround <= 0 {
		return nil, fmt.Errorf("constellation kb: need at least one ground station, got %d", nGround)
	}

	k := &ConstellationKB{
		satellites:     satellites,
		constellations: make(map[string][]int),
		minAltKm:       math.Inf(1),
		maxAltKm:       math.Inf(-1),
	}

	for i, sat := range satellites {
		k.satNodes = append(k.satNodes, model.SatNode(i))
		if _, seen := k.constellations[sat.Constellation]; !seen {
			k.constellationNames = append(k.constellationNames, sat.Constellation)
		}
		k.constellations[sat.Constellation] = append(k.constellations[sat.Constellation], i)
		k.motion = append(k.motion, leo.NewMotionModel(sat))

		if sat.AltitudeKm < k.minAltKm {
			k.minAltKm = sat.AltitudeKm
		}
		if sat.AltitudeKm > k.maxAltKm {
			k.maxAltKm = sat.AltitudeKm
		}
	}
	for g := 0; g < nGround; g++ {
		k.groundSet = append(k.groundSet, model.GroundNode(g))
	}

	k.nodes = append(k.nodes, k.satNodes...)
	k.nodes = append(k.nodes, k.groundSet...)
	return k, nil
}

// NumSatellites returns the satellite count.
func (k *ConstellationKB) NumSatellites() int { return len(k.satellites) }

// NumGround returns the ground-station count.
func (k *ConstellationKB) NumGround() int { return len(k.groundSet) }

// Satellite returns the record backing the i-th satellite.
func (k *ConstellationKB) Satellite(i int) leo.SatelliteRecord { return k.satellites[i] }

// SatNodes returns the satellite node ids in index order.
func (k *ConstellationKB) SatNodes() []model.NodeID { return k.satNodes }

// GroundNodes returns the ground node ids in index order.
func (k *ConstellationKB) GroundNodes() []model.NodeID { return k.groundSet }

// Nodes returns all node ids, satellites first.
func (k *ConstellationKB) Nodes() []model.NodeID { return k.nodes }

// ConstellationNames returns operator tags in first-appearance order.
func (k *ConstellationKB) ConstellationNames() []string { return k.constellationNames }

// ConstellationMembers returns the satellite indices sharing a tag.
func (k *ConstellationKB) ConstellationMembers(name string) []int { return k.constellations[name] }

// NodePositions projects every node into the normalized plane for step t.
// Satellites ride a ring whose phase advances with their real mean motion;
// altitude spreads them across slightly different radii. Ground stations
// sit on a lower arc.
func (k *ConstellationKB) NodePositions(t int) map[model.NodeID]model.Point {
	positions := make(map[model.NodeID]model.Point, len(k.nodes))

	n := len(k.satellites)
	altSpan := math.Max(1e-3, k.maxAltKm-k.minAltKm)
	for i, sat := range k.satellites {
		meanMotion := math.Max(0.01, sat.MeanMotionRevPerDay)
		omega := meanMotion * 2 * math.Pi / 86400.0
		theta := 2*math.Pi*(float64(i)/float64(n)) + omega*float64(t)
		inclination := sat.InclinationDeg * math.Pi / 180.0
		radius := 1.0 + 0.08*(sat.AltitudeKm-k.minAltKm)/altSpan

		positions[k.satNodes[i]] = model.Point{
			X: radius * math.Cos(theta),
			Y: radius * math.Sin(theta) * math.Cos(inclination),
		}
	}

	for g, node := range k.groundSet {
		theta := 2 * math.Pi * (float64(g) / float64(len(k.groundSet)))
		positions[node] = model.Point{
			X: 1.05 * math.Cos(theta),
			Y: -1.2 + 0.05*math.Sin(theta),
		}
	}
	return positions
}

// ECEFPositionKm returns the SGP4-propagated position of satellite i at the
// given instant. The second return is false for records without TLE lines.
func (k *ConstellationKB) ECEFPositionKm(i int, simTime time.Time) (model.Vec3, bool) {
	if i < 0 || i >= len(k.motion) || k.motion[i] == nil {
		return model.Vec3{}, false
	}
	return k.motion[i].PositionECEFKm(simTime), true
}
