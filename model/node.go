package model

import (
	"fmt"
	"strings"
)

// NodeID identifies a simulation node. Satellite nodes are named "sat-<i>"
// and ground nodes "ground-<i>"; the naming is stable for a whole run.
type NodeID string

// SatNode returns the canonical id of the i-th satellite.
func SatNode(i int) NodeID { return NodeID(fmt.Sprintf("sat-%d", i)) }

// GroundNode returns the canonical id of the i-th ground station.
func GroundNode(i int) NodeID { return NodeID(fmt.Sprintf("ground-%d", i)) }

// IsSatellite reports whether the node is a satellite.
func (n NodeID) IsSatellite() bool { return strings.HasPrefix(string(n), "sat-") }

// IsGround reports whether the node is a ground station.
func (n NodeID) IsGround() bool { return strings.HasPrefix(string(n), "ground-") }
