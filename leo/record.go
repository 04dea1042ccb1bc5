// Package leo samples the LEO satellite records the simulator consumes.
// Records come from a TLE catalog file when one is available, with a
// synthetic fallback for offline runs.
package leo

import (
	"math"
	"strings"
)

const (
	// EarthRadiusKm is the equatorial radius used for altitude conversion.
	EarthRadiusKm = 6378.137
	// muKm3S2 is the standard gravitational parameter of Earth.
	muKm3S2 = 398600.4418
)

// SatelliteRecord is the per-satellite input the simulator consumes. Only
// the fields below matter to connectivity; everything else about an orbit
// stays outside the core.
type SatelliteRecord struct {
	Name                string
	NoradID             string
	Constellation       string
	MeanMotionRevPerDay float64
	InclinationDeg      float64
	AltitudeKm          float64

	// TLELine1/TLELine2 are retained when the record came from a real
	// catalog, enabling SGP4 cross-checks and ECEF positioning.
	TLELine1 string
	TLELine2 string
}

var constellationPrefixes = []string{
	"STARLINK", "ONEWEB", "IRIDIUM", "GLOBALSTAR", "ORBCOMM", "SWARM", "PLANET", "SPIRE",
}

// ConstellationFromName infers an operator tag from a satellite name.
// Unrecognized names fall into "OTHER".
func ConstellationFromName(name string) string {
	upper := strings.ToUpper(name)
	for _, prefix := range constellationPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return prefix
		}
	}
	for _, tag := range []string{"STARLINK", "ONEWEB", "IRIDIUM"} {
		if strings.Contains(upper, tag) {
			return tag
		}
	}
	return "OTHER"
}

// MeanMotionToAltitudeKm converts a mean motion in revolutions per day to a
// circular-orbit altitude above the Earth's surface.
func MeanMotionToAltitudeKm(revPerDay float64) float64 {
	radPerSec := revPerDay * 2 * math.Pi / 86400.0
	if radPerSec <= 0 {
		return 0
	}
	semiMajorKm := math.Cbrt(muKm3S2 / (radPerSec * radPerSec))
	return math.Max(0, semiMajorKm-EarthRadiusKm)
}
