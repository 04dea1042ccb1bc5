package leo

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/isl-tasking-sim/model"
)

// MotionModel yields a satellite position for a given simulation instant.
type MotionModel interface {
	PositionECEFKm(simTime time.Time) model.Vec3
}

// SGP4Motion propagates a TLE pair with SGP4. Positions are ECEF in
// kilometres.
type SGP4Motion struct {
	sat satellite.Satellite
}

// NewSGP4Motion constructs an orbital model from TLE lines.
func NewSGP4Motion(line1, line2 string) *SGP4Motion {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &SGP4Motion{sat: sat}
}

// PositionECEFKm propagates the satellite to simTime.
func (m *SGP4Motion) PositionECEFKm(simTime time.Time) model.Vec3 {
	year, month, day := simTime.Date()
	hour, minute, sec := simTime.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, minute, sec)
	jd := satellite.JDay(year, int(month), day, hour, minute, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	return model.Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
}

// NewMotionModel picks an SGP4 model when the record carries TLE lines and
// returns nil otherwise; synthetic records have no meaningful ECEF track.
func NewMotionModel(rec SatelliteRecord) MotionModel {
	if rec.TLELine1 != "" && rec.TLELine2 != "" {
		return NewSGP4Motion(rec.TLELine1, rec.TLELine2)
	}
	return nil
}

// SGP4AltitudeKm cross-checks a record's mean-motion-derived altitude by
// propagating its TLE and measuring geocentric height. Returns false when
// the record has no TLE lines.
func SGP4AltitudeKm(rec SatelliteRecord, at time.Time) (float64, bool) {
	m := NewMotionModel(rec)
	if m == nil {
		return 0, false
	}
	return m.PositionECEFKm(at).Norm() - EarthRadiusKm, true
}
