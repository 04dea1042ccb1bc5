package leo

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func TestParseTLEExtractsElements(t *testing.T) {
	records := ParseTLE([]string{"ISS (ZARYA)", issLine1, issLine2})
	if len(records) != 1 {
		t.Fatalf("parsed %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Name != "ISS (ZARYA)" {
		t.Fatalf("name = %q", rec.Name)
	}
	if rec.NoradID != "25544" {
		t.Fatalf("norad id = %q, want 25544", rec.NoradID)
	}
	if math.Abs(rec.InclinationDeg-51.6459) > 1e-9 {
		t.Fatalf("inclination = %v, want 51.6459", rec.InclinationDeg)
	}
	if math.Abs(rec.MeanMotionRevPerDay-15.49370953) > 1e-6 {
		t.Fatalf("mean motion = %v, want 15.49370953", rec.MeanMotionRevPerDay)
	}
	if rec.AltitudeKm < 350 || rec.AltitudeKm > 500 {
		t.Fatalf("derived altitude = %.1f km, want roughly 420", rec.AltitudeKm)
	}
	if rec.Constellation != "OTHER" {
		t.Fatalf("constellation = %q, want OTHER", rec.Constellation)
	}
}

func TestParseTLEReconcilesEccentricAltitude(t *testing.T) {
	// Same epoch and mean motion as the ISS lines, but eccentricity 0.03
	// with the mean anomaly at perigee: the circular-orbit estimate
	// overshoots the propagated height by well over the tolerance.
	eccLine2 := "2 25544  51.6459 115.9059 0300000  61.3028   0.0000 15.49370953257760"
	records := ParseTLE([]string{"ECC-SAT", issLine1, eccLine2})
	if len(records) != 1 {
		t.Fatalf("parsed %d records, want 1", len(records))
	}

	rec := records[0]
	circular := MeanMotionToAltitudeKm(rec.MeanMotionRevPerDay)
	if math.Abs(rec.AltitudeKm-circular) <= sgp4ToleranceKm {
		t.Fatalf("altitude %.1f km was not reconciled against circular estimate %.1f km",
			rec.AltitudeKm, circular)
	}
	if rec.AltitudeKm < 100 || rec.AltitudeKm > circular {
		t.Fatalf("reconciled altitude %.1f km outside the plausible band (circular estimate %.1f km)",
			rec.AltitudeKm, circular)
	}
}

func TestTLEEpoch(t *testing.T) {
	epoch, ok := tleEpoch(issLine1)
	if !ok {
		t.Fatal("no epoch from a valid line 1")
	}
	if epoch.Year() != 2021 || epoch.YearDay() != 275 {
		t.Fatalf("epoch = %v, want day 275 of 2021", epoch)
	}
	if _, ok := tleEpoch("1 25544U"); ok {
		t.Fatal("epoch parsed from a truncated line")
	}
}

func TestParseTLESkipsMalformedGroups(t *testing.T) {
	lines := []string{
		"BROKEN-SAT",
		"not a line one",
		"not a line two",
		"ISS (ZARYA)",
		issLine1,
		issLine2,
	}
	records := ParseTLE(lines)
	if len(records) != 1 || records[0].Name != "ISS (ZARYA)" {
		t.Fatalf("records = %+v, want just the ISS", records)
	}

	if got := ParseTLE([]string{"ONLY-A-NAME"}); len(got) != 0 {
		t.Fatalf("partial group parsed: %+v", got)
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.txt")
	content := "ISS (ZARYA)\n" + issLine1 + "\n" + issLine2 + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	records, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("junk\n"), 0o644); err != nil {
		t.Fatalf("write empty catalog: %v", err)
	}
	if _, err := LoadCatalog(empty); err == nil {
		t.Fatal("LoadCatalog accepted a catalog without TLE groups")
	}
	if _, err := LoadCatalog(filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatal("LoadCatalog accepted a missing file")
	}
}

func TestConstellationFromName(t *testing.T) {
	cases := map[string]string{
		"STARLINK-3051":    "STARLINK",
		"oneweb-0276":      "ONEWEB",
		"IRIDIUM 133":      "IRIDIUM",
		"FLOCK 4V-19":      "OTHER",
		"KSAT STARLINK X":  "STARLINK", // substring fallback
		"COSMOS 2561":      "OTHER",
		"GLOBALSTAR M092":  "GLOBALSTAR",
		"SPIRE LEMUR-2 JK": "SPIRE",
	}
	for name, want := range cases {
		if got := ConstellationFromName(name); got != want {
			t.Errorf("ConstellationFromName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestMeanMotionToAltitude(t *testing.T) {
	// ~15.5 rev/day is ISS-like, ~420 km up.
	if alt := MeanMotionToAltitudeKm(15.49); alt < 350 || alt > 500 {
		t.Fatalf("altitude at 15.49 rev/day = %.1f km, want roughly 420", alt)
	}
	// Geostationary-ish mean motion sits far above LEO.
	if alt := MeanMotionToAltitudeKm(1.0027); alt < 30000 {
		t.Fatalf("altitude at 1 rev/day = %.1f km, want geostationary range", alt)
	}
	if alt := MeanMotionToAltitudeKm(0); alt != 0 {
		t.Fatalf("altitude at zero mean motion = %v, want 0", alt)
	}
}

func TestSGP4MotionMatchesISSAltitude(t *testing.T) {
	rec := ParseTLE([]string{"ISS (ZARYA)", issLine1, issLine2})[0]

	motion := NewMotionModel(rec)
	if motion == nil {
		t.Fatal("no motion model for record with TLE lines")
	}
	at := time.Date(2021, 10, 2, 12, 0, 0, 0, time.UTC)
	pos := motion.PositionECEFKm(at)
	altKm := pos.Norm() - EarthRadiusKm
	if altKm < 300 || altKm > 500 {
		t.Fatalf("SGP4 altitude = %.1f km, want roughly 420", altKm)
	}

	alt, ok := SGP4AltitudeKm(rec, at)
	if !ok || math.Abs(alt-altKm) > 1 {
		t.Fatalf("SGP4AltitudeKm = (%.1f, %v), want (%.1f, true)", alt, ok, altKm)
	}

	if NewMotionModel(SatelliteRecord{Name: "NO-TLE"}) != nil {
		t.Fatal("motion model produced for record without TLE lines")
	}
}
