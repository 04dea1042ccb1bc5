package leo

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// sgp4ToleranceKm bounds how far the circular-orbit altitude estimate may
// drift from the SGP4-propagated height before the propagated value wins.
const sgp4ToleranceKm = 50.0

// ParseTLE parses name/line1/line2 triplets into satellite records.
// Malformed groups are skipped rather than failing the whole catalog,
// matching how public TLE dumps mix formats.
func ParseTLE(lines []string) []SatelliteRecord {
	clean := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			clean = append(clean, strings.TrimRight(line, "\n"))
		}
	}

	var records []SatelliteRecord
	for i := 0; i+2 < len(clean); i += 3 {
		name := strings.TrimSpace(clean[i])
		line1 := clean[i+1]
		line2 := clean[i+2]
		if !strings.HasPrefix(line1, "1") || !strings.HasPrefix(line2, "2") {
			continue
		}
		if len(line1) < 7 || len(line2) < 63 {
			continue
		}

		inclination, err := strconv.ParseFloat(strings.TrimSpace(line2[8:16]), 64)
		if err != nil {
			continue
		}
		meanMotion, err := strconv.ParseFloat(strings.TrimSpace(line2[52:63]), 64)
		if err != nil {
			continue
		}

		rec := SatelliteRecord{
			Name:                name,
			NoradID:             strings.TrimSpace(line1[2:7]),
			Constellation:       ConstellationFromName(name),
			MeanMotionRevPerDay: meanMotion,
			InclinationDeg:      inclination,
			AltitudeKm:          MeanMotionToAltitudeKm(meanMotion),
			TLELine1:            line1,
			TLELine2:            line2,
		}
		rec.AltitudeKm = reconcileAltitude(rec)
		records = append(records, rec)
	}
	return records
}

// reconcileAltitude cross-checks the circular-orbit altitude estimate against
// the SGP4-propagated height at the TLE epoch. Eccentric orbits break the
// circular approximation; when the two disagree beyond the tolerance, the
// propagated height wins. Records without a parsable epoch keep the estimate.
func reconcileAltitude(rec SatelliteRecord) float64 {
	epoch, ok := tleEpoch(rec.TLELine1)
	if !ok {
		return rec.AltitudeKm
	}
	alt, ok := SGP4AltitudeKm(rec, epoch)
	if !ok || alt < 100 {
		return rec.AltitudeKm
	}
	if math.Abs(alt-rec.AltitudeKm) > sgp4ToleranceKm {
		return alt
	}
	return rec.AltitudeKm
}

// tleEpoch extracts the epoch timestamp from TLE line 1: a two-digit year
// followed by a fractional day of year, columns 19-32.
func tleEpoch(line1 string) (time.Time, bool) {
	if len(line1) < 32 {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(line1[18:32])
	if len(raw) < 5 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(raw[:2])
	if err != nil {
		return time.Time{}, false
	}
	dayOfYear, err := strconv.ParseFloat(raw[2:], 64)
	if err != nil || dayOfYear < 1 {
		return time.Time{}, false
	}
	if year < 57 {
		year += 2000
	} else {
		year += 1900
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), true
}

// LoadCatalog reads a TLE catalog from a local file. Fetching catalogs over
// the network is an external concern; callers hand us a path.
func LoadCatalog(path string) ([]SatelliteRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load TLE catalog %q: %w", path, err)
	}
	records := ParseTLE(strings.Split(string(data), "\n"))
	if len(records) == 0 {
		return nil, fmt.Errorf("load TLE catalog %q: no parsable TLE groups", path)
	}
	return records, nil
}
