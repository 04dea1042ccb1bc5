package leo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// maxLEOAltitudeKm is the cutoff above which records are not considered LEO.
const maxLEOAltitudeKm = 2000.0

// SampleConstellations picks n records from a catalog, keeping each
// constellation's share of the selection proportional to its share of the
// LEO population. Overrides pin an exact count for named constellations
// before the proportional fill.
func SampleConstellations(records []SatelliteRecord, n int, rng *rand.Rand, overrides map[string]int) ([]SatelliteRecord, error) {
	var leo []SatelliteRecord
	for _, rec := range records {
		if rec.AltitudeKm <= maxLEOAltitudeKm {
			leo = append(leo, rec)
		}
	}
	if len(leo) == 0 {
		return nil, fmt.Errorf("no LEO satellites in catalog (%d records, cutoff %.0f km)", len(records), maxLEOAltitudeKm)
	}

	groups := make(map[string][]SatelliteRecord)
	var names []string
	for _, rec := range leo {
		if _, seen := groups[rec.Constellation]; !seen {
			names = append(names, rec.Constellation)
		}
		groups[rec.Constellation] = append(groups[rec.Constellation], rec)
	}

	var selection []SatelliteRecord
	taken := make(map[string]int)

	overrideNames := make([]string, 0, len(overrides))
	for name := range overrides {
		overrideNames = append(overrideNames, name)
	}
	sort.Strings(overrideNames)
	for _, name := range overrideNames {
		group := groups[name]
		if len(group) == 0 {
			continue
		}
		count := min(overrides[name], len(group))
		selection = append(selection, sampleWithout(group, count, 0, rng)...)
		taken[name] = count
	}

	remaining := n - len(selection)
	if remaining <= 0 {
		return selection[:n], nil
	}

	totalLEO := len(leo)
	if totalLEO <= remaining {
		selection = append(selection, leo...)
		if len(selection) > n {
			selection = selection[:n]
		}
		return selection, nil
	}

	// Floor the proportional shares, then hand out the residual to the
	// groups with the largest fractional parts.
	type share struct {
		name string
		want float64
	}
	shares := make([]share, 0, len(names))
	for _, name := range names {
		shares = append(shares, share{name, float64(len(groups[name])) / float64(totalLEO) * float64(remaining)})
	}
	allocations := make(map[string]int, len(shares))
	allocated := 0
	for _, s := range shares {
		allocations[s.name] = int(math.Floor(s.want))
		allocated += allocations[s.name]
	}
	sort.SliceStable(shares, func(i, j int) bool {
		fi := shares[i].want - math.Floor(shares[i].want)
		fj := shares[j].want - math.Floor(shares[j].want)
		return fi > fj
	})
	for residual := remaining - allocated; residual > 0; {
		for _, s := range shares {
			if residual <= 0 {
				break
			}
			allocations[s.name]++
			residual--
		}
	}

	for _, name := range names {
		count := allocations[name]
		if count <= 0 {
			continue
		}
		group := groups[name]
		skip := taken[name]
		if count > len(group)-skip {
			count = len(group) - skip
		}
		if count > 0 {
			selection = append(selection, sampleWithout(group, count, skip, rng)...)
		}
	}

	if len(selection) > n {
		selection = selection[:n]
	}
	return selection, nil
}

// sampleWithout draws count records from group without replacement,
// skipping the first skip entries already taken by an override.
func sampleWithout(group []SatelliteRecord, count, skip int, rng *rand.Rand) []SatelliteRecord {
	pool := make([]SatelliteRecord, len(group))
	copy(pool, group)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if skip+count > len(pool) {
		count = len(pool) - skip
	}
	return pool[skip : skip+count]
}

// SampleSynthetic generates a synthetic LEO population spread across four
// constellations with fixed weights, for runs without a real catalog.
func SampleSynthetic(n int, rng *rand.Rand) []SatelliteRecord {
	weights := []float64{0.1, 0.3, 0.2, 0.4}
	names := []string{"CONSTELLATION-A", "CONSTELLATION-B", "CONSTELLATION-C", "INDEPENDENT"}

	counts := make([]int, len(weights))
	total := 0
	for i, w := range weights {
		counts[i] = int(math.Round(float64(n) * w))
		total += counts[i]
	}
	for total < n {
		counts[argMax(counts)]++
		total++
	}
	for total > n {
		counts[argMax(counts)]--
		total--
	}

	records := make([]SatelliteRecord, 0, n)
	for c, name := range names {
		for i := 0; i < counts[c]; i++ {
			meanMotion := 13.0 + rng.Float64()*3.0
			inclination := 40.0 + rng.Float64()*58.0
			records = append(records, SatelliteRecord{
				Name:                fmt.Sprintf("%s-%03d", name, i),
				NoradID:             fmt.Sprintf("%d", 10000+rng.Intn(90000)),
				Constellation:       name,
				MeanMotionRevPerDay: meanMotion,
				InclinationDeg:      inclination,
				AltitudeKm:          MeanMotionToAltitudeKm(meanMotion),
			})
		}
	}
	return records
}

func argMax(xs []int) int {
	best := 0
	for i := range xs {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}
