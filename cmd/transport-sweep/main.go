// Command transport-sweep measures receipt delivery over the impaired
// store-and-forward network. It runs either a single scenario or the default
// sweep over attack, outage, and congestion rates and prints a results table.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/signalsfoundry/isl-tasking-sim/core"
	"github.com/signalsfoundry/isl-tasking-sim/internal/logging"
	"github.com/signalsfoundry/isl-tasking-sim/internal/observability"
	"github.com/signalsfoundry/isl-tasking-sim/leo"
	"github.com/signalsfoundry/isl-tasking-sim/scrap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "transport-sweep: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	steps := flag.Int("steps", 60, "number of simulation steps")
	injectPerStep := flag.Int("inject-per-step", 4, "jobs injected per step")
	ttlSteps := flag.Int("ttl-steps", 30, "packet time-to-live in steps")
	deadlineSteps := flag.Int("deadline-steps", 25, "job deadline in steps")
	nSats := flag.Int("n-sats", 200, "number of satellites")
	nGround := flag.Int("n-ground", 20, "number of ground stations")
	seed := flag.Int64("seed", 7, "random seed")
	backendKind := flag.String("backend", "stub", "receipt backend: stub or hmac")
	catalogPath := flag.String("tle-catalog", "", "optional TLE catalog for orbit-derived satellites")

	attack := flag.Float64("attack", -1, "run a single scenario with this attack rate")
	outage := flag.Float64("outage", -1, "run a single scenario with this outage rate")
	congestion := flag.Float64("congestion", -1, "run a single scenario with this congestion rate")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	base := core.DefaultRunParams()
	base.Steps = *steps
	base.InjectPerStep = *injectPerStep
	base.TTLSteps = *ttlSteps
	base.DeadlineSteps = *deadlineSteps
	base.NSats = *nSats
	base.NGround = *nGround
	base.Seed = *seed

	var records []leo.SatelliteRecord
	if *catalogPath != "" {
		catalog, err := leo.LoadCatalog(*catalogPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		records, err = leo.SampleConstellations(catalog, base.NSats, rand.New(rand.NewSource(base.Seed)), nil)
		if err != nil {
			return fmt.Errorf("sample catalog: %w", err)
		}
		log.Info(ctx, "sampled satellites from catalog",
			logging.String("path", *catalogPath), logging.Int("sampled", len(records)))
	}

	printHeader()

	// A single scenario when any rate is pinned, otherwise the full sweep.
	if *attack >= 0 || *outage >= 0 || *congestion >= 0 {
		params := base
		params.AttackP = max(*attack, 0)
		params.OutageP = max(*outage, 0)
		params.CongestionP = max(*congestion, 0)
		return runScenario(params, records, *backendKind)
	}

	attacks := []float64{0.0, 0.05, 0.2}
	outages := []float64{0.0, 0.1}
	congestions := []float64{0.0, 0.2}
	for _, a := range attacks {
		for _, o := range outages {
			for _, c := range congestions {
				params := base
				params.AttackP = a
				params.OutageP = o
				params.CongestionP = c
				if err := runScenario(params, records, *backendKind); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func runScenario(params core.RunParams, records []leo.SatelliteRecord, backendKind string) error {
	if err := params.Validate(); err != nil {
		return err
	}
	backend, err := scrap.New(backendKind, rand.New(rand.NewSource(params.Seed)))
	if err != nil {
		return err
	}
	result, err := core.RunTrial(params, records, backend)
	if err != nil {
		return err
	}
	printRow(result)
	return nil
}

func printHeader() {
	fmt.Println("attack outage cong  avail  verified reach  ttfs_mean ttfs_p90 jobs completed missed dropped tampered")
	fmt.Println("----------------------------------------------------------------------------------------------")
}

func printRow(r core.TrialResult) {
	fmt.Printf("%-6.2f %-6.2f %-5.2f  %-5.3g  %-7.3g %-5.3g %-9.4g %-8.4g %-4d %-9d %-6d %-6d %d\n",
		r.AttackP, r.OutageP, r.CongestionP,
		r.Availability, r.Verified, r.Reachability,
		r.TTFSMeanSteps, r.TTFSP90Steps,
		r.TotalJobs, r.Completed, r.DeadlineMissed, r.Dropped, r.Tampered)
}
