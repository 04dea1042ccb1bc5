// Command isl-experiment runs the ground-gated baseline and the token-gated
// crosslink flooding mode against the same parameters, writes one JSONL
// event log per mode, and prints a side-by-side metric summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"

	"github.com/signalsfoundry/isl-tasking-sim/analysis"
	"github.com/signalsfoundry/isl-tasking-sim/core"
	"github.com/signalsfoundry/isl-tasking-sim/internal/logging"
	"github.com/signalsfoundry/isl-tasking-sim/internal/observability"
	"github.com/signalsfoundry/isl-tasking-sim/leo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "isl-experiment: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	paramsPath := flag.String("params", "", "JSON file of run parameters (defaults apply when empty)")
	steps := flag.Int("steps", 0, "override number of steps")
	seed := flag.Int64("seed", 0, "override random seed")
	catalogPath := flag.String("tle-catalog", "", "optional TLE catalog for orbit-derived satellites")
	outDir := flag.String("out", "runs", "output directory for event logs and summary")
	secret := flag.String("secret", "isl-experiment-secret", "signing secret for task tokens")
	metricsAddr := flag.String("metrics-addr", "", "optional address to serve Prometheus /metrics on")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	params := core.DefaultRunParams()
	if *paramsPath != "" {
		f, err := os.Open(*paramsPath)
		if err != nil {
			return fmt.Errorf("open params: %w", err)
		}
		params, err = core.LoadRunParams(f)
		f.Close()
		if err != nil {
			return err
		}
	}
	if *steps > 0 {
		params.Steps = *steps
	}
	if *seed != 0 {
		params.Seed = *seed
	}
	if err := params.Validate(); err != nil {
		return err
	}

	var records []leo.SatelliteRecord
	if *catalogPath != "" {
		catalog, err := leo.LoadCatalog(*catalogPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		records, err = leo.SampleConstellations(catalog, params.NSats, rand.New(rand.NewSource(params.Seed)), nil)
		if err != nil {
			return fmt.Errorf("sample catalog: %w", err)
		}
		log.Info(ctx, "sampled satellites from catalog",
			logging.String("path", *catalogPath), logging.Int("sampled", len(records)))
	}

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "serving metrics", logging.String("addr", *metricsAddr))
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	summaries := make([]analysis.Summary, 0, 2)
	for _, mode := range []core.Mode{core.ModeGround, core.ModeISL} {
		logPath := filepath.Join(*outDir, fmt.Sprintf("mode_%s.jsonl", mode))
		summary, err := runOne(ctx, mode, params, []byte(*secret), records, logPath, collector, log)
		if err != nil {
			return err
		}
		summaries = append(summaries, summary)
	}

	printSummaries(summaries)

	csvPath := filepath.Join(*outDir, "summary.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer csvFile.Close()
	if err := analysis.WriteCSV(csvFile, summaries...); err != nil {
		return err
	}
	log.Info(ctx, "wrote summary", logging.String("path", csvPath))
	return nil
}

func runOne(
	ctx context.Context,
	mode core.Mode,
	params core.RunParams,
	secret []byte,
	records []leo.SatelliteRecord,
	logPath string,
	collector *observability.SimCollector,
	log logging.Logger,
) (analysis.Summary, error) {
	eventFile, err := os.Create(logPath)
	if err != nil {
		return analysis.Summary{}, fmt.Errorf("create event log: %w", err)
	}
	defer eventFile.Close()

	opts := []core.ExperimentOption{
		core.WithObserver(collector),
		core.WithLogger(logging.ForRun(log, string(mode), params.Seed)),
	}
	if records != nil {
		opts = append(opts, core.WithSatellites(records))
	}
	if err := core.RunMode(ctx, mode, params, secret, eventFile, opts...); err != nil {
		return analysis.Summary{}, fmt.Errorf("run %s: %w", mode, err)
	}
	if err := eventFile.Sync(); err != nil {
		return analysis.Summary{}, fmt.Errorf("flush event log: %w", err)
	}

	replay, err := os.Open(logPath)
	if err != nil {
		return analysis.Summary{}, fmt.Errorf("reopen event log: %w", err)
	}
	defer replay.Close()
	events, err := analysis.ReadEvents(replay)
	if err != nil {
		return analysis.Summary{}, err
	}
	return analysis.Summarize(events, string(mode)), nil
}

func printSummaries(summaries []analysis.Summary) {
	fmt.Println("mode   p50  p90  p99  miss_rate throughput blocked_wait_ground isl_msgs")
	for _, s := range summaries {
		fmt.Printf("%-6s %-4.0f %-4.0f %-4.0f %-9.3f %-10.1f %-19d %d\n",
			s.Mode, s.P50Latency, s.P90Latency, s.P99Latency,
			s.DeadlineMissRate, s.Throughput, s.BlockedWaitingGround, s.ISLMessageCount)
	}
}
