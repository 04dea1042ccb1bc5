// Package analysis turns JSONL run logs into dispatch-comparison metrics.
package analysis

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// Event is one decoded log record. Fields holds everything beyond the step
// and kind, with numbers decoded as float64.
type Event struct {
	Step   int
	Kind   string
	Fields map[string]any
}

// ReadEvents decodes a JSONL stream. Blank lines are skipped; a malformed
// line aborts with its line number.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("analysis: line %d: %w", lineNo, err)
		}
		ev := Event{Fields: raw}
		if t, ok := raw["t"].(float64); ok {
			ev.Step = int(t)
		}
		if kind, ok := raw["event"].(string); ok {
			ev.Kind = kind
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("analysis: scan: %w", err)
	}
	return events, nil
}

// Summary holds the metrics for one run mode.
type Summary struct {
	Mode                 string  `json:"mode"`
	P50Latency           float64 `json:"p50_latency"`
	P90Latency           float64 `json:"p90_latency"`
	P99Latency           float64 `json:"p99_latency"`
	DeadlineMissRate     float64 `json:"deadline_miss_rate"`
	Throughput           float64 `json:"throughput"`
	BlockedWaitingGround int     `json:"blocked_waiting_ground"`
	ISLMessageCount      int     `json:"isl_message_count"`
}

// Summarize computes the metric set for the given mode label. The
// blocked-waiting-ground count only applies to the ground-gated mode and
// the ISL message count only to the flooding mode, mirroring what each
// dispatch strategy can actually exhibit.
func Summarize(events []Event, mode string) Summary {
	lat := latencies(events)
	s := Summary{
		Mode:             mode,
		P50Latency:       percentile(lat, 50),
		P90Latency:       percentile(lat, 90),
		P99Latency:       percentile(lat, 99),
		DeadlineMissRate: deadlineMissRate(events),
		Throughput:       throughput(events),
	}
	switch mode {
	case "ground":
		s.BlockedWaitingGround = blockedWaitingGround(events)
	case "isl":
		s.ISLMessageCount = countKind(events, "task_forwarded")
	}
	return s
}

// latencies pairs task_created with task_completed per task id and returns
// the step deltas, in creation order.
func latencies(events []Event) []int {
	created := make(map[int]int)
	completed := make(map[int]int)
	var order []int
	for _, ev := range events {
		id, ok := taskID(ev)
		if !ok {
			continue
		}
		switch ev.Kind {
		case "task_created":
			if _, seen := created[id]; !seen {
				created[id] = ev.Step
				order = append(order, id)
			}
		case "task_completed":
			completed[id] = ev.Step
		}
	}
	var out []int
	for _, id := range order {
		if done, ok := completed[id]; ok {
			out = append(out, done-created[id])
		}
	}
	return out
}

// percentile picks the nearest-rank value by rounding the fractional index.
func percentile(values []int, pct float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	idx := int(math.Round(pct / 100 * float64(len(sorted)-1)))
	return float64(sorted[idx])
}

func deadlineMissRate(events []Event) float64 {
	created := idSet(events, "task_created")
	missed := idSet(events, "deadline_miss")
	if len(created) == 0 {
		return 0
	}
	return float64(len(missed)) / float64(len(created))
}

func throughput(events []Event) float64 {
	return float64(len(idSet(events, "task_completed")))
}

// blockedWaitingGround counts tasks whose first dispatch happened after the
// step they were created on.
func blockedWaitingGround(events []Event) int {
	created := make(map[int]int)
	dispatched := make(map[int]int)
	for _, ev := range events {
		id, ok := taskID(ev)
		if !ok {
			continue
		}
		switch ev.Kind {
		case "task_created":
			created[id] = ev.Step
		case "task_dispatched":
			if _, seen := dispatched[id]; !seen {
				dispatched[id] = ev.Step
			}
		}
	}
	blocked := 0
	for id, t0 := range created {
		if t1, ok := dispatched[id]; ok && t1 > t0 {
			blocked++
		}
	}
	return blocked
}

func countKind(events []Event, kind string) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func idSet(events []Event, kind string) map[int]struct{} {
	set := make(map[int]struct{})
	for _, ev := range events {
		if ev.Kind != kind {
			continue
		}
		if id, ok := taskID(ev); ok {
			set[id] = struct{}{}
		}
	}
	return set
}

func taskID(ev Event) (int, bool) {
	v, ok := ev.Fields["task_id"].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// WriteCSV emits one header row plus one row per summary.
func WriteCSV(w io.Writer, summaries ...Summary) error {
	cw := csv.NewWriter(w)
	header := []string{
		"mode", "p50_latency", "p90_latency", "p99_latency",
		"deadline_miss_rate", "throughput", "blocked_waiting_ground", "isl_message_count",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("analysis: write csv header: %w", err)
	}
	for _, s := range summaries {
		row := []string{
			s.Mode,
			formatFloat(s.P50Latency),
			formatFloat(s.P90Latency),
			formatFloat(s.P99Latency),
			formatFloat(s.DeadlineMissRate),
			formatFloat(s.Throughput),
			strconv.Itoa(s.BlockedWaitingGround),
			strconv.Itoa(s.ISLMessageCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("analysis: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
