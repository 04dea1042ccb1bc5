package analysis

import (
	"strings"
	"testing"
)

const sampleLog = `{"t":0,"event":"task_created","task_id":0}
{"t":0,"event":"task_dispatched","task_id":0,"sat":"sat-1"}
{"t":2,"event":"task_completed","task_id":0,"sat":"sat-1"}
{"t":1,"event":"task_created","task_id":1}
{"t":4,"event":"task_dispatched","task_id":1,"sat":"sat-2"}
{"t":9,"event":"task_completed","task_id":1,"sat":"sat-2"}
{"t":2,"event":"task_created","task_id":2}
{"t":8,"event":"deadline_miss","task_id":2}
{"t":3,"event":"task_forwarded","task_id":1,"src":"sat-0","dst":"sat-3"}
{"t":3,"event":"task_forwarded","task_id":1,"src":"sat-3","dst":"sat-4"}
`

func readSample(t *testing.T) []Event {
	t.Helper()
	events, err := ReadEvents(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	return events
}

func TestReadEvents(t *testing.T) {
	events := readSample(t)
	if len(events) != 10 {
		t.Fatalf("parsed %d events, want 10", len(events))
	}
	if events[0].Step != 0 || events[0].Kind != "task_created" {
		t.Fatalf("first event = %+v", events[0])
	}
	if events[1].Fields["sat"] != "sat-1" {
		t.Fatalf("extra fields lost: %+v", events[1].Fields)
	}

	if _, err := ReadEvents(strings.NewReader("{not json}\n")); err == nil {
		t.Fatal("ReadEvents accepted malformed line")
	}
	if events, err := ReadEvents(strings.NewReader("\n\n")); err != nil || len(events) != 0 {
		t.Fatalf("blank-only input = (%v, %v), want empty", events, err)
	}
}

func TestSummarizeGroundMode(t *testing.T) {
	s := Summarize(readSample(t), "ground")

	// Latencies are 2 and 8 steps; the nearest-rank index rounds.
	if s.P50Latency != 8 {
		t.Fatalf("p50 = %v, want 8", s.P50Latency)
	}
	if s.P90Latency != 8 || s.P99Latency != 8 {
		t.Fatalf("p90/p99 = %v/%v, want 8/8", s.P90Latency, s.P99Latency)
	}
	if s.Throughput != 2 {
		t.Fatalf("throughput = %v, want 2", s.Throughput)
	}
	want := 1.0 / 3.0
	if diff := s.DeadlineMissRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("miss rate = %v, want %v", s.DeadlineMissRate, want)
	}
	// Task 1 was dispatched three steps after creation; task 0 immediately.
	if s.BlockedWaitingGround != 1 {
		t.Fatalf("blocked_waiting_ground = %d, want 1", s.BlockedWaitingGround)
	}
	if s.ISLMessageCount != 0 {
		t.Fatalf("isl_message_count = %d in ground mode, want 0", s.ISLMessageCount)
	}
}

func TestSummarizeISLMode(t *testing.T) {
	s := Summarize(readSample(t), "isl")
	if s.ISLMessageCount != 2 {
		t.Fatalf("isl_message_count = %d, want 2", s.ISLMessageCount)
	}
	if s.BlockedWaitingGround != 0 {
		t.Fatalf("blocked_waiting_ground = %d in isl mode, want 0", s.BlockedWaitingGround)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	values := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(values, 50); got != 6 {
		t.Fatalf("p50 = %v, want 6", got)
	}
	if got := percentile(values, 90); got != 9 {
		t.Fatalf("p90 = %v, want 9", got)
	}
	if got := percentile(values, 99); got != 10 {
		t.Fatalf("p99 = %v, want 10", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("p50 of empty = %v, want 0", got)
	}
}

func TestWriteCSV(t *testing.T) {
	var sb strings.Builder
	err := WriteCSV(&sb,
		Summarize(readSample(t), "ground"),
		Summarize(readSample(t), "isl"),
	)
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "mode,p50_latency") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "ground,") || !strings.HasPrefix(lines[2], "isl,") {
		t.Fatalf("rows = %q, %q", lines[1], lines[2])
	}
}
