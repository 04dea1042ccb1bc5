package core

import (
	"encoding/json"
	"fmt"
	"io"
)

// Event kinds written to the run log. Consumers must tolerate kinds they do
// not know and missing optional fields.
const (
	EventTaskCreated    = "task_created"
	EventTokenIssued    = "token_issued"
	EventTaskDispatched = "task_dispatched"
	EventTaskForwarded  = "task_forwarded"
	EventTokenValidated = "token_validated"
	EventTaskReceived   = "task_received"
	EventTaskAccepted   = "task_accepted"
	EventTaskCompleted  = "task_completed"
	EventReceiptEmitted = "receipt_emitted"
	EventDeadlineMiss   = "deadline_miss"
)

// EventLog is the append-only record of lifecycle transitions: one JSON
// object per line, fields {"t": step, "event": kind, ...}. Emission order
// within a step is the record order; steps only ever increase. Keys are
// encoded sorted, so two identical runs produce byte-identical logs.
//
// The log does not deduplicate and does not retry; downstream consumers own
// their own robustness.
type EventLog struct {
	w   io.Writer
	err error
}

// NewEventLog writes events to w.
func NewEventLog(w io.Writer) *EventLog {
	return &EventLog{w: w}
}

// Emit appends one event. Fields may be nil. After the first write error the
// log goes inert and the error is reported by Err.
func (l *EventLog) Emit(step int, kind string, fields map[string]any) {
	if l.err != nil {
		return
	}

	record := make(map[string]any, len(fields)+2)
	record["t"] = step
	record["event"] = kind
	for k, v := range fields {
		record[k] = v
	}

	line, err := json.Marshal(record)
	if err != nil {
		l.err = fmt.Errorf("event log: encode %s: %w", kind, err)
		return
	}
	line = append(line, '\n')
	if _, err := l.w.Write(line); err != nil {
		l.err = fmt.Errorf("event log: write %s: %w", kind, err)
	}
}

// Err returns the first write or encode error, if any.
func (l *EventLog) Err() error { return l.err }
