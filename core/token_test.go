package core

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/signalsfoundry/isl-tasking-sim/model"
)

func testTask() model.Task {
	return model.Task{
		ID:           3,
		CreatedStep:  2,
		DeadlineStep: 12,
		Target:       model.Point{X: 0.5, Y: -0.25},
		Service:      model.DefaultService,
	}
}

func TestIssueAndValidateOK(t *testing.T) {
	tp := NewTokenProvider([]byte("secret"))
	task := testTask()

	token, err := tp.Issue(task, 4, 2.0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	ok, reason := tp.Validate(token, task, 1, 5, model.Point{X: 0.6, Y: -0.2})
	if !ok || reason != ReasonOK {
		t.Fatalf("Validate = (%v, %s), want (true, ok)", ok, reason)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	tp := NewTokenProvider([]byte("secret"))
	ok, reason := tp.Validate([]byte("not json"), testTask(), 0, 5, model.Point{})
	if ok || reason != ReasonDecodeFailed {
		t.Fatalf("Validate = (%v, %s), want (false, decode_failed)", ok, reason)
	}
}

func TestValidateRejectsForgedField(t *testing.T) {
	tp := NewTokenProvider([]byte("secret"))
	task := testTask()
	token, err := tp.Issue(task, 4, 2.0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Widen the radius without re-signing.
	var fields map[string]any
	if err := json.Unmarshal(token, &fields); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	fields["radius"] = 100.0
	forged, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("re-encode token: %v", err)
	}

	ok, reason := tp.Validate(forged, task, 1, 5, model.Point{X: 0.6, Y: -0.2})
	if ok || reason != ReasonBadSignature {
		t.Fatalf("Validate = (%v, %s), want (false, bad_signature)", ok, reason)
	}
}

func TestValidateNeverAcceptsFlippedBytes(t *testing.T) {
	tp := NewTokenProvider([]byte("secret"))
	task := testTask()
	token, err := tp.Issue(task, 4, 2.0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	inArea := model.Point{X: 0.6, Y: -0.2}
	for i := range token {
		flipped := append([]byte(nil), token...)
		flipped[i] ^= 0x01
		if bytes.Equal(flipped, token) {
			continue
		}
		if ok, reason := tp.Validate(flipped, task, 1, 5, inArea); ok {
			t.Fatalf("flip at byte %d validated with reason %s", i, reason)
		}
	}
}

func TestValidateVerdictOrder(t *testing.T) {
	tp := NewTokenProvider([]byte("secret"))
	task := testTask()
	token, err := tp.Issue(task, 2, 1.0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	inArea := model.Point{X: 0.5, Y: -0.25}

	cases := []struct {
		name   string
		hop    int
		step   int
		pos    model.Point
		task   model.Task
		reason Reason
	}{
		{"before window", 0, 1, inArea, task, ReasonExpired},
		{"after window", 0, 13, inArea, task, ReasonExpired},
		{"over hop budget", 3, 5, inArea, task, ReasonHopLimit},
		{"wrong service", 0, 5, inArea, func() model.Task {
			other := task
			other.Service = "relay"
			return other
		}(), ReasonServiceNotAllowed},
		{"outside area", 0, 5, model.Point{X: 5, Y: 5}, task, ReasonOutsideArea},
	}
	for _, tc := range cases {
		ok, reason := tp.Validate(token, tc.task, tc.hop, tc.step, tc.pos)
		if ok || reason != tc.reason {
			t.Errorf("%s: Validate = (%v, %s), want (false, %s)", tc.name, ok, reason, tc.reason)
		}
	}
}

func TestValidateHopZeroBudget(t *testing.T) {
	tp := NewTokenProvider([]byte("secret"))
	task := testTask()
	token, err := tp.Issue(task, 0, 2.0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	inArea := model.Point{X: 0.5, Y: -0.25}

	if ok, reason := tp.Validate(token, task, 0, 5, inArea); !ok {
		t.Fatalf("hop 0 against budget 0 rejected: %s", reason)
	}
	if ok, reason := tp.Validate(token, task, 1, 5, inArea); ok || reason != ReasonHopLimit {
		t.Fatalf("hop 1 against budget 0 = (%v, %s), want (false, hop_limit)", ok, reason)
	}
}

func TestTokenAndReceiptAreDeterministic(t *testing.T) {
	tp := NewTokenProvider([]byte("secret"))
	task := testTask()

	a, err := tp.Issue(task, 4, 2.0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, err := tp.Issue(task, 4, 2.0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("identical issue calls produced different tokens")
	}

	r1, err := tp.Receipt(task, model.SatNode(2), 9)
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	r2, err := tp.Receipt(task, model.SatNode(2), 9)
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if !bytes.Equal(r1, r2) {
		t.Fatal("identical receipt calls produced different bytes")
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenProvider([]byte("secret"))
	other := NewTokenProvider([]byte("different"))
	task := testTask()

	token, err := issuer.Issue(task, 4, 2.0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	ok, reason := other.Validate(token, task, 0, 5, model.Point{X: 0.5, Y: -0.25})
	if ok || reason != ReasonBadSignature {
		t.Fatalf("Validate = (%v, %s), want (false, bad_signature)", ok, reason)
	}
}
