package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/signalsfoundry/isl-tasking-sim/model"
)

// Reason classifies a token validation verdict. Only ReasonOK accepts; every
// other reason is a recoverable, local failure that leaves the flood alive.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonDecodeFailed      Reason = "decode_failed"
	ReasonBadSignature      Reason = "bad_signature"
	ReasonExpired           Reason = "expired"
	ReasonHopLimit          Reason = "hop_limit"
	ReasonServiceNotAllowed Reason = "service_not_allowed"
	ReasonMissingTarget     Reason = "missing_target"
	ReasonOutsideArea       Reason = "outside_area"
)

// TokenProvider issues capability tokens bound to a task's spatial,
// temporal, and service constraints, and signs completion receipts with the
// same keyed-hash scheme. Signatures cover a canonical sorted-key encoding
// of every field except the signature itself, so they are independent of
// construction order.
type TokenProvider struct {
	secret []byte
}

// NewTokenProvider builds a provider around a signing secret.
func NewTokenProvider(secret []byte) *TokenProvider {
	return &TokenProvider{secret: secret}
}

// signedToken is the decoded wire form of a token.
type signedToken struct {
	TaskID          *int       `json:"task_id"`
	ValidFrom       *int       `json:"valid_from"`
	ValidTo         *int       `json:"valid_to"`
	MaxHops         *int       `json:"max_hops"`
	Radius          *float64   `json:"radius"`
	Target          *[]float64 `json:"target"`
	AllowedServices []string   `json:"allowed_services"`
	Sig             string     `json:"sig"`
}

// Issue builds and signs a token for the task. The token is immutable once
// issued; validity spans the task's whole lifetime and max_hops/radius
// bound how far it may travel from the dispatch point.
func (tp *TokenProvider) Issue(task model.Task, maxHops int, radius float64) ([]byte, error) {
	payload := map[string]any{
		"task_id":          task.ID,
		"valid_from":       task.CreatedStep,
		"valid_to":         task.DeadlineStep,
		"max_hops":         maxHops,
		"radius":           radius,
		"target":           []float64{task.Target.X, task.Target.Y},
		"allowed_services": []string{task.Service},
	}
	payload["sig"] = tp.sign(payload)

	token, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("issue token for task %d: %w", task.ID, err)
	}
	return token, nil
}

// Validate checks a token against the validating satellite's situation. It
// is a pure function: no state changes, only a verdict. The check order is
// part of the protocol: decode, signature, validity window, hop budget,
// service, target presence, spatial containment.
func (tp *TokenProvider) Validate(tokenBytes []byte, task model.Task, hopCount, nowStep int, satPos model.Point) (bool, Reason) {
	var fields map[string]any
	if err := json.Unmarshal(tokenBytes, &fields); err != nil {
		return false, ReasonDecodeFailed
	}

	sig, _ := fields["sig"].(string)
	delete(fields, "sig")
	expected := tp.sign(fields)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return false, ReasonBadSignature
	}

	var tok signedToken
	if err := json.Unmarshal(tokenBytes, &tok); err != nil {
		return false, ReasonDecodeFailed
	}
	if tok.ValidFrom == nil || tok.ValidTo == nil || tok.MaxHops == nil {
		return false, ReasonDecodeFailed
	}

	if nowStep < *tok.ValidFrom || nowStep > *tok.ValidTo {
		return false, ReasonExpired
	}
	if hopCount > *tok.MaxHops {
		return false, ReasonHopLimit
	}
	allowed := false
	for _, svc := range tok.AllowedServices {
		if svc == task.Service {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, ReasonServiceNotAllowed
	}
	if tok.Target == nil || len(*tok.Target) != 2 || tok.Radius == nil {
		return false, ReasonMissingTarget
	}

	target := model.Point{X: (*tok.Target)[0], Y: (*tok.Target)[1]}
	if target.DistanceTo(satPos) > *tok.Radius {
		return false, ReasonOutsideArea
	}

	return true, ReasonOK
}

// Receipt signs a completion record binding the task to the satellite that
// completed it and the step it happened. Issued exactly once per completed
// task by the experiment driver.
func (tp *TokenProvider) Receipt(task model.Task, sat model.NodeID, nowStep int) ([]byte, error) {
	payload := map[string]any{
		"task_id":        task.ID,
		"sat":            string(sat),
		"completed_step": nowStep,
	}
	payload["sig"] = tp.sign(payload)

	receipt, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sign receipt for task %d: %w", task.ID, err)
	}
	return receipt, nil
}

// sign computes the hex HMAC-SHA256 of the canonical encoding of payload.
// encoding/json marshals map keys in sorted order, which is exactly the
// canonical sorted-key form the protocol requires.
func (tp *TokenProvider) sign(payload map[string]any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payloads are maps of JSON-native values; marshal cannot fail.
		panic(fmt.Sprintf("token payload not encodable: %v", err))
	}
	mac := hmac.New(sha256.New, tp.secret)
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}
