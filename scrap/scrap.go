// Package scrap models the capability-token / bound-request / receipt
// exchange carried over the simulated network. Backends are deliberately
// cheap stand-ins for a real credential scheme: what matters to the
// simulation is that receipts are deterministic byte strings a receiver can
// verify, so in-transit tampering is detectable.
package scrap

import (
	"fmt"
	"math/rand"
)

// Backend issues capability tokens, binds them into task requests, and
// produces verifiable receipts for completed work.
type Backend interface {
	// IssueCapabilityToken mints a token authorizing subject for the given
	// capabilities under the given constraints.
	IssueCapabilityToken(subject string, caps []string, constraints map[string]string) ([]byte, error)

	// MakeBoundTaskRequest binds a token and a payment hash to concrete
	// task parameters.
	MakeBoundTaskRequest(token []byte, paymentHash []byte, taskParams map[string]any) ([]byte, error)

	// MakeReceipt produces a receipt attesting that request completed with
	// the given result.
	MakeReceipt(request []byte, result []byte) ([]byte, error)

	// VerifyReceipt reports whether receipt is a valid attestation for
	// request.
	VerifyReceipt(receipt []byte, request []byte) bool
}

// New returns the backend named by kind: "stub" or "hmac".
func New(kind string, rng *rand.Rand) (Backend, error) {
	switch kind {
	case "stub":
		return NewStubBackend(rng), nil
	case "hmac":
		return NewHMACBackend([]byte("trustless-scrap-secret"), rng), nil
	default:
		return nil, fmt.Errorf("scrap: unknown backend %q", kind)
	}
}
