package scrap

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// StubBackend is the cheapest possible backend: plain SHA-256 digests with
// recognizable prefixes. It has no secret, so anyone can forge artifacts;
// it exists to exercise the exchange shape, not to resist an adversary.
type StubBackend struct {
	rng *rand.Rand
}

// NewStubBackend builds a stub backend. The generator seeds token nonces so
// a run with a fixed seed reproduces byte-for-byte.
func NewStubBackend(rng *rand.Rand) *StubBackend {
	return &StubBackend{rng: rng}
}

func (s *StubBackend) IssueCapabilityToken(subject string, caps []string, constraints map[string]string) ([]byte, error) {
	payload := fmt.Sprintf("%s|%s|%s|%s",
		subject, strings.Join(caps, ","), formatConstraints(constraints), s.nonce())
	sum := sha256.Sum256([]byte(payload))
	return append([]byte("STUB_TOKEN:"), sum[:]...), nil
}

func (s *StubBackend) MakeBoundTaskRequest(token []byte, paymentHash []byte, taskParams map[string]any) ([]byte, error) {
	params, err := json.Marshal(taskParams)
	if err != nil {
		return nil, fmt.Errorf("scrap: encode task params: %w", err)
	}
	payload := make([]byte, 0, len(token)+len(paymentHash)+len(params)+2)
	payload = append(payload, token...)
	payload = append(payload, '|')
	payload = append(payload, paymentHash...)
	payload = append(payload, '|')
	payload = append(payload, params...)
	sum := sha256.Sum256(payload)
	return append([]byte("STUB_REQ:"), sum[:]...), nil
}

func (s *StubBackend) MakeReceipt(request []byte, result []byte) ([]byte, error) {
	payload := make([]byte, 0, len(request)+len(result)+1)
	payload = append(payload, request...)
	payload = append(payload, '|')
	payload = append(payload, result...)
	sum := sha256.Sum256(payload)
	return append([]byte("STUB_RCPT:"), sum[:]...), nil
}

// VerifyReceipt recomputes the receipt for the canonical "result" payload.
// Every simulated task carries that payload, so recomputation is enough.
func (s *StubBackend) VerifyReceipt(receipt []byte, request []byte) bool {
	expected, err := s.MakeReceipt(request, []byte("result"))
	if err != nil {
		return false
	}
	return string(receipt) == string(expected)
}

func (s *StubBackend) nonce() string {
	buf := make([]byte, 8)
	s.rng.Read(buf)
	return hex.EncodeToString(buf)
}

func formatConstraints(constraints map[string]string) string {
	keys := make([]string, 0, len(constraints))
	for k := range constraints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+constraints[k])
	}
	return strings.Join(parts, ",")
}
