package core

import (
	"bytes"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/signalsfoundry/isl-tasking-sim/leo"
	"github.com/signalsfoundry/isl-tasking-sim/model"
	"github.com/signalsfoundry/isl-tasking-sim/scrap"
	"github.com/signalsfoundry/isl-tasking-sim/timectrl"
)

// TrialMetrics accumulates raw counters for one transport trial.
type TrialMetrics struct {
	Injected    int
	Delivered   int
	Dropped     int
	Tampered    int
	VerifiedOK  int
	VerifiedBad int

	Completed      int
	DeadlineMissed int
	TTFSSteps      []int

	DropReasons map[string]int
}

// TrialResult is the headline summary of one transport trial.
type TrialResult struct {
	AttackP     float64 `json:"attack_p"`
	OutageP     float64 `json:"outage_p"`
	CongestionP float64 `json:"congestion_p"`

	Availability  float64 `json:"availability"`
	Verified      float64 `json:"verified"`
	Reachability  float64 `json:"reachability"`
	TTFSMeanSteps float64 `json:"ttfs_mean_steps"`
	TTFSP90Steps  float64 `json:"ttfs_p90_steps"`

	Injected       int `json:"injected"`
	Delivered      int `json:"delivered"`
	Dropped        int `json:"dropped"`
	Tampered       int `json:"tampered"`
	VerifiedOK     int `json:"verified_ok"`
	VerifiedBad    int `json:"verified_bad"`
	Completed      int `json:"completed"`
	DeadlineMissed int `json:"deadline_missed"`
	TotalJobs      int `json:"total_jobs"`
}

// ReceiveFunc handles a payload arriving at a node.
type ReceiveFunc func(src, dst model.NodeID, payload []byte, meta model.PacketMeta)

// Transport bridges job payloads onto the store-and-forward network. It
// stamps injection and delivery steps, models an in-transit adversary that
// flips one bit with probability attackP, and fans delivered packets out to
// per-node receive handlers.
type Transport struct {
	net     *Network
	rng     *rand.Rand
	attackP float64
	metrics *TrialMetrics
	obs     RunObserver

	recv map[model.NodeID][]ReceiveFunc
}

// NewTransport wires a transport over the network. Handlers registered via
// Recv run synchronously on delivery, in registration order.
func NewTransport(net *Network, attackP float64, rng *rand.Rand, metrics *TrialMetrics, obs RunObserver) *Transport {
	if obs == nil {
		obs = NopObserver{}
	}
	if metrics.DropReasons == nil {
		metrics.DropReasons = make(map[string]int)
	}
	tr := &Transport{
		net:     net,
		rng:     rng,
		attackP: attackP,
		metrics: metrics,
		obs:     obs,
		recv:    make(map[model.NodeID][]ReceiveFunc),
	}

	net.OnDelivery(func(pkt model.Packet) {
		pkt.Meta.DeliverStep = net.Now()
		tr.metrics.Delivered++
		tr.obs.PacketDelivered()
		for _, fn := range tr.recv[pkt.Dst] {
			fn(pkt.Src, pkt.Dst, pkt.Payload, pkt.Meta)
		}
	})
	net.OnDrop(func(pkt model.Packet, reason string) {
		tr.metrics.Dropped++
		tr.metrics.DropReasons[reason]++
		tr.obs.PacketDropped(reason)
	})

	return tr
}

// Recv registers a handler for payloads delivered to node.
func (tr *Transport) Recv(node model.NodeID, fn ReceiveFunc) {
	tr.recv[node] = append(tr.recv[node], fn)
}

// Send injects a payload. The adversary may tamper with it in transit; the
// receiver finds out only when byte-equality verification fails.
func (tr *Transport) Send(src, dst model.NodeID, payload []byte, meta model.PacketMeta) {
	tr.metrics.Injected++
	tr.obs.PacketInjected()

	if tr.attackP > 0 && tr.rng.Float64() < tr.attackP {
		payload = Tamper(payload, tr.rng)
		tr.metrics.Tampered++
		tr.obs.PacketTampered()
	}

	meta.InjectStep = tr.net.Now()
	tr.net.InjectPacket(model.Packet{Src: src, Dst: dst, Payload: payload, Meta: meta})
}

// Tamper flips one bit of the payload at a random offset.
func Tamper(payload []byte, rng *rand.Rand) []byte {
	if len(payload) == 0 {
		return payload
	}
	out := append([]byte(nil), payload...)
	out[rng.Intn(len(out))] ^= 0x01
	return out
}

// jobState tracks an outstanding transport job in a dense arena keyed by
// job id.
type jobState struct {
	active       bool
	injectStep   int
	deadlineStep int
	expected     []byte
}

// RunTrial executes one transport trial: every step it injects
// params.InjectPerStep receipt-carrying jobs from random satellites toward
// random ground stations, advances the network, and sweeps deadlines.
// Ground receivers verify receipts by byte equality; TTFS counts only
// verified completions.
func RunTrial(params RunParams, satellites []leo.SatelliteRecord, backend scrap.Backend, opts ...TrialOption) (TrialResult, error) {
	cfg := trialConfig{obs: NopObserver{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	rng := rand.New(rand.NewSource(params.Seed))
	clock := timectrl.NewStepClock(time.Unix(0, 0), timectrl.DefaultStepDuration)

	net, err := NewNetwork(params, satellites, rng, clock)
	if err != nil {
		return TrialResult{}, err
	}

	metrics := &TrialMetrics{DropReasons: make(map[string]int)}
	transport := NewTransport(net, params.AttackP, rng, metrics, cfg.obs)

	var jobs []jobState

	onReceipt := func(src, dst model.NodeID, payload []byte, meta model.PacketMeta) {
		job := &jobs[meta.JobID]

		ok := meta.Expected != nil && bytes.Equal(payload, meta.Expected)
		if ok {
			metrics.VerifiedOK++
		} else {
			metrics.VerifiedBad++
		}

		// TTFS counts only verified-ok completions, once per job; a
		// duplicate delivery after completion changes nothing.
		if ok && job.active {
			metrics.Completed++
			ttfs := meta.DeliverStep - meta.InjectStep
			metrics.TTFSSteps = append(metrics.TTFSSteps, ttfs)
			cfg.obs.ObserveTTFS(ttfs)
			job.active = false
		}
	}
	for _, ground := range net.KB().GroundNodes() {
		transport.Recv(ground, onReceipt)
	}

	satNodes := net.KB().SatNodes()
	groundNodes := net.KB().GroundNodes()
	paymentHash := make([]byte, 32)
	for i := range paymentHash {
		paymentHash[i] = 0x11
	}

	for step := 0; step < params.Steps; step++ {
		for i := 0; i < params.InjectPerStep; i++ {
			jobID := len(jobs)
			src := satNodes[rng.Intn(len(satNodes))]
			dst := groundNodes[rng.Intn(len(groundNodes))]

			token, err := backend.IssueCapabilityToken(string(src), []string{"svc:downlink"}, map[string]string{"mode": "orbital"})
			if err != nil {
				return TrialResult{}, err
			}
			req, err := backend.MakeBoundTaskRequest(token, paymentHash, map[string]any{"job": jobID})
			if err != nil {
				return TrialResult{}, err
			}
			receipt, err := backend.MakeReceipt(req, []byte("result"))
			if err != nil {
				return TrialResult{}, err
			}

			jobs = append(jobs, jobState{
				active:       true,
				injectStep:   net.Now(),
				deadlineStep: net.Now() + params.DeadlineSteps,
				expected:     receipt,
			})

			transport.Send(src, dst, receipt, model.PacketMeta{
				JobID:    jobID,
				TTLSteps: params.TTLSteps,
				Expected: receipt,
			})
		}

		net.Step(1)

		// Jobs still outstanding past their deadline count as missed.
		for id := range jobs {
			if jobs[id].active && net.Now() > jobs[id].deadlineStep {
				metrics.DeadlineMissed++
				jobs[id].active = false
			}
		}
	}

	return summarize(params, metrics, len(jobs)), nil
}

// TrialOption tweaks a trial at construction.
type TrialOption func(*trialConfig)

type trialConfig struct {
	obs RunObserver
}

// WithTrialObserver attaches a metrics observer to the trial.
func WithTrialObserver(obs RunObserver) TrialOption {
	return func(c *trialConfig) {
		if obs != nil {
			c.obs = obs
		}
	}
}

func summarize(params RunParams, m *TrialMetrics, totalJobs int) TrialResult {
	availability := 0.0
	if m.Injected > 0 {
		availability = float64(m.Delivered) / float64(m.Injected)
	}
	verifiedTotal := m.VerifiedOK + m.VerifiedBad
	verified := 0.0
	if verifiedTotal > 0 {
		verified = float64(m.VerifiedOK) / float64(verifiedTotal)
	}
	reachability := 0.0
	if totalJobs > 0 {
		reachability = float64(m.Completed) / float64(totalJobs)
	}

	ttfsMean := 0.0
	ttfsP90 := 0.0
	if len(m.TTFSSteps) > 0 {
		sum := 0
		sorted := append([]int(nil), m.TTFSSteps...)
		for _, v := range sorted {
			sum += v
		}
		ttfsMean = float64(sum) / float64(len(sorted))
		sort.Ints(sorted)
		ttfsP90 = float64(sorted[int(0.9*float64(len(sorted)-1))])
	}

	return TrialResult{
		AttackP:        params.AttackP,
		OutageP:        params.OutageP,
		CongestionP:    params.CongestionP,
		Availability:   round3(availability),
		Verified:       round3(verified),
		Reachability:   round3(reachability),
		TTFSMeanSteps:  round2(ttfsMean),
		TTFSP90Steps:   round2(ttfsP90),
		Injected:       m.Injected,
		Delivered:      m.Delivered,
		Dropped:        m.Dropped,
		Tampered:       m.Tampered,
		VerifiedOK:     m.VerifiedOK,
		VerifiedBad:    m.VerifiedBad,
		Completed:      m.Completed,
		DeadlineMissed: m.DeadlineMissed,
		TotalJobs:      totalJobs,
	}
}

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
func round2(x float64) float64 { return math.Round(x*100) / 100 }
