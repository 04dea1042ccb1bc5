// Package core implements the time-varying connectivity simulator and the
// token-gated multi-hop dispatch protocol built on top of it: the topology
// engine, the store-and-forward delivery queue, the token/receipt protocol,
// the task lifecycle registry, and the two experiment drivers.
package core

import (
	"encoding/json"
	"fmt"
	"io"
)

// RunParams is the full configuration surface of a simulation run. A run is
// reproducible from (RunParams, satellite records) alone.
type RunParams struct {
	Steps         int `json:"steps"`
	InjectPerStep int `json:"inject_per_step"`
	TTLSteps      int `json:"ttl_steps"`
	DeadlineSteps int `json:"deadline_steps"`

	NSats   int     `json:"n_sats"`
	NGround int     `json:"n_ground"`
	MaxHops int     `json:"max_hops"`
	Radius  float64 `json:"radius"`

	RingPeriod              int     `json:"ring_period"`
	RingDuty                float64 `json:"ring_duty"`
	CrosslinkWindow         int     `json:"crosslink_window"`
	CrosslinkPeriod         int     `json:"crosslink_period"`
	ConstellationCrosslinks int     `json:"constellation_crosslinks"`

	// GroundGatePeriod is how often (in steps) the ground-gated dispatch
	// window opens, provided a ground contact exists at that step.
	GroundGatePeriod int `json:"ground_gate_period"`

	Seed int64 `json:"seed"`

	OutageP     float64 `json:"outage_p"`
	CongestionP float64 `json:"congestion_p"`
	AttackP     float64 `json:"attack_p"`
}

// DefaultRunParams returns the baseline configuration used by the
// experiment CLIs.
func DefaultRunParams() RunParams {
	return RunParams{
		Steps:                   60,
		InjectPerStep:           4,
		TTLSteps:                30,
		DeadlineSteps:           25,
		NSats:                   200,
		NGround:                 20,
		MaxHops:                 4,
		Radius:                  2.0,
		RingPeriod:              6,
		RingDuty:                0.7,
		CrosslinkWindow:         5,
		CrosslinkPeriod:         12,
		ConstellationCrosslinks: 1,
		GroundGatePeriod:        6,
		Seed:                    7,
	}
}

// LoadRunParams decodes run parameters from JSON and validates them. Fields
// absent from the document keep their defaults.
func LoadRunParams(r io.Reader) (RunParams, error) {
	params := DefaultRunParams()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&params); err != nil {
		return RunParams{}, fmt.Errorf("load run params: decode failed: %w", err)
	}
	if err := params.Validate(); err != nil {
		return RunParams{}, err
	}
	return params, nil
}

// Validate rejects configurations that would produce a meaningless run.
// These are fatal at startup: a simulator quietly emitting zero-valued
// metrics is worse than one that refuses to start.
func (p RunParams) Validate() error {
	switch {
	case p.Steps <= 0:
		return fmt.Errorf("run params: steps must be positive, got %d", p.Steps)
	case p.NSats <= 0:
		return fmt.Errorf("run params: n_sats must be positive, got %d", p.NSats)
	case p.NGround <= 0:
		return fmt.Errorf("run params: n_ground must be positive, got %d", p.NGround)
	case p.TTLSteps < 0:
		return fmt.Errorf("run params: ttl_steps must be non-negative, got %d", p.TTLSteps)
	case p.DeadlineSteps < 0:
		return fmt.Errorf("run params: deadline_steps must be non-negative, got %d", p.DeadlineSteps)
	case p.MaxHops < 0:
		return fmt.Errorf("run params: max_hops must be non-negative, got %d", p.MaxHops)
	case p.RingPeriod < 1:
		return fmt.Errorf("run params: ring_period must be at least 1, got %d", p.RingPeriod)
	case p.RingDuty < 0 || p.RingDuty > 1:
		return fmt.Errorf("run params: ring_duty must be in [0,1], got %g", p.RingDuty)
	case p.CrosslinkWindow < 0:
		return fmt.Errorf("run params: crosslink_window must be non-negative, got %d", p.CrosslinkWindow)
	case p.CrosslinkPeriod < 1:
		return fmt.Errorf("run params: crosslink_period must be at least 1, got %d", p.CrosslinkPeriod)
	case p.ConstellationCrosslinks < 0:
		return fmt.Errorf("run params: constellation_crosslinks must be non-negative, got %d", p.ConstellationCrosslinks)
	case p.GroundGatePeriod < 1:
		return fmt.Errorf("run params: ground_gate_period must be at least 1, got %d", p.GroundGatePeriod)
	}

	for _, prob := range []struct {
		name  string
		value float64
	}{
		{"outage_p", p.OutageP},
		{"congestion_p", p.CongestionP},
		{"attack_p", p.AttackP},
	} {
		if prob.value < 0 || prob.value > 1 {
			return fmt.Errorf("run params: %s must be a probability in [0,1], got %g", prob.name, prob.value)
		}
	}
	return nil
}
