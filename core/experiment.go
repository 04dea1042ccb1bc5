package core

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/signalsfoundry/isl-tasking-sim/internal/logging"
	"github.com/signalsfoundry/isl-tasking-sim/leo"
	"github.com/signalsfoundry/isl-tasking-sim/model"
	"github.com/signalsfoundry/isl-tasking-sim/timectrl"
)

// Mode selects the coordination strategy under comparison.
type Mode string

const (
	// ModeGround is the baseline: tasks wait for a periodic ground
	// contact window and are handed to whichever satellite is in view.
	ModeGround Mode = "ground"
	// ModeISL floods a signed token across inter-satellite links until a
	// satellite inside the task's area validates it.
	ModeISL Mode = "isl"
)

// ExperimentOption tweaks an experiment at construction.
type ExperimentOption func(*Experiment)

// WithObserver attaches a metrics observer.
func WithObserver(obs RunObserver) ExperimentOption {
	return func(e *Experiment) {
		if obs != nil {
			e.obs = obs
		}
	}
}

// WithLogger attaches a structured logger for run progress.
func WithLogger(log logging.Logger) ExperimentOption {
	return func(e *Experiment) {
		if log != nil {
			e.log = log
		}
	}
}

// WithSatellites supplies real satellite records instead of the synthetic
// population.
func WithSatellites(records []leo.SatelliteRecord) ExperimentOption {
	return func(e *Experiment) { e.satellites = records }
}

// Experiment drives one dispatch run: it creates a task per step, issues
// tokens, dispatches over the mode's strategy, validates holders, sweeps
// deadlines, and writes the JSONL event log. All randomness comes from a
// single generator seeded from the run parameters.
type Experiment struct {
	mode   Mode
	params RunParams

	rng      *rand.Rand
	clock    *timectrl.StepClock
	net      *Network
	tokens   *TokenProvider
	registry *TaskRegistry
	events   *EventLog

	satellites []leo.SatelliteRecord
	obs        RunObserver
	log        logging.Logger

	// tokenBytes is an arena parallel to the registry: tokenBytes[id]
	// holds the issued token for task id (nil in ground mode).
	tokenBytes [][]byte
	floods     *floodTable
}

// NewExperiment wires an experiment. The event log is written to w.
func NewExperiment(mode Mode, params RunParams, secret []byte, w io.Writer, opts ...ExperimentOption) (*Experiment, error) {
	if mode != ModeGround && mode != ModeISL {
		return nil, fmt.Errorf("experiment: unknown mode %q", mode)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Experiment{
		mode:     mode,
		params:   params,
		tokens:   NewTokenProvider(secret),
		registry: NewTaskRegistry(),
		events:   NewEventLog(w),
		floods:   newFloodTable(),
		obs:      NopObserver{},
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.rng = rand.New(rand.NewSource(params.Seed))
	e.clock = timectrl.NewStepClock(time.Unix(0, 0), timectrl.DefaultStepDuration)

	net, err := NewNetwork(params, e.satellites, e.rng, e.clock)
	if err != nil {
		return nil, err
	}
	e.net = net
	return e, nil
}

// Run executes the configured number of steps. Within each step the
// sub-phases run in a fixed order: task creation and token issuance,
// dispatch and propagation on the current topology, validation, the
// deadline sweep, then the advance to the next step.
func (e *Experiment) Run(ctx context.Context) error {
	e.log.Info(ctx, "experiment starting",
		logging.String("mode", string(e.mode)),
		logging.Int("steps", e.params.Steps),
		logging.Int("n_sats", e.params.NSats),
		logging.Int("n_ground", e.params.NGround),
	)

	for step := 0; step < e.params.Steps; step++ {
		e.createTask(step)

		edges := e.net.ActiveLinks()
		positions := e.net.NodePositions()
		groundContacts := groundEdges(edges)
		groundAvailable := step%e.params.GroundGatePeriod == 0 && len(groundContacts) > 0

		switch e.mode {
		case ModeGround:
			if groundAvailable {
				e.groundDispatch(step, groundContacts, positions)
			}
		case ModeISL:
			if groundAvailable {
				e.islDispatch(step, groundContacts)
			}
			e.islPropagate(step, edges)
			e.islValidate(step, positions)
		}

		e.sweepDeadlines(step)

		_, _, outstanding := e.registry.Counts()
		e.obs.SetOutstanding(outstanding)

		e.net.Step(1)
	}

	completed, missed, outstanding := e.registry.Counts()
	e.log.Info(ctx, "experiment finished",
		logging.String("mode", string(e.mode)),
		logging.Int("tasks", e.registry.Len()),
		logging.Int("completed", completed),
		logging.Int("deadline_missed", missed),
		logging.Int("outstanding", outstanding),
	)
	return e.events.Err()
}

// Registry exposes the task registry for result accounting.
func (e *Experiment) Registry() *TaskRegistry { return e.registry }

// createTask injects this step's task and, in ISL mode, issues its token.
func (e *Experiment) createTask(step int) {
	target := model.Point{
		X: e.rng.Float64()*2 - 1,
		Y: e.rng.Float64()*2 - 1,
	}
	task := e.registry.Create(step, step+e.params.TTLSteps, target, model.DefaultService)
	e.tokenBytes = append(e.tokenBytes, nil)
	e.events.Emit(step, EventTaskCreated, map[string]any{"task_id": task.ID})
	e.obs.TaskCreated()

	if e.mode == ModeISL {
		token, err := e.tokens.Issue(task, e.params.MaxHops, e.params.Radius)
		if err != nil {
			// Leaves the task tokenless; it will miss its deadline.
			e.log.Warn(context.Background(), "token issue failed",
				logging.Int("task_id", task.ID), logging.String("error", err.Error()))
			return
		}
		e.tokenBytes[task.ID] = token
		e.events.Emit(step, EventTokenIssued, map[string]any{"task_id": task.ID})
		e.obs.TokenIssued()
	}
}

// groundDispatch hands the lowest-id outstanding task to the first
// satellite in contact and completes it on the spot when the satellite is
// inside the task's radius. Tasks left outside stay outstanding and are
// re-offered at the next gate.
func (e *Experiment) groundDispatch(step int, contacts []Edge, positions map[model.NodeID]model.Point) {
	sat, ok := satEnd(contacts[0])
	if !ok {
		return
	}
	ids := e.registry.OutstandingIDs()
	if len(ids) == 0 {
		return
	}

	id := ids[0]
	task := e.registry.Task(id)
	e.registry.MarkDispatched(id, step)
	e.events.Emit(step, EventTaskDispatched, map[string]any{"task_id": id, "sat": string(sat)})
	e.events.Emit(step, EventTaskReceived, map[string]any{"task_id": id, "sat": string(sat)})

	pos, havePos := positions[sat]
	if !havePos || task.Target.DistanceTo(pos) > e.params.Radius {
		return
	}
	e.complete(step, id, sat)
}

// islDispatch seeds a flood for every not-yet-dispatched outstanding task
// at the first satellite visible from the ground, hop count zero.
func (e *Experiment) islDispatch(step int, contacts []Edge) {
	sat, ok := satEnd(contacts[0])
	if !ok {
		return
	}
	for _, id := range e.registry.OutstandingIDs() {
		if e.registry.DispatchStep(id) >= 0 {
			continue
		}
		e.registry.MarkDispatched(id, step)
		e.floods.dispatch(id, sat)
		e.events.Emit(step, EventTaskDispatched, map[string]any{"task_id": id, "sat": string(sat)})
	}
}

// islPropagate runs one flooding step for every live flood.
func (e *Experiment) islPropagate(step int, edges []Edge) {
	for _, id := range e.floods.taskIDs() {
		e.floods.get(id).propagate(edges, e.params.MaxHops, func(src, dst model.NodeID) {
			e.events.Emit(step, EventTaskForwarded, map[string]any{
				"task_id": id, "src": string(src), "dst": string(dst),
			})
			e.obs.TaskForwarded()
		})
	}
}

// islValidate validates every holder of every live flood, in dispatch and
// arrival order, until the first acceptance. On success the flood is torn
// down; every failure is recorded and the flood stays alive.
func (e *Experiment) islValidate(step int, positions map[model.NodeID]model.Point) {
	for _, id := range e.floods.taskIDs() {
		token := e.tokenBytes[id]
		if token == nil {
			continue
		}
		task := e.registry.Task(id)
		f := e.floods.get(id)
		for _, sat := range f.order {
			pos, havePos := positions[sat]
			if !havePos {
				continue
			}
			hop, _ := f.hop(sat)
			ok, reason := e.tokens.Validate(token, task, hop, step, pos)
			e.events.Emit(step, EventTokenValidated, map[string]any{
				"task_id": id, "sat": string(sat), "ok": ok, "reason": string(reason),
			})
			e.obs.TokenValidated(string(reason))
			if ok {
				e.events.Emit(step, EventTaskReceived, map[string]any{"task_id": id, "sat": string(sat)})
				e.complete(step, id, sat)
				e.floods.remove(id)
				break
			}
		}
	}
}

// complete emits the acceptance/completion/receipt event run for a task.
func (e *Experiment) complete(step, id int, sat model.NodeID) {
	task := e.registry.Task(id)
	if !e.registry.Complete(id, step, sat) {
		return
	}
	e.events.Emit(step, EventTaskAccepted, map[string]any{"task_id": id, "sat": string(sat)})
	e.events.Emit(step, EventTaskCompleted, map[string]any{"task_id": id, "sat": string(sat)})

	receipt, err := e.tokens.Receipt(task, sat, step)
	if err != nil {
		e.log.Warn(context.Background(), "receipt signing failed",
			logging.Int("task_id", id), logging.String("error", err.Error()))
		return
	}
	e.events.Emit(step, EventReceiptEmitted, map[string]any{
		"task_id": id, "receipt": string(receipt),
	})
	e.obs.ReceiptEmitted()
}

// sweepDeadlines retires every task whose deadline lies strictly before the
// current step, emitting exactly one deadline_miss each and tearing down
// any flood the task still had.
func (e *Experiment) sweepDeadlines(step int) {
	for _, id := range e.registry.SweepDeadlines(step) {
		e.events.Emit(step, EventDeadlineMiss, map[string]any{"task_id": id})
		e.obs.DeadlineMissed()
		e.floods.remove(id)
		e.tokenBytes[id] = nil
	}
}

// groundEdges filters the edges touching a ground station.
func groundEdges(edges []Edge) []Edge {
	var contacts []Edge
	for _, e := range edges {
		if e.HasGround() {
			contacts = append(contacts, e)
		}
	}
	return contacts
}

// satEnd returns the satellite endpoint of a mixed sat/ground edge.
func satEnd(e Edge) (model.NodeID, bool) {
	if e.A.IsSatellite() {
		return e.A, true
	}
	if e.B.IsSatellite() {
		return e.B, true
	}
	return "", false
}

// RunMode is the convenience entry point: it builds an experiment for the
// mode and runs it to completion, writing the event log to w.
func RunMode(ctx context.Context, mode Mode, params RunParams, secret []byte, w io.Writer, opts ...ExperimentOption) error {
	e, err := NewExperiment(mode, params, secret, w, opts...)
	if err != nil {
		return err
	}
	return e.Run(ctx)
}
