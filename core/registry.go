package core

import "github.com/signalsfoundry/isl-tasking-sim/model"

// TaskStatus is a task's lifecycle state. Completed and deadline-missed are
// terminal and mutually exclusive; a task leaves the outstanding set exactly
// once.
type TaskStatus int

const (
	StatusPending TaskStatus = iota
	StatusDispatched
	StatusCompleted
	StatusDeadlineMissed
)

// String returns the status name used in logs.
func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDispatched:
		return "dispatched"
	case StatusCompleted:
		return "completed"
	case StatusDeadlineMissed:
		return "deadline_missed"
	default:
		return "unknown"
	}
}

type taskEntry struct {
	task          model.Task
	status        TaskStatus
	dispatchStep  int
	completedStep int
	completedBy   model.NodeID
}

// TaskRegistry owns every task of a run. Ids are dense, sequential, and
// never reused, so the registry is a plain arena indexed by id rather than
// a set of hashed maps threaded through the step loop.
type TaskRegistry struct {
	entries []taskEntry
}

// NewTaskRegistry returns an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{}
}

// Create appends a new pending task and returns it. The id is the arena
// index.
func (r *TaskRegistry) Create(createdStep, deadlineStep int, target model.Point, service string) model.Task {
	task := model.Task{
		ID:           len(r.entries),
		CreatedStep:  createdStep,
		DeadlineStep: deadlineStep,
		Target:       target,
		Service:      service,
	}
	r.entries = append(r.entries, taskEntry{task: task, status: StatusPending, dispatchStep: -1})
	return task
}

// Len returns how many tasks have been created.
func (r *TaskRegistry) Len() int { return len(r.entries) }

// Task returns the immutable task for an id.
func (r *TaskRegistry) Task(id int) model.Task { return r.entries[id].task }

// Status returns the task's lifecycle state.
func (r *TaskRegistry) Status(id int) TaskStatus { return r.entries[id].status }

// DispatchStep returns the step of the task's first dispatch, or -1.
func (r *TaskRegistry) DispatchStep(id int) int { return r.entries[id].dispatchStep }

// CompletedBy returns which satellite completed the task at which step.
func (r *TaskRegistry) CompletedBy(id int) (model.NodeID, int) {
	return r.entries[id].completedBy, r.entries[id].completedStep
}

// outstanding reports whether the task still awaits a terminal state.
func (e *taskEntry) outstanding() bool {
	return e.status == StatusPending || e.status == StatusDispatched
}

// OutstandingIDs returns, in ascending id order, every task that has not
// reached a terminal state.
func (r *TaskRegistry) OutstandingIDs() []int {
	var ids []int
	for id := range r.entries {
		if r.entries[id].outstanding() {
			ids = append(ids, id)
		}
	}
	return ids
}

// MarkDispatched records the task's first dispatch. Later dispatch attempts
// keep the original step, mirroring how the ground gate re-offers a task
// until it is accepted.
func (r *TaskRegistry) MarkDispatched(id, step int) {
	e := &r.entries[id]
	if !e.outstanding() {
		return
	}
	if e.dispatchStep < 0 {
		e.dispatchStep = step
	}
	e.status = StatusDispatched
}

// Complete moves an outstanding task to its terminal success state. It
// returns false if the task already left the outstanding set, so a task can
// never complete twice or complete after a deadline miss.
func (r *TaskRegistry) Complete(id, step int, sat model.NodeID) bool {
	e := &r.entries[id]
	if !e.outstanding() {
		return false
	}
	e.status = StatusCompleted
	e.completedStep = step
	e.completedBy = sat
	return true
}

// SweepDeadlines marks every outstanding task whose deadline lies strictly
// before now as missed, returning the newly missed ids in ascending order.
// Each task can appear in at most one sweep.
func (r *TaskRegistry) SweepDeadlines(now int) []int {
	var missed []int
	for id := range r.entries {
		e := &r.entries[id]
		if e.outstanding() && now > e.task.DeadlineStep {
			e.status = StatusDeadlineMissed
			missed = append(missed, id)
		}
	}
	return missed
}

// Counts tallies tasks by terminal state plus those still outstanding.
func (r *TaskRegistry) Counts() (completed, missed, outstanding int) {
	for id := range r.entries {
		switch r.entries[id].status {
		case StatusCompleted:
			completed++
		case StatusDeadlineMissed:
			missed++
		default:
			outstanding++
		}
	}
	return completed, missed, outstanding
}
