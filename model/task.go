package model

// Task is a unit of work bound to a spot in the projection plane. Tasks are
// immutable after creation; ids are assigned sequentially by the task
// registry and never reused.
type Task struct {
	ID           int
	CreatedStep  int
	DeadlineStep int
	Target       Point
	Service      string
}

// DefaultService is the service tag attached to generated tasks.
const DefaultService = "imaging"
