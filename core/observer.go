package core

// RunObserver receives lifecycle counters as a run progresses. The metrics
// collector in internal/observability satisfies it; a run without metrics
// uses the no-op implementation.
type RunObserver interface {
	TaskCreated()
	TokenIssued()
	TaskForwarded()
	TokenValidated(reason string)
	ReceiptEmitted()
	DeadlineMissed()
	SetOutstanding(n int)

	PacketInjected()
	PacketDelivered()
	PacketDropped(reason string)
	PacketTampered()
	ObserveTTFS(steps int)
}

// NopObserver discards all observations.
type NopObserver struct{}

func (NopObserver) TaskCreated()                {}
func (NopObserver) TokenIssued()                {}
func (NopObserver) TaskForwarded()              {}
func (NopObserver) TokenValidated(string)       {}
func (NopObserver) ReceiptEmitted()             {}
func (NopObserver) DeadlineMissed()             {}
func (NopObserver) SetOutstanding(int)          {}
func (NopObserver) PacketInjected()             {}
func (NopObserver) PacketDelivered()            {}
func (NopObserver) PacketDropped(string)        {}
func (NopObserver) PacketTampered()             {}
func (NopObserver) ObserveTTFS(int)             {}
