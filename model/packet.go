package model

// PacketMeta carries delivery bookkeeping for a store-and-forward packet.
// Fields are explicit rather than a free-form map so the transport layer
// never has to guess at presence or types.
type PacketMeta struct {
	// JobID ties the packet back to the job that produced it.
	JobID int
	// TTLSteps bounds how many steps the packet may stay queued before it
	// is dropped; zero means "use the network default".
	TTLSteps int
	// Expected holds the receipt bytes the receiver should see. Receipt
	// verification is byte equality, nothing more.
	Expected []byte
	// InjectStep and DeliverStep are stamped by the transport.
	InjectStep  int
	DeliverStep int
}

// Packet is a payload in flight between two nodes. It is owned exclusively
// by the delivery queue from injection until delivery or drop.
type Packet struct {
	Src     NodeID
	Dst     NodeID
	Payload []byte
	Meta    PacketMeta
}
