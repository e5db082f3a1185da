package types

import "context"

// AbortTag is the reserved envelope tag that aborts a run on the receiving process.
const AbortTag = "!abort"

// Envelope is one point-to-point message between logical peers.
type Envelope struct {
	// Run identifies the partitioning call the message belongs to.
	Run uint64

	// From is the rank of the sender. Transports set it on Send.
	From int

	// Tag identifies the receive slot (group path, operation and sequence).
	Tag string

	// Payload is the encoded message body.
	Payload []byte
}

// Transport delivers envelopes between the ranks of a fixed set of logical peers.
//
// Implementations exist for in-process goroutines (transport/memory) and for
// NATS subjects (transport/natsbus). A Transport only moves bytes: group
// membership, collectives and barriers are layered on top of it.
//
// Implementations must:
//   - Deliver each envelope at most once
//   - Match receives by (run, from, tag); arrival order is irrelevant
//   - Fail pending and future receives of a run after an AbortTag envelope for it arrives
//   - Be safe for concurrent use
type Transport interface {
	// Rank returns this peer's rank in [0, Size).
	Rank() int

	// Size returns the number of peers.
	Size() int

	// Send delivers env to peer to. env.From is overwritten with Rank().
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - to: Destination rank
	//   - env: Envelope to deliver
	//
	// Returns:
	//   - error: ErrInvalidRank, ErrTransportClosed or a delivery error
	Send(ctx context.Context, to int, env Envelope) error

	// Receive blocks until the envelope for (run, from, tag) arrives.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline
	//   - run: Run identifier
	//   - from: Sender rank
	//   - tag: Receive slot tag
	//
	// Returns:
	//   - Envelope: The matched envelope
	//   - error: ctx error, ErrAborted (run aborted by a peer) or ErrTransportClosed
	Receive(ctx context.Context, run uint64, from int, tag string) (Envelope, error)

	// Close releases transport resources. Pending receives fail with ErrTransportClosed.
	Close() error
}

// ReduceOp is an elementwise reduction operator.
type ReduceOp int

const (
	// ReduceSum adds values.
	ReduceSum ReduceOp = iota
	// ReduceMin keeps the smallest value.
	ReduceMin
	// ReduceMax keeps the largest value.
	ReduceMax
)

// String returns the operator name.
func (op ReduceOp) String() string {
	switch op {
	case ReduceSum:
		return "sum"
	case ReduceMin:
		return "min"
	case ReduceMax:
		return "max"
	default:
		return "unknown"
	}
}

// Reducer performs elementwise reductions across every process of the active group.
//
// Every call is a collective synchronization point: all members must call it
// with vectors of equal length, in the same order. All members receive
// bit-identical results, so decisions derived from them agree across processes.
type Reducer interface {
	// Allreduce reduces float64 vectors.
	Allreduce(ctx context.Context, op ReduceOp, values []float64) ([]float64, error)

	// AllreduceUint64 reduces uint64 vectors exactly.
	AllreduceUint64(ctx context.Context, op ReduceOp, values []uint64) ([]uint64, error)
}
