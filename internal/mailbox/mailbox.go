// Package mailbox provides tag-matched message slots shared by transports.
//
// Every message is addressed by (run, sender, tag). A receiver blocks on exactly
// one such address, so messages arriving out of order or for a different
// collective never satisfy the wrong receive. An envelope carrying
// types.AbortTag poisons its run: every pending and future receive for that
// run fails with types.ErrAborted.
//
// Runs are released in increasing order. Anything arriving for a run at or
// below the highest released run is discarded.
package mailbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/geoparti/types"
	"github.com/puzpuzpuz/xsync/v4"
)

type key struct {
	run  uint64
	from int
	tag  string
}

type runState struct {
	done chan struct{}
	once sync.Once
	err  error
}

// Mailbox buffers envelopes until a matching receive claims them.
//
// Safe for concurrent use by any number of senders and receivers.
type Mailbox struct {
	slots *xsync.Map[key, chan types.Envelope]
	runs  *xsync.Map[uint64, *runState]

	// floor is one past the highest released run.
	floor atomic.Uint64

	closed    chan struct{}
	closeOnce sync.Once
}

// New creates an empty mailbox.
func New() *Mailbox {
	return &Mailbox{
		slots:  xsync.NewMap[key, chan types.Envelope](),
		runs:   xsync.NewMap[uint64, *runState](),
		closed: make(chan struct{}),
	}
}

// Deliver stores env for a later Receive.
//
// Parameters:
//   - env: Envelope with Run, From and Tag set
//
// Returns:
//   - error: ErrTransportClosed after Close, ErrDuplicateMessage if the address
//     already holds an unclaimed envelope. Envelopes for released runs are
//     dropped without error.
func (m *Mailbox) Deliver(env types.Envelope) error {
	select {
	case <-m.closed:
		return types.ErrTransportClosed
	default:
	}

	if m.Released(env.Run) {
		return nil
	}
	if env.Tag == types.AbortTag {
		m.poison(env.Run, fmt.Errorf("%w: rank %d: %s", types.ErrAborted, env.From, env.Payload))
		return nil
	}

	slot := m.slot(key{run: env.Run, from: env.From, tag: env.Tag})
	select {
	case slot <- env:
		return nil
	default:
		return fmt.Errorf("run %d from %d tag %q: %w", env.Run, env.From, env.Tag, types.ErrDuplicateMessage)
	}
}

// Receive blocks until an envelope addressed to (run, from, tag) arrives.
//
// An already delivered envelope is returned even if the run has since aborted.
//
// Returns:
//   - types.Envelope: The matching envelope
//   - error: ErrAborted if the run was aborted, ErrCommunication if it was failed
//     or already released, ErrTransportClosed after Close, or the context error
func (m *Mailbox) Receive(ctx context.Context, run uint64, from int, tag string) (types.Envelope, error) {
	if m.Released(run) {
		return types.Envelope{}, fmt.Errorf("%w: run %d already released", types.ErrCommunication, run)
	}

	k := key{run: run, from: from, tag: tag}
	slot := m.slot(k)
	rs := m.run(run)

	select {
	case env := <-slot:
		m.slots.Delete(k)
		return env, nil
	default:
	}

	select {
	case env := <-slot:
		m.slots.Delete(k)
		return env, nil
	case <-rs.done:
		return types.Envelope{}, rs.err
	case <-m.closed:
		return types.Envelope{}, types.ErrTransportClosed
	case <-ctx.Done():
		return types.Envelope{}, ctx.Err()
	}
}

// Fail poisons run with a local delivery failure.
//
// Pending and future receives for the run return err, which should wrap
// types.ErrCommunication. The first failure or abort of a run wins.
func (m *Mailbox) Fail(run uint64, err error) {
	if m.Released(run) {
		return
	}
	m.poison(run, err)
}

// Released reports whether run is at or below the release high-water mark.
func (m *Mailbox) Released(run uint64) bool {
	return run < m.floor.Load()
}

// Release drops all state held for run and every earlier run.
//
// Unclaimed envelopes are discarded, and later arrivals for those runs are ignored.
func (m *Mailbox) Release(run uint64) {
	for {
		cur := m.floor.Load()
		if run < cur || m.floor.CompareAndSwap(cur, run+1) {
			break
		}
	}

	floor := m.floor.Load()
	m.runs.Range(func(r uint64, _ *runState) bool {
		if r < floor {
			m.runs.Delete(r)
		}

		return true
	})
	m.slots.Range(func(k key, _ chan types.Envelope) bool {
		if k.run < floor {
			m.slots.Delete(k)
		}

		return true
	})
}

// Pending returns the number of addresses currently holding a slot.
func (m *Mailbox) Pending() int {
	return m.slots.Size()
}

// Close fails all blocked and future operations with ErrTransportClosed.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

func (m *Mailbox) slot(k key) chan types.Envelope {
	slot, _ := m.slots.LoadOrStore(k, make(chan types.Envelope, 1))

	return slot
}

func (m *Mailbox) run(run uint64) *runState {
	rs, _ := m.runs.LoadOrStore(run, &runState{done: make(chan struct{})})

	return rs
}

func (m *Mailbox) poison(run uint64, err error) {
	rs := m.run(run)
	rs.once.Do(func() {
		rs.err = err
		close(rs.done)
	})
}
