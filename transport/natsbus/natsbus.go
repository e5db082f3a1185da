// Package natsbus provides a Transport that connects partitioner processes over NATS.
//
// Every rank subscribes to its own subject, <prefix>.rank.<rank>, and publishes
// envelopes to its peers' subjects. The run, sender and tag travel as message
// headers; the payload is the message body. Envelopes larger than the chunk
// size are split across several messages and reassembled before delivery.
//
// Core NATS delivery is at-most-once. A lost message surfaces as a receive
// timeout in the partitioner and fails the run with ErrCommunication.
//
// Processes started without a preassigned rank can obtain one with ClaimRank.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/geoparti/internal/logging"
	"github.com/arloliu/geoparti/internal/mailbox"
	"github.com/arloliu/geoparti/internal/natsutil"
	"github.com/arloliu/geoparti/types"
	"github.com/nats-io/nats.go"
)

const (
	headerRun   = "Geoparti-Run"
	headerFrom  = "Geoparti-From"
	headerTag   = "Geoparti-Tag"
	headerChunk = "Geoparti-Chunk"

	// headerRoom is reserved out of the server's max payload for headers.
	headerRoom = 4 * 1024

	retryBackoff = 50 * time.Millisecond
)

// Compile-time assertion that Transport implements types.Transport.
var _ types.Transport = (*Transport)(nil)

type chunkKey struct {
	run  uint64
	from int
	tag  string
}

type partial struct {
	parts [][]byte
	got   int
}

// Transport is one rank's NATS endpoint.
type Transport struct {
	conn   *nats.Conn
	rank   int
	size   int
	opts   options
	box    *mailbox.Mailbox
	data   *nats.Subscription
	ping   *nats.Subscription
	closed atomic.Bool

	mu      sync.Mutex
	partial map[chunkKey]*partial
}

// New subscribes rank to its subject and waits until every peer has done the same.
//
// All ranks must call New concurrently; it returns once each peer answered a
// readiness probe, so no envelope published afterwards can be lost to a
// missing subscription. The connection stays owned by the caller.
//
// Parameters:
//   - ctx: Bounds the wait for peers
//   - conn: Connected NATS client
//   - rank: This process's rank in [0, size)
//   - size: Number of processes
//   - opts: Optional configuration
//
// Returns:
//   - *Transport: Ready transport
//   - error: ErrInvalidInput for bad rank/size, or a subscription or readiness error
//
// Example:
//
//	tr, err := natsbus.New(ctx, nc, rank, size, natsbus.WithSubjectPrefix("geoparti.job-7"))
//	if err != nil { /* handle */ }
//	defer tr.Close()
func New(ctx context.Context, conn *nats.Conn, rank, size int, opts ...Option) (*Transport, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nats connection is nil", types.ErrTransportRequired)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: process count must be positive, got %d", types.ErrInvalidInput, size)
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: rank %d outside [0, %d)", types.ErrInvalidInput, rank, size)
	}

	o := options{
		prefix:       DefaultSubjectPrefix,
		readyTimeout: DefaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.With(o.logger, "rank", rank)
	if o.chunkSize <= 0 {
		o.chunkSize = int(conn.MaxPayload()) - headerRoom
	}
	if o.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: server max payload %d too small", types.ErrInvalidInput, conn.MaxPayload())
	}

	t := &Transport{
		conn:    conn,
		rank:    rank,
		size:    size,
		opts:    o,
		box:     mailbox.New(),
		partial: make(map[chunkKey]*partial),
	}

	var err error
	t.data, err = conn.Subscribe(t.subject(rank), t.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", t.subject(rank), err)
	}
	if err := t.data.SetPendingLimits(-1, -1); err != nil {
		_ = t.data.Unsubscribe()
		return nil, fmt.Errorf("pending limits: %w", err)
	}

	t.ping, err = conn.Subscribe(t.pingSubject(rank), func(msg *nats.Msg) {
		_ = msg.Respond(nil)
	})
	if err != nil {
		_ = t.data.Unsubscribe()
		return nil, fmt.Errorf("subscribe %s: %w", t.pingSubject(rank), err)
	}

	if err := conn.FlushTimeout(o.readyTimeout); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("flush subscriptions: %w", err)
	}

	if err := t.waitForPeers(ctx); err != nil {
		_ = t.Close()
		return nil, err
	}

	o.logger.Debug("nats transport ready", "size", size, "prefix", o.prefix, "chunkSize", o.chunkSize)

	return t, nil
}

// Rank returns this endpoint's rank.
func (t *Transport) Rank() int { return t.rank }

// Size returns the number of ranks.
func (t *Transport) Size() int { return t.size }

// Send publishes env to rank to, splitting it into chunks when needed.
func (t *Transport) Send(ctx context.Context, to int, env types.Envelope) error {
	if t.closed.Load() {
		return types.ErrTransportClosed
	}
	if to < 0 || to >= t.size {
		return fmt.Errorf("send to %d: %w", to, types.ErrInvalidRank)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := t.subject(to)
	payload := env.Payload
	n := max(1, (len(payload)+t.opts.chunkSize-1)/t.opts.chunkSize)
	for i := range n {
		msg := nats.NewMsg(subject)
		msg.Header.Set(headerRun, strconv.FormatUint(env.Run, 10))
		msg.Header.Set(headerFrom, strconv.Itoa(t.rank))
		msg.Header.Set(headerTag, env.Tag)
		if n > 1 {
			msg.Header.Set(headerChunk, fmt.Sprintf("%d/%d", i, n))
		}
		lo := i * t.opts.chunkSize
		hi := min(lo+t.opts.chunkSize, len(payload))
		msg.Data = payload[lo:hi]

		if err := t.conn.PublishMsg(msg); err != nil {
			if natsutil.IsClosed(err) {
				return fmt.Errorf("%w: publish to rank %d: %w", types.ErrTransportClosed, to, err)
			}

			return fmt.Errorf("%w: publish to rank %d: %w", types.ErrCommunication, to, err)
		}
	}

	return nil
}

// Receive blocks until the envelope for (run, from, tag) has fully arrived.
func (t *Transport) Receive(ctx context.Context, run uint64, from int, tag string) (types.Envelope, error) {
	if from < 0 || from >= t.size {
		return types.Envelope{}, fmt.Errorf("receive from %d: %w", from, types.ErrInvalidRank)
	}

	return t.box.Receive(ctx, run, from, tag)
}

// Release drops buffered state for a finished run and every earlier one.
func (t *Transport) Release(run uint64) {
	t.box.Release(run)

	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.partial {
		if t.box.Released(k.run) {
			delete(t.partial, k)
		}
	}
}

// Close unsubscribes and fails pending receives. The NATS connection is left open.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if t.data != nil {
		errs = append(errs, t.data.Unsubscribe())
	}
	if t.ping != nil {
		errs = append(errs, t.ping.Unsubscribe())
	}
	t.box.Close()

	err := errors.Join(errs...)
	if natsutil.IsClosed(err) {
		return nil
	}

	return err
}

func (t *Transport) handle(msg *nats.Msg) {
	env, err := decodeHeaders(msg)
	if err != nil {
		t.opts.logger.Warn("dropping malformed message", "subject", msg.Subject, "error", err)
		if run, ok := runHeader(msg); ok {
			t.box.Fail(run, fmt.Errorf("%w: malformed message on %s: %w", types.ErrCommunication, msg.Subject, err))
		}

		return
	}
	if t.box.Released(env.Run) {
		return
	}
	if env.From < 0 || env.From >= t.size {
		t.poison(env, fmt.Errorf("sender outside %d ranks", t.size))
		return
	}

	if chunk := msg.Header.Get(headerChunk); chunk != "" {
		var ok bool
		env, ok, err = t.assemble(env, chunk, msg.Data)
		if err != nil {
			t.poison(env, err)
			return
		}
		if !ok {
			return
		}
	}

	if err := t.box.Deliver(env); err != nil && !errors.Is(err, types.ErrTransportClosed) {
		t.poison(env, err)
	}
}

// poison fails env's run locally so the receiver sees the bad message now rather than at its timeout.
func (t *Transport) poison(env types.Envelope, cause error) {
	t.opts.logger.Warn("failing run on bad message", "run", env.Run, "from", env.From, "tag", env.Tag, "error", cause)

	t.mu.Lock()
	delete(t.partial, chunkKey{run: env.Run, from: env.From, tag: env.Tag})
	t.mu.Unlock()

	t.box.Fail(env.Run, fmt.Errorf("%w: message from rank %d tag %q: %w", types.ErrCommunication, env.From, env.Tag, cause))
}

// assemble records one chunk and returns the whole envelope once every chunk arrived.
func (t *Transport) assemble(env types.Envelope, chunk string, data []byte) (types.Envelope, bool, error) {
	var i, n int
	if _, err := fmt.Sscanf(chunk, "%d/%d", &i, &n); err != nil {
		return env, false, fmt.Errorf("chunk header %q: %w", chunk, err)
	}
	if n <= 0 || i < 0 || i >= n {
		return env, false, fmt.Errorf("chunk header %q out of range", chunk)
	}

	k := chunkKey{run: env.Run, from: env.From, tag: env.Tag}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Release may have run between handle's check and here.
	if t.box.Released(env.Run) {
		return env, false, nil
	}

	p, ok := t.partial[k]
	if !ok {
		p = &partial{parts: make([][]byte, n)}
		t.partial[k] = p
	}
	if len(p.parts) != n {
		return env, false, fmt.Errorf("chunk count changed from %d to %d", len(p.parts), n)
	}
	if p.parts[i] != nil {
		return env, false, fmt.Errorf("chunk %d repeated", i)
	}
	p.parts[i] = append([]byte{}, data...)
	p.got++
	if p.got < n {
		return env, false, nil
	}

	delete(t.partial, k)
	size := 0
	for _, part := range p.parts {
		size += len(part)
	}
	env.Payload = make([]byte, 0, size)
	for _, part := range p.parts {
		env.Payload = append(env.Payload, part...)
	}

	return env, true, nil
}

// waitForPeers probes every peer's readiness subject until it answers.
func (t *Transport) waitForPeers(ctx context.Context) error {
	for peer := range t.size {
		if peer == t.rank {
			continue
		}
		for {
			pctx, cancel := context.WithTimeout(ctx, t.opts.readyTimeout)
			_, err := t.conn.RequestWithContext(pctx, t.pingSubject(peer), nil)
			cancel()
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("waiting for rank %d: %w", peer, ctx.Err())
			}
			if !natsutil.IsRetryable(err) && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("waiting for rank %d: %w", peer, err)
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("waiting for rank %d: %w", peer, ctx.Err())
			case <-time.After(retryBackoff):
			}
		}
	}

	return nil
}

func (t *Transport) subject(rank int) string {
	return t.opts.prefix + ".rank." + strconv.Itoa(rank)
}

func (t *Transport) pingSubject(rank int) string {
	return t.opts.prefix + ".ready." + strconv.Itoa(rank)
}

func runHeader(msg *nats.Msg) (uint64, bool) {
	if msg.Header == nil {
		return 0, false
	}
	run, err := strconv.ParseUint(msg.Header.Get(headerRun), 10, 64)

	return run, err == nil
}

func decodeHeaders(msg *nats.Msg) (types.Envelope, error) {
	if msg.Header == nil {
		return types.Envelope{}, errors.New("missing headers")
	}

	run, err := strconv.ParseUint(msg.Header.Get(headerRun), 10, 64)
	if err != nil {
		return types.Envelope{}, fmt.Errorf("run header: %w", err)
	}
	from, err := strconv.Atoi(msg.Header.Get(headerFrom))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("from header: %w", err)
	}
	tag := msg.Header.Get(headerTag)
	if tag == "" {
		return types.Envelope{}, errors.New("empty tag header")
	}

	return types.Envelope{Run: run, From: from, Tag: tag, Payload: msg.Data}, nil
}
