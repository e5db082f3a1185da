package natsbus

import (
	"bytes"
	"context"
	"testing"
	"time"

	geopartitest "github.com/arloliu/geoparti/testing"
	"github.com/arloliu/geoparti/types"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// startRanks creates size transports on separate connections, concurrently.
func startRanks(t *testing.T, size int, opts ...Option) []*Transport {
	t.Helper()

	ns, _ := geopartitest.StartEmbeddedNATS(t)

	return startRanksOn(t, ns, size, opts...)
}

func startRanksOn(t *testing.T, ns *server.Server, size int, opts ...Option) []*Transport {
	t.Helper()

	conns := geopartitest.ConnectRanks(t, ns, size)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	trs := make([]*Transport, size)
	g, gctx := errgroup.WithContext(ctx)
	for rank := range size {
		g.Go(func() error {
			var err error
			trs[rank], err = New(gctx, conns[rank], rank, size, opts...)

			return err
		})
	}
	require.NoError(t, g.Wait())

	t.Cleanup(func() {
		for _, tr := range trs {
			_ = tr.Close()
		}
	})

	return trs
}

func TestNew_InvalidArguments(t *testing.T) {
	_, nc := geopartitest.StartEmbeddedNATS(t)
	ctx := t.Context()

	_, err := New(ctx, nil, 0, 1)
	require.ErrorIs(t, err, types.ErrTransportRequired)

	_, err = New(ctx, nc, 0, 0)
	require.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = New(ctx, nc, 2, 2)
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestNew_SingleRank(t *testing.T) {
	trs := startRanks(t, 1)
	require.Equal(t, 0, trs[0].Rank())
	require.Equal(t, 1, trs[0].Size())
}

func TestNew_WaitsForPeers(t *testing.T) {
	_, nc := geopartitest.StartEmbeddedNATS(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// Rank 1 never starts.
	_, err := New(ctx, nc, 0, 2, WithReadyTimeout(50*time.Millisecond))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendReceive(t *testing.T) {
	trs := startRanks(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, trs[0].Send(ctx, 2, types.Envelope{Run: 7, Tag: "a", Payload: []byte("hello")}))
	require.NoError(t, trs[1].Send(ctx, 2, types.Envelope{Run: 7, Tag: "a", Payload: []byte("world")}))

	// Receive is matched by sender, not arrival order.
	env, err := trs[2].Receive(ctx, 7, 1, "a")
	require.NoError(t, err)
	require.Equal(t, "world", string(env.Payload))
	require.Equal(t, 1, env.From)

	env, err = trs[2].Receive(ctx, 7, 0, "a")
	require.NoError(t, err)
	require.Equal(t, "hello", string(env.Payload))
	require.Equal(t, uint64(7), env.Run)
}

func TestSendReceive_EmptyPayload(t *testing.T) {
	trs := startRanks(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, trs[1].Send(ctx, 0, types.Envelope{Run: 1, Tag: "barrier"}))
	env, err := trs[0].Receive(ctx, 1, 1, "barrier")
	require.NoError(t, err)
	require.Empty(t, env.Payload)
}

func TestSendReceive_Chunked(t *testing.T) {
	trs := startRanks(t, 2, WithChunkSize(1000))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1000)
	require.NoError(t, trs[0].Send(ctx, 1, types.Envelope{Run: 3, Tag: "big", Payload: payload}))

	env, err := trs[1].Receive(ctx, 3, 0, "big")
	require.NoError(t, err)
	require.Equal(t, payload, env.Payload)

	trs[1].mu.Lock()
	require.Empty(t, trs[1].partial)
	trs[1].mu.Unlock()
}

func TestSend_InvalidRank(t *testing.T) {
	trs := startRanks(t, 2)

	err := trs[0].Send(t.Context(), 5, types.Envelope{Tag: "x"})
	require.ErrorIs(t, err, types.ErrInvalidRank)

	_, err = trs[0].Receive(t.Context(), 1, -1, "x")
	require.ErrorIs(t, err, types.ErrInvalidRank)
}

func TestAbortWakesReceiver(t *testing.T) {
	trs := startRanks(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := trs[1].Receive(ctx, 9, 0, "never")
		errCh <- err
	}()

	require.NoError(t, trs[0].Send(ctx, 1, types.Envelope{Run: 9, Tag: types.AbortTag, Payload: []byte("boom")}))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, types.ErrAborted)
		require.Contains(t, err.Error(), "boom")
	case <-ctx.Done():
		t.Fatal("receiver not woken by abort")
	}
}

func TestMessagesWithoutRunAreDropped(t *testing.T) {
	ns, _ := geopartitest.StartEmbeddedNATS(t)
	trs := startRanksOn(t, ns, 2)
	raw := geopartitest.ConnectRanks(t, ns, 1)[0]

	// No headers at all, then headers with an unparsable run.
	require.NoError(t, raw.Publish(DefaultSubjectPrefix+".rank.0", []byte("junk")))
	msg := nats.NewMsg(DefaultSubjectPrefix + ".rank.0")
	msg.Header.Set(headerRun, "not-a-run")
	msg.Header.Set(headerFrom, "1")
	msg.Header.Set(headerTag, "t")
	require.NoError(t, raw.PublishMsg(msg))
	require.NoError(t, raw.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, trs[1].Send(ctx, 0, types.Envelope{Run: 1, Tag: "t", Payload: []byte("ok")}))

	env, err := trs[0].Receive(ctx, 1, 1, "t")
	require.NoError(t, err)
	require.Equal(t, "ok", string(env.Payload))
}

func TestMalformedMessageFailsRun(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{
			name:    "sender out of range",
			headers: map[string]string{headerFrom: "42", headerTag: "t"},
		},
		{
			name:    "missing tag",
			headers: map[string]string{headerFrom: "1"},
		},
		{
			name:    "unparsable chunk",
			headers: map[string]string{headerFrom: "1", headerTag: "t", headerChunk: "x/y"},
		},
		{
			name:    "chunk index out of range",
			headers: map[string]string{headerFrom: "1", headerTag: "t", headerChunk: "3/2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns, _ := geopartitest.StartEmbeddedNATS(t)
			trs := startRanksOn(t, ns, 2)
			raw := geopartitest.ConnectRanks(t, ns, 1)[0]

			msg := nats.NewMsg(DefaultSubjectPrefix + ".rank.0")
			msg.Header.Set(headerRun, "3")
			for k, v := range tt.headers {
				msg.Header.Set(k, v)
			}
			msg.Data = []byte("bad")
			require.NoError(t, raw.PublishMsg(msg))
			require.NoError(t, raw.Flush())

			// The failure must surface long before this deadline.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			start := time.Now()
			_, err := trs[0].Receive(ctx, 3, 1, "t")
			require.ErrorIs(t, err, types.ErrCommunication)
			require.Less(t, time.Since(start), 2*time.Second)

			// Other runs are unaffected.
			require.NoError(t, trs[1].Send(ctx, 0, types.Envelope{Run: 4, Tag: "t", Payload: []byte("ok")}))
			env, err := trs[0].Receive(ctx, 4, 1, "t")
			require.NoError(t, err)
			require.Equal(t, "ok", string(env.Payload))
		})
	}
}

func TestDuplicateMessageFailsRun(t *testing.T) {
	trs := startRanks(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env := types.Envelope{Run: 2, Tag: "dup", Payload: []byte("a")}
	require.NoError(t, trs[1].Send(ctx, 0, env))
	require.NoError(t, trs[1].Send(ctx, 0, env))

	// The second copy finds the first still buffered and poisons the run.
	_, err := trs[0].Receive(ctx, 2, 1, "other")
	require.ErrorIs(t, err, types.ErrCommunication)
}

func TestRelease_DropsPartialChunks(t *testing.T) {
	ns, _ := geopartitest.StartEmbeddedNATS(t)
	trs := startRanksOn(t, ns, 2)
	raw := geopartitest.ConnectRanks(t, ns, 1)[0]

	publishChunk := func(run string) {
		msg := nats.NewMsg(DefaultSubjectPrefix + ".rank.0")
		msg.Header.Set(headerRun, run)
		msg.Header.Set(headerFrom, "1")
		msg.Header.Set(headerTag, "big")
		msg.Header.Set(headerChunk, "0/2")
		msg.Data = []byte("half")
		require.NoError(t, raw.PublishMsg(msg))
		require.NoError(t, raw.Flush())
	}
	partials := func() int {
		trs[0].mu.Lock()
		defer trs[0].mu.Unlock()

		return len(trs[0].partial)
	}

	publishChunk("10")
	require.Eventually(t, func() bool { return partials() == 1 }, 2*time.Second, 10*time.Millisecond)

	trs[0].Release(10)
	require.Zero(t, partials())

	// Chunks arriving after their run was released are not buffered again.
	publishChunk("10")
	publishChunk("7")
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, partials())
}

func TestClose(t *testing.T) {
	trs := startRanks(t, 2)

	require.NoError(t, trs[0].Close())
	require.NoError(t, trs[0].Close())

	err := trs[0].Send(t.Context(), 1, types.Envelope{Tag: "x"})
	require.ErrorIs(t, err, types.ErrTransportClosed)

	_, err = trs[0].Receive(t.Context(), 1, 1, "x")
	require.ErrorIs(t, err, types.ErrTransportClosed)
}

func TestSubjectPrefixIsolation(t *testing.T) {
	ns, _ := geopartitest.StartEmbeddedNATS(t)
	a := startRanksOn(t, ns, 2, WithSubjectPrefix("geoparti.a"))
	b := startRanksOn(t, ns, 2, WithSubjectPrefix("geoparti.b"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a[0].Send(ctx, 1, types.Envelope{Run: 1, Tag: "t", Payload: []byte("a")}))
	require.NoError(t, b[0].Send(ctx, 1, types.Envelope{Run: 1, Tag: "t", Payload: []byte("b")}))

	env, err := b[1].Receive(ctx, 1, 0, "t")
	require.NoError(t, err)
	require.Equal(t, "b", string(env.Payload))

	env, err = a[1].Receive(ctx, 1, 0, "t")
	require.NoError(t, err)
	require.Equal(t, "a", string(env.Payload))
}
