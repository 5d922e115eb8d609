package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/core/coretest"
	"github.com/dkeye/callbridge/internal/core/mocks"
	"github.com/dkeye/callbridge/internal/domain"
	"go.uber.org/mock/gomock"
)

// newBroker wires a broker to a store mock that knows every call id,
// assigning voice profile 7 and user 3.
func newBroker(t *testing.T) (*Broker, *mocks.MockSessionStore, *mocks.MockNotifier) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	store.EXPECT().GetVoiceProfileID(gomock.Any(), gomock.Any()).Return(domain.VoiceProfileID(7), nil).AnyTimes()
	store.EXPECT().GetUserID(gomock.Any(), gomock.Any()).Return(domain.UserID(3), nil).AnyTimes()
	notifier.EXPECT().NotifyCallEnded(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	return New(store, notifier), store, notifier
}

func registerClient(t *testing.T, b *Broker, id domain.CallID) *coretest.Conn {
	t.Helper()
	c := coretest.NewClient("client-" + id.String())
	if err := b.RegisterClient(context.Background(), id, c); err != nil {
		t.Fatalf("register client %s: %v", id, err)
	}
	return c
}

func registerWorker(t *testing.T, b *Broker, name string) *coretest.Conn {
	t.Helper()
	w := coretest.NewWorker(name)
	if err := b.RegisterWorker(context.Background(), w); err != nil {
		t.Fatalf("register worker %s: %v", name, err)
	}
	return w
}

func lastControl(t *testing.T, c *coretest.Conn) map[string]any {
	t.Helper()
	texts := c.Texts()
	if len(texts) == 0 {
		t.Fatalf("%s received no control message", c.ID())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(texts[len(texts)-1]), &m); err != nil {
		t.Fatalf("decode control: %v", err)
	}
	return m
}

func TestPendingClientPairsWithArrivingWorker(t *testing.T) {
	b, _, _ := newBroker(t)
	registerClient(t, b, 42)

	if got := b.Pool.PendingCalls(); len(got) != 1 || got[0] != 42 {
		t.Fatalf("pending = %v", got)
	}
	if s := b.State(42); s != domain.CallPending {
		t.Fatalf("state = %s", s)
	}

	w := registerWorker(t, b, "w1")
	if s := b.State(42); s != domain.CallActive {
		t.Fatalf("state = %s", s)
	}
	msg := lastControl(t, w)
	if msg["type"] != "start" || msg["sessionId"] != "42" || msg["voiceProfileId"] != float64(7) || msg["userId"] != float64(3) {
		t.Fatalf("start message = %v", msg)
	}
	if b.Pool.PendingCount() != 0 || b.Pool.IdleCount() != 0 {
		t.Fatalf("stats = %+v", b.Stats())
	}
}

func TestFIFOAcrossWorkersAndClients(t *testing.T) {
	b, _, _ := newBroker(t)
	w1 := registerWorker(t, b, "w1")
	w2 := registerWorker(t, b, "w2")

	c1 := registerClient(t, b, 1)
	c2 := registerClient(t, b, 2)

	if peer, _ := b.Registry.PeerOf(c1.ID()); peer.ID() != w1.ID() {
		t.Fatalf("c1 paired with %s", peer.ID())
	}
	if peer, _ := b.Registry.PeerOf(c2.ID()); peer.ID() != w2.ID() {
		t.Fatalf("c2 paired with %s", peer.ID())
	}
}

func TestTwoIdleWorkersOneClient(t *testing.T) {
	b, _, _ := newBroker(t)
	registerWorker(t, b, "w1")
	w2 := registerWorker(t, b, "w2")
	registerClient(t, b, 5)

	if b.Pool.IdleCount() != 1 || !b.Pool.IsIdle(w2.ID()) {
		t.Fatalf("expected only w2 idle, stats = %+v", b.Stats())
	}
}

func TestClientDisconnectReturnsWorker(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()
	w := registerWorker(t, b, "w1")
	c := registerClient(t, b, 10)

	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(10)).Return(nil)
	b.OnDisconnect(ctx, c)

	if !b.Pool.IsIdle(w.ID()) {
		t.Fatal("worker should be idle again")
	}
	if msg := lastControl(t, w); msg["type"] != "end" || msg["sessionId"] != "10" {
		t.Fatalf("end message = %v", msg)
	}
	if _, ok := b.Registry.PeerOf(w.ID()); ok {
		t.Fatal("residual pairing")
	}
	if w.Closed() {
		t.Fatal("worker must stay open")
	}

	c2 := registerClient(t, b, 11)
	if peer, ok := b.Registry.PeerOf(c2.ID()); !ok || peer.ID() != w.ID() {
		t.Fatal("new call should reuse the released worker")
	}
}

func TestWorkerDisconnectClosesClient(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()
	w := registerWorker(t, b, "w1")
	c := registerClient(t, b, 20)

	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(20)).Return(nil)
	b.OnDisconnect(ctx, w)

	reason, closed := c.CloseReason()
	if !closed || reason != core.CloseWorkerLost {
		t.Fatalf("client close = %v, %v", reason, closed)
	}
	if b.Pool.IsIdle(w.ID()) {
		t.Fatal("lost worker must not be pooled")
	}
	if _, ok := b.Registry.PeerOf(c.ID()); ok {
		t.Fatal("residual pairing for client")
	}
	if _, ok := b.Registry.CallOf(c.ID()); ok {
		t.Fatal("residual binding for client")
	}
	if s := b.State(20); s != domain.CallEnded {
		t.Fatalf("state = %s", s)
	}

	// The client's own read pump exits afterwards; nothing more happens.
	b.OnDisconnect(ctx, c)
}

func TestIdleWorkerDisconnect(t *testing.T) {
	b, _, _ := newBroker(t)
	w := registerWorker(t, b, "w1")
	b.OnDisconnect(context.Background(), w)
	if b.Pool.IdleCount() != 0 {
		t.Fatal("worker still idle")
	}
}

func TestPendingClientDisconnect(t *testing.T) {
	b, store, _ := newBroker(t)
	c := registerClient(t, b, 30)

	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(30)).Return(nil)
	b.OnDisconnect(context.Background(), c)
	if b.Pool.IsPending(30) {
		t.Fatal("client still pending")
	}
	if s := b.State(30); s != domain.CallEnded {
		t.Fatalf("state = %s", s)
	}
}

func TestForceEndActiveIsIdempotent(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()
	w := registerWorker(t, b, "w1")
	c := registerClient(t, b, 40)

	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(40)).Return(nil).Times(1)
	b.ForceEnd(ctx, 40)
	b.ForceEnd(ctx, 40)

	reason, closed := c.CloseReason()
	if !closed || reason != core.CloseHangup {
		t.Fatalf("client close = %v, %v", reason, closed)
	}
	if b.State(40) != domain.CallEnded {
		t.Fatal("call should be ended")
	}
	if b.Pool.IdleCount() != 1 || !b.Pool.IsIdle(w.ID()) {
		t.Fatalf("worker released %d times", b.Pool.IdleCount())
	}
	ends := 0
	for _, txt := range w.Texts() {
		var m map[string]any
		if json.Unmarshal([]byte(txt), &m) == nil && m["type"] == "end" {
			ends++
		}
	}
	if ends != 1 {
		t.Fatalf("worker got %d end messages", ends)
	}

	// The client's transport closing later must not release the worker again.
	b.OnDisconnect(ctx, c)
	if b.Pool.IdleCount() != 1 {
		t.Fatalf("idle = %d", b.Pool.IdleCount())
	}
}

func TestForceEndPendingAndUnknown(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()
	registerClient(t, b, 50)

	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(50)).Return(nil)
	if err := b.ForceEnd(ctx, 50); err != nil {
		t.Fatal(err)
	}
	if b.Pool.IsPending(50) {
		t.Fatal("call still pending")
	}

	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(999)).Return(domain.ErrUnknownCall)
	if err := b.ForceEnd(ctx, 999); err != nil {
		t.Fatalf("unknown call: %v", err)
	}
}

func TestForceEndWithoutClientWritesOnce(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()

	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(55)).Return(nil).Times(1)
	for i := 0; i < 2; i++ {
		if err := b.ForceEnd(ctx, 55); err != nil {
			t.Fatalf("hangup %d: %v", i, err)
		}
	}

	err := b.RegisterClient(ctx, 55, coretest.NewClient("late"))
	if !errors.Is(err, domain.ErrCallEnded) {
		t.Fatalf("late client: %v", err)
	}
}

func TestForceEndRetriesFailedWrite(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()
	registerClient(t, b, 56)

	boom := errors.New("database is locked")
	gomock.InOrder(
		store.EXPECT().CloseSession(gomock.Any(), domain.CallID(56)).Return(boom),
		store.EXPECT().CloseSession(gomock.Any(), domain.CallID(56)).Return(nil),
	)
	if err := b.ForceEnd(ctx, 56); !errors.Is(err, boom) {
		t.Fatalf("first hangup: %v", err)
	}
	if err := b.ForceEnd(ctx, 56); err != nil {
		t.Fatalf("second hangup: %v", err)
	}
}

// The store still reports the call as live when the second client reads
// it; the hangup lands before that client takes the broker lock.
func TestEndedCallIsNeverRevived(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	b := New(store, nil)
	ctx := context.Background()

	store.EXPECT().GetUserID(gomock.Any(), domain.CallID(42)).Return(domain.UserID(3), nil).AnyTimes()
	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(42)).Return(nil)
	gomock.InOrder(
		store.EXPECT().GetVoiceProfileID(gomock.Any(), domain.CallID(42)).Return(domain.VoiceProfileID(7), nil),
		store.EXPECT().GetVoiceProfileID(gomock.Any(), domain.CallID(42)).DoAndReturn(
			func(ctx context.Context, id domain.CallID) (domain.VoiceProfileID, error) {
				if err := b.ForceEnd(ctx, id); err != nil {
					t.Errorf("hangup: %v", err)
				}
				return domain.VoiceProfileID(7), nil
			}),
	)

	first := coretest.NewClient("first")
	if err := b.RegisterClient(ctx, 42, first); err != nil {
		t.Fatal(err)
	}
	second := coretest.NewClient("second")
	if err := b.RegisterClient(ctx, 42, second); !errors.Is(err, domain.ErrCallEnded) {
		t.Fatalf("second client: %v", err)
	}
	if s := b.State(42); s != domain.CallEnded {
		t.Fatalf("state = %s", s)
	}
	if b.Pool.IsPending(42) {
		t.Fatal("ended call queued again")
	}
	if reason, closed := first.CloseReason(); !closed || reason != core.CloseHangup {
		t.Fatalf("first client close = %v, %v", reason, closed)
	}
}

func TestFailedEndWriteStillBlocksReconnect(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()
	c := registerClient(t, b, 57)

	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(57)).Return(errors.New("disk full"))
	b.OnDisconnect(ctx, c)

	err := b.RegisterClient(ctx, 57, coretest.NewClient("again"))
	if !errors.Is(err, domain.ErrCallEnded) {
		t.Fatalf("reconnect: %v", err)
	}
}

func TestWorkerLossBlocksReconnect(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()
	w := registerWorker(t, b, "w1")
	registerClient(t, b, 58)

	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(58)).Return(nil)
	b.OnDisconnect(ctx, w)

	err := b.RegisterClient(ctx, 58, coretest.NewClient("again"))
	if !errors.Is(err, domain.ErrCallEnded) {
		t.Fatalf("reconnect: %v", err)
	}
}

func TestRegisterClientRejections(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	b := New(store, nil)
	ctx := context.Background()

	store.EXPECT().GetVoiceProfileID(gomock.Any(), domain.CallID(1)).Return(domain.VoiceProfileID(0), domain.ErrUnknownCall)
	if err := b.RegisterClient(ctx, 1, coretest.NewClient("a")); !errors.Is(err, domain.ErrUnknownCall) {
		t.Fatalf("unknown call: %v", err)
	}

	store.EXPECT().GetVoiceProfileID(gomock.Any(), domain.CallID(2)).Return(domain.VoiceProfileID(0), domain.ErrCallEnded)
	if err := b.RegisterClient(ctx, 2, coretest.NewClient("b")); !errors.Is(err, domain.ErrCallEnded) {
		t.Fatalf("ended call: %v", err)
	}

	store.EXPECT().GetVoiceProfileID(gomock.Any(), domain.CallID(3)).Return(domain.VoiceProfileID(1), nil).Times(2)
	store.EXPECT().GetUserID(gomock.Any(), domain.CallID(3)).Return(domain.UserID(1), nil).Times(2)
	if err := b.RegisterClient(ctx, 3, coretest.NewClient("c")); err != nil {
		t.Fatal(err)
	}
	if err := b.RegisterClient(ctx, 3, coretest.NewClient("d")); !errors.Is(err, core.ErrDuplicateBinding) {
		t.Fatalf("duplicate call: %v", err)
	}
}

func TestUnreachableWorkerIsSkipped(t *testing.T) {
	b, _, _ := newBroker(t)
	dead := registerWorker(t, b, "w-dead")
	dead.FailTexts(core.ErrBackpressure)
	alive := registerWorker(t, b, "w-alive")

	c := registerClient(t, b, 60)
	if peer, ok := b.Registry.PeerOf(c.ID()); !ok || peer.ID() != alive.ID() {
		t.Fatal("client should fall through to the next idle worker")
	}
	if !dead.Closed() {
		t.Fatal("unreachable worker should be closed")
	}
}

func TestWorkerFrameRouting(t *testing.T) {
	b, store, notifier := newBroker(t)
	ctx := context.Background()
	w := registerWorker(t, b, "w1")
	c := registerClient(t, b, 70)

	b.OnClientFrame(ctx, c, core.Frame{9, 8, 7})
	if got := w.Frames(); len(got) != 1 || string(got[0]) != string([]byte{9, 8, 7}) {
		t.Fatalf("worker frames = %v", got)
	}

	audio, _ := core.EncodeWorkerFrame(core.KindAudioChunk, []byte{1, 2})
	b.OnWorkerFrame(ctx, w, audio)
	if got := c.Frames(); len(got) != 1 || string(got[0]) != string([]byte{1, 2}) {
		t.Fatalf("client frames = %v", got)
	}

	store.EXPECT().PersistMessage(gomock.Any(), domain.CallID(70), domain.SpeakerUser, "hello").Return(nil)
	store.EXPECT().PersistMessage(gomock.Any(), domain.CallID(70), domain.SpeakerAI, "hi there").Return(nil)
	user, _ := core.EncodeWorkerFrame(core.KindUserTranscript, []byte("hello"))
	ai, _ := core.EncodeWorkerFrame(core.KindAiTranscript, []byte("hi there"))
	b.OnWorkerFrame(ctx, w, user)
	b.OnWorkerFrame(ctx, w, ai)

	b.OnWorkerFrame(ctx, w, core.Frame{})
	b.OnWorkerFrame(ctx, w, core.Frame{0x7f, 1})
	if len(c.Frames()) != 1 {
		t.Fatal("unknown frames must not be forwarded")
	}

	notifier.EXPECT().NotifyClientReady(gomock.Any(), domain.CallID(70))
	b.OnWorkerText(ctx, w, []byte(`{"type":"ready"}`))
	if msg := lastControl(t, c); msg["type"] != "system" || msg["event"] != "ready" {
		t.Fatalf("ready message = %v", msg)
	}
}

func TestFramesAfterDisconnectAreDropped(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()
	w := registerWorker(t, b, "w1")
	c := registerClient(t, b, 80)
	store.EXPECT().CloseSession(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	b.OnDisconnect(ctx, c)
	b.OnClientFrame(ctx, c, core.Frame{1})
	audio, _ := core.EncodeWorkerFrame(core.KindAudioChunk, []byte{1})
	b.OnWorkerFrame(ctx, w, audio)
	txt, _ := core.EncodeWorkerFrame(core.KindUserTranscript, []byte("late"))
	b.OnWorkerFrame(ctx, w, txt)

	if len(w.Frames()) != 0 || len(c.Frames()) != 0 {
		t.Fatal("frames crossed a torn down pairing")
	}
}

func TestSlowPeerIsKicked(t *testing.T) {
	b, store, _ := newBroker(t)
	ctx := context.Background()
	w := registerWorker(t, b, "w1")
	c := registerClient(t, b, 90)
	store.EXPECT().CloseSession(gomock.Any(), domain.CallID(90)).Return(nil)

	w.FailSends(core.ErrBackpressure)
	b.OnClientFrame(ctx, c, core.Frame{1})

	if reason, closed := w.CloseReason(); !closed || reason != core.CloseSlowPeer {
		t.Fatalf("worker close = %v, %v", reason, closed)
	}
	if reason, closed := c.CloseReason(); !closed || reason != core.CloseWorkerLost {
		t.Fatalf("client close = %v, %v", reason, closed)
	}
}

type dropPolicy struct{}

func (dropPolicy) OnForwardFailure(core.Connection, error) app.ForwardAction { return app.DropFrame }

func TestDropPolicyKeepsPairing(t *testing.T) {
	b, _, _ := newBroker(t)
	b.Policy = dropPolicy{}
	ctx := context.Background()
	w := registerWorker(t, b, "w1")
	c := registerClient(t, b, 91)

	w.FailSends(core.ErrBackpressure)
	b.OnClientFrame(ctx, c, core.Frame{1})
	if w.Closed() || b.State(91) != domain.CallActive {
		t.Fatal("drop policy must keep the call alive")
	}
}

func TestForwardFailures(t *testing.T) {
	audio, _ := core.EncodeWorkerFrame(core.KindAudioChunk, []byte{1, 2})
	toWorker := func(ctx context.Context, b *Broker, c, _ *coretest.Conn) {
		b.OnClientFrame(ctx, c, core.Frame{1})
	}
	toClient := func(ctx context.Context, b *Broker, _, w *coretest.Conn) {
		b.OnWorkerFrame(ctx, w, audio)
	}
	clientLeaves := func(ctx context.Context, b *Broker, c, _ *coretest.Conn) {
		b.OnDisconnect(ctx, c)
	}

	tests := []struct {
		name    string
		policy  app.Policy
		prepare func(c, w *coretest.Conn)
		act     func(ctx context.Context, b *Broker, c, w *coretest.Conn)

		clientClosed bool
		clientReason core.CloseReason
		workerClosed bool
		workerReason core.CloseReason
		workerIdle   bool
	}{
		{
			name:         "closed worker transport overrides drop policy",
			policy:       dropPolicy{},
			prepare:      func(_, w *coretest.Conn) { w.FailSends(core.ErrTransportClosed) },
			act:          toWorker,
			clientClosed: true,
			clientReason: core.CloseWorkerLost,
			workerClosed: true,
			workerReason: core.CloseSlowPeer,
		},
		{
			name:         "full client queue kicks the client",
			prepare:      func(c, _ *coretest.Conn) { c.FailSends(core.ErrBackpressure) },
			act:          toClient,
			clientClosed: true,
			clientReason: core.CloseSlowPeer,
			workerIdle:   true,
		},
		{
			name:         "closed client transport overrides drop policy",
			policy:       dropPolicy{},
			prepare:      func(c, _ *coretest.Conn) { c.FailSends(core.ErrTransportClosed) },
			act:          toClient,
			clientClosed: true,
			clientReason: core.CloseSlowPeer,
			workerIdle:   true,
		},
		{
			name:         "worker refusing the end message is dropped",
			prepare:      func(_, w *coretest.Conn) { w.FailTexts(core.ErrBackpressure) },
			act:          clientLeaves,
			workerClosed: true,
			workerReason: core.CloseUnavailable,
		},
		{
			name:         "closed worker is not pooled again",
			prepare:      func(_, w *coretest.Conn) { w.Close(core.CloseNormal) },
			act:          clientLeaves,
			workerClosed: true,
			workerReason: core.CloseNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, store, _ := newBroker(t)
			if tt.policy != nil {
				b.Policy = tt.policy
			}
			ctx := context.Background()
			w := registerWorker(t, b, "w1")
			c := registerClient(t, b, 95)
			store.EXPECT().CloseSession(gomock.Any(), domain.CallID(95)).Return(nil)

			tt.prepare(c, w)
			tt.act(ctx, b, c, w)

			if s := b.State(95); s != domain.CallEnded {
				t.Fatalf("state = %s", s)
			}
			if reason, closed := c.CloseReason(); closed != tt.clientClosed || (closed && reason != tt.clientReason) {
				t.Fatalf("client close = %v, %v", reason, closed)
			}
			if reason, closed := w.CloseReason(); closed != tt.workerClosed || (closed && reason != tt.workerReason) {
				t.Fatalf("worker close = %v, %v", reason, closed)
			}
			if got := b.Pool.IsIdle(w.ID()); got != tt.workerIdle {
				t.Fatalf("worker idle = %v", got)
			}
			if _, ok := b.Registry.PeerOf(c.ID()); ok {
				t.Fatal("residual pairing")
			}
		})
	}
}

func TestConcurrentRegistrationNeverDoublePairs(t *testing.T) {
	b, store, _ := newBroker(t)
	store.EXPECT().CloseSession(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	ctx := context.Background()
	const n = 50

	workers := make([]*coretest.Conn, n)
	clients := make([]*coretest.Conn, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		workers[i] = coretest.NewWorker("w" + domain.CallID(i).String())
		clients[i] = coretest.NewClient("c" + domain.CallID(i).String())
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = b.RegisterWorker(ctx, workers[i])
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = b.RegisterClient(ctx, domain.CallID(i+1), clients[i])
		}(i)
	}
	wg.Wait()

	seen := make(map[core.ConnID]core.ConnID)
	for _, c := range clients {
		peer, ok := b.Registry.PeerOf(c.ID())
		if !ok {
			t.Fatalf("client %s unpaired, stats = %+v", c.ID(), b.Stats())
		}
		if prev, dup := seen[peer.ID()]; dup {
			t.Fatalf("worker %s paired with %s and %s", peer.ID(), prev, c.ID())
		}
		seen[peer.ID()] = c.ID()
	}
	for _, w := range workers {
		if starts := len(w.Texts()); starts != 1 {
			t.Fatalf("worker %s received %d start messages", w.ID(), starts)
		}
	}
	if st := b.Stats(); st.ActiveCalls != n || st.IdleWorkers != 0 || st.PendingClients != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestShutdownClosesEverything(t *testing.T) {
	b, _, _ := newBroker(t)
	w := registerWorker(t, b, "w1")
	c := registerClient(t, b, 100)
	idle := registerWorker(t, b, "w2")

	b.Shutdown()
	for _, conn := range []*coretest.Conn{w, c, idle} {
		if reason, closed := conn.CloseReason(); !closed || reason != core.CloseGoingAway {
			t.Fatalf("%s close = %v, %v", conn.ID(), reason, closed)
		}
	}
	if err := b.RegisterWorker(context.Background(), coretest.NewWorker("late")); !errors.Is(err, core.ErrShuttingDown) {
		t.Fatalf("late worker: %v", err)
	}
	if err := b.RegisterClient(context.Background(), 101, coretest.NewClient("late")); !errors.Is(err, core.ErrShuttingDown) {
		t.Fatalf("late client: %v", err)
	}
}
