package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/config"
	"github.com/NotCoffee418/scale_gateway/pkg/erp"
	"github.com/NotCoffee418/scale_gateway/pkg/port_reader"
	"github.com/NotCoffee418/scale_gateway/pkg/protocols"
	"github.com/NotCoffee418/scale_gateway/pkg/types"
	"github.com/NotCoffee418/scale_gateway/pkg/weightstate"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// scriptedPort returns each queued chunk on one Read, then nothing.
type scriptedPort struct {
	mu     sync.Mutex
	chunks []string
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *scriptedPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *scriptedPort) Close() error                { return nil }
func (p *scriptedPort) ResetInputBuffer() error     { return nil }
func (p *scriptedPort) ResetOutputBuffer() error    { return nil }

func (p *scriptedPort) push(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, s)
}

type fixture struct {
	worker *Worker
	store  *weightstate.Store
	port   *scriptedPort
	hits   *atomic.Int32
}

func newFixture(t *testing.T, status int, body string) *fixture {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	port := &scriptedPort{}
	clock := clockwork.NewFakeClock()
	session := port_reader.NewSession(
		port_reader.Options{PortName: "/dev/ttyTEST", BaudRate: 9600, ReadTimeout: time.Second},
		func(port_reader.Options) (port_reader.Port, error) { return port, nil },
		clock,
	)
	require.NoError(t, session.Open(context.Background()))

	store := weightstate.NewStore(1)
	client := erp.NewClient(config.ERPConfig{
		URL:                srv.URL,
		Username:           "u",
		Password:           "p",
		TimeoutS:           5,
		ConfirmationTokens: []string{"RECEIVED", "RECIBIDO"},
	})

	w := New(Options{
		Reader:     session,
		Dispatcher: protocols.Default(clock.Now),
		Store:      store,
		Deliverer:  client,
		Address:    "10.0.0.7",
		Clock:      clock,
	})
	return &fixture{worker: w, store: store, port: port, hits: &hits}
}

func TestTickDeliversConfirmedReading(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK, "RECEIVED")
	f.port.push("ST,GS,+   2.00kg\r\n")

	f.worker.Tick(context.Background())

	assert.Zero(t, f.store.PeekPending())
	snap := f.store.Snapshot()
	assert.InDelta(t, 2.00, snap.LastWeight, 1e-9)
	assert.Equal(t, protocols.NameLP7516, snap.DetectedProtocol)
	assert.Equal(t, int32(1), f.hits.Load())
}

func TestTickKeepsPendingOnServerError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusInternalServerError, "boom")
	f.port.push("ST,GS,+   2.00kg\r\n")

	require.NotPanics(t, func() { f.worker.Tick(context.Background()) })
	assert.InDelta(t, 2.00, f.store.PeekPending(), 1e-9)
	assert.InDelta(t, 2.00, f.store.Snapshot().LastWeight, 1e-9)

	// Retried on the next tick without new serial data.
	f.worker.Tick(context.Background())
	assert.Equal(t, int32(2), f.hits.Load())
	assert.InDelta(t, 2.00, f.store.PeekPending(), 1e-9)
}

func TestTickWithoutDataDoesNotDeliver(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK, "RECEIVED")
	f.worker.Tick(context.Background())

	assert.Zero(t, f.hits.Load())
	assert.Nil(t, f.store.Snapshot().LastMeasuredAt)
}

func TestTickNegativeWeightNotDelivered(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK, "RECEIVED")
	f.port.push("ST,GS,-   1.20kg\r\n")
	f.worker.Tick(context.Background())

	assert.Zero(t, f.hits.Load())
	assert.InDelta(t, -1.20, f.store.Snapshot().LastWeight, 1e-9)
}

type stubReader struct {
	lines []string
	err   error
	panic bool
}

func (s *stubReader) ReadLines(context.Context) ([]string, error) {
	if s.panic {
		panic("reader exploded")
	}
	return s.lines, s.err
}

type stubDeliverer struct {
	mu      sync.Mutex
	calls   []float64
	confirm bool
}

func (s *stubDeliverer) Deliver(_ context.Context, _ string, weight float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, weight)
	return s.confirm
}

func TestTickRecoversFromPanic(t *testing.T) {
	t.Parallel()

	w := New(Options{
		Reader:     &stubReader{panic: true},
		Dispatcher: protocols.Default(nil),
		Store:      weightstate.NewStore(1),
		Deliverer:  &stubDeliverer{},
	})
	assert.NotPanics(t, func() { w.Tick(context.Background()) })
}

func TestTickNotifiesOnReading(t *testing.T) {
	t.Parallel()

	var got []weightstate.Snapshot
	w := New(Options{
		Reader:     &stubReader{lines: []string{"garbage", "1.30 kg PT"}},
		Dispatcher: protocols.Default(nil),
		Store:      weightstate.NewStore(1),
		Deliverer:  &stubDeliverer{confirm: true},
		OnReading:  func(s weightstate.Snapshot) { got = append(got, s) },
	})
	w.Tick(context.Background())

	require.Len(t, got, 1)
	assert.InDelta(t, 1.30, got[0].LastWeight, 1e-9)
	assert.Equal(t, protocols.NamePT, got[0].DetectedProtocol)
}

func TestTickSkipsDeliveryWhenCancelled(t *testing.T) {
	t.Parallel()

	store := weightstate.NewStore(1)
	store.RecordReading(types.Reading{Weight: 3})
	d := &stubDeliverer{confirm: true}
	w := New(Options{
		Reader:     &stubReader{},
		Dispatcher: protocols.Default(nil),
		Store:      store,
		Deliverer:  d,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Tick(ctx)

	assert.Empty(t, d.calls)
	assert.InDelta(t, 3.0, store.PeekPending(), 1e-9)
}

func TestRunTicksAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	clock := clockwork.NewFakeClock()
	store := weightstate.NewStore(2)
	store.RecordReading(types.Reading{Weight: 1})
	store.RecordReading(types.Reading{Weight: 2})
	d := &stubDeliverer{confirm: true}

	w := New(Options{
		Reader:     &stubReader{},
		Dispatcher: protocols.Default(nil),
		Store:      store,
		Deliverer:  d,
		Interval:   3 * time.Second,
		Clock:      clock,
	})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// First tick delivers one queued weight, then waits for the interval.
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.InDelta(t, 2.0, store.PeekPending(), 1e-9)

	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return store.PeekPending() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-waitCtx.Done():
		t.Fatal("worker did not stop")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, []float64{1, 2}, d.calls)
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	w := New(Options{})
	assert.Equal(t, DefaultInterval, w.interval)
	assert.NotNil(t, w.clock)
}
