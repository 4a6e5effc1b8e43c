package bearer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/evt"
	"github.com/rigado/pbgatt/ipc"
)

var fastRetry = pbgatt.RetryPolicy{MaxAttempts: 64, Backoff: 0, MaxBackoff: time.Microsecond}

func checkPool(t *testing.T, p *Pool, wantGets int64) {
	t.Helper()
	gets, puts := p.Stats()
	if gets != wantGets || puts != wantGets || p.InUse() != 0 {
		t.Errorf("pool: %v gets, %v puts, %v in use; want %v released once each", gets, puts, p.InUse(), wantGets)
	}
}

func TestSendBusyRetries(t *testing.T) {
	for _, busy := range []int{0, 1, 5, 63} {
		s := newFakeStack()
		tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(fastRetry))
		tb.connect(1)
		s.setBusy(busy)

		data := []byte{0x03, 0x01, 0x02}
		if err := tb.Send(context.Background(), 1, data); err != nil {
			t.Fatalf("busy %v: %v", busy, err)
		}

		if got := s.attemptCount(); got != busy+1 {
			t.Errorf("busy %v: %v attempts", busy, got)
		}
		n := s.notifications()
		if len(n) != 1 || n[0].conn != 1 || n[0].handle != tb.Registry().DataOut.Value || !bytes.Equal(n[0].data, data) {
			t.Errorf("busy %v: notified %+v", busy, n)
		}
		checkPool(t, tb.pool, 1)
	}
}

func TestSendRetryExhausted(t *testing.T) {
	s := newFakeStack()
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(pbgatt.RetryPolicy{MaxAttempts: 3, MaxBackoff: time.Microsecond}))
	tb.connect(1)
	s.setBusy(1000)

	err := tb.Send(context.Background(), 1, []byte{0x01})
	if errors.Cause(err) != pbgatt.ErrStackBusyTimeout {
		t.Fatalf("got %v, want %v", err, pbgatt.ErrStackBusyTimeout)
	}
	if got := s.attemptCount(); got != 3 {
		t.Errorf("%v attempts", got)
	}
	checkPool(t, tb.pool, 1)
}

func TestSendStackErrorRetried(t *testing.T) {
	s := newFakeStack()
	s.notifyErr = errors.New("org.bluez.Error.Failed: not ready")
	s.errCount = 4
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(fastRetry))
	tb.connect(1)
	s.setBusy(2)

	if err := tb.Send(context.Background(), 1, []byte{0x01}); err != nil {
		t.Fatal(err)
	}
	if got := s.attemptCount(); got != 7 {
		t.Errorf("%v attempts", got)
	}
	if n := s.notifications(); len(n) != 1 {
		t.Errorf("notified %+v", n)
	}
	checkPool(t, tb.pool, 1)
}

func TestSendStackErrorExhausted(t *testing.T) {
	s := newFakeStack()
	boom := errors.New("invalid state")
	s.notifyErr = boom
	s.errCount = 1000
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(pbgatt.RetryPolicy{MaxAttempts: 3, MaxBackoff: time.Microsecond}))
	tb.connect(1)

	err := tb.Send(context.Background(), 1, []byte{0x01})
	if errors.Cause(err) != pbgatt.ErrStackBusyTimeout {
		t.Fatalf("got %v, want %v", err, pbgatt.ErrStackBusyTimeout)
	}
	if got := s.attemptCount(); got != 3 {
		t.Errorf("%v attempts", got)
	}
	checkPool(t, tb.pool, 1)
}

func TestSendStackPeerDisconnected(t *testing.T) {
	s := newFakeStack()
	s.notifyErr = errors.Wrap(pbgatt.ErrPeerDisconnected, "conn 1")
	s.errCount = 1000
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(fastRetry))
	tb.connect(1)

	err := tb.Send(context.Background(), 1, []byte{0x01})
	if errors.Cause(err) != pbgatt.ErrPeerDisconnected {
		t.Fatalf("got %v, want %v", err, pbgatt.ErrPeerDisconnected)
	}
	if got := s.attemptCount(); got != 1 {
		t.Errorf("%v attempts", got)
	}
	checkPool(t, tb.pool, 1)
}

func TestSendRejected(t *testing.T) {
	tb := newTestBearer(t, newFakeStack(), pbgatt.OptMTU(23))
	tb.connect(1)

	cases := []struct {
		name string
		conn uint16
		data []byte
		want error
	}{
		{name: "too large", conn: 1, data: make([]byte, 24), want: pbgatt.ErrPayloadTooLarge},
		{name: "unknown conn", conn: 2, data: []byte{0x01}, want: pbgatt.ErrPeerDisconnected},
	}

	for _, tt := range cases {
		if err := tb.Send(context.Background(), tt.conn, tt.data); errors.Cause(err) != tt.want {
			t.Errorf("%s: got %v want %v", tt.name, err, tt.want)
		}
	}
	checkPool(t, tb.pool, 0)

	if err := tb.Send(context.Background(), 1, make([]byte, 23)); err != nil {
		t.Errorf("full mtu payload: %v", err)
	}
}

func TestSendCancelledByDisconnect(t *testing.T) {
	s := newFakeStack()
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(pbgatt.RetryPolicy{MaxAttempts: 10, Backoff: time.Minute, MaxBackoff: time.Minute}))
	tb.connect(1)
	s.setBusy(1000)

	res := make(chan error, 1)
	go func() { res <- tb.Send(context.Background(), 1, []byte{0x01}) }()

	s.waitAttempt(t)
	tb.Dispatch(evt.NewDisconnected(1, 0x13))

	select {
	case err := <-res:
		if errors.Cause(err) != pbgatt.ErrPeerDisconnected {
			t.Fatalf("got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send not cancelled by disconnect")
	}
	checkPool(t, tb.pool, 1)
}

func TestSendContextCancelled(t *testing.T) {
	s := newFakeStack()
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(pbgatt.RetryPolicy{MaxAttempts: 10, Backoff: time.Minute, MaxBackoff: time.Minute}))
	tb.connect(1)
	s.setBusy(1000)

	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan error, 1)
	go func() { res <- tb.Send(ctx, 1, []byte{0x01}) }()

	s.waitAttempt(t)
	cancel()

	select {
	case err := <-res:
		if err != context.Canceled {
			t.Fatalf("got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send not cancelled")
	}
	checkPool(t, tb.pool, 1)
}

func TestSendCancelledByClose(t *testing.T) {
	s := newFakeStack()
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(pbgatt.RetryPolicy{MaxAttempts: 10, Backoff: time.Minute, MaxBackoff: time.Minute}))
	tb.connect(1)
	s.setBusy(1000)

	res := make(chan error, 1)
	go func() { res <- tb.Send(context.Background(), 1, []byte{0x01}) }()

	s.waitAttempt(t)
	if err := tb.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-res:
		if err != pbgatt.ErrClosed {
			t.Fatalf("got %v, want %v", err, pbgatt.ErrClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send not cancelled by close")
	}
	checkPool(t, tb.pool, 1)
}

func TestSendWokenByTxComplete(t *testing.T) {
	s := newFakeStack()
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(pbgatt.RetryPolicy{MaxAttempts: 10, Backoff: time.Minute, MaxBackoff: time.Minute}))
	tb.connect(1)
	s.setBusy(1)

	res := make(chan error, 1)
	go func() { res <- tb.Send(context.Background(), 1, []byte{0x01}) }()

	s.waitAttempt(t)
	tb.Dispatch(evt.NewTxComplete(1, 1))

	select {
	case err := <-res:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send not woken by tx complete")
	}
	if got := s.attemptCount(); got != 2 {
		t.Errorf("%v attempts", got)
	}
}

func TestBackoff(t *testing.T) {
	p := pbgatt.RetryPolicy{MaxAttempts: 10, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	want := []time.Duration{1, 2, 4, 5, 5}
	for i, w := range want {
		if got := backoff(p, i+1); got != w*time.Millisecond {
			t.Errorf("attempt %v: got %v want %v", i+1, got, w*time.Millisecond)
		}
	}
}

func TestSendAsync(t *testing.T) {
	s := newFakeStack()
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(fastRetry))
	tb.connect(1)
	s.setBusy(3)

	data := []byte{0x01, 0x02}
	res := make(chan error, 1)
	if err := tb.SendAsync(1, data, func(err error) { res <- err }); err != nil {
		t.Fatal(err)
	}
	// the queued copy is independent of the caller's buffer
	data[0] = 0xff

	select {
	case err := <-res:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async send did not complete")
	}

	n := s.notifications()
	if len(n) != 1 || !bytes.Equal(n[0].data, []byte{0x01, 0x02}) {
		t.Errorf("notified %+v", n)
	}
	checkPool(t, tb.pool, 1)
}

func TestSendAsyncQueueFull(t *testing.T) {
	s := newFakeStack()
	s.block = make(chan struct{})
	tb := newTestBearer(t, s, pbgatt.OptSendQueueSize(1))
	tb.connect(1)

	results := make(chan error, 3)
	done := func(err error) { results <- err }

	// taken by the worker, which then blocks in Notify
	if err := tb.SendAsync(1, []byte{1}, done); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(tb.sendq) == 0 })

	if err := tb.SendAsync(1, []byte{2}, done); err != nil {
		t.Fatal(err)
	}
	if err := tb.SendAsync(1, []byte{3}, done); err != pbgatt.ErrQueueFull {
		t.Fatalf("got %v, want %v", err, pbgatt.ErrQueueFull)
	}

	close(s.block)
	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Errorf("send %v: %v", i, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("queued sends did not complete")
		}
	}
}

func TestClose(t *testing.T) {
	s := newFakeStack()
	tb := newTestBearer(t, s, pbgatt.OptRetryPolicy(pbgatt.RetryPolicy{MaxAttempts: 10, Backoff: time.Minute, MaxBackoff: time.Minute}))
	tb.connect(1)
	s.setBusy(1000)

	results := make(chan error, 2)
	done := func(err error) { results <- err }
	if err := tb.SendAsync(1, []byte{1}, done); err != nil {
		t.Fatal(err)
	}
	s.waitAttempt(t)
	if err := tb.SendAsync(1, []byte{2}, done); err != nil {
		t.Fatal(err)
	}

	if err := tb.Close(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err != pbgatt.ErrClosed {
				t.Errorf("send %v: got %v want %v", i, err, pbgatt.ErrClosed)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("pending sends not failed on close")
		}
	}

	if err := tb.SendAsync(1, []byte{3}, nil); err != pbgatt.ErrClosed {
		t.Errorf("send after close: %v", err)
	}
	if err := tb.Run(context.Background(), make(chan []byte)); err != pbgatt.ErrClosed {
		t.Errorf("run after close: %v", err)
	}
	checkPool(t, tb.pool, 1)
}

func TestServeIPC(t *testing.T) {
	s := newFakeStack()
	tb := newTestBearer(t, s, pbgatt.OptMTU(247), pbgatt.OptRetryPolicy(fastRetry))
	tb.connect(1)
	tb.bridge.reset()

	tb.ServeIPC(ipc.MTUQuery{ConnHandle: 1})
	tb.ServeIPC(ipc.ProvDataOut{ConnHandle: 1, Payload: []byte{0x05, 0x06}})
	waitFor(t, func() bool { return len(s.notifications()) == 1 })

	// unknown connection: reported back as a failed send
	tb.ServeIPC(ipc.ProvDataOut{ConnHandle: 9, Payload: []byte{0x05}})
	// oversized: rejected before queueing
	tb.ServeIPC(ipc.ProvDataOut{ConnHandle: 1, Payload: make([]byte, 248)})
	waitFor(t, func() bool { return len(tb.bridge.messages()) == 3 })

	got := tb.bridge.messages()
	if got[0] != (ipc.MTUReport{ConnHandle: 1, MTU: 247}) {
		t.Errorf("got %#v", got[0])
	}
	failed := map[ipc.Message]int{}
	for _, m := range got[1:] {
		failed[m]++
	}
	if failed[ipc.ProvSent{ConnHandle: 9, Status: false}] != 1 || failed[ipc.ProvSent{ConnHandle: 1, Status: false}] != 1 {
		t.Errorf("got %#v", got[1:])
	}

	tb.ServeIPC(ipc.Connected{ConnHandle: 1})
	if errs := tb.errs.all(); len(errs) != 1 {
		t.Errorf("unexpected message not reported: %v", errs)
	}
}

func TestRun(t *testing.T) {
	tb := newTestBearer(t, newFakeStack())

	events := make(chan []byte, 3)
	events <- evt.NewConnected(1, 0, [6]byte{}, evt.RolePeripheral)
	events <- evt.NewTxComplete(1, 1)
	events <- evt.NewDisconnected(1, 0x13)
	close(events)

	if err := tb.Run(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	want := []ipc.Tag{ipc.TagConnected, ipc.TagProvSent, ipc.TagDisconnected}
	got := tb.bridge.messages()
	if len(got) != len(want) {
		t.Fatalf("got %#v", got)
	}
	for i := range want {
		if got[i].Tag() != want[i] {
			t.Errorf("message %v: %v want %v", i, got[i].Tag(), want[i])
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tb.Run(ctx, make(chan []byte)); err != context.Canceled {
		t.Errorf("got %v", err)
	}
}

func TestPool(t *testing.T) {
	p := NewPool(8, 1)

	b, err := p.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 0 || cap(b) != 8 || p.InUse() != 1 {
		t.Fatalf("got len %v cap %v in use %v", len(b), cap(b), p.InUse())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Get(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Get on empty pool: %v", err)
	}

	p.Put(b)
	if p.InUse() != 0 {
		t.Fatalf("in use %v", p.InUse())
	}

	defer func() {
		if recover() == nil {
			t.Fatal("double put did not panic")
		}
	}()
	p.Put(b)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}
