package bearer

import (
	"sync"
	"testing"
	"time"

	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/evt"
	"github.com/rigado/pbgatt/ipc"
)

type mtuReply struct {
	conn uint16
	mtu  uint16
}

type notification struct {
	conn   uint16
	handle uint16
	data   []byte
}

// fakeStack answers busy for the first busy notifications, then fails
// with notifyErr for the next errCount ones, then accepts.
type fakeStack struct {
	mu sync.Mutex

	handles []pbgatt.CharacteristicHandles
	regErr  error
	params  []pbgatt.ServiceParams

	mtuReplies []mtuReply

	busy      int
	notifyErr error
	errCount  int
	block     chan struct{}
	attempts  int
	attempted chan struct{}
	notified  []notification
}

func newFakeStack() *fakeStack {
	return &fakeStack{
		handles: []pbgatt.CharacteristicHandles{
			{Value: 0x000d},
			{Value: 0x000f, CCCD: 0x0010},
		},
		attempted: make(chan struct{}, 1024),
	}
}

func (s *fakeStack) RegisterService(p pbgatt.ServiceParams) ([]pbgatt.CharacteristicHandles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = append(s.params, p)
	if s.regErr != nil {
		return nil, s.regErr
	}
	return s.handles, nil
}

func (s *fakeStack) ExchangeMTUReply(conn uint16, mtu uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mtuReplies = append(s.mtuReplies, mtuReply{conn, mtu})
	return nil
}

func (s *fakeStack) Notify(conn uint16, handle uint16, data []byte) error {
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	s.attempted <- struct{}{}

	if s.busy > 0 {
		s.busy--
		return pbgatt.ErrBusy
	}
	if s.errCount > 0 {
		s.errCount--
		return s.notifyErr
	}
	s.notified = append(s.notified, notification{conn, handle, append([]byte{}, data...)})
	return nil
}

func (s *fakeStack) setBusy(n int) {
	s.mu.Lock()
	s.busy = n
	s.mu.Unlock()
}

func (s *fakeStack) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *fakeStack) notifications() []notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification{}, s.notified...)
}

func (s *fakeStack) waitAttempt(t *testing.T) {
	t.Helper()
	select {
	case <-s.attempted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a notify attempt")
	}
}

// recorder is an ipc.Bridge keeping copies of everything written.
type recorder struct {
	mu   sync.Mutex
	msgs []ipc.Message
	err  error
}

func (r *recorder) Write(m ipc.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := m.(ipc.ProvDataIn); ok {
		d.Payload = append([]byte{}, d.Payload...)
		m = d
	}
	r.msgs = append(r.msgs, m)
	return r.err
}

func (r *recorder) messages() []ipc.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ipc.Message{}, r.msgs...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) handle(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *errorLog) all() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error{}, l.errs...)
}

type testBearer struct {
	*Bearer
	stack  *fakeStack
	bridge *recorder
	errs   *errorLog
}

func newTestBearer(t *testing.T, s *fakeStack, opts ...pbgatt.Option) *testBearer {
	t.Helper()

	tb := &testBearer{stack: s, bridge: &recorder{}, errs: &errorLog{}}
	opts = append([]pbgatt.Option{
		pbgatt.OptLogger(pbgatt.NopLogger()),
		pbgatt.OptErrorHandler(tb.errs.handle),
	}, opts...)

	b, err := New(s, tb.bridge, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	tb.Bearer = b
	return tb
}

func (tb *testBearer) connect(h uint16) {
	tb.Dispatch(evt.NewConnected(h, uint8(pbgatt.AddrPublic), [6]byte{1, 2, 3, 4, 5, 6}, evt.RolePeripheral))
}
