// Package bearer implements the PB-GATT provisioning bearer: it turns
// stack events into IPC messages and IPC requests into GATT notifications.
package bearer

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/evt"
	"github.com/rigado/pbgatt/ipc"
)

const (
	defaultSendQueueSize = 16
	poolCount            = 4
)

type handlerFn func(b []byte) error

// Registry holds the attribute handles of the provisioning service.
type Registry struct {
	DataIn  pbgatt.CharacteristicHandles
	DataOut pbgatt.CharacteristicHandles
}

type sendReq struct {
	conn uint16
	data []byte
	done func(error)
}

// Bearer is the provisioning bearer for one stack and one IPC peer.
type Bearer struct {
	stack  pbgatt.Stack
	bridge ipc.Bridge

	reg        Registry
	registered bool

	mtu       uint16
	retry     pbgatt.RetryPolicy
	queueSize int
	pool      *Pool

	// evtHub
	evth map[evt.Code]handlerFn

	muConns sync.Mutex
	conns   map[uint16]*conn

	// chReady is signalled by tx complete events; busy senders wait on it.
	chReady chan struct{}
	sendq   chan *sendReq

	trace    pbgatt.EventTrace
	traceSeq uint64

	//error handler
	errorHandler func(error)
	logger       pbgatt.Logger

	muClose sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the provisioning service on stack and returns a bearer
// reporting to bridge. The send worker is running when New returns.
func New(stack pbgatt.Stack, bridge ipc.Bridge, opts ...pbgatt.Option) (*Bearer, error) {
	if stack == nil || bridge == nil {
		return nil, errors.New("bearer needs a stack and a bridge")
	}

	b := &Bearer{
		stack:     stack,
		bridge:    bridge,
		mtu:       pbgatt.DefaultMTU,
		retry:     pbgatt.DefaultRetryPolicy,
		queueSize: defaultSendQueueSize,

		evth:  map[evt.Code]handlerFn{},
		conns: make(map[uint16]*conn),

		chReady: make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  pbgatt.GetLogger(),
	}

	if err := b.Option(opts...); err != nil {
		return nil, errors.Wrap(err, "can't set options")
	}
	b.logger = b.logger.ChildLogger(map[string]interface{}{"pkg": "bearer"})

	b.pool = NewPool(int(b.mtu), poolCount)
	b.sendq = make(chan *sendReq, b.queueSize)

	b.evth[evt.ConnectedCode] = b.handleConnected
	b.evth[evt.DisconnectedCode] = b.handleDisconnected
	b.evth[evt.WriteCode] = b.handleWrite
	b.evth[evt.ExchangeMTURequestCode] = b.handleExchangeMTURequest
	b.evth[evt.TxCompleteCode] = b.handleTxComplete

	if err := b.register(); err != nil {
		return nil, errors.Wrap(err, "can't register provisioning service")
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.wg.Add(1)
	go b.sendLoop()

	return b, nil
}

func (b *Bearer) register() error {
	p := pbgatt.ServiceParams{
		UUID: pbgatt.ProvisioningServiceUUID,
		Characteristics: []pbgatt.CharacteristicParams{
			{
				UUID:        pbgatt.DataInUUID,
				MaxLen:      b.mtu,
				VarLen:      true,
				Props:       pbgatt.PropWriteNoResp,
				ReadAccess:  pbgatt.SecNoAccess,
				WriteAccess: pbgatt.SecOpen,
			},
			{
				UUID:            pbgatt.DataOutUUID,
				MaxLen:          b.mtu,
				VarLen:          true,
				Props:           pbgatt.PropNotify,
				ReadAccess:      pbgatt.SecNoAccess,
				WriteAccess:     pbgatt.SecNoAccess,
				CCCDWriteAccess: pbgatt.SecOpen,
			},
		},
	}

	hh, err := b.stack.RegisterService(p)
	if err != nil {
		return err
	}
	if len(hh) != len(p.Characteristics) {
		return errors.Errorf("stack returned %v handle sets for %v characteristics", len(hh), len(p.Characteristics))
	}

	b.reg = Registry{DataIn: hh[0], DataOut: hh[1]}
	b.registered = true
	b.logger.Infof("provisioning service registered, data in 0x%04X, data out 0x%04X/0x%04X, mtu %v",
		b.reg.DataIn.Value, b.reg.DataOut.Value, b.reg.DataOut.CCCD, b.mtu)
	return nil
}

// Option sets the options specified.
func (b *Bearer) Option(opts ...pbgatt.Option) error {
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns the handles assigned at registration.
func (b *Bearer) Registry() Registry {
	return b.reg
}

// MTU returns the ATT_MTU used on conn. The bearer does not negotiate, so
// this is the configured MTU for every handle, connected or not.
func (b *Bearer) MTU(conn uint16) uint16 {
	return b.mtu
}

// Conn returns the live connection with the given handle.
func (b *Bearer) Conn(handle uint16) (pbgatt.Conn, bool) {
	b.muConns.Lock()
	defer b.muConns.Unlock()
	c, ok := b.conns[handle]
	if !ok {
		return nil, false
	}
	return c, true
}

// Run dispatches events until ctx is done, events is closed or the bearer
// is closed.
func (b *Bearer) Run(ctx context.Context, events <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return pbgatt.ErrClosed
		case pkt, ok := <-events:
			if !ok {
				return nil
			}
			b.Dispatch(pkt)
		}
	}
}

// Close stops the send worker. Queued sends complete with ErrClosed and
// blocked senders, including direct callers of Send, return ErrClosed.
func (b *Bearer) Close() error {
	b.muClose.Lock()
	select {
	case <-b.done:
		//already closed, nothing to do
		b.muClose.Unlock()
		return nil
	default:
		close(b.done)
	}
	b.muClose.Unlock()

	b.cancel()
	b.wg.Wait()

	for {
		select {
		case r := <-b.sendq:
			r.complete(pbgatt.ErrClosed)
		default:
			return nil
		}
	}
}

func (b *Bearer) isOpen() bool {
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

func (b *Bearer) dispatchError(e error) {
	switch {
	case b.errorHandler == nil:
		b.logger.Error(e)
	case !b.isOpen():
		//don't dispatch
		b.logger.Warn("bearer closing: ", e)
	default:
		b.errorHandler(e)
	}
}

// ServeIPC handles a message from the IPC peer. It is an ipc.Handler.
func (b *Bearer) ServeIPC(m ipc.Message) {
	switch m := m.(type) {
	case ipc.ProvDataOut:
		conn := m.ConnHandle
		failed := func(err error) {
			b.logger.Warnf("send on 0x%04X failed: %v", conn, err)
			if werr := b.bridge.Write(ipc.ProvSent{ConnHandle: conn, Status: false}); werr != nil {
				b.dispatchError(errors.Wrap(werr, "report failed send"))
			}
		}

		err := b.SendAsync(conn, m.Payload, func(err error) {
			if err != nil {
				failed(err)
			}
		})
		if err != nil {
			failed(err)
		}

	case ipc.MTUQuery:
		err := b.bridge.Write(ipc.MTUReport{ConnHandle: m.ConnHandle, MTU: b.MTU(m.ConnHandle)})
		if err != nil {
			b.dispatchError(errors.Wrap(err, "mtu report"))
		}

	default:
		b.dispatchError(errors.Errorf("unexpected ipc message %v", m.Tag()))
	}
}

// conn is a live connection.
type conn struct {
	handle uint16
	peer   pbgatt.BDAddr
	done   chan struct{}
}

func (c *conn) Handle() uint16                { return c.handle }
func (c *conn) Peer() pbgatt.BDAddr           { return c.peer }
func (c *conn) Disconnected() <-chan struct{} { return c.done }

func (r *sendReq) complete(err error) {
	if r.done != nil {
		r.done(err)
	}
}
