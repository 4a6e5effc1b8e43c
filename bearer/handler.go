package bearer

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/evt"
	"github.com/rigado/pbgatt/ipc"
)

// Dispatch handles one stack event. Handler failures and malformed events
// go to the error handler; Dispatch itself never fails.
func (b *Bearer) Dispatch(pkt []byte) {
	if err := b.handlePkt(pkt); err != nil {
		b.dispatchError(err)
	}
}

func (b *Bearer) handlePkt(pkt []byte) error {
	if !b.registered {
		return pbgatt.ErrNotRegistered
	}

	b.record(pkt)

	code, params, err := evt.Split(pkt)
	if err != nil {
		return err
	}

	if f := b.evth[code]; f != nil {
		return errors.Wrapf(f(params), "%v", code)
	}

	b.logger.Debugf("ignoring event 0x%02X [% X]", uint8(code), params)
	return nil
}

func (b *Bearer) record(pkt []byte) {
	if b.trace == nil {
		return
	}

	b.traceSeq++
	r := pbgatt.TraceRecord{Seq: b.traceSeq, Time: time.Now(), Event: append([]byte{}, pkt...)}
	if err := b.trace.Append(r); err != nil {
		b.dispatchError(errors.Wrap(err, "trace"))
	}
}

func (b *Bearer) handleConnected(p []byte) error {
	e := evt.Connected(p)

	h, err := e.ConnHandleWErr()
	if err != nil {
		return errors.Wrap(err, "connHandle")
	}
	typ, err := e.PeerAddrTypeWErr()
	if err != nil {
		return errors.Wrap(err, "peerAddrType")
	}
	addr, err := e.PeerAddrWErr()
	if err != nil {
		return errors.Wrap(err, "peerAddr")
	}

	c := &conn{
		handle: h,
		peer:   pbgatt.BDAddr{Type: pbgatt.AddrType(typ), MAC: addr},
		done:   make(chan struct{}),
	}

	b.muConns.Lock()
	if old, ok := b.conns[h]; ok {
		// missed the disconnect
		close(old.done)
	}
	b.conns[h] = c
	b.muConns.Unlock()

	b.logger.Infof("connected 0x%04X, peer %v (%v), role %v", h, c.peer, c.peer.Type, e.Role())
	return b.bridge.Write(ipc.Connected{Peer: c.peer, ConnHandle: h})
}

func (b *Bearer) handleDisconnected(p []byte) error {
	e := evt.Disconnected(p)

	h, err := e.ConnHandleWErr()
	if err != nil {
		return errors.Wrap(err, "connHandle")
	}
	reason, err := e.ReasonWErr()
	if err != nil {
		return errors.Wrap(err, "reason")
	}

	b.muConns.Lock()
	if c, ok := b.conns[h]; ok {
		delete(b.conns, h)
		close(c.done)
	}
	b.muConns.Unlock()

	b.logger.Infof("disconnected 0x%04X, reason 0x%02X", h, reason)
	return b.bridge.Write(ipc.Disconnected{ConnHandle: h, Reason: reason})
}

func (b *Bearer) handleExchangeMTURequest(p []byte) error {
	e := evt.ExchangeMTURequest(p)

	h, err := e.ConnHandleWErr()
	if err != nil {
		return errors.Wrap(err, "connHandle")
	}

	b.logger.Debugf("exchange mtu 0x%04X: client %v, replying %v", h, e.ClientRxMTU(), b.mtu)
	return errors.Wrap(b.stack.ExchangeMTUReply(h, b.mtu), "exchange mtu reply")
}

func (b *Bearer) handleWrite(p []byte) error {
	e := evt.Write(p)

	h, err := e.ConnHandleWErr()
	if err != nil {
		return errors.Wrap(err, "connHandle")
	}
	attr, err := e.HandleWErr()
	if err != nil {
		return errors.Wrap(err, "handle")
	}
	if attr != b.reg.DataIn.Value {
		return nil
	}

	data, err := e.DataWErr()
	if err != nil {
		return errors.Wrap(err, "data")
	}

	return b.bridge.Write(ipc.ProvDataIn{ConnHandle: h, Payload: data})
}

func (b *Bearer) handleTxComplete(p []byte) error {
	e := evt.TxComplete(p)

	h, err := e.ConnHandleWErr()
	if err != nil {
		return errors.Wrap(err, "connHandle")
	}

	// the stack has room again
	select {
	case b.chReady <- struct{}{}:
	default:
	}

	return b.bridge.Write(ipc.ProvSent{ConnHandle: h, Status: true})
}
