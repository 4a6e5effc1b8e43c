package bearer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/sliceops"
)

// Send notifies data on the data out characteristic of conn. Every failed
// attempt is taken as transient and retried, waiting between attempts as
// set by the retry policy or until the stack signals room. Send returns
// once the stack accepted the notification, the retries are used up
// (ErrStackBusyTimeout), conn goes away (ErrPeerDisconnected), the bearer
// is closed (ErrClosed) or ctx is done.
func (b *Bearer) Send(ctx context.Context, conn uint16, data []byte) error {
	if !b.registered {
		return pbgatt.ErrNotRegistered
	}
	if len(data) > int(b.mtu) {
		return errors.Wrapf(pbgatt.ErrPayloadTooLarge, "%v > %v", len(data), b.mtu)
	}

	b.muConns.Lock()
	c, ok := b.conns[conn]
	b.muConns.Unlock()
	if !ok {
		return errors.Wrapf(pbgatt.ErrPeerDisconnected, "conn 0x%04X", conn)
	}

	buf, err := b.pool.Get(ctx)
	if err != nil {
		return err
	}
	defer b.pool.Put(buf)
	buf = append(buf, data...)

	for attempt := 1; ; attempt++ {
		err := b.stack.Notify(conn, b.reg.DataOut.Value, buf)
		switch {
		case err == nil:
			return nil
		case errors.Cause(err) == pbgatt.ErrPeerDisconnected:
			return errors.Wrapf(err, "notify 0x%04X", conn)
		case attempt >= b.retry.MaxAttempts:
			return errors.Wrapf(pbgatt.ErrStackBusyTimeout, "conn 0x%04X, %v attempts, last: %v", conn, attempt, err)
		case !pbgatt.IsBusy(err):
			b.logger.Debugf("notify 0x%04X attempt %v: %v", conn, attempt, err)
		}

		t := time.NewTimer(backoff(b.retry, attempt))
		select {
		case <-t.C:
		case <-b.chReady:
			t.Stop()
		case <-c.done:
			t.Stop()
			return errors.Wrapf(pbgatt.ErrPeerDisconnected, "conn 0x%04X", conn)
		case <-b.done:
			t.Stop()
			return pbgatt.ErrClosed
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// SendAsync queues data for Send on the send worker and returns at once.
// done, if not nil, is called with Send's result from the worker.
func (b *Bearer) SendAsync(conn uint16, data []byte, done func(error)) error {
	if len(data) > int(b.mtu) {
		return errors.Wrapf(pbgatt.ErrPayloadTooLarge, "%v > %v", len(data), b.mtu)
	}

	r := &sendReq{conn: conn, data: sliceops.Clone(data), done: done}

	b.muClose.Lock()
	defer b.muClose.Unlock()
	if !b.isOpen() {
		return pbgatt.ErrClosed
	}

	select {
	case b.sendq <- r:
		return nil
	default:
		return pbgatt.ErrQueueFull
	}
}

func (b *Bearer) sendLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		case r := <-b.sendq:
			if b.ctx.Err() != nil {
				r.complete(pbgatt.ErrClosed)
				continue
			}

			err := b.Send(b.ctx, r.conn, r.data)
			if err != nil && b.ctx.Err() != nil {
				err = pbgatt.ErrClosed
			}
			r.complete(err)
		}
	}
}

// backoff returns the wait after the given (1-based) failed attempt.
func backoff(p pbgatt.RetryPolicy, attempt int) time.Duration {
	d := p.Backoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}
