package bearer

import (
	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
)

// SetMTU sets the fixed ATT_MTU.
func (b *Bearer) SetMTU(mtu uint16) error {
	if mtu < pbgatt.MinMTU || mtu > pbgatt.MaxMTU {
		return errors.Wrapf(pbgatt.ErrInvalidMTU, "%v not in [%v, %v]", mtu, pbgatt.MinMTU, pbgatt.MaxMTU)
	}
	if b.registered {
		return errors.New("mtu is fixed once the service is registered")
	}
	b.mtu = mtu
	return nil
}

// SetRetryPolicy sets how busy notifications are retried.
func (b *Bearer) SetRetryPolicy(p pbgatt.RetryPolicy) error {
	switch {
	case p.MaxAttempts < 1:
		return errors.Errorf("retry policy: max attempts %v < 1", p.MaxAttempts)
	case p.Backoff < 0 || p.MaxBackoff < p.Backoff:
		return errors.Errorf("retry policy: invalid backoff %v..%v", p.Backoff, p.MaxBackoff)
	}
	b.retry = p
	return nil
}

// SetSendQueueSize sets the capacity of the SendAsync queue.
func (b *Bearer) SetSendQueueSize(n int) error {
	if n < 1 {
		return errors.Errorf("send queue size %v < 1", n)
	}
	if b.sendq != nil {
		return errors.New("send queue already allocated")
	}
	b.queueSize = n
	return nil
}

// SetLogger sets the logger.
func (b *Bearer) SetLogger(l pbgatt.Logger) error {
	if l == nil {
		return errors.New("nil logger")
	}
	b.logger = l
	return nil
}

// SetErrorHandler sets error handler
func (b *Bearer) SetErrorHandler(handler func(error)) error {
	b.errorHandler = handler
	return nil
}

// SetTrace sets the event trace.
func (b *Bearer) SetTrace(t pbgatt.EventTrace) error {
	b.trace = t
	return nil
}
