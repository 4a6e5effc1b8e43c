package ipc

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
)

const rxQueueSize = 64

// ErrLinkClosed is returned by Write after Close.
var ErrLinkClosed = errors.New("ipc link closed")

// Link is a Bridge over a byte stream such as a UART or a socket. Frames
// read from the stream are decoded and handed to the Handler given to
// Serve.
type Link struct {
	rwc    io.ReadWriteCloser
	codec  Codec
	logger pbgatt.Logger

	wmu sync.Mutex

	rx     chan []byte
	rxDone chan struct{}
	rxErr  error

	cmu  sync.Mutex
	done chan struct{}
}

// NewLink starts reading frames from rwc. The link owns rwc and closes
// it on Close.
func NewLink(rwc io.ReadWriteCloser, c Codec, l pbgatt.Logger) *Link {
	if l == nil {
		l = pbgatt.GetLogger()
	}

	lk := &Link{
		rwc:    rwc,
		codec:  c,
		logger: l.ChildLogger(map[string]interface{}{"ipc": c.Name()}),
		rx:     make(chan []byte, rxQueueSize),
		rxDone: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go lk.rxLoop()

	return lk
}

// Write encodes m and writes it as one frame.
func (l *Link) Write(m Message) error {
	if !l.isOpen() {
		return ErrLinkClosed
	}

	fr, err := Encode(l.codec, m)
	if err != nil {
		return err
	}

	l.wmu.Lock()
	defer l.wmu.Unlock()
	_, err = l.rwc.Write(fr)
	l.logger.Debugf("tx %v [% X]", m.Tag(), fr)
	return errors.Wrapf(err, "can't write %v", m.Tag())
}

// Serve hands every decoded inbound message to h until ctx is done, the
// link is closed or the stream fails. Undecodable frames are logged and
// skipped.
func (l *Link) Serve(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fr := <-l.rx:
			l.handle(fr, h)
		case <-l.rxDone:
			// flush what was read before the stream ended
			for {
				select {
				case fr := <-l.rx:
					l.handle(fr, h)
				default:
					if l.rxErr == nil {
						return io.EOF
					}
					return l.rxErr
				}
			}
		}
	}
}

func (l *Link) handle(fr []byte, h Handler) {
	m, err := Decode(l.codec, fr)
	if err != nil {
		l.logger.Warnf("dropping frame [% X]: %v", fr, err)
		return
	}
	l.logger.Debugf("rx %v [% X]", m.Tag(), fr)
	h(m)
}

// Close stops the link and closes the underlying stream.
func (l *Link) Close() error {
	l.cmu.Lock()
	defer l.cmu.Unlock()

	select {
	case <-l.done:
		return nil
	default:
		close(l.done)
		return errors.Wrap(l.rwc.Close(), "can't close ipc link")
	}
}

func (l *Link) isOpen() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *Link) put(fr []byte) {
	select {
	case l.rx <- fr:
	case <-l.done:
	}
}

func (l *Link) rxLoop() {
	defer close(l.rxDone)

	f := newFrame(l.put)
	tmp := make([]byte, 512)
	for {
		n, err := l.rwc.Read(tmp)
		if n > 0 {
			f.Assemble(tmp[:n])
		}

		switch {
		case !l.isOpen():
			return
		case err == nil:
			continue
		case isTimeout(err):
			continue
		default:
			l.rxErr = errors.Wrap(err, "can't read ipc link")
			return
		}
	}
}

func isTimeout(err error) bool {
	te, ok := errors.Cause(err).(interface{ Timeout() bool })
	return ok && te.Timeout()
}
