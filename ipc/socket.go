package ipc

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

// DialSocket connects to an IPC peer listening on network/address. When
// timeout is positive every read and write gets that deadline; read
// timeouts only mean the peer was idle.
func DialSocket(ctx context.Context, network, address string, timeout time.Duration) (io.ReadWriteCloser, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial %v %v", network, address)
	}

	if timeout <= 0 {
		return c, nil
	}
	return &connWithTimeout{c: c, timeout: timeout}, nil
}

type connWithTimeout struct {
	c       net.Conn
	timeout time.Duration
}

func (cwt *connWithTimeout) Read(b []byte) (int, error) {
	// with deadline
	cwt.c.SetReadDeadline(time.Now().Add(cwt.timeout))
	return cwt.c.Read(b)
}

func (cwt *connWithTimeout) Write(b []byte) (int, error) {
	// with deadline
	cwt.c.SetWriteDeadline(time.Now().Add(cwt.timeout))
	return cwt.c.Write(b)
}

func (cwt *connWithTimeout) Close() error {
	return cwt.c.Close()
}
