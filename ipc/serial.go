package ipc

import (
	"io"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
)

// DefaultSerialOptions returns 8N1 settings for port with a 100ms read
// timeout.
func DefaultSerialOptions(port string, baud uint) serial.OpenOptions {
	return serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	}
}

// OpenSerial opens a UART for use with NewLink.
func OpenSerial(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	// force these
	opts.MinimumReadSize = 0
	if opts.InterCharacterTimeout == 0 {
		opts.InterCharacterTimeout = 100
	}

	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %v", opts.PortName)
	}
	return &serialPort{sp}, nil
}

// serialPort reports an expired read timeout as an empty read instead of
// io.EOF.
type serialPort struct {
	io.ReadWriteCloser
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.ReadWriteCloser.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}
