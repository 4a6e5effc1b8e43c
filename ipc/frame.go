package ipc

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt/sliceops"
)

const (
	headerOffsetTag     = 0
	headerOffsetBodyLen = 1
	headerLength        = 3

	// MaxBodyLen bounds a frame body. Longer length fields are treated
	// as line noise.
	MaxBodyLen = 2048

	frameTimeout = 500 * time.Millisecond
)

var errBadLength = fmt.Errorf("bad body length")

// Frame prepends the frame header to body.
func Frame(t Tag, body []byte) ([]byte, error) {
	if len(body) > MaxBodyLen {
		return nil, errors.Errorf("frame %v: body too long (%v)", t, len(body))
	}

	b := make([]byte, headerLength, headerLength+len(body))
	b[headerOffsetTag] = byte(t)
	binary.LittleEndian.PutUint16(b[headerOffsetBodyLen:], uint16(len(body)))
	return append(b, body...), nil
}

// Encode marshals m with c and frames it.
func Encode(c Codec, m Message) ([]byte, error) {
	body, err := c.Marshal(m)
	if err != nil {
		return nil, err
	}
	return Frame(m.Tag(), body)
}

// Decode parses one complete frame with c.
func Decode(c Codec, fr []byte) (Message, error) {
	if len(fr) < headerLength {
		return nil, errors.Errorf("short frame: % X", fr)
	}

	t := Tag(fr[headerOffsetTag])
	l := int(binary.LittleEndian.Uint16(fr[headerOffsetBodyLen:]))
	if l != len(fr[headerLength:]) {
		return nil, errors.Errorf("frame %v: body length %v, have %v", t, l, len(fr[headerLength:]))
	}
	return c.Unmarshal(t, fr[headerLength:])
}

// frame reassembles frames from a byte stream. A partial frame is dropped
// when the rest of it does not arrive within frameTimeout.
type frame struct {
	b       []byte
	timeout time.Time
	out     func([]byte)
}

func newFrame(out func([]byte)) *frame {
	return &frame{
		b:   make([]byte, 0, 256),
		out: out,
	}
}

func (f *frame) Assemble(b []byte) {
	switch {
	case len(b) == 0:
		// nothing to look at
		return

	case !f.timeout.IsZero() && time.Now().After(f.timeout):
		//timed out
		fallthrough
	case f.b == nil:
		//lazy init
		f.reset()

	default:
		// ok
	}

	if len(f.b) == 0 {
		err := f.waitStart(b)
		if err != nil {
			return
		}
	} else {
		f.b = append(f.b, b...)
	}

	rf, err := f.frame()
	switch {
	case err == errBadLength:
		// resync on the next tag byte
		rem := sliceops.Clone(f.b[1:])
		f.reset()
		f.Assemble(rem)
		return
	case err != nil:
		return
	}

	f.out(sliceops.Clone(rf))

	// shift
	if len(f.b) > len(rf) {
		rem := sliceops.Clone(f.b[len(rf):])
		f.reset()
		f.Assemble(rem)
	} else {
		f.reset()
	}
}

func (f *frame) reset() {
	f.b = make([]byte, 0, 256)
	f.timeout = time.Time{}
}

func (f *frame) waitStart(b []byte) error {
	// find the start byte
	for i, v := range b {
		if !Tag(v).Valid() {
			continue
		}

		f.timeout = time.Now().Add(frameTimeout)
		f.b = append(f.b, b[i:]...)
		return nil
	}

	return fmt.Errorf("couldnt find start byte")
}

func (f *frame) frame() ([]byte, error) {
	if len(f.b) < headerLength {
		return nil, fmt.Errorf("not enough bytes")
	}

	tl := int(binary.LittleEndian.Uint16(f.b[headerOffsetBodyLen:]))
	if tl > MaxBodyLen {
		return nil, errBadLength
	}
	tl += headerLength

	if len(f.b) < tl {
		return nil, fmt.Errorf("not enough bytes")
	}
	return f.b[:tl], nil
}
