package pbgatt

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt/sliceops"
)

// Addr represents a network end point address.
type Addr interface {
	String() string
	Bytes() []byte
}

// AddrType is the GAP address type tag reported with a peer address.
type AddrType uint8

const (
	AddrPublic                     AddrType = 0x00
	AddrRandomStatic               AddrType = 0x01
	AddrRandomPrivateResolvable    AddrType = 0x02
	AddrRandomPrivateNonResolvable AddrType = 0x03
)

func (t AddrType) String() string {
	switch t {
	case AddrPublic:
		return "public"
	case AddrRandomStatic:
		return "random-static"
	case AddrRandomPrivateResolvable:
		return "random-resolvable"
	case AddrRandomPrivateNonResolvable:
		return "random-non-resolvable"
	default:
		return fmt.Sprintf("addr-type(0x%02x)", uint8(t))
	}
}

// BDAddr is a Bluetooth device address. MAC holds the six address bytes in
// the little-endian order used on air and by the stack.
type BDAddr struct {
	Type AddrType
	MAC  [6]byte
}

// NewAddr parses a colon separated, most significant byte first address
// such as "c0:ff:ee:00:11:22".
func NewAddr(s string, t AddrType) (BDAddr, error) {
	hexStr := strings.Replace(strings.ToLower(s), ":", "", -1)

	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return BDAddr{}, errors.Wrapf(err, "decode address %q", s)
	}
	if len(b) != 6 {
		return BDAddr{}, errors.Errorf("address %q: want 6 bytes, have %v", s, len(b))
	}

	a := BDAddr{Type: t}
	copy(a.MAC[:], sliceops.SwapBuf(b))
	return a, nil
}

// MustAddr is like NewAddr but panics on malformed input.
func MustAddr(s string, t AddrType) BDAddr {
	a, err := NewAddr(s, t)
	if err != nil {
		panic(err)
	}
	return a
}

func (a BDAddr) String() string {
	be := sliceops.SwapBuf(a.MAC[:])
	parts := make([]string, len(be))
	for i, v := range be {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ":")
}

// Bytes returns a copy of the address in on-air (little-endian) order.
func (a BDAddr) Bytes() []byte {
	return sliceops.Clone(a.MAC[:])
}
