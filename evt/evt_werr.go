package evt

import (
	"encoding/binary"
	"fmt"
)

func (e Connected) ConnHandleWErr() (uint16, error) {
	return getUint16LE(e, 0, 0xffff)
}

func (e Connected) PeerAddrTypeWErr() (uint8, error) {
	return getByte(e, 2, 0xff)
}

func (e Connected) PeerAddrWErr() ([6]byte, error) {
	bb, err := getBytes(e, 3, 6)
	if err != nil {
		return [6]byte{}, err
	}

	out := [6]byte{}
	copy(out[:], bb)
	return out, nil
}

func (e Connected) RoleWErr() (uint8, error) {
	return getByte(e, 9, 0xff)
}

func (e Disconnected) ConnHandleWErr() (uint16, error) {
	return getUint16LE(e, 0, 0xffff)
}

func (e Disconnected) ReasonWErr() (uint8, error) {
	return getByte(e, 2, 0)
}

func (e Write) ConnHandleWErr() (uint16, error) {
	return getUint16LE(e, 0, 0xffff)
}

func (e Write) HandleWErr() (uint16, error) {
	return getUint16LE(e, 2, 0)
}

func (e Write) OpWErr() (uint8, error) {
	return getByte(e, 4, WriteOpInvalid)
}

func (e Write) OffsetWErr() (uint16, error) {
	return getUint16LE(e, 5, 0)
}

func (e Write) LenWErr() (uint16, error) {
	return getUint16LE(e, 7, 0)
}

// DataWErr returns the written bytes. The slice aliases the event; it is
// valid only while the event is being handled.
func (e Write) DataWErr() ([]byte, error) {
	l, err := e.LenWErr()
	if err != nil {
		return nil, err
	}
	if l == 0 {
		if len(e) != writeHeaderLen {
			return nil, fmt.Errorf("write: zero length with %v trailing bytes", len(e)-writeHeaderLen)
		}
		return []byte{}, nil
	}

	if writeHeaderLen+int(l) != len(e) {
		return nil, fmt.Errorf("write: len %v, have %v data bytes", l, len(e)-writeHeaderLen)
	}
	return getBytes(e, writeHeaderLen, int(l))
}

func (e ExchangeMTURequest) ConnHandleWErr() (uint16, error) {
	return getUint16LE(e, 0, 0xffff)
}

func (e ExchangeMTURequest) ClientRxMTUWErr() (uint16, error) {
	return getUint16LE(e, 2, 0)
}

func (e TxComplete) ConnHandleWErr() (uint16, error) {
	return getUint16LE(e, 0, 0xffff)
}

func (e TxComplete) CountWErr() (uint8, error) {
	return getByte(e, 2, 0)
}

//get or default
func getByte(b []byte, i int, def byte) (byte, error) {
	bb, err := getBytes(b, i, 1)
	if err != nil {
		return def, err
	}
	return bb[0], nil
}

//get or default
func getUint16LE(b []byte, i int, def uint16) (uint16, error) {
	bb, err := getBytes(b, i, 2)
	if err != nil {
		return def, err
	}
	return binary.LittleEndian.Uint16(bb), nil
}

func getBytes(bytes []byte, start int, count int) ([]byte, error) {
	if bytes == nil || start >= len(bytes) {
		return nil, fmt.Errorf("index error")
	}

	if count < 0 {
		return bytes[start:], nil
	}

	end := start + count
	//end is non-inclusive
	if end > len(bytes) {
		return nil, fmt.Errorf("index error")
	}

	return bytes[start:end], nil
}
