package evt

import (
	"encoding/binary"
	"fmt"
)

// Split checks the packet header and returns the event code and the
// parameter block. The parameters alias pkt.
func Split(pkt []byte) (Code, []byte, error) {
	if len(pkt) < HeaderLen {
		return 0, nil, fmt.Errorf("short event packet: % X", pkt)
	}

	code := Code(pkt[0])
	plen := int(binary.LittleEndian.Uint16(pkt[1:3]))
	if plen != len(pkt[HeaderLen:]) {
		return code, nil, fmt.Errorf("invalid event packet: plen %v, have %v: % X", plen, len(pkt[HeaderLen:]), pkt)
	}
	return code, pkt[HeaderLen:], nil
}

// Packet prepends the event header to params.
func Packet(c Code, params []byte) []byte {
	b := make([]byte, HeaderLen, HeaderLen+len(params))
	b[0] = byte(c)
	binary.LittleEndian.PutUint16(b[1:], uint16(len(params)))
	return append(b, params...)
}

// NewConnected builds a connected event packet. addr is little-endian.
func NewConnected(conn uint16, addrType uint8, addr [6]byte, role uint8) []byte {
	p := make([]byte, connectedLen)
	binary.LittleEndian.PutUint16(p, conn)
	p[2] = addrType
	copy(p[3:9], addr[:])
	p[9] = role
	return Packet(ConnectedCode, p)
}

// NewDisconnected builds a disconnected event packet.
func NewDisconnected(conn uint16, reason uint8) []byte {
	p := make([]byte, disconnectedLen)
	binary.LittleEndian.PutUint16(p, conn)
	p[2] = reason
	return Packet(DisconnectedCode, p)
}

// NewWrite builds a characteristic write event packet.
func NewWrite(conn, handle uint16, op uint8, offset uint16, data []byte) []byte {
	p := make([]byte, writeHeaderLen, writeHeaderLen+len(data))
	binary.LittleEndian.PutUint16(p, conn)
	binary.LittleEndian.PutUint16(p[2:], handle)
	p[4] = op
	binary.LittleEndian.PutUint16(p[5:], offset)
	binary.LittleEndian.PutUint16(p[7:], uint16(len(data)))
	return Packet(WriteCode, append(p, data...))
}

// NewExchangeMTURequest builds an exchange MTU request event packet.
func NewExchangeMTURequest(conn, clientRxMTU uint16) []byte {
	p := make([]byte, exchangeMTURequestLen)
	binary.LittleEndian.PutUint16(p, conn)
	binary.LittleEndian.PutUint16(p[2:], clientRxMTU)
	return Packet(ExchangeMTURequestCode, p)
}

// NewTxComplete builds a transmit complete event packet.
func NewTxComplete(conn uint16, count uint8) []byte {
	p := make([]byte, txCompleteLen)
	binary.LittleEndian.PutUint16(p, conn)
	p[2] = count
	return Packet(TxCompleteCode, p)
}
