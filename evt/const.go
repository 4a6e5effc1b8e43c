// Package evt decodes the BLE stack events consumed by the bearer.
//
// An event packet is
//
//     Code (1 byte), ParamLen (2 bytes, little-endian), Params (ParamLen bytes)
//
// The codes follow the numbering of the Nordic SoftDevice event IDs so that
// traces taken from a connectivity chip and from the BlueZ adapter look the
// same. Each event type is a byte view over Params with bounds checked
// accessors; the ...WErr variants report short packets, the plain variants
// return a default value instead.
package evt

// Code identifies the kind of a stack event.
type Code uint8

const (
	TxCompleteCode         Code = 0x01
	ConnectedCode          Code = 0x10
	DisconnectedCode       Code = 0x11
	WriteCode              Code = 0x50
	ExchangeMTURequestCode Code = 0x55
)

// HeaderLen is the size of the code and parameter length fields.
const HeaderLen = 3

func (c Code) String() string {
	switch c {
	case TxCompleteCode:
		return "tx complete"
	case ConnectedCode:
		return "connected"
	case DisconnectedCode:
		return "disconnected"
	case WriteCode:
		return "write"
	case ExchangeMTURequestCode:
		return "exchange mtu request"
	default:
		return "unknown"
	}
}

// Minimum parameter sizes.
const (
	connectedLen          = 10
	disconnectedLen       = 3
	writeHeaderLen        = 9
	exchangeMTURequestLen = 4
	txCompleteLen         = 3
)

// Write operation types.
const (
	WriteOpInvalid      uint8 = 0x00
	WriteOpWriteReq     uint8 = 0x01
	WriteOpWriteCmd     uint8 = 0x02
	WriteOpSignWriteCmd uint8 = 0x03
	WriteOpPrepWrite    uint8 = 0x04
	WriteOpExecWrite    uint8 = 0x05
)

// GAP roles carried by the connected event.
const (
	RoleCentral    uint8 = 0x00
	RolePeripheral uint8 = 0x01
)

// Connected is the parameter block of a connected event:
//
//     ConnHandle (2), PeerAddrType (1), PeerAddr (6, little-endian), Role (1)
type Connected []byte

// Disconnected is the parameter block of a disconnected event:
//
//     ConnHandle (2), Reason (1)
type Disconnected []byte

// Write is the parameter block of a characteristic write:
//
//     ConnHandle (2), Handle (2), Op (1), Offset (2), Len (2), Data (Len)
type Write []byte

// ExchangeMTURequest is the parameter block of an exchange MTU request:
//
//     ConnHandle (2), ClientRxMTU (2)
type ExchangeMTURequest []byte

// TxComplete is the parameter block of a transmit complete event:
//
//     ConnHandle (2), Count (1)
type TxComplete []byte
