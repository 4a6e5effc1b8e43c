package pbgatt

// Property is a set of GATT characteristic properties. The bit values match
// the Characteristic Properties field of the characteristic declaration.
type Property uint8

const (
	PropBroadcast   Property = 0x01
	PropRead        Property = 0x02
	PropWriteNoResp Property = 0x04
	PropWrite       Property = 0x08
	PropNotify      Property = 0x10
	PropIndicate    Property = 0x20
)

// Security is the access level required for an attribute operation.
type Security uint8

const (
	SecNoAccess Security = iota
	SecOpen
	SecEncNoMITM
	SecEncWithMITM
)

// CharacteristicParams describes one characteristic to be added to a
// service.
type CharacteristicParams struct {
	UUID   uint16
	MaxLen uint16
	VarLen bool
	Props  Property

	ReadAccess      Security
	WriteAccess     Security
	CCCDWriteAccess Security
}

// ServiceParams describes a primary service and its characteristics.
type ServiceParams struct {
	UUID            uint16
	Characteristics []CharacteristicParams
}

// CharacteristicHandles are the attribute handles assigned to one
// characteristic. CCCD is zero when the characteristic has no client
// configuration descriptor.
type CharacteristicHandles struct {
	Value uint16
	CCCD  uint16
}

// Stack is the part of a BLE stack the bearer drives. Events flow the other
// way, as raw packets (see package evt) delivered by the stack adapter.
type Stack interface {
	// RegisterService adds a primary service and returns one handle set
	// per characteristic, in the order given.
	RegisterService(p ServiceParams) ([]CharacteristicHandles, error)

	// ExchangeMTUReply answers a client's exchange MTU request.
	ExchangeMTUReply(conn uint16, mtu uint16) error

	// Notify queues a notification of data on the value handle. data is
	// only valid during the call. Errors are retried unless their cause
	// is ErrPeerDisconnected; ErrBusy marks the usual out of buffers case.
	Notify(conn uint16, handle uint16, data []byte) error
}
