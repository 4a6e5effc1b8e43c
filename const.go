package pbgatt

// Mesh provisioning service and characteristics (Mesh Profile 7.1).
const (
	ProvisioningServiceUUID uint16 = 0x1827
	DataInUUID              uint16 = 0x2ADB
	DataOutUUID             uint16 = 0x2ADC
)

// ATT_MTU bounds. DefaultMTU is the minimum a mesh provisioning server
// must support.
const (
	MinMTU     uint16 = 23
	MaxMTU     uint16 = 517
	DefaultMTU uint16 = 69
)
