package pbgatt

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// OOB information flags advertised by an unprovisioned device
// (Mesh Profile 3.9.2, Table 3.54).
const (
	OOBOther              uint16 = 0x0001
	OOBElectronicURI      uint16 = 0x0002
	OOBMachineReadable2D  uint16 = 0x0004
	OOBBarCode            uint16 = 0x0008
	OOBNFC                uint16 = 0x0010
	OOBNumber             uint16 = 0x0020
	OOBString             uint16 = 0x0040
	OOBOnBox              uint16 = 0x0800
	OOBInsideBox          uint16 = 0x1000
	OOBOnPieceOfPaper     uint16 = 0x2000
	OOBInsideManual       uint16 = 0x4000
	OOBOnDevice           uint16 = 0x8000
	beaconServiceDataSize        = 18
)

// Beacon is the service data an unprovisioned device advertises with the
// provisioning service UUID.
type Beacon struct {
	DeviceUUID uuid.UUID
	OOBInfo    uint16
}

// ServiceData returns the 18 byte service data: device UUID followed by
// the OOB information, big-endian as all mesh multi-octet fields.
func (b Beacon) ServiceData() []byte {
	out := make([]byte, beaconServiceDataSize)
	copy(out, b.DeviceUUID[:])
	binary.BigEndian.PutUint16(out[16:], b.OOBInfo)
	return out
}

// ParseBeacon decodes service data built by Beacon.ServiceData.
func ParseBeacon(sd []byte) (Beacon, error) {
	if len(sd) != beaconServiceDataSize {
		return Beacon{}, errors.Errorf("beacon service data: want %v bytes, have %v", beaconServiceDataSize, len(sd))
	}

	var b Beacon
	copy(b.DeviceUUID[:], sd[:16])
	b.OOBInfo = binary.BigEndian.Uint16(sd[16:])
	return b, nil
}
