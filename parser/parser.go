// Package parser decodes advertising payloads.
package parser

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/sliceops"
)

var ErrEmptyPdu = errors.New("nil/empty pdu")

// UUID is a service UUID as advertised, least significant byte first.
type UUID []byte

// String returns the UUID most significant byte first, e.g. "1827".
func (u UUID) String() string {
	return hex.EncodeToString(sliceops.SwapBuf(u))
}

// UUID16 returns the advertised form of a 16-bit UUID.
func UUID16(id uint16) UUID {
	u := make(UUID, 2)
	binary.LittleEndian.PutUint16(u, id)
	return u
}

// https://www.bluetooth.org/en-us/specification/assigned-numbers/generic-access-profile
var types = struct {
	flags       byte
	uuid16inc   byte
	uuid16comp  byte
	uuid32inc   byte
	uuid32comp  byte
	uuid128inc  byte
	uuid128comp byte
	svc16       byte
	svc32       byte
	svc128      byte
	nameshort   byte
	namecomp    byte
	txpwr       byte
	mfgdata     byte
}{
	flags:       0x01,
	uuid16inc:   0x02,
	uuid16comp:  0x03,
	uuid32inc:   0x04,
	uuid32comp:  0x05,
	uuid128inc:  0x06,
	uuid128comp: 0x07,
	svc16:       0x16,
	svc32:       0x20,
	svc128:      0x21,
	nameshort:   0x08,
	namecomp:    0x09,
	txpwr:       0x0a,
	mfgdata:     0xff,
}

// Keys of the map returned by Parse.
const (
	KeyFlags       = "flags"
	KeyServices    = "services"
	KeyServiceData = "serviceData"
	KeyName        = "name"
	KeyTxPower     = "txPower"
	KeyMFG         = "mfg"
)

type pduRecord struct {
	arrayElementSz int
	minSz          int
	svcDataUUIDSz  int
	key            string
}

var pduDecodeMap = map[byte]pduRecord{
	types.uuid16inc:   {arrayElementSz: 2, minSz: 2, key: KeyServices},
	types.uuid16comp:  {arrayElementSz: 2, minSz: 2, key: KeyServices},
	types.uuid32inc:   {arrayElementSz: 4, minSz: 4, key: KeyServices},
	types.uuid32comp:  {arrayElementSz: 4, minSz: 4, key: KeyServices},
	types.uuid128inc:  {arrayElementSz: 16, minSz: 16, key: KeyServices},
	types.uuid128comp: {arrayElementSz: 16, minSz: 16, key: KeyServices},
	types.svc16:       {minSz: 2, svcDataUUIDSz: 2, key: KeyServiceData},
	types.svc32:       {minSz: 4, svcDataUUIDSz: 4, key: KeyServiceData},
	types.svc128:      {minSz: 16, svcDataUUIDSz: 16, key: KeyServiceData},
	types.namecomp:    {minSz: 1, key: KeyName},
	types.nameshort:   {minSz: 1, key: KeyName},
	types.txpwr:       {minSz: 1, key: KeyTxPower},
	types.mfgdata:     {minSz: 1, key: KeyMFG},
	types.flags:       {minSz: 1, key: KeyFlags},
}

func getArray(size int, bytes []byte) ([]UUID, error) {
	//any remainder?
	count := len(bytes) / size
	rem := len(bytes) % size
	if rem != 0 || count == 0 {
		return nil, fmt.Errorf("incorrect size")
	}

	arr := make([]UUID, 0, count)
	for j := 0; j < len(bytes); j += size {
		arr = append(arr, UUID(bytes[j:(j+size)]))
	}

	return arr, nil
}

// Parse decodes the AD structures of an advertising or scan response
// payload. Services are []UUID, service data is map[string][][]byte keyed
// by UUID string, everything else is []byte.
func Parse(pdu []byte) (map[string]interface{}, error) {
	if len(pdu) == 0 {
		return nil, ErrEmptyPdu
	}

	m := make(map[string]interface{})
	for i := 0; (i + 1) < len(pdu); {
		//length @ offset 0
		//type @ offset 1
		//data @ 2 - length
		length := int(pdu[i])
		typ := pdu[i+1]

		//zero length: the rest is padding
		if length == 0 {
			break
		}

		//do we have all the bytes for the payload?
		if (i + length) >= len(pdu) {
			return m, fmt.Errorf("buffer overflow: want %v, have %v, idx %v", i+length, len(pdu), i)
		}

		start := i + 2
		end := start + length - 1
		bytes := sliceops.Clone(pdu[start:end])
		dec, ok := pduDecodeMap[typ]
		if ok && len(bytes) != 0 {
			if dec.minSz > len(bytes) {
				return m, fmt.Errorf("adv type %v: min length %v, have %v, idx %v", typ, dec.minSz, len(bytes), i)
			}

			switch {
			case dec.arrayElementSz > 0:
				arr, err := getArray(dec.arrayElementSz, bytes)
				if err != nil {
					return m, errors.Wrapf(err, "adv type %v, idx %v", typ, i)
				}
				v, _ := m[dec.key].([]UUID)
				m[dec.key] = append(v, arr...)

			case dec.svcDataUUIDSz > 0:
				su := UUID(bytes[:dec.svcDataUUIDSz]).String()
				msd, ok := m[dec.key].(map[string][][]byte)
				if !ok {
					msd = make(map[string][][]byte)
					m[dec.key] = msd
				}
				msd[su] = append(msd[su], bytes[dec.svcDataUUIDSz:])

			default:
				writeOrAppendBytes(m, dec.key, bytes)
			}
		}

		i += length + 1
	}

	return m, nil
}

func writeOrAppendBytes(m map[string]interface{}, key string, data []byte) {
	d, ok := m[key].([]byte)
	if !ok {
		m[key] = data
		return
	}

	if key == KeyMFG && len(data) >= 2 {
		//mfg data contains the company id again in the scan response
		//strip that out
		data = data[2:]
	}
	m[key] = append(d, data...)
}

// ServiceData returns the service data advertised for u.
func ServiceData(m map[string]interface{}, u UUID) [][]byte {
	msd, _ := m[KeyServiceData].(map[string][][]byte)
	return msd[u.String()]
}

// ProvisioningBeacon returns the unprovisioned device beacon carried by
// an advertising payload as mesh provisioning service data.
func ProvisioningBeacon(pdu []byte) (pbgatt.Beacon, error) {
	m, err := Parse(pdu)
	if err != nil {
		return pbgatt.Beacon{}, err
	}

	sd := ServiceData(m, UUID16(pbgatt.ProvisioningServiceUUID))
	if len(sd) == 0 {
		return pbgatt.Beacon{}, errors.New("no mesh provisioning service data")
	}
	return pbgatt.ParseBeacon(sd[0])
}
