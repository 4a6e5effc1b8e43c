// Package adv builds legacy advertising and scan response payloads.
package adv

import (
	"encoding/binary"
	"errors"

	"github.com/rigado/pbgatt"
)

// MaxEIRPacketLength is the maximum allowed AdvertisingPacket
// and ScanResponsePacket length.
const MaxEIRPacketLength = 31

// ErrNotFit indicates that a field doesn't fit into the packet.
var ErrNotFit = errors.New("field doesn't fit into the packet")

// Flags values (CSS v6, Part A, 1.3).
const (
	FlagLimitedDiscoverable byte = 0x01
	FlagGeneralDiscoverable byte = 0x02
	FlagLEOnly              byte = 0x04
)

// Advertising data types.
const (
	typeFlags         byte = 0x01
	typeAllUUID16     byte = 0x03
	typeShortName     byte = 0x08
	typeCompleteName  byte = 0x09
	typeServiceData16 byte = 0x16
	typeMfgData       byte = 0xff
)

// Packet is an advertising packet or scan response under construction.
type Packet struct {
	b []byte
}

// Bytes returns the bytes of the packet.
func (p *Packet) Bytes() []byte {
	return p.b
}

// Len returns the length of the packet.
func (p *Packet) Len() int {
	return len(p.b)
}

// NewPacket returns a new advertising Packet.
func NewPacket(fields ...Field) (*Packet, error) {
	p := &Packet{b: make([]byte, 0, MaxEIRPacketLength)}
	for _, f := range fields {
		if err := f(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Field is an advertising field which can be appended to a packet.
type Field func(p *Packet) error

// Append appends a field to the packet. It returns ErrNotFit if the field
// doesn't fit into the packet, and leaves the packet intact.
func (p *Packet) Append(f Field) error {
	return f(p)
}

func (p *Packet) append(typ byte, b []byte) error {
	if p.Len()+1+1+len(b) > MaxEIRPacketLength {
		return ErrNotFit
	}
	p.b = append(p.b, byte(len(b)+1))
	p.b = append(p.b, typ)
	p.b = append(p.b, b...)
	return nil
}

// Flags is a flags.
func Flags(f byte) Field {
	return func(p *Packet) error {
		return p.append(typeFlags, []byte{f})
	}
}

// ShortName is a short local name.
func ShortName(n string) Field {
	return func(p *Packet) error {
		return p.append(typeShortName, []byte(n))
	}
}

// CompleteName is a complete local name.
func CompleteName(n string) Field {
	return func(p *Packet) error {
		return p.append(typeCompleteName, []byte(n))
	}
}

// ManufacturerData is manufacturer specific data.
func ManufacturerData(id uint16, b []byte) Field {
	return func(p *Packet) error {
		d := append([]byte{uint8(id), uint8(id >> 8)}, b...)
		return p.append(typeMfgData, d)
	}
}

// AllUUID16 is the complete list of 16-bit service UUIDs.
func AllUUID16(ids ...uint16) Field {
	return func(p *Packet) error {
		b := make([]byte, 2*len(ids))
		for i, id := range ids {
			binary.LittleEndian.PutUint16(b[2*i:], id)
		}
		return p.append(typeAllUUID16, b)
	}
}

// ServiceData16 is service data for a 16bit service uuid.
func ServiceData16(id uint16, b []byte) Field {
	return func(p *Packet) error {
		d := append([]byte{uint8(id), uint8(id >> 8)}, b...)
		return p.append(typeServiceData16, d)
	}
}

// ProvisioningBeacon lists the mesh provisioning service and its service
// data, as advertised by an unprovisioned device supporting PB-GATT.
func ProvisioningBeacon(b pbgatt.Beacon) Field {
	return func(p *Packet) error {
		n := p.Len()
		if err := AllUUID16(pbgatt.ProvisioningServiceUUID)(p); err != nil {
			return err
		}
		if err := ServiceData16(pbgatt.ProvisioningServiceUUID, b.ServiceData())(p); err != nil {
			p.b = p.b[:n]
			return err
		}
		return nil
	}
}
