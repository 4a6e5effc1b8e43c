package ipc

import (
	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"google.golang.org/protobuf/encoding/protowire"
)

// Codec encodes message bodies. The tag travels in the frame header.
type Codec interface {
	Name() string
	Marshal(m Message) ([]byte, error)
	Unmarshal(t Tag, body []byte) (Message, error)
}

// CodecByName returns the codec registered as name: "proto" or "json".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", ProtoCodec.Name():
		return ProtoCodec, nil
	case JSONCodec.Name():
		return JSONCodec, nil
	default:
		return nil, errors.Errorf("unknown ipc codec %q", name)
	}
}

// Field numbers of the protobuf encoding. Every message uses the subset
// it needs.
const (
	fieldConn     protowire.Number = 1
	fieldAddr     protowire.Number = 2
	fieldAddrType protowire.Number = 3
	fieldPayload  protowire.Number = 4
	fieldStatus   protowire.Number = 5
	fieldReason   protowire.Number = 6
	fieldMTU      protowire.Number = 7
)

// ProtoCodec encodes bodies in the protobuf wire format, so the peer can
// decode them with any protobuf runtime.
var ProtoCodec Codec = protoCodec{}

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(m Message) ([]byte, error) {
	var b []byte
	switch m := m.(type) {
	case Connected:
		b = appendVarint(b, fieldConn, uint64(m.ConnHandle))
		b = appendBytes(b, fieldAddr, m.Peer.MAC[:])
		b = appendVarint(b, fieldAddrType, uint64(m.Peer.Type))
	case Disconnected:
		b = appendVarint(b, fieldConn, uint64(m.ConnHandle))
		b = appendVarint(b, fieldReason, uint64(m.Reason))
	case ProvDataIn:
		b = appendVarint(b, fieldConn, uint64(m.ConnHandle))
		b = appendBytes(b, fieldPayload, m.Payload)
	case ProvSent:
		b = appendVarint(b, fieldConn, uint64(m.ConnHandle))
		b = appendVarint(b, fieldStatus, protowire.EncodeBool(m.Status))
	case ProvDataOut:
		b = appendVarint(b, fieldConn, uint64(m.ConnHandle))
		b = appendBytes(b, fieldPayload, m.Payload)
	case MTUQuery:
		b = appendVarint(b, fieldConn, uint64(m.ConnHandle))
	case MTUReport:
		b = appendVarint(b, fieldConn, uint64(m.ConnHandle))
		b = appendVarint(b, fieldMTU, uint64(m.MTU))
	default:
		return nil, errors.Errorf("proto codec: unsupported message %T", m)
	}
	return b, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// fields is a decoded body. Byte fields are copies.
type fields struct {
	varints map[protowire.Number]uint64
	bytes   map[protowire.Number][]byte
}

func (f fields) uint16(num protowire.Number) (uint16, error) {
	v := f.varints[num]
	if v > 0xffff {
		return 0, errors.Errorf("field %v: %v overflows uint16", num, v)
	}
	return uint16(v), nil
}

func parseFields(body []byte) (fields, error) {
	f := fields{
		varints: map[protowire.Number]uint64{},
		bytes:   map[protowire.Number][]byte{},
	}

	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return f, protowire.ParseError(n)
		}
		body = body[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return f, errors.Wrapf(protowire.ParseError(n), "field %v", num)
			}
			f.varints[num] = v
			body = body[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return f, errors.Wrapf(protowire.ParseError(n), "field %v", num)
			}
			f.bytes[num] = append([]byte{}, v...)
			body = body[n:]
		default:
			// unknown field, skip it
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return f, errors.Wrapf(protowire.ParseError(n), "field %v", num)
			}
			body = body[n:]
		}
	}
	return f, nil
}

func (protoCodec) Unmarshal(t Tag, body []byte) (Message, error) {
	f, err := parseFields(body)
	if err != nil {
		return nil, errors.Wrapf(err, "proto codec: %v", t)
	}

	conn, err := f.uint16(fieldConn)
	if err != nil {
		return nil, errors.Wrapf(err, "proto codec: %v", t)
	}

	switch t {
	case TagConnected:
		addr := f.bytes[fieldAddr]
		if len(addr) != 6 {
			return nil, errors.Errorf("proto codec: %v: address has %v bytes", t, len(addr))
		}
		m := Connected{ConnHandle: conn}
		m.Peer.Type = pbgatt.AddrType(f.varints[fieldAddrType])
		copy(m.Peer.MAC[:], addr)
		return m, nil
	case TagDisconnected:
		return Disconnected{ConnHandle: conn, Reason: uint8(f.varints[fieldReason])}, nil
	case TagProvDataIn:
		return ProvDataIn{ConnHandle: conn, Payload: f.bytes[fieldPayload]}, nil
	case TagProvSent:
		return ProvSent{ConnHandle: conn, Status: protowire.DecodeBool(f.varints[fieldStatus])}, nil
	case TagProvDataOut:
		return ProvDataOut{ConnHandle: conn, Payload: f.bytes[fieldPayload]}, nil
	case TagMTUQuery:
		return MTUQuery{ConnHandle: conn}, nil
	case TagMTUReport:
		mtu, err := f.uint16(fieldMTU)
		if err != nil {
			return nil, errors.Wrapf(err, "proto codec: %v", t)
		}
		return MTUReport{ConnHandle: conn, MTU: mtu}, nil
	default:
		return nil, errors.Errorf("proto codec: unknown tag %v", t)
	}
}
