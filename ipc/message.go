// Package ipc carries bearer messages between the BLE side and the
// provisioning stack running in another execution context.
//
// Messages travel as frames
//
//     Tag (1 byte), BodyLen (2 bytes, little-endian), Body (BodyLen bytes)
//
// where Body is produced by a Codec.
package ipc

import (
	"fmt"

	"github.com/rigado/pbgatt"
)

// Tag identifies a message type on the wire.
type Tag uint8

// Tags 0x01-0x0f flow from the bearer to the peer, 0x10-0x1f from the
// peer to the bearer.
const (
	TagConnected    Tag = 0x01
	TagDisconnected Tag = 0x02
	TagProvDataIn   Tag = 0x03
	TagProvSent     Tag = 0x04

	TagProvDataOut Tag = 0x10
	TagMTUQuery    Tag = 0x11
	TagMTUReport   Tag = 0x12
)

func (t Tag) String() string {
	switch t {
	case TagConnected:
		return "connected"
	case TagDisconnected:
		return "disconnected"
	case TagProvDataIn:
		return "prov-data-in"
	case TagProvSent:
		return "prov-sent"
	case TagProvDataOut:
		return "prov-data-out"
	case TagMTUQuery:
		return "mtu-query"
	case TagMTUReport:
		return "mtu-report"
	default:
		return fmt.Sprintf("tag(0x%02x)", uint8(t))
	}
}

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	switch t {
	case TagConnected, TagDisconnected, TagProvDataIn, TagProvSent,
		TagProvDataOut, TagMTUQuery, TagMTUReport:
		return true
	}
	return false
}

// Message is one of the message types below.
type Message interface {
	Tag() Tag
}

// Connected reports a new connection.
type Connected struct {
	Peer       pbgatt.BDAddr `json:"peer"`
	ConnHandle uint16        `json:"conn"`
}

// Disconnected reports the end of a connection.
type Disconnected struct {
	ConnHandle uint16 `json:"conn"`
	Reason     uint8  `json:"reason"`
}

// ProvDataIn carries a provisioning PDU written by the peer. Payload is
// borrowed from the stack event; a Bridge must copy it before returning.
type ProvDataIn struct {
	ConnHandle uint16 `json:"conn"`
	Payload    []byte `json:"payload"`
}

// ProvSent confirms, or with Status false reports the failure of, an
// outbound PDU.
type ProvSent struct {
	ConnHandle uint16 `json:"conn"`
	Status     bool   `json:"status"`
}

// ProvDataOut asks the bearer to notify a provisioning PDU.
type ProvDataOut struct {
	ConnHandle uint16 `json:"conn"`
	Payload    []byte `json:"payload"`
}

// MTUQuery asks for the ATT_MTU of a connection.
type MTUQuery struct {
	ConnHandle uint16 `json:"conn"`
}

// MTUReport answers an MTUQuery.
type MTUReport struct {
	ConnHandle uint16 `json:"conn"`
	MTU        uint16 `json:"mtu"`
}

func (Connected) Tag() Tag    { return TagConnected }
func (Disconnected) Tag() Tag { return TagDisconnected }
func (ProvDataIn) Tag() Tag   { return TagProvDataIn }
func (ProvSent) Tag() Tag     { return TagProvSent }
func (ProvDataOut) Tag() Tag  { return TagProvDataOut }
func (MTUQuery) Tag() Tag     { return TagMTUQuery }
func (MTUReport) Tag() Tag    { return TagMTUReport }

// Bridge delivers messages to the IPC peer. Write must not retain any
// slice of m after it returns.
type Bridge interface {
	Write(m Message) error
}

// Handler receives messages from the IPC peer.
type Handler func(m Message)
