package ipc

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONCodec encodes bodies as JSON objects. Byte slices are base64.
var JSONCodec Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(m Message) ([]byte, error) {
	if m == nil || !m.Tag().Valid() {
		return nil, errors.Errorf("json codec: unsupported message %T", m)
	}
	b, err := json.Marshal(m)
	return b, errors.Wrapf(err, "json codec: %v", m.Tag())
}

func (jsonCodec) Unmarshal(t Tag, body []byte) (Message, error) {
	var err error
	var m Message
	switch t {
	case TagConnected:
		var v Connected
		err = json.Unmarshal(body, &v)
		m = v
	case TagDisconnected:
		var v Disconnected
		err = json.Unmarshal(body, &v)
		m = v
	case TagProvDataIn:
		var v ProvDataIn
		err = json.Unmarshal(body, &v)
		m = v
	case TagProvSent:
		var v ProvSent
		err = json.Unmarshal(body, &v)
		m = v
	case TagProvDataOut:
		var v ProvDataOut
		err = json.Unmarshal(body, &v)
		m = v
	case TagMTUQuery:
		var v MTUQuery
		err = json.Unmarshal(body, &v)
		m = v
	case TagMTUReport:
		var v MTUReport
		err = json.Unmarshal(body, &v)
		m = v
	default:
		return nil, errors.Errorf("json codec: unknown tag %v", t)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "json codec: %v", t)
	}
	return m, nil
}
