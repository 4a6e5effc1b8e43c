package ipc

import (
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// JSONBridge writes every message as one JSON object per line. It is used
// to inspect bearer output, e.g. when replaying a trace.
type JSONBridge struct {
	mu  sync.Mutex
	enc *jsoniter.Encoder
}

type jsonLine struct {
	Tag string  `json:"tag"`
	Msg Message `json:"msg"`
}

func NewJSONBridge(w io.Writer) *JSONBridge {
	return &JSONBridge{enc: json.NewEncoder(w)}
}

func (b *JSONBridge) Write(m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Wrap(b.enc.Encode(jsonLine{Tag: m.Tag().String(), Msg: m}), "json bridge")
}
