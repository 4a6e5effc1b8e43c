package pbgatt

import "time"

// TraceRecord is one raw stack event as it reached the bearer.
type TraceRecord struct {
	Seq   uint64    `json:"seq"`
	Time  time.Time `json:"time"`
	Event []byte    `json:"event"`
}

// EventTrace persists stack events so a session can be replayed later.
type EventTrace interface {
	Append(r TraceRecord) error
	Load() ([]TraceRecord, error)
	Clear() error
}
