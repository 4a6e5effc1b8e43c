package ipc

import (
	"bytes"
	"context"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
)

func TestLink(t *testing.T) {
	for _, c := range []Codec{ProtoCodec, JSONCodec} {
		a, b := net.Pipe()
		la := NewLink(a, c, pbgatt.NopLogger())
		lb := NewLink(b, c, pbgatt.NopLogger())

		got := make(chan Message, len(testMessages))
		ctx, cancel := context.WithCancel(context.Background())
		served := make(chan error, 1)
		go func() {
			served <- lb.Serve(ctx, func(m Message) { got <- m })
		}()

		for _, m := range testMessages {
			if err := la.Write(m); err != nil {
				t.Fatalf("%v: write %v: %v", c.Name(), m.Tag(), err)
			}
		}

		for i, want := range testMessages {
			select {
			case m := <-got:
				if !reflect.DeepEqual(m, want) {
					t.Errorf("%v: message %v: got %#v want %#v", c.Name(), i, m, want)
				}
			case <-time.After(time.Second):
				t.Fatalf("%v: timed out waiting for message %v", c.Name(), i)
			}
		}

		cancel()
		if err := <-served; err != context.Canceled {
			t.Errorf("%v: Serve returned %v", c.Name(), err)
		}

		la.Close()
		lb.Close()
		if err := la.Write(MTUQuery{}); err != ErrLinkClosed {
			t.Errorf("%v: write after close: %v", c.Name(), err)
		}
	}
}

func TestLinkPeerClosed(t *testing.T) {
	a, b := net.Pipe()
	lb := NewLink(b, ProtoCodec, pbgatt.NopLogger())
	defer lb.Close()

	fr, _ := Encode(ProtoCodec, MTUQuery{ConnHandle: 3})
	go func() {
		a.Write(fr)
		a.Close()
	}()

	var got []Message
	err := lb.Serve(context.Background(), func(m Message) { got = append(got, m) })
	if err == nil {
		t.Fatal("Serve returned nil after the peer closed")
	}
	if len(got) != 1 || got[0] != (MTUQuery{ConnHandle: 3}) {
		t.Fatalf("got %#v", got)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestIsTimeout(t *testing.T) {
	if !isTimeout(errors.Wrap(timeoutErr{}, "read")) {
		t.Error("wrapped timeout not detected")
	}
	if isTimeout(errors.New("boom")) {
		t.Error("plain error reported as timeout")
	}
}

func TestJSONBridge(t *testing.T) {
	var buf bytes.Buffer
	jb := NewJSONBridge(&buf)
	if err := jb.Write(ProvSent{ConnHandle: 4, Status: true}); err != nil {
		t.Fatal(err)
	}
	if err := jb.Write(MTUReport{ConnHandle: 4, MTU: 69}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		`{"tag":"prov-sent","msg":{"conn":4,"status":true}}`,
		`{"tag":"mtu-report","msg":{"conn":4,"mtu":69}}`,
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("got %q want %q", lines, want)
	}
}

func TestDialSocket(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skip("no loopback listener:", err)
	}
	defer ln.Close()

	fr, err := Encode(ProtoCodec, MTUQuery{ConnHandle: 7})
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		// idle longer than the read timeout first
		time.Sleep(50 * time.Millisecond)
		c.Write(fr)
		time.Sleep(time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rwc, err := DialSocket(ctx, "tcp", ln.Addr().String(), 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	l := NewLink(rwc, ProtoCodec, pbgatt.NopLogger())
	defer l.Close()

	got := make(chan Message, 1)
	go l.Serve(ctx, func(m Message) { got <- m })

	select {
	case m := <-got:
		if m != (MTUQuery{ConnHandle: 7}) {
			t.Fatalf("got %#v", m)
		}
	case <-ctx.Done():
		t.Fatal("timed out")
	}

	if _, err := DialSocket(ctx, "tcp", "127.0.0.1:0", 0); err == nil {
		t.Fatal("dial to port 0 succeeded")
	}
}
