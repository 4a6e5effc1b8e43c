// Package trace stores raw stack events in a file, one JSON record per
// line, so a session can be replayed against a simulated stack.
package trace

import (
	"bufio"
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/rigado/pbgatt"
)

type fileTrace struct {
	filename string
	lock     sync.RWMutex
}

func New(filename string) pbgatt.EventTrace {
	ft := fileTrace{
		filename: filename,
	}

	return &ft
}

func (ft *fileTrace) Append(r pbgatt.TraceRecord) error {
	ft.lock.Lock()
	defer ft.lock.Unlock()

	out, err := jsoniter.Marshal(r)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(ft.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	_, err = f.Write(append(out, '\n'))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (ft *fileTrace) Load() ([]pbgatt.TraceRecord, error) {
	ft.lock.RLock()
	defer ft.lock.RUnlock()

	_, err := os.Stat(ft.filename)
	if os.IsNotExist(err) {
		return nil, nil
	}

	in, err := ioutil.ReadFile(ft.filename)
	if err != nil {
		return nil, err
	}

	var recs []pbgatt.TraceRecord
	sc := bufio.NewScanner(bytes.NewReader(in))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}

		var r pbgatt.TraceRecord
		err = jsoniter.Unmarshal(sc.Bytes(), &r)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", ft.filename, line, err)
		}
		recs = append(recs, r)
	}

	return recs, sc.Err()
}

func (ft *fileTrace) Clear() error {
	ft.lock.Lock()
	defer ft.lock.Unlock()

	err := os.Remove(ft.filename)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
