package sse

import (
	"bytes"
	"errors"
	"io"
)

// Event is one decoded server-sent event.
type Event struct {
	Type string
	Data []byte
}

// Decoder reassembles events from arbitrarily split chunks. Bytes after the
// last newline are kept until the next Feed.
type Decoder struct {
	buf   []byte
	typ   string
	data  [][]byte
	limit int
}

// ErrLineTooLong is returned when a single line exceeds the decoder limit.
var ErrLineTooLong = errors.New("sse: line too long")

// NewDecoder creates a decoder that refuses lines longer than limit bytes.
// A limit <= 0 means 64 KiB.
func NewDecoder(limit int) *Decoder {
	if limit <= 0 {
		limit = 64 * 1024
	}
	return &Decoder{limit: limit}
}

// Feed appends chunk and returns every event completed by it.
func (d *Decoder) Feed(chunk []byte) ([]Event, error) {
	d.buf = append(d.buf, chunk...)

	var out []Event
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(d.buf[:i], "\r")
		if ev, ok := d.line(line); ok {
			out = append(out, ev)
		}
		d.buf = d.buf[i+1:]
	}
	if len(d.buf) > d.limit {
		return out, ErrLineTooLong
	}
	return out, nil
}

// Pending reports whether a partial line or event is buffered.
func (d *Decoder) Pending() bool {
	return len(d.buf) > 0 || len(d.data) > 0
}

func (d *Decoder) line(line []byte) (Event, bool) {
	if len(line) == 0 {
		if len(d.data) == 0 {
			d.typ = ""
			return Event{}, false
		}
		ev := Event{Type: d.typ, Data: bytes.Join(d.data, []byte("\n"))}
		d.typ, d.data = "", nil
		return ev, true
	}

	switch {
	case bytes.HasPrefix(line, []byte(":")):
		// comment / keepalive
	case bytes.HasPrefix(line, []byte("event:")):
		d.typ = string(bytes.TrimSpace(line[len("event:"):]))
	case bytes.HasPrefix(line, []byte("data:")):
		v := line[len("data:"):]
		if len(v) > 0 && v[0] == ' ' {
			v = v[1:]
		}
		d.data = append(d.data, append([]byte(nil), v...))
	}
	return Event{}, false
}

// ReadAll decodes r until EOF, calling fn for each event. A non-nil error
// from fn stops decoding and is returned.
func ReadAll(r io.Reader, fn func(Event) error) error {
	dec := NewDecoder(0)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			events, decErr := dec.Feed(buf[:n])
			for _, ev := range events {
				if cbErr := fn(ev); cbErr != nil {
					return cbErr
				}
			}
			if decErr != nil {
				return decErr
			}
		}
		if errors.Is(err, io.EOF) {
			// A final event without its blank line still counts.
			if events, _ := dec.Feed([]byte("\n\n")); len(events) > 0 {
				for _, ev := range events {
					if cbErr := fn(ev); cbErr != nil {
						return cbErr
					}
				}
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
