// Package frame implements the STOMP wire format: the Frame data model and
// an incremental codec for reading and writing frames on a byte stream.
//
// A frame consists of a command line, zero or more header lines, a blank
// line and an optional body, terminated by a NUL octet. Bare newlines
// between frames are heart-beats; the Reader reports them as a nil frame
// rather than an error.
package frame

import (
	"strings"

	"github.com/pkg/errors"
)

// Frame is a single STOMP frame. A frame is immutable once it has been
// decoded from the wire or handed to the writer; the engine never mutates
// a frame after it has been sent or delivered.
type Frame struct {
	Command string
	Header  *Header
	Body    []byte
}

// New creates a frame with the given command and alternating header
// key/value strings.
//
//	f := frame.New(frame.SEND,
//		frame.Destination, "/queue/orders",
//		frame.Transaction, "t-1")
func New(command string, headers ...string) *Frame {
	return &Frame{Command: command, Header: NewHeader(headers...)}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := &Frame{Command: f.Command, Header: f.Header.Clone()}
	if f.Body != nil {
		c.Body = make([]byte, len(f.Body))
		copy(c.Body, f.Body)
	}
	return c
}

// Text returns the frame body decoded as text. STOMP brokers advertise the
// charset in the content-type header; Go strings are UTF-8, which is also
// the STOMP default, so the body bytes are returned as-is.
func (f *Frame) Text() string {
	return string(f.Body)
}

// Dump renders the frame for error messages and debug logs. The NUL
// terminator is omitted and the body is rendered as text.
func (f *Frame) Dump() string {
	var sb strings.Builder
	sb.WriteString(f.Command)
	sb.WriteByte('\n')
	for i := 0; i < f.Header.Len(); i++ {
		k, v := f.Header.GetAt(i)
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(v)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.Write(f.Body)
	return sb.String()
}

// validate checks the invariants the writer relies on. Called before a
// frame is encoded, not on decode (the reader has its own syntax checks).
func (f *Frame) validate() error {
	if f.Command == "" {
		return errors.New("frame command cannot be empty")
	}

	if strings.ContainsAny(f.Command, "\r\n:") {
		return errors.Errorf("invalid frame command %q", f.Command)
	}

	for i := 0; i < f.Header.Len(); i++ {
		if k, _ := f.Header.GetAt(i); k == "" {
			return errors.New("frame header name cannot be empty")
		}
	}

	if n, ok, err := f.Header.ContentLength(); err != nil {
		return err
	} else if ok && n != len(f.Body) {
		return errors.Errorf("content-length %d does not match body length %d", n, len(f.Body))
	}

	return nil
}
