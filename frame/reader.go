package frame

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const defaultBufferSize = 4096

// Protocol errors reported by the Reader. Callers can test for them with
// errors.Cause / errors.Is after unwrapping any added context.
var (
	ErrInvalidCommand        = errors.New("invalid frame command")
	ErrInvalidFrameFormat    = errors.New("invalid frame format")
	ErrContentLengthMismatch = errors.New("content-length does not match body length")
)

var serverCommands = map[string]bool{
	CONNECTED: true,
	MESSAGE:   true,
	RECEIPT:   true,
	ERROR:     true,
	// Client commands are accepted too so the reader can be used on the
	// broker-facing side of a pipe in tests.
	CONNECT:     true,
	SEND:        true,
	SUBSCRIBE:   true,
	UNSUBSCRIBE: true,
	ACK:         true,
	NACK:        true,
	BEGIN:       true,
	COMMIT:      true,
	ABORT:       true,
	DISCONNECT:  true,
}

// Reader decodes STOMP frames from an underlying byte stream. It buffers
// the stream and consumes exactly one frame (or heart-beat) per call to
// Read. It is not safe for concurrent use.
type Reader struct {
	buf *bufio.Reader
}

// NewReader creates a Reader with the default buffer size.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, defaultBufferSize)
}

// NewReaderSize creates a Reader with the given buffer size.
func NewReaderSize(r io.Reader, size int) *Reader {
	return &Reader{buf: bufio.NewReaderSize(r, size)}
}

// Read returns the next frame from the stream. A heart-beat (a bare
// newline between frames) is returned as a nil frame with a nil error.
// A clean end of stream between frames returns io.EOF; an end of stream
// in the middle of a frame is a protocol error.
func (r *Reader) Read() (*Frame, error) {
	command, err := r.readLine()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "unable to read command line")
	}

	if command == "" {
		// heart-beat
		return nil, nil
	}

	if !serverCommands[command] {
		return nil, errors.Wrapf(ErrInvalidCommand, "%q", command)
	}

	f := New(command)

	// CONNECT and CONNECTED frames are never escaped, for compatibility
	// with STOMP 1.0.
	escaped := command != CONNECT && command != CONNECTED

	for {
		line, err := r.readLine()
		if err != nil {
			return nil, errors.Wrap(unexpectedEOF(err), "unable to read header line")
		}

		if line == "" {
			// end of headers
			break
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, errors.Wrapf(ErrInvalidFrameFormat, "malformed header line %q", line)
		}

		key, value := line[:colon], line[colon+1:]
		if escaped {
			if key, err = unescapeValue(key); err != nil {
				return nil, errors.Wrap(err, "unable to decode header name")
			}
			if value, err = unescapeValue(value); err != nil {
				return nil, errors.Wrap(err, "unable to decode header value")
			}
		}

		f.Header.Add(key, value)
	}

	if err := r.readBody(f); err != nil {
		return nil, err
	}

	return f, nil
}

// readBody reads the frame body and the NUL terminator. When the frame
// carries a content-length header the body is exactly that many octets and
// the terminator must follow immediately; otherwise the body extends to
// the terminator.
func (r *Reader) readBody(f *Frame) error {
	n, ok, err := f.Header.ContentLength()
	if err != nil {
		return errors.Wrap(ErrInvalidFrameFormat, err.Error())
	}

	if ok {
		body := make([]byte, n)
		if _, err := io.ReadFull(r.buf, body); err != nil {
			return errors.Wrap(unexpectedEOF(err), "unable to read frame body")
		}

		terminator, err := r.buf.ReadByte()
		if err != nil {
			return errors.Wrap(unexpectedEOF(err), "unable to read frame terminator")
		}
		if terminator != 0 {
			return errors.Wrapf(ErrContentLengthMismatch, "%d octet(s) declared but body continues", n)
		}

		f.Body = body
		return nil
	}

	body, err := r.buf.ReadBytes(0)
	if err != nil {
		return errors.Wrap(unexpectedEOF(err), "unterminated frame")
	}

	f.Body = body[:len(body)-1]
	return nil
}

// readLine reads one line, accepting both LF and CR-LF line endings.
func (r *Reader) readLine() (string, error) {
	line, err := r.buf.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
