package frame

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// Writer encodes STOMP frames onto an underlying byte stream. It is not
// safe for concurrent use; the client serializes writes itself.
type Writer struct {
	buf *bufio.Writer
}

// NewWriter creates a Writer with the default buffer size.
func NewWriter(w io.Writer) *Writer {
	return NewWriterSize(w, defaultBufferSize)
}

// NewWriterSize creates a Writer with the given buffer size.
func NewWriterSize(w io.Writer, size int) *Writer {
	return &Writer{buf: bufio.NewWriterSize(w, size)}
}

// Write encodes and flushes a single frame. A nil frame writes a
// heart-beat newline. The frame is not mutated: if the body is non-empty
// and no content-length header is present, one is written on the wire
// without being added to the frame.
func (w *Writer) Write(f *Frame) error {
	if f == nil {
		if err := w.buf.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "unable to write heart-beat")
		}
		return errors.Wrap(w.buf.Flush(), "unable to flush heart-beat")
	}

	if err := f.validate(); err != nil {
		return errors.Wrap(err, "unable to encode frame")
	}

	// CONNECT and CONNECTED frames are never escaped, for compatibility
	// with STOMP 1.0.
	escaped := f.Command != CONNECT && f.Command != CONNECTED

	w.buf.WriteString(f.Command)
	w.buf.WriteByte('\n')

	_, hasLength := f.Header.Contains(ContentLength)
	for i := 0; i < f.Header.Len(); i++ {
		k, v := f.Header.GetAt(i)
		if escaped {
			k, v = escapeValue(k), escapeValue(v)
		}
		w.buf.WriteString(k)
		w.buf.WriteByte(':')
		w.buf.WriteString(v)
		w.buf.WriteByte('\n')
	}
	if !hasLength && len(f.Body) > 0 {
		w.buf.WriteString(ContentLength)
		w.buf.WriteByte(':')
		w.buf.WriteString(strconv.Itoa(len(f.Body)))
		w.buf.WriteByte('\n')
	}

	w.buf.WriteByte('\n')
	w.buf.Write(f.Body)
	if err := w.buf.WriteByte(0); err != nil {
		return errors.Wrap(err, "unable to write frame")
	}

	return errors.Wrap(w.buf.Flush(), "unable to flush frame")
}
