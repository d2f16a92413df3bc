package stompy

import (
	"fmt"

	"github.com/batchcorp/stompy/frame"
	"github.com/pkg/errors"
)

var (
	// ErrNoAddresses is returned by Connect when the options contain no
	// broker addresses.
	ErrNoAddresses = errors.New("no broker addresses provided")

	// ErrConnect is returned by Connect after every address has been
	// attempted without establishing a session.
	ErrConnect = errors.New("unable to connect to any broker address")

	// ErrNotConnected is returned when an operation that requires an
	// established session is attempted outside one.
	ErrNotConnected = errors.New("client is not connected")

	// ErrReadTimeout is returned by a bounded Receive or Loop when the
	// deadline elapses before a frame arrives. It is recoverable: the
	// caller may call Receive again. It is distinct from a closed
	// session, which Receive reports as a nil frame with a nil error.
	ErrReadTimeout = errors.New("receive timed out")

	// ErrDeadlineUnsupported is returned when a timeout is requested but
	// the underlying transport cannot enforce read deadlines.
	ErrDeadlineUnsupported = errors.New("transport does not support read deadlines")

	// ErrCompletedTransaction is returned when a transaction is used
	// after it has been committed or aborted.
	ErrCompletedTransaction = errors.New("transaction is already committed or aborted")

	// ErrUnknownSubscription is returned when a MESSAGE frame references
	// a subscription id the client is not tracking.
	ErrUnknownSubscription = errors.New("unknown subscription")

	// Reject can be returned from a Handler to indicate the message was
	// not processed; the engine sends NACK instead of ACK and the loop
	// continues.
	Reject = errors.New("message rejected by handler")
)

// BrokerError wraps an ERROR frame received from the broker. The session
// is left open; brokers generally close the connection themselves shortly
// after sending ERROR.
type BrokerError struct {
	Frame *frame.Frame
}

// Error returns the broker's message header, falling back to a generic
// description when the header is absent.
func (e *BrokerError) Error() string {
	if msg := e.Frame.Header.Get(frame.Message); msg != "" {
		return fmt.Sprintf("broker error: %s", msg)
	}
	return "broker sent ERROR frame"
}
