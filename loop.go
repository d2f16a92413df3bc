package stompy

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/batchcorp/stompy/frame"
	"github.com/pkg/errors"
	"github.com/relistan/go-director"
)

// Handler is the callback invoked by Loop for every received frame. The
// extra args passed to Loop are forwarded verbatim. Returning a non-nil,
// non-false result stops the loop and becomes its return value. Returning
// Reject asks the engine to NACK the frame and keep looping; any other
// error stops the loop and propagates without closing the session.
type Handler func(c *Client, f *frame.Frame, args ...interface{}) (interface{}, error)

// errLoopDone is the sentinel the loop body returns to stop the
// FreeLooper without reporting an error to the caller.
var errLoopDone = errors.New("loop done")

type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// Recv returns the next frame, blocking indefinitely. Message frames are
// acknowledged on delivery per the subscription's policy. A nil frame
// with a nil error means the session closed.
func (c *Client) Recv() (*frame.Frame, error) {
	return c.recv("")
}

// recv is Recv with automatic acknowledgements tagged with a transaction
// id. An empty id leaves the ACK untagged.
func (c *Client) recv(transaction string) (*frame.Frame, error) {
	f, err := c.Receive(0)
	if err != nil || f == nil {
		return f, err
	}

	if err := c.autoAck(f, transaction, false); err != nil {
		return f, err
	}

	return f, nil
}

// Receive returns the next frame from the broker. It is the engine's only
// blocking operation.
//
// Heart-beats are consumed silently. RECEIPT frames settle their pending
// entry and are then delivered like any other frame. An ERROR frame is
// returned as a *BrokerError. A timeout of zero blocks indefinitely; a
// positive timeout fails with ErrReadTimeout when it elapses, which is
// recoverable. A closed session is terminal and reported as a nil frame
// with a nil error.
//
// Receive performs no automatic acknowledgement; that is the caller's
// concern (Recv, Loop and Consume apply the subscription policy).
func (c *Client) Receive(timeout time.Duration) (*frame.Frame, error) {
	for {
		c.mu.Lock()
		state := c.state
		c.mu.Unlock()

		switch state {
		case StateDisconnected, StateFailed:
			return nil, nil
		case StateConnected:
			// fall through to the read
		default:
			return nil, errors.Wrapf(ErrNotConnected, "state is %s", state)
		}

		if err := c.setReadDeadline(timeout); err != nil {
			return nil, err
		}

		f, err := c.reader.Read()
		if err != nil {
			if isTimeout(err) {
				return nil, ErrReadTimeout
			}
			// Disconnect closes the transport underneath a blocked
			// reader; the resulting read error is a clean close, not a
			// transport failure.
			if c.State() == StateDisconnected {
				return nil, nil
			}
			if errors.Cause(err) == io.EOF {
				c.log.Debug("Broker closed the connection")
				c.fail()
				return nil, nil
			}
			c.fail()
			return nil, errors.Wrap(err, "unable to read frame")
		}

		if f == nil {
			// heart-beat
			continue
		}

		switch f.Command {
		case frame.RECEIPT:
			c.handleReceipt(f)
			return f, nil
		case frame.ERROR:
			return nil, &BrokerError{Frame: f}
		default:
			return f, nil
		}
	}
}

// Loop receives frames and dispatches them to handler until the handler
// stops it, the session closes, or an error occurs. For each MESSAGE
// frame the engine acknowledges per the subscription policy after the
// handler returns: success sends ACK, Reject sends NACK, and AckAuto or
// ManualAck subscriptions get neither. Automatic acknowledgements carry
// opts.Transaction when set.
//
// The returned value is the handler's stopping result, or nil if the
// session closed first. A nil handler just drives acknowledgement.
func (c *Client) Loop(handler Handler, opts *LoopOptions, args ...interface{}) (interface{}, error) {
	if opts == nil {
		opts = &LoopOptions{}
	}

	var result interface{}

	looper := director.NewFreeLooper(director.FOREVER, make(chan error, 1))

	looper.Loop(func() error {
		f, err := c.Receive(opts.Timeout)
		if err != nil {
			return err
		}
		if f == nil {
			// session closed
			return errLoopDone
		}

		if handler == nil {
			return c.autoAck(f, opts.Transaction, false)
		}

		value, handlerErr := handler(c, f, args...)

		if handlerErr != nil {
			if errors.Cause(handlerErr) == Reject {
				return c.autoAck(f, opts.Transaction, true)
			}
			return handlerErr
		}

		if err := c.autoAck(f, opts.Transaction, false); err != nil {
			return err
		}

		if stopValue(value) {
			result = value
			return errLoopDone
		}

		return nil
	})

	if err := looper.Wait(); err != errLoopDone {
		return nil, err
	}

	return result, nil
}

// Consume exposes the session as a frame channel, the Go rendering of
// iterating over a live connection. The channel is conceptually infinite:
// it closes when the session closes, when a receive fails, or when ctx is
// cancelled. Message frames are acknowledged on delivery per the
// subscription policy.
//
// Consume occupies the session's single logical reader until its channel
// closes. Cancelling ctx takes effect at the next delivered frame; close
// the session to unblock a reader waiting on a silent broker.
func (c *Client) Consume(ctx context.Context) <-chan *frame.Frame {
	ch := make(chan *frame.Frame)

	go func() {
		defer close(ch)

		for {
			f, err := c.Receive(0)
			if err != nil {
				c.log.Warnf("Consume stopped: %s", err)
				return
			}
			if f == nil {
				return
			}

			if err := c.autoAck(f, "", false); err != nil {
				c.log.Warnf("Consume stopped: %s", err)
				return
			}

			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// autoAck applies the subscription's acknowledgement policy to a
// delivered MESSAGE frame. Frames from unknown subscriptions are
// delivered but never acknowledged; frames without an ack header cannot
// be acknowledged at all.
func (c *Client) autoAck(f *frame.Frame, transaction string, reject bool) error {
	if f.Command != frame.MESSAGE {
		return nil
	}

	ackID, ok := f.Header.Contains(frame.Ack)
	if !ok {
		return nil
	}

	sub, err := c.resolveSubscription(f)
	if err != nil {
		c.log.Warnf("Skipping auto-ack: %s", err)
		return nil
	}

	if sub.AckMode == AckAuto || sub.ManualAck {
		return nil
	}

	if reject {
		return c.nack(ackID, transaction)
	}

	return c.ack(ackID, transaction)
}

// stopValue reports whether a handler result stops the loop: anything
// except nil and false does.
func stopValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	default:
		return true
	}
}

func (c *Client) setReadDeadline(timeout time.Duration) error {
	d, ok := c.conn.(deadlineReader)

	if timeout <= 0 {
		if ok {
			_ = d.SetReadDeadline(time.Time{})
		}
		return nil
	}

	if !ok {
		return ErrDeadlineUnsupported
	}

	return errors.Wrap(d.SetReadDeadline(time.Now().Add(timeout)), "unable to set read deadline")
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
