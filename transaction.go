package stompy

import (
	"sync"

	"github.com/batchcorp/stompy/frame"
	"github.com/pkg/errors"
)

// TransactionState tracks a transaction through its lifecycle. Committed
// and aborted are terminal.
type TransactionState int

const (
	TransactionOpen TransactionState = iota
	TransactionCommitted
	TransactionAborted
)

// Transaction groups frames so the broker processes them atomically on
// commit. Frames are tagged with the transaction id as they are sent; the
// single write path guarantees every tagged frame reaches the wire before
// the COMMIT that seals it.
type Transaction struct {
	id     string
	client *Client

	mu    sync.Mutex
	state TransactionState
}

// Begin allocates a transaction id, sends the BEGIN frame and returns an
// open transaction handle.
func (c *Client) Begin() (*Transaction, error) {
	return c.BeginWithID(newID("t"))
}

// BeginWithID is Begin with a caller-chosen transaction id, for brokers
// or applications that correlate transactions by name.
func (c *Client) BeginWithID(id string) (*Transaction, error) {
	if id == "" {
		return nil, errors.New("transaction id cannot be empty")
	}

	if err := c.sendFrame(frame.New(frame.BEGIN, frame.Transaction, id)); err != nil {
		return nil, errors.Wrap(err, "unable to send BEGIN frame")
	}

	return &Transaction{id: id, client: c}, nil
}

// ID returns the transaction id.
func (t *Transaction) ID() string {
	return t.id
}

// State returns the transaction's lifecycle state.
func (t *Transaction) State() TransactionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Send tags the frame with the transaction id and sends it. The
// transaction must still be open.
func (t *Transaction) Send(f *frame.Frame) error {
	if err := t.checkOpen(); err != nil {
		return err
	}

	f.Header.Set(frame.Transaction, t.id)
	return t.client.Send(f)
}

// Message sends a SEND frame inside the transaction; same shape as
// Client.Message.
func (t *Transaction) Message(destination string, body []byte, opts ...func(*frame.Frame) error) error {
	if err := t.checkOpen(); err != nil {
		return err
	}

	f, err := buildSendFrame(destination, body, opts)
	if err != nil {
		return err
	}

	f.Header.Set(frame.Transaction, t.id)
	return t.client.sendFrame(f)
}

// Recv returns the next frame; automatic acknowledgements for delivered
// messages are tagged with the transaction id so the broker defers them
// until commit. The transaction must still be open.
func (t *Transaction) Recv() (*frame.Frame, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.client.recv(t.id)
}

// Ack acknowledges a message inside the transaction; the broker defers it
// until commit.
func (t *Transaction) Ack(ackID string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.client.ack(ackID, t.id)
}

// Nack negatively acknowledges a message inside the transaction.
func (t *Transaction) Nack(ackID string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.client.nack(ackID, t.id)
}

// Commit sends the COMMIT frame and closes the transaction.
func (t *Transaction) Commit() error {
	_, err := t.finish(frame.COMMIT, TransactionCommitted, false)
	return err
}

// CommitWithReceipt is Commit with a receipt request; it returns the
// receipt id to wait on.
func (t *Transaction) CommitWithReceipt() (string, error) {
	return t.finish(frame.COMMIT, TransactionCommitted, true)
}

// Abort sends the ABORT frame and closes the transaction; the broker
// discards everything sent inside it.
func (t *Transaction) Abort() error {
	_, err := t.finish(frame.ABORT, TransactionAborted, false)
	return err
}

// AbortWithReceipt is Abort with a receipt request.
func (t *Transaction) AbortWithReceipt() (string, error) {
	return t.finish(frame.ABORT, TransactionAborted, true)
}

func (t *Transaction) finish(command string, terminal TransactionState, receipt bool) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TransactionOpen {
		return "", errors.Wrapf(ErrCompletedTransaction, "id %q", t.id)
	}

	f := frame.New(command, frame.Transaction, t.id)

	var receiptID string
	var err error

	if receipt {
		receiptID, err = t.client.SendWithReceipt(f)
	} else {
		err = t.client.sendFrame(f)
	}

	if err != nil {
		return "", errors.Wrapf(err, "unable to send %s frame", command)
	}

	t.state = terminal
	return receiptID, nil
}

func (t *Transaction) checkOpen() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TransactionOpen {
		return errors.Wrapf(ErrCompletedTransaction, "id %q", t.id)
	}

	return nil
}
